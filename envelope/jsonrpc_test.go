package envelope

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestJSONRPC_DecodeRequest(t *testing.T) {
	codec := NewJSONRPCCodec()

	env, err := codec.Decode([]byte(`{"jsonrpc":"2.0","id":1,"method":"ui/initialize","params":{"appInfo":{"name":"w"}}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if env.Kind != KindRequest {
		t.Errorf("expected request, got %s", env.Kind)
	}
	if env.Method != MethodInitialize {
		t.Errorf("expected %s, got %s", MethodInitialize, env.Method)
	}
	if env.ID.Key() != "1" {
		t.Errorf("expected id 1, got %s", env.ID.Key())
	}
}

func TestJSONRPC_DecodeNotification(t *testing.T) {
	codec := NewJSONRPCCodec()

	env, err := codec.Decode([]byte(`{"jsonrpc":"2.0","method":"ui/size-change","params":{"height":420}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if env.Kind != KindNotification {
		t.Errorf("expected notification, got %s", env.Kind)
	}
	if !env.ID.IsZero() {
		t.Errorf("notification must not carry an id, got %s", env.ID.Key())
	}
}

func TestJSONRPC_DecodeResponse(t *testing.T) {
	codec := NewJSONRPCCodec()

	env, err := codec.Decode([]byte(`{"jsonrpc":"2.0","id":"req-7","result":{"ok":true}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if env.Kind != KindResponse {
		t.Errorf("expected response, got %s", env.Kind)
	}
	if env.Err != nil {
		t.Errorf("unexpected error: %v", env.Err)
	}

	env, err = codec.Decode([]byte(`{"jsonrpc":"2.0","id":"req-8","error":{"code":-32601,"message":"Method not found"}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Err == nil || env.Err.Code != CodeMethodNotFound {
		t.Errorf("expected -32601 error, got %+v", env.Err)
	}
}

func TestJSONRPC_DecodeMalformed(t *testing.T) {
	codec := NewJSONRPCCodec()

	cases := []string{
		`not json`,
		`{"jsonrpc":"1.0","method":"x","id":1}`,
		`{"jsonrpc":"2.0"}`,
		`{"jsonrpc":"2.0","id":null}`,
	}
	for _, raw := range cases {
		if _, err := codec.Decode([]byte(raw)); err == nil {
			t.Errorf("expected error for %q", raw)
		} else if !errors.Is(err, ErrMalformed) {
			t.Errorf("expected ErrMalformed for %q, got %v", raw, err)
		}
	}
}

func TestJSONRPC_RoundTrip(t *testing.T) {
	codec := NewJSONRPCCodec()

	req, err := NewRequest(NumberID(42), MethodToolsCall, map[string]interface{}{"name": "lookup"})
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	notif, err := NewNotification(MethodInitialized, nil)
	if err != nil {
		t.Fatalf("new notification: %v", err)
	}
	res, err := NewResult(StringID("a"), map[string]interface{}{"ok": true})
	if err != nil {
		t.Fatalf("new result: %v", err)
	}
	errRes := NewError(NumberID(9), CodeExecutionError, "boom")

	for _, env := range []*Envelope{req, notif, res, errRes} {
		data, err := codec.Encode(env)
		if err != nil {
			t.Fatalf("encode %s: %v", env.Kind, err)
		}
		got, err := codec.Decode(data)
		if err != nil {
			t.Fatalf("decode %s: %v", env.Kind, err)
		}
		if got.Kind != env.Kind {
			t.Errorf("kind changed: %s != %s", got.Kind, env.Kind)
		}
		if got.Method != env.Method {
			t.Errorf("method changed: %s != %s", got.Method, env.Method)
		}
		if !got.ID.Equal(env.ID) {
			t.Errorf("id changed: %s != %s", got.ID.Key(), env.ID.Key())
		}
		if (got.Err == nil) != (env.Err == nil) {
			t.Errorf("error presence changed")
		}
		if env.Err != nil && got.Err.Code != env.Err.Code {
			t.Errorf("error code changed: %d != %d", got.Err.Code, env.Err.Code)
		}
	}
}

func TestJSONRPC_EncodeEmptyResult(t *testing.T) {
	codec := NewJSONRPCCodec()

	data, err := codec.Encode(&Envelope{Kind: KindResponse, ID: NumberID(1)})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	var wire map[string]json.RawMessage
	if err := json.Unmarshal(data, &wire); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if string(wire["result"]) != "{}" {
		t.Errorf("expected empty object result, got %s", wire["result"])
	}
}
