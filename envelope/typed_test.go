package envelope

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestTyped_DecodeNotification(t *testing.T) {
	codec := NewTypedCodec()

	env, err := codec.Decode([]byte(`{"type":"openai:resize","height":512}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if env.Kind != KindNotification {
		t.Errorf("expected notification, got %s", env.Kind)
	}
	if env.Method != TypeResize {
		t.Errorf("expected %s, got %s", TypeResize, env.Method)
	}

	var params struct {
		Height int `json:"height"`
	}
	if err := env.UnmarshalParams(&params); err != nil {
		t.Fatalf("params: %v", err)
	}
	if params.Height != 512 {
		t.Errorf("expected height 512, got %d", params.Height)
	}
}

func TestTyped_DecodeCallTool(t *testing.T) {
	codec := NewTypedCodec()

	env, err := codec.Decode([]byte(`{"type":"openai:callTool","requestId":"r1","toolName":"lookup","params":{"q":"x"}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if env.Kind != KindRequest {
		t.Errorf("callTool must decode as a request, got %s", env.Kind)
	}
	if env.ID.Key() != `"r1"` {
		t.Errorf("unexpected id %s", env.ID.Key())
	}
}

func TestTyped_DecodeCallToolResponse(t *testing.T) {
	codec := NewTypedCodec()

	env, err := codec.Decode([]byte(`{"type":"openai:callTool:response","requestId":"r1","result":{"v":1}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Kind != KindResponse || env.Err != nil {
		t.Errorf("expected success response, got kind=%s err=%v", env.Kind, env.Err)
	}

	env, err = codec.Decode([]byte(`{"type":"openai:callTool:response","requestId":"r2","error":"tool exploded"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Err == nil || env.Err.Message != "tool exploded" {
		t.Errorf("expected string error, got %+v", env.Err)
	}
}

func TestTyped_DecodeMalformed(t *testing.T) {
	codec := NewTypedCodec()

	cases := []string{
		`[]`,
		`{"height":5}`,
		`{"type":42}`,
		`{"type":"openai:callTool","toolName":"x"}`,
		`{"type":"openai:callTool:response","result":{}}`,
	}
	for _, raw := range cases {
		if _, err := codec.Decode([]byte(raw)); err == nil {
			t.Errorf("expected error for %q", raw)
		} else if !errors.Is(err, ErrMalformed) {
			t.Errorf("expected ErrMalformed for %q, got %v", raw, err)
		}
	}
}

func TestTyped_RoundTrip(t *testing.T) {
	codec := NewTypedCodec()

	req, err := NewRequest(StringID("c1"), TypeCallTool, map[string]interface{}{
		"toolName": "lookup",
		"params":   map[string]interface{}{"q": "negroni"},
	})
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	notif, err := NewNotification(TypeRequestDisplayMode, map[string]interface{}{"mode": "fullscreen"})
	if err != nil {
		t.Fatalf("new notification: %v", err)
	}
	res, err := NewResult(StringID("c1"), map[string]interface{}{"v": 1.0})
	if err != nil {
		t.Fatalf("new result: %v", err)
	}
	res.Method = TypeCallToolResponse

	for _, env := range []*Envelope{req, notif, res} {
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
		// Param fields survive the top-level flattening.
		if env.Kind != KindResponse {
			var want, have map[string]interface{}
			if err := json.Unmarshal(env.Params, &want); err != nil {
				t.Fatalf("unmarshal want: %v", err)
			}
			if err := json.Unmarshal(got.Params, &have); err != nil {
				t.Fatalf("unmarshal have: %v", err)
			}
			if len(want) != len(have) {
				t.Errorf("params changed: %v != %v", have, want)
			}
		}
	}
}

func TestTyped_EncodeErrorResponse(t *testing.T) {
	codec := NewTypedCodec()

	data, err := codec.Encode(NewError(StringID("r9"), 0, "no such tool"))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	var wire map[string]json.RawMessage
	if err := json.Unmarshal(data, &wire); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if string(wire["type"]) != `"openai:callTool:response"` {
		t.Errorf("expected callTool:response type, got %s", wire["type"])
	}
	if string(wire["error"]) != `"no such tool"` {
		t.Errorf("expected string error field, got %s", wire["error"])
	}
	if _, ok := wire["result"]; ok {
		t.Error("error response must not carry a result")
	}
}
