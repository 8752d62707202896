// Package envelope provides the wire codecs for host/guest widget messaging.
//
// # Overview
//
// Two incompatible guest conventions are bridged from one host: a JSON-RPC
// 2.0 convention (MCP Apps) and a typed-envelope convention (OpenAI Apps).
// Both are reduced to a single internal Envelope representation so that the
// session, pending-request and capability layers stay protocol-agnostic.
//
// # Classification
//
// JSON-RPC: method present + id present = Request; method present without
// id = Notification; id present without method = Response (success iff no
// error member).
//
// Typed envelope: the "type" string acts as the method name. Only
// "openai:callTool" and its "openai:callTool:response" reply carry a
// requestId for correlation; every other type is fire-and-forget.
//
// # Usage
//
//	codec := envelope.NewJSONRPCCodec()
//	env, err := codec.Decode(raw)
//	if err != nil {
//	    // malformed input is an error, never a panic
//	}
//	switch env.Kind {
//	case envelope.KindRequest: ...
//	case envelope.KindResponse: ...
//	case envelope.KindNotification: ...
//	}
package envelope
