package mcp

import (
	"bytes"
	"encoding/json"
	"errors"
	"sync"
)

// DecodeRequest parses a raw JSON-RPC message in a single pass and validates
// the envelope shape. The id and params members of the returned Request
// hold copies of the corresponding bytes of data and stay unparsed.
//
// Failures map onto the protocol taxonomy: malformed JSON is a ParseError,
// a well-formed document that is not a conforming request envelope is an
// InvalidRequest, and params of the wrong JSON kind is an InvalidParams.
func DecodeRequest(data []byte) (*Request, *Error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			// Valid JSON, wrong shape (array, string, number, ...).
			return nil, NewInvalidRequest("request must be a JSON object")
		}
		return nil, NewParseError("invalid JSON")
	}
	if req.JSONRPC != Version {
		return nil, NewInvalidRequest(`missing or invalid jsonrpc version (must be "2.0")`)
	}
	if req.Method == "" {
		return nil, NewInvalidRequest("missing method field")
	}
	if req.HasParams() {
		switch req.Params[0] {
		case '{', '[':
		default:
			return nil, NewInvalidParams("params must be an object or array")
		}
	}
	return &req, nil
}

// encodeBuffers pools the scratch buffers used when serializing outbound
// envelopes, so a busy connection does not allocate per message.
var encodeBuffers = sync.Pool{
	New: func() any { return new(bytes.Buffer) },
}

// encode marshals v through a pooled buffer and returns a fresh byte slice
// without a trailing newline.
func encode(v any) ([]byte, error) {
	buf := encodeBuffers.Get().(*bytes.Buffer)
	defer func() {
		buf.Reset()
		encodeBuffers.Put(buf)
	}()

	enc := json.NewEncoder(buf)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	out := make([]byte, buf.Len()-1) // drop the newline Encode appends
	copy(out, buf.Bytes())
	return out, nil
}

// EncodeResponse serializes a response envelope.
func EncodeResponse(resp *Response) ([]byte, error) {
	return encode(resp)
}

// EncodeNotification serializes a notification envelope.
func EncodeNotification(n *Notification) ([]byte, error) {
	return encode(n)
}
