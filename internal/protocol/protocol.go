// Package protocol defines the JSON frames exchanged between the chat server
// and its clients. Every frame is a two element array: a tag naming the frame
// kind and its payload.
//
//	["request",  {"id": 1, "op": "join", "args": ["main"], "session": {...}}]
//	["response", {"id": 1, "result": null}]
//	["event",    ["message", [{"id": "...", "content": "hi", ...}]]]
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Tyrowin/channelchat/internal/chat"
)

// Frame tags.
const (
	TagRequest  = "request"
	TagResponse = "response"
	TagEvent    = "event"
)

// Operation names.
const (
	OpAuth     = "auth"
	OpChannels = "channels"
	OpJoin     = "join"
	OpMessage  = "message"
	OpMessages = "messages"
)

// EventMessage is pushed to channel members when someone posts.
const EventMessage = "message"

// Transport error kinds. Domain kinds live in package chat.
const (
	KindBadRequest  = "BadRequest"
	KindRateLimited = "RateLimited"
	KindInternal    = "InternalError"
)

// ErrMalformedFrame is returned for frames that are not a [tag, payload] pair
// or whose payload does not match the tag.
var ErrMalformedFrame = errors.New("malformed frame")

// Session is the identity a client attaches to protected requests. It is
// also the result of a successful auth.
type Session struct {
	Name      string `json:"name"`
	SessionID string `json:"sessionId"`
}

// Request asks the server to run one operation.
type Request struct {
	ID      uint64            `json:"id"`
	Op      string            `json:"op"`
	Args    []json.RawMessage `json:"args"`
	Session *Session          `json:"session,omitempty"`
}

// Error describes a failed operation.
type Error struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Response answers the request with the same ID.
type Response struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *Error          `json:"error,omitempty"`
}

// MessageRecord is the wire form of a chat message. Timestamp is in Unix
// milliseconds.
type MessageRecord struct {
	ID        string `json:"id"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
	To        string `json:"to"`
	From      string `json:"from"`
}

// FromMessage converts a stored message to its wire form.
func FromMessage(m chat.Message) MessageRecord {
	return MessageRecord{
		ID:        m.ID,
		Content:   m.Content,
		Timestamp: m.Timestamp.UnixMilli(),
		To:        m.To,
		From:      m.From,
	}
}

// Time returns the record's timestamp.
func (r MessageRecord) Time() time.Time {
	return time.UnixMilli(r.Timestamp).UTC()
}

// Frame is a decoded [tag, payload] pair.
type Frame struct {
	Tag     string
	Payload json.RawMessage
}

// MarshalJSON encodes the frame as a two element array.
func (f Frame) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{f.Tag, f.Payload})
}

// UnmarshalJSON decodes a two element array.
func (f *Frame) UnmarshalJSON(data []byte) error {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if len(parts) != 2 {
		return fmt.Errorf("%w: want 2 elements, got %d", ErrMalformedFrame, len(parts))
	}
	if err := json.Unmarshal(parts[0], &f.Tag); err != nil {
		return fmt.Errorf("%w: tag: %v", ErrMalformedFrame, err)
	}
	f.Payload = parts[1]
	return nil
}

// Decode parses a raw frame.
func Decode(data []byte) (Frame, error) {
	var f Frame
	if err := f.UnmarshalJSON(data); err != nil {
		return Frame{}, err
	}
	return f, nil
}

func encode(tag string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", tag, err)
	}
	return json.Marshal(Frame{Tag: tag, Payload: raw})
}

// EncodeRequest builds a request frame.
func EncodeRequest(r Request) ([]byte, error) {
	return encode(TagRequest, r)
}

// EncodeResponse builds a response frame.
func EncodeResponse(r Response) ([]byte, error) {
	return encode(TagResponse, r)
}

// EncodeEvent builds an event frame: ["event", [name, args]].
func EncodeEvent(name string, args ...any) ([]byte, error) {
	if args == nil {
		args = []any{}
	}
	return encode(TagEvent, []any{name, args})
}

// EncodeMessageEvent builds the push frame for a posted message.
func EncodeMessageEvent(m chat.Message) ([]byte, error) {
	return EncodeEvent(EventMessage, FromMessage(m))
}

// Request decodes the payload of a request frame.
func (f Frame) Request() (Request, error) {
	if f.Tag != TagRequest {
		return Request{}, fmt.Errorf("%w: want %q frame, got %q", ErrMalformedFrame, TagRequest, f.Tag)
	}
	var r Request
	if err := json.Unmarshal(f.Payload, &r); err != nil {
		return Request{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	return r, nil
}

// Response decodes the payload of a response frame.
func (f Frame) Response() (Response, error) {
	if f.Tag != TagResponse {
		return Response{}, fmt.Errorf("%w: want %q frame, got %q", ErrMalformedFrame, TagResponse, f.Tag)
	}
	var r Response
	if err := json.Unmarshal(f.Payload, &r); err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	return r, nil
}

// Event decodes the payload of an event frame into its name and arguments.
func (f Frame) Event() (string, []json.RawMessage, error) {
	if f.Tag != TagEvent {
		return "", nil, fmt.Errorf("%w: want %q frame, got %q", ErrMalformedFrame, TagEvent, f.Tag)
	}
	var inner Frame
	if err := json.Unmarshal(f.Payload, &inner); err != nil {
		return "", nil, err
	}
	var args []json.RawMessage
	if err := json.Unmarshal(inner.Payload, &args); err != nil {
		return "", nil, fmt.Errorf("%w: event args: %v", ErrMalformedFrame, err)
	}
	return inner.Tag, args, nil
}

// StringArgs decodes exactly n string arguments.
func (r Request) StringArgs(n int) ([]string, error) {
	if len(r.Args) != n {
		return nil, fmt.Errorf("%w: %s takes %d arguments, got %d", ErrMalformedFrame, r.Op, n, len(r.Args))
	}
	out := make([]string, n)
	for i, raw := range r.Args {
		if err := json.Unmarshal(raw, &out[i]); err != nil {
			return nil, fmt.Errorf("%w: %s argument %d: %v", ErrMalformedFrame, r.Op, i, err)
		}
	}
	return out, nil
}

// NewRequest builds a request whose arguments are JSON-encoded.
func NewRequest(id uint64, op string, session *Session, args ...any) (Request, error) {
	raw := make([]json.RawMessage, 0, len(args))
	for _, a := range args {
		b, err := json.Marshal(a)
		if err != nil {
			return Request{}, fmt.Errorf("encode %s argument: %w", op, err)
		}
		raw = append(raw, b)
	}
	return Request{ID: id, Op: op, Args: raw, Session: session}, nil
}

// NewResult builds a successful response carrying v.
func NewResult(id uint64, v any) (Response, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return Response{}, fmt.Errorf("encode result: %w", err)
	}
	return Response{ID: id, Result: raw}, nil
}

// NewError builds a failed response.
func NewError(id uint64, kind, message string) Response {
	return Response{ID: id, Error: &Error{Kind: kind, Message: message}}
}
