// Package protocol implements the wire codec between LiveView clients and
// the server. Messages are a tagged union: every frame carries a "type"
// discriminator so the decoder never needs per-connection context.
package protocol

import (
	"encoding/json"
)

// MessageType discriminates wire frames in both directions.
type MessageType string

const (
	// Client -> server.
	TypeJoin      MessageType = "phx_join"
	TypeLeave     MessageType = "phx_leave"
	TypeEvent     MessageType = "event"
	TypeHeartbeat MessageType = "heartbeat"

	// Server -> client.
	TypeReply    MessageType = "phx_reply"
	TypeRender   MessageType = "render"
	TypePatch    MessageType = "patch"
	TypeRedirect MessageType = "redirect"
	TypeError    MessageType = "error"
)

// Reply statuses.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Message is the sum type over all wire frames. Concrete variants are
// Join, Leave, Event, Heartbeat, Reply, Render, Patch, Redirect and Error.
// Dispatch with a type switch.
type Message interface {
	MessageType() MessageType
}

// Join requests membership in a topic.
type Join struct {
	Topic   string
	Payload map[string]any
}

// Leave abandons a topic.
type Leave struct {
	Topic string
}

// Event carries a client UI event (click, submit, change, ...) on a topic.
type Event struct {
	Topic   string
	Event   string
	Payload map[string]any
}

// Heartbeat is a keep-alive probe. It has no payload.
type Heartbeat struct{}

// Reply acknowledges a client frame.
type Reply struct {
	Ref      string
	Status   string
	Response map[string]any
}

// Render carries a full markup replacement.
type Render struct {
	HTML string
}

// Patch carries incremental DOM updates.
type Patch struct {
	Patches []PatchOp
}

// Redirect instructs the client to navigate away.
type Redirect struct {
	To string
}

// Error reports a server-side failure to the client.
type Error struct {
	Message string
}

func (Join) MessageType() MessageType      { return TypeJoin }
func (Leave) MessageType() MessageType     { return TypeLeave }
func (Event) MessageType() MessageType     { return TypeEvent }
func (Heartbeat) MessageType() MessageType { return TypeHeartbeat }
func (Reply) MessageType() MessageType     { return TypeReply }
func (Render) MessageType() MessageType    { return TypeRender }
func (Patch) MessageType() MessageType     { return TypePatch }
func (Redirect) MessageType() MessageType  { return TypeRedirect }
func (Error) MessageType() MessageType     { return TypeError }

// wireMessage is the flat JSON envelope. Only the fields relevant to the
// frame's type are populated.
type wireMessage struct {
	Type     MessageType    `json:"type"`
	Topic    string         `json:"topic,omitempty"`
	Event    string         `json:"event,omitempty"`
	Payload  map[string]any `json:"payload,omitempty"`
	Ref      string         `json:"ref,omitempty"`
	Status   string         `json:"status,omitempty"`
	Response map[string]any `json:"response,omitempty"`
	HTML     string         `json:"html,omitempty"`
	Patches  []PatchOp      `json:"patches,omitempty"`
	To       string         `json:"to,omitempty"`
	Message  string         `json:"message,omitempty"`
}

// Encode serializes a message to its wire frame. A payload that cannot be
// represented in JSON is a caller error and surfaces as the marshal error.
func Encode(m Message) ([]byte, error) {
	w := wireMessage{Type: m.MessageType()}

	switch v := m.(type) {
	case Join:
		w.Topic, w.Payload = v.Topic, v.Payload
	case Leave:
		w.Topic = v.Topic
	case Event:
		w.Topic, w.Event, w.Payload = v.Topic, v.Event, v.Payload
	case Heartbeat:
	case Reply:
		w.Ref, w.Status, w.Response = v.Ref, v.Status, v.Response
	case Render:
		w.HTML = v.HTML
	case Patch:
		w.Patches = v.Patches
	case Redirect:
		w.To = v.To
	case Error:
		w.Message = v.Message
	}

	return json.Marshal(w)
}

// EncodeJoin builds a phx_join frame.
func EncodeJoin(topic string, payload map[string]any) ([]byte, error) {
	return Encode(Join{Topic: topic, Payload: payload})
}

// EncodeLeave builds a phx_leave frame.
func EncodeLeave(topic string) ([]byte, error) {
	return Encode(Leave{Topic: topic})
}

// EncodeEvent builds an event frame.
func EncodeEvent(topic, event string, payload map[string]any) ([]byte, error) {
	return Encode(Event{Topic: topic, Event: event, Payload: payload})
}

// EncodeHeartbeat builds a heartbeat frame.
func EncodeHeartbeat() ([]byte, error) {
	return Encode(Heartbeat{})
}

// Decode parses a wire frame into its message variant. Malformed input and
// unknown types yield nil: bad frames are dropped, never fatal to the
// connection.
func Decode(frame []byte) Message {
	var w wireMessage
	if err := json.Unmarshal(frame, &w); err != nil {
		return nil
	}

	switch w.Type {
	case TypeJoin:
		return Join{Topic: w.Topic, Payload: w.Payload}
	case TypeLeave:
		return Leave{Topic: w.Topic}
	case TypeEvent:
		return Event{Topic: w.Topic, Event: w.Event, Payload: w.Payload}
	case TypeHeartbeat:
		return Heartbeat{}
	case TypeReply:
		return Reply{Ref: w.Ref, Status: w.Status, Response: w.Response}
	case TypeRender:
		return Render{HTML: w.HTML}
	case TypePatch:
		return Patch{Patches: w.Patches}
	case TypeRedirect:
		return Redirect{To: w.To}
	case TypeError:
		return Error{Message: w.Message}
	default:
		return nil
	}
}

// IsRender reports whether m is a full render frame.
func IsRender(m Message) bool {
	_, ok := m.(Render)
	return ok
}

// IsPatch reports whether m is an incremental patch frame.
func IsPatch(m Message) bool {
	_, ok := m.(Patch)
	return ok
}

// IsRedirect reports whether m is a redirect frame.
func IsRedirect(m Message) bool {
	_, ok := m.(Redirect)
	return ok
}
