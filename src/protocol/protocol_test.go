package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	messages := []Message{
		Join{Topic: "room:lobby", Payload: map[string]any{"token": "abc"}},
		Leave{Topic: "room:lobby"},
		Event{Topic: "room:lobby", Event: "click", Payload: map[string]any{"value": float64(42)}},
		Heartbeat{},
		Reply{Ref: "1", Status: StatusOK, Response: map[string]any{"topic": "room:lobby"}},
		Render{HTML: "<div>hello</div>"},
		Patch{Patches: []PatchOp{ReplaceOp("#app", "<p>hi</p>"), AddClassOp("#app", "active")}},
		Redirect{To: "/login"},
		Error{Message: "boom"},
	}

	for _, m := range messages {
		t.Run(string(m.MessageType()), func(t *testing.T) {
			frame, err := Encode(m)
			require.NoError(t, err)

			decoded := Decode(frame)
			require.NotNil(t, decoded)
			assert.Equal(t, m.MessageType(), decoded.MessageType())
			assert.Equal(t, m, decoded)
		})
	}
}

func TestEncodeHelpers(t *testing.T) {
	frame, err := EncodeJoin("room:1", map[string]any{"name": "alice"})
	require.NoError(t, err)
	join, ok := Decode(frame).(Join)
	require.True(t, ok)
	assert.Equal(t, "room:1", join.Topic)
	assert.Equal(t, "alice", join.Payload["name"])

	frame, err = EncodeLeave("room:1")
	require.NoError(t, err)
	leave, ok := Decode(frame).(Leave)
	require.True(t, ok)
	assert.Equal(t, "room:1", leave.Topic)

	frame, err = EncodeEvent("room:1", "submit", map[string]any{"field": "x"})
	require.NoError(t, err)
	event, ok := Decode(frame).(Event)
	require.True(t, ok)
	assert.Equal(t, "submit", event.Event)

	frame, err = EncodeHeartbeat()
	require.NoError(t, err)
	assert.Equal(t, Heartbeat{}, Decode(frame))
}

func TestEncodeRejectsUnserializablePayload(t *testing.T) {
	_, err := EncodeJoin("room:1", map[string]any{"bad": make(chan int)})
	assert.Error(t, err)
}

func TestDecodeMalformed(t *testing.T) {
	cases := map[string][]byte{
		"empty":        nil,
		"not json":     []byte("{{nope"),
		"no type":      []byte(`{"topic":"room:1"}`),
		"unknown type": []byte(`{"type":"warp_drive"}`),
		"wrong shape":  []byte(`{"type":["event"]}`),
	}
	for name, frame := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Nil(t, Decode(frame))
		})
	}
}

func TestPredicates(t *testing.T) {
	assert.True(t, IsRender(Render{HTML: "<p/>"}))
	assert.False(t, IsRender(Redirect{To: "/"}))

	assert.True(t, IsPatch(Patch{}))
	assert.False(t, IsPatch(Render{}))

	assert.True(t, IsRedirect(Redirect{To: "/"}))
	assert.False(t, IsRedirect(Heartbeat{}))
}

func TestPatchOpConstructors(t *testing.T) {
	assert.Equal(t, PatchOp{Op: OpReplace, Target: "#a", HTML: "<p/>"}, ReplaceOp("#a", "<p/>"))
	assert.Equal(t, PatchOp{Op: OpAppend, Target: "#a", HTML: "<p/>"}, AppendOp("#a", "<p/>"))
	assert.Equal(t, PatchOp{Op: OpPrepend, Target: "#a", HTML: "<p/>"}, PrependOp("#a", "<p/>"))
	assert.Equal(t, PatchOp{Op: OpRemove, Target: "#a"}, RemoveOp("#a"))
	assert.Equal(t, PatchOp{Op: OpSetAttribute, Target: "#a", Name: "href", Value: "/x"}, SetAttributeOp("#a", "href", "/x"))
	assert.Equal(t, PatchOp{Op: OpRemoveAttribute, Target: "#a", Name: "href"}, RemoveAttributeOp("#a", "href"))
	assert.Equal(t, PatchOp{Op: OpAddClass, Target: "#a", Class: "on"}, AddClassOp("#a", "on"))
	assert.Equal(t, PatchOp{Op: OpRemoveClass, Target: "#a", Class: "on"}, RemoveClassOp("#a", "on"))
	assert.Equal(t, PatchOp{Op: OpRedirect, To: "/x"}, RedirectOp("/x"))
	assert.Equal(t, PatchOp{Op: OpNavigate, To: "/x"}, NavigateOp("/x"))
}
