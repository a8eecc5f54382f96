package protocol_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/channelchat/internal/chat"
	"github.com/Tyrowin/channelchat/internal/protocol"
)

func TestEncodeMessageEvent_WireShape(t *testing.T) {
	req := require.New(t)
	msg := chat.Message{
		ID:        "m1",
		From:      "nik",
		To:        "main",
		Content:   "hi",
		Timestamp: time.Date(2018, 5, 14, 10, 30, 0, 0, time.UTC),
	}

	data, err := protocol.EncodeMessageEvent(msg)
	req.NoError(err)
	req.JSONEq(`["event",["message",[{"id":"m1","content":"hi","timestamp":1526293800000,"to":"main","from":"nik"}]]]`, string(data))

	frame, err := protocol.Decode(data)
	req.NoError(err)
	name, args, err := frame.Event()
	req.NoError(err)
	req.Equal(protocol.EventMessage, name)
	req.Len(args, 1)

	var record protocol.MessageRecord
	req.NoError(json.Unmarshal(args[0], &record))
	req.Equal(protocol.FromMessage(msg), record)
	req.True(msg.Timestamp.Equal(record.Time()))
}

func TestRequest_RoundTripAndArgs(t *testing.T) {
	req := require.New(t)
	session := &protocol.Session{Name: "nik", SessionID: "s-1"}

	r, err := protocol.NewRequest(7, protocol.OpMessage, session, "main", "hi")
	req.NoError(err)
	data, err := protocol.EncodeRequest(r)
	req.NoError(err)
	req.JSONEq(`["request",{"id":7,"op":"message","args":["main","hi"],"session":{"name":"nik","sessionId":"s-1"}}]`, string(data))

	frame, err := protocol.Decode(data)
	req.NoError(err)
	decoded, err := frame.Request()
	req.NoError(err)
	req.Equal(uint64(7), decoded.ID)
	req.Equal(session, decoded.Session)

	args, err := decoded.StringArgs(2)
	req.NoError(err)
	req.Equal([]string{"main", "hi"}, args)

	_, err = decoded.StringArgs(1)
	req.ErrorIs(err, protocol.ErrMalformedFrame)
}

func TestRequest_NonStringArgument(t *testing.T) {
	frame, err := protocol.Decode([]byte(`["request",{"id":1,"op":"join","args":[42]}]`))
	require.NoError(t, err)
	r, err := frame.Request()
	require.NoError(t, err)
	require.Nil(t, r.Session)

	_, err = r.StringArgs(1)
	require.ErrorIs(t, err, protocol.ErrMalformedFrame)
}

func TestResponse_ResultAndError(t *testing.T) {
	req := require.New(t)

	ok, err := protocol.NewResult(3, protocol.Session{Name: "nik", SessionID: "s"})
	req.NoError(err)
	data, err := protocol.EncodeResponse(ok)
	req.NoError(err)
	req.JSONEq(`["response",{"id":3,"result":{"name":"nik","sessionId":"s"}}]`, string(data))

	data, err = protocol.EncodeResponse(protocol.NewError(4, chat.KindPermission, "denied"))
	req.NoError(err)
	req.JSONEq(`["response",{"id":4,"error":{"kind":"PermissionError","message":"denied"}}]`, string(data))

	frame, err := protocol.Decode(data)
	req.NoError(err)
	resp, err := frame.Response()
	req.NoError(err)
	req.Equal(uint64(4), resp.ID)
	req.Equal(chat.KindPermission, resp.Error.Kind)
}

func TestDecode_Malformed(t *testing.T) {
	for _, raw := range []string{
		`{}`,
		`not json`,
		`["request"]`,
		`["request",{},"extra"]`,
		`[1,{}]`,
	} {
		t.Run(raw, func(t *testing.T) {
			_, err := protocol.Decode([]byte(raw))
			require.ErrorIs(t, err, protocol.ErrMalformedFrame)
		})
	}
}

func TestFrame_WrongTag(t *testing.T) {
	req := require.New(t)
	frame, err := protocol.Decode([]byte(`["event",["message",[]]]`))
	req.NoError(err)

	_, err = frame.Request()
	req.ErrorIs(err, protocol.ErrMalformedFrame)
	_, err = frame.Response()
	req.ErrorIs(err, protocol.ErrMalformedFrame)

	name, args, err := frame.Event()
	req.NoError(err)
	req.Equal("message", name)
	req.Empty(args)
}
