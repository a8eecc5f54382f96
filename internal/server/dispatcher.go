package server

import (
	"context"
	"errors"
	"log/slog"

	"github.com/samber/lo"

	"github.com/Tyrowin/channelchat/internal/chat"
	"github.com/Tyrowin/channelchat/internal/protocol"
)

// caller is the connection a request arrived on.
type caller interface {
	ID() chat.ConnID
	authenticated(name string)
}

// call is the state a handler sees. session is only set for protected ops.
type call struct {
	from    caller
	req     protocol.Request
	session chat.Session
}

type handlerFunc func(ctx context.Context, c *call) (any, error)

// dispatcher maps operation names to handlers. Protected handlers are wrapped
// at construction, so an op cannot be registered without its session check.
type dispatcher struct {
	log     *slog.Logger
	service *chat.Service
	ops     map[string]handlerFunc
}

func newDispatcher(log *slog.Logger, service *chat.Service) *dispatcher {
	d := &dispatcher{log: log, service: service}
	d.ops = map[string]handlerFunc{
		protocol.OpAuth:     d.auth,
		protocol.OpChannels: d.channels,
		protocol.OpJoin:     d.protect(d.join),
		protocol.OpMessage:  d.protect(d.message),
		protocol.OpMessages: d.protect(d.messages),
	}
	return d
}

// protect rejects calls whose session does not match a live token.
func (d *dispatcher) protect(next handlerFunc) handlerFunc {
	return func(ctx context.Context, c *call) (any, error) {
		var creds chat.Credentials
		if c.req.Session != nil {
			creds = chat.Credentials{Name: c.req.Session.Name, Token: c.req.Session.SessionID}
		}
		session, err := d.service.Guard().Validate(creds)
		if err != nil {
			return nil, err
		}
		c.session = session
		return next(ctx, c)
	}
}

func (d *dispatcher) dispatch(ctx context.Context, from caller, req protocol.Request) protocol.Response {
	handler, ok := d.ops[req.Op]
	if !ok {
		return protocol.NewError(req.ID, protocol.KindBadRequest, "unknown operation "+req.Op)
	}

	result, err := handler(ctx, &call{from: from, req: req})
	if err != nil {
		return d.errorResponse(req, err)
	}

	resp, err := protocol.NewResult(req.ID, result)
	if err != nil {
		return d.errorResponse(req, err)
	}
	return resp
}

func (d *dispatcher) errorResponse(req protocol.Request, err error) protocol.Response {
	if kind, ok := chat.KindOf(err); ok {
		return protocol.NewError(req.ID, kind, err.Error())
	}
	if errors.Is(err, protocol.ErrMalformedFrame) {
		return protocol.NewError(req.ID, protocol.KindBadRequest, err.Error())
	}
	d.log.Error("request failed", "op", req.Op, "id", req.ID, "error", err)
	return protocol.NewError(req.ID, protocol.KindInternal, "internal error")
}

func (d *dispatcher) disconnect(name string, conn chat.ConnID) {
	d.service.Disconnect(name, conn)
}

func (d *dispatcher) auth(ctx context.Context, c *call) (any, error) {
	args, err := c.req.StringArgs(2)
	if err != nil {
		return nil, err
	}
	session, err := d.service.Authenticate(ctx, args[0], args[1], c.from.ID())
	if err != nil {
		return nil, err
	}
	c.from.authenticated(session.Name())
	return protocol.Session{Name: session.Name(), SessionID: session.Token()}, nil
}

func (d *dispatcher) channels(ctx context.Context, c *call) (any, error) {
	if _, err := c.req.StringArgs(0); err != nil {
		return nil, err
	}
	names := d.service.Channels(ctx)
	if names == nil {
		names = []string{}
	}
	return names, nil
}

func (d *dispatcher) join(ctx context.Context, c *call) (any, error) {
	args, err := c.req.StringArgs(1)
	if err != nil {
		return nil, err
	}
	return nil, d.service.Join(ctx, c.session, args[0])
}

func (d *dispatcher) message(ctx context.Context, c *call) (any, error) {
	args, err := c.req.StringArgs(2)
	if err != nil {
		return nil, err
	}
	msg, err := d.service.PostMessage(ctx, c.session, args[0], args[1])
	if err != nil {
		return nil, err
	}
	return protocol.FromMessage(msg), nil
}

func (d *dispatcher) messages(ctx context.Context, c *call) (any, error) {
	args, err := c.req.StringArgs(1)
	if err != nil {
		return nil, err
	}
	history, err := d.service.Messages(ctx, c.session, args[0])
	if err != nil {
		return nil, err
	}
	return lo.Map(history, func(m chat.Message, _ int) protocol.MessageRecord {
		return protocol.FromMessage(m)
	}), nil
}
