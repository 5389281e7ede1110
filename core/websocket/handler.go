package websocket

import (
	"context"
	"errors"
	nethttp "net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Runner executes a callback, blocking until it returns. async carries the
// descriptor's IsAsync flag so the caller can pick where it runs.
type Runner func(ctx context.Context, async bool, task func()) error

func inline(_ context.Context, _ bool, task func()) error {
	task()
	return nil
}

// Handler upgrades HTTP requests and drives an Entry for each connection
type Handler struct {
	hub      *Hub
	run      Runner
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates a Handler. A nil run calls callbacks inline.
func NewHandler(hub *Hub, run Runner, logger *zap.Logger) *Handler {
	if run == nil {
		run = inline
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		hub:    hub,
		run:    run,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
}

// Hub returns the hub connections are registered in
func (h *Handler) Hub() *Hub {
	return h.hub
}

// Serve upgrades the request and runs connect, then message for every
// incoming frame, then close once the peer goes away. It returns when the
// connection is finished.
func (h *Handler) Serve(w nethttp.ResponseWriter, r *nethttp.Request, endpoint string, entry Entry) error {
	if err := entry.Validate(); err != nil {
		nethttp.Error(w, err.Error(), nethttp.StatusInternalServerError)
		return err
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	c := newConn(ws, endpoint, h.hub)
	if err := h.hub.Register(c); err != nil {
		_ = c.CloseWith(websocket.CloseTryAgainLater, err.Error())
		return err
	}
	defer h.hub.Unregister(c)

	ctx := r.Context()
	log := h.logger.With(zap.String("endpoint", endpoint), zap.String("conn_id", c.ID))

	if !h.dispatch(ctx, c, entry.Connect, "", log) {
		return nil
	}

	for {
		kind, data, err := ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				log.Debug("websocket read ended", zap.Error(err))
			}
			break
		}
		if kind != websocket.TextMessage && kind != websocket.BinaryMessage {
			continue
		}
		if !h.dispatch(ctx, c, entry.Message, string(data), log) {
			return nil
		}
	}

	if _, err := h.call(ctx, c, entry.Close, ""); err != nil {
		log.Warn("websocket close handler failed", zap.Error(err))
	}
	return c.Close()
}

// dispatch calls d and writes its reply. It reports false once the
// connection has been closed.
func (h *Handler) dispatch(ctx context.Context, c *Conn, d descriptor, msg string, log *zap.Logger) bool {
	reply, err := h.call(ctx, c, d, msg)
	if err != nil {
		var exc *Exception
		if errors.As(err, &exc) {
			_ = c.CloseWith(exc.Code, exc.Reason)
		} else {
			log.Error("websocket handler failed", zap.String("handler", d.Name), zap.Error(err))
			_ = c.CloseWith(websocket.CloseInternalServerErr, "internal error")
		}
		return false
	}

	if reply != "" {
		if err := c.Send(reply); err != nil {
			log.Debug("websocket send failed", zap.Error(err))
			_ = c.Close()
			return false
		}
	}
	return true
}

func (h *Handler) call(ctx context.Context, c *Conn, d descriptor, msg string) (string, error) {
	var (
		reply   string
		callErr error
	)
	if err := h.run(ctx, d.IsAsync, func() {
		reply, callErr = d.Fn(ctx, c, msg)
	}); err != nil {
		return "", err
	}
	return reply, callErr
}
