package adchat

import (
	"context"
	"errors"
	"fmt"

	"github.com/adforge/adforge/pkg/session"
)

// ChannelConn is the transport a chat channel runs over. Receive blocks
// for the next inbound frame and returns an error once the peer is gone.
type ChannelConn interface {
	Conn
	Receive() ([]byte, error)
}

// ServeChannel runs one chat channel to completion: authenticate the
// identity, register the connection (displacing any previous one),
// greet, then pump frames through the identity's orchestrator until the
// peer disconnects or ctx is done. The connection is always released
// exactly once, whatever path ends the loop.
func (h *Hub) ServeChannel(ctx context.Context, identity string, conn ChannelConn) error {
	rec, err := h.sessions.GetByIdentity(ctx, identity)
	if err != nil {
		_ = conn.Close("unauthorized")
		if errors.Is(err, session.ErrUnauthorized) {
			return fmt.Errorf("channel %s: %w", identity, session.ErrUnauthorized)
		}
		return fmt.Errorf("channel %s: session lookup: %w", identity, err)
	}
	if err := h.sessions.Extend(ctx, identity); err != nil {
		h.logger.Warn("adchat: session extend failed", "identity", identity, "err", err)
	}

	h.Registry.Connect(identity, conn, rec)
	defer func() {
		h.Registry.release(identity, conn)
		h.Release(identity)
	}()

	orch := h.Orchestrator(identity)
	h.Registry.Send(identity, orch.textEvent(fmt.Sprintf("Welcome %s! How can I help you today?", rec.Name)))

	for {
		if err := ctx.Err(); err != nil {
			_ = conn.Close("server shutting down")
			return err
		}

		data, err := conn.Receive()
		if err != nil {
			// Peer gone, or we were displaced by a newer channel.
			h.logger.Debug("adchat: channel closed", "identity", identity, "err", err)
			return nil
		}

		frame, err := ParseFrame(data)
		if err != nil {
			h.Registry.Send(identity, orch.errorEvent("Invalid message format. Send JSON with a \"message\" or \"template_id\" field."))
			continue
		}

		for ev := range orch.Handle(ctx, frame) {
			h.Registry.Send(identity, ev)
		}
	}
}
