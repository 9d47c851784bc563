// internal/app/features/ws/serve.go
package ws

import (
	"errors"
	"net/http"
	"time"

	"github.com/dalemusser/cosign/internal/app/features/shared/request"
	proposalstore "github.com/dalemusser/cosign/internal/app/store/proposals"
	"github.com/dalemusser/cosign/internal/app/system/address"
	"github.com/dalemusser/cosign/internal/app/system/notify"
	"github.com/dalemusser/cosign/internal/app/system/timeouts"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ServeWS handles GET /ws/organization/{organization}/{address}.
//
// The organization must exist and the address must be a member before the
// connection is upgraded. The subscription is registered ahead of the
// upgrade so no event published after a successful handshake is missed.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	orgName := request.PathParam(r, "organization")
	identity, err := address.Normalize(request.PathParam(r, "address"))
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Read(), h.Log, "ws membership check")
	org, err := h.Coord.GetOrganization(ctx, orgName)
	cancel()
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	if !org.HasMember(address.Fold(identity)) {
		h.ErrLog.Write(w, r, proposalstore.ErrNotAMember)
		return
	}

	sub, err := h.Hub.Subscribe(org.Name, identity)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already answered the request.
		h.Hub.Unsubscribe(sub)
		h.Log.Debug("ws upgrade failed",
			zap.String("organization", org.Name),
			zap.String("identity", identity),
			zap.Error(err))
		return
	}

	h.Log.Info("ws connected",
		zap.String("organization", org.Name),
		zap.String("identity", identity),
		zap.String("remote", r.RemoteAddr))

	readerDone := make(chan struct{})
	go h.writeLoop(conn, sub, readerDone)
	h.readLoop(conn)

	close(readerDone)
	h.Hub.Unsubscribe(sub)
	_ = conn.Close()

	h.Log.Info("ws disconnected",
		zap.String("organization", org.Name),
		zap.String("identity", identity))
}

// readLoop consumes client frames until the peer goes away or stops
// answering pings.
func (h *Handler) readLoop(conn *websocket.Conn) {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(h.opts.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.opts.PongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.Log.Debug("ws read ended", zap.Error(err))
			}
			return
		}
		// Any client frame counts as liveness.
		_ = conn.SetReadDeadline(time.Now().Add(h.opts.PongWait))
	}
}

// writeLoop is the only writer of data frames on conn.
func (h *Handler) writeLoop(conn *websocket.Conn, sub *notify.Subscription, readerDone <-chan struct{}) {
	ticker := time.NewTicker(h.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				h.closeFor(conn, sub)
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(h.opts.WriteTimeout))
			if err := conn.WriteJSON(ev); err != nil {
				h.Log.Debug("ws write failed",
					zap.String("organization", sub.Organization),
					zap.String("identity", sub.Identity),
					zap.Error(err))
				_ = conn.Close()
				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(h.opts.WriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				_ = conn.Close()
				return
			}
		case <-readerDone:
			return
		}
	}
}

// closeFor tells the client why its subscription ended, then closes conn,
// which also ends the read loop.
func (h *Handler) closeFor(conn *websocket.Conn, sub *notify.Subscription) {
	code, text := websocket.CloseNormalClosure, ""
	switch err := sub.Err(); {
	case errors.Is(err, notify.ErrSubscriberDropped):
		code, text = websocket.CloseTryAgainLater, "subscriber dropped; reconnect and re-list"
		h.Log.Warn("ws subscriber dropped",
			zap.String("organization", sub.Organization),
			zap.String("identity", sub.Identity))
	case errors.Is(err, notify.ErrHubClosed):
		code, text = websocket.CloseGoingAway, "server shutting down"
	}
	msg := websocket.FormatCloseMessage(code, text)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(h.opts.WriteTimeout))
	_ = conn.Close()
}
