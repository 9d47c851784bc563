package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/dalemusser/cosign/internal/app/system/notify"
	"github.com/gorilla/websocket"
)

// ErrStreamClosed is returned by Watch when the server ends the stream,
// either because it is shutting down or because this subscriber fell
// behind. Clients should reconnect and resync with ListProposals.
var ErrStreamClosed = errors.New("event stream closed by server")

// Watch subscribes to org's notifications as addr and calls fn for every
// event until ctx is cancelled, fn returns an error, or the stream ends.
// A cancelled ctx returns nil.
func (c *Client) Watch(ctx context.Context, org, addr string, fn func(notify.Event) error) error {
	conn, err := c.dial(ctx, org, addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			_ = conn.Close()
		case <-stop:
		}
	}()

	for {
		var ev notify.Event
		if err := conn.ReadJSON(&ev); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseTryAgainLater, websocket.CloseNormalClosure) {
				return fmt.Errorf("%w: %v", ErrStreamClosed, err)
			}
			return fmt.Errorf("read event: %w", err)
		}
		if err := fn(ev); err != nil {
			return err
		}
	}
}

// WatchRetry runs Watch and reconnects with exponential backoff whenever
// the stream drops. Rejections of the subscription itself (unknown
// organization, not a member, bad address) are returned immediately.
// onReconnect, if set, runs before each new attempt.
func (c *Client) WatchRetry(ctx context.Context, org, addr string, fn func(notify.Event) error, onReconnect func(err error, next time.Duration)) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 30 * time.Second
	bo.MaxElapsedTime = 0

	var handlerErr error
	op := func() error {
		err := c.Watch(ctx, org, addr, func(ev notify.Event) error {
			bo.Reset()
			if err := fn(ev); err != nil {
				handlerErr = err
				return err
			}
			return nil
		})
		switch {
		case err == nil:
			return nil
		case handlerErr != nil:
			return backoff.Permanent(handlerErr)
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 && apiErr.Status != http.StatusTooManyRequests {
			return backoff.Permanent(err)
		}
		return err
	}

	err := backoff.RetryNotify(op, backoff.WithContext(bo, ctx), func(err error, next time.Duration) {
		if onReconnect != nil {
			onReconnect(err, next)
		}
	})
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (c *Client) dial(ctx context.Context, org, addr string) (*websocket.Conn, error) {
	u := *c.base
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	target := u.String() + "/ws/organization/" + url.PathEscape(org) + "/" + url.PathEscape(addr)

	conn, resp, err := c.dialer.DialContext(ctx, target, nil)
	if err != nil {
		if resp != nil && resp.StatusCode != http.StatusSwitchingProtocols {
			defer resp.Body.Close()
			return nil, decodeError(resp)
		}
		return nil, fmt.Errorf("dial %s: %w", target, err)
	}
	return conn, nil
}
