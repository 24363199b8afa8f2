package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/samirrijal/lplace/internal/core/domain"
)

// ErrQueueFull is returned by Send when the outbound queue cannot take
// another event.
var ErrQueueFull = errors.New("sync queue full")

const writeWait = 10 * time.Second

// Sync is a reconnecting Sync Channel connection. It implements
// engine.Broadcaster; events queued while disconnected go out after the
// next dial.
type Sync struct {
	url    string
	header http.Header
	dialer *websocket.Dialer
	wait   time.Duration
	out    chan []byte
	log    *slog.Logger
}

// NewSync creates a connection to url. wait is the pause between dial
// attempts and queue the outbound buffer size.
func NewSync(url string, header http.Header, wait time.Duration, queue int, log *slog.Logger) *Sync {
	if wait <= 0 {
		wait = 2 * time.Second
	}
	if queue <= 0 {
		queue = 256
	}
	if log == nil {
		log = slog.Default()
	}
	return &Sync{
		url:    url,
		header: header,
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		wait:   wait,
		out:    make(chan []byte, queue),
		log:    log.With("component", "sync", "url", url),
	}
}

// Send queues ev without blocking.
func (s *Sync) Send(ev domain.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	select {
	case s.out <- data:
		return nil
	default:
		return ErrQueueFull
	}
}

// Run dials, delivers inbound text frames to onFrame and redials after a
// drop. onReconnect runs after every successful dial but the first. Both
// callbacks run on Run's goroutines and must hand work off quickly.
func (s *Sync) Run(ctx context.Context, onFrame func([]byte), onReconnect func()) error {
	connected := false
	for {
		conn, _, err := s.dialer.DialContext(ctx, s.url, s.header)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.log.Warn("dial failed", "error", err, "retry_in", s.wait)
		} else {
			if connected && onReconnect != nil {
				onReconnect()
			}
			connected = true
			s.log.Info("sync channel connected")
			err = s.serve(ctx, conn, onFrame)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.log.Warn("sync channel dropped", "error", err, "retry_in", s.wait)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.wait):
		}
	}
}

// serve pumps one connection until it fails or ctx ends. Writes happen on
// this goroutine only.
func (s *Sync) serve(ctx context.Context, conn *websocket.Conn, onFrame func([]byte)) error {
	defer conn.Close()

	readErr := make(chan error, 1)
	go func() {
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				readErr <- err
				return
			}
			if mt == websocket.TextMessage && onFrame != nil {
				onFrame(data)
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			return ctx.Err()
		case err := <-readErr:
			return err
		case data := <-s.out:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return fmt.Errorf("write: %w", err)
			}
		}
	}
}
