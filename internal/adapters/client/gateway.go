// Package client holds the client-side adapters of the canvas: the HTTP
// persistence gateway and the Sync Channel dialer.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/samirrijal/lplace/internal/core/domain"
	"github.com/samirrijal/lplace/internal/pkg/config"
)

// Credentials carry the identity a client presents. Exactly one of the
// cookie or header pair is normally set.
type Credentials struct {
	CookieName string
	Session    string
	Header     string
	User       string
}

// CredentialsFrom builds credentials for the server's auth mode. In header
// mode value is sent as the user name, otherwise as the session cookie.
func CredentialsFrom(auth config.AuthConfig, value string) Credentials {
	if value == "" {
		return Credentials{}
	}
	if auth.Mode == "header" {
		return Credentials{Header: auth.Header, User: value}
	}
	return Credentials{CookieName: auth.CookieName, Session: value}
}

// HTTPHeader renders the credentials for a websocket handshake.
func (c Credentials) HTTPHeader() http.Header {
	h := http.Header{}
	if c.CookieName != "" && c.Session != "" {
		h.Set("Cookie", c.CookieName+"="+c.Session)
	}
	if c.Header != "" && c.User != "" {
		h.Set(c.Header, c.User)
	}
	return h
}

func (c Credentials) apply(req *fasthttp.Request) {
	if c.CookieName != "" && c.Session != "" {
		req.Header.SetCookie(c.CookieName, c.Session)
	}
	if c.Header != "" && c.User != "" {
		req.Header.Set(c.Header, c.User)
	}
}

// Gateway talks to the canvas HTTP API. It implements engine.Gateway.
type Gateway struct {
	// HTTP is the underlying client; tests replace its Dial.
	HTTP *fasthttp.Client

	base    string
	creds   Credentials
	timeout time.Duration
}

// NewGateway creates a gateway for the server at baseURL.
func NewGateway(baseURL string, creds Credentials, timeout time.Duration) *Gateway {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Gateway{
		HTTP: &fasthttp.Client{
			Name:                "lplace-sketch",
			MaxConnsPerHost:     4,
			MaxIdleConnDuration: 30 * time.Second,
		},
		base:    strings.TrimRight(baseURL, "/"),
		creds:   creds,
		timeout: timeout,
	}
}

// SyncURL returns the Sync Channel address of the server at baseURL.
func SyncURL(baseURL string) string {
	u := strings.TrimRight(baseURL, "/")
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/ws"
}

// Me returns the session identity, or "".
func (g *Gateway) Me(ctx context.Context) (string, error) {
	status, body, err := g.do(ctx, fasthttp.MethodGet, "/me", nil)
	if err != nil {
		return "", err
	}
	if status != fasthttp.StatusOK {
		return "", statusError("me", status, body)
	}
	var me struct {
		User *string `json:"user"`
	}
	if err := json.Unmarshal(body, &me); err != nil {
		return "", fmt.Errorf("decode me: %w", err)
	}
	if me.User == nil {
		return "", nil
	}
	return *me.User, nil
}

// Load returns the caller's own record.
func (g *Gateway) Load(ctx context.Context) (domain.DrawingRecord, error) {
	status, body, err := g.do(ctx, fasthttp.MethodGet, "/load", nil)
	if err != nil {
		return domain.DrawingRecord{}, err
	}
	switch status {
	case fasthttp.StatusOK:
	case fasthttp.StatusUnauthorized:
		return domain.DrawingRecord{}, domain.ErrUnauthorized
	default:
		return domain.DrawingRecord{}, statusError("load", status, body)
	}
	var rec domain.DrawingRecord
	if err := json.Unmarshal(body, &rec); err != nil {
		return domain.DrawingRecord{}, fmt.Errorf("decode record: %w", err)
	}
	return rec, nil
}

// Save overwrites the caller's record.
func (g *Gateway) Save(ctx context.Context, rec domain.DrawingRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	status, body, err := g.do(ctx, fasthttp.MethodPost, "/save", payload)
	if err != nil {
		return err
	}
	switch status {
	case fasthttp.StatusOK:
		return nil
	case fasthttp.StatusUnauthorized:
		return domain.ErrUnauthorized
	case fasthttp.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrOwnerMismatch, resultMessage(body))
	case fasthttp.StatusBadRequest:
		return fmt.Errorf("%w: %s", domain.ErrInvalidRecord, resultMessage(body))
	default:
		return statusError("save", status, body)
	}
}

// All returns the shared snapshot.
func (g *Gateway) All(ctx context.Context) (domain.Snapshot, error) {
	status, body, err := g.do(ctx, fasthttp.MethodGet, "/allDrawings", nil)
	if err != nil {
		return nil, err
	}
	if status != fasthttp.StatusOK {
		return nil, statusError("allDrawings", status, body)
	}
	var snap domain.Snapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}

// do sends one request and returns a copy of the response body.
func (g *Gateway) do(ctx context.Context, method, path string, payload []byte) (int, []byte, error) {
	if err := ctx.Err(); err != nil {
		return 0, nil, err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(g.base + path)
	req.Header.SetMethod(method)
	req.Header.Set(fasthttp.HeaderAccept, "application/json")
	g.creds.apply(req)
	if payload != nil {
		req.Header.SetContentType("application/json")
		req.SetBody(payload)
	}

	deadline := time.Now().Add(g.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := g.HTTP.DoDeadline(req, resp, deadline); err != nil {
		return 0, nil, fmt.Errorf("%s %s: %w", method, path, err)
	}

	body, err := resp.BodyUncompressed()
	if err != nil {
		return 0, nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp.StatusCode(), append([]byte(nil), body...), nil
}

func resultMessage(body []byte) string {
	var res struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &res); err != nil || res.Message == "" {
		return strings.TrimSpace(string(body))
	}
	return res.Message
}

func statusError(op string, status int, body []byte) error {
	return fmt.Errorf("%s: unexpected status %d: %s", op, status, resultMessage(body))
}
