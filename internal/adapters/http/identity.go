package http

import (
	"errors"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/lplace/internal/core/domain"
	"github.com/samirrijal/lplace/internal/core/ports"
	"github.com/samirrijal/lplace/internal/pkg/config"
)

// localUser is the fiber.Locals key holding the resolved identity.
const localUser = "user"

// IdentityResolver maps a request to the user it acts for. Both resolvers
// return domain.ErrUnauthorized when there is no identity.
type IdentityResolver interface {
	Resolve(c *fiber.Ctx) (string, error)
}

// SessionResolver reads the session cookie set by the login service and
// looks the session up in the shared store.
type SessionResolver struct {
	Sessions ports.SessionStore
	Cookie   string
}

// Resolve implements IdentityResolver.
func (r SessionResolver) Resolve(c *fiber.Ctx) (string, error) {
	token := SessionToken(c.Cookies(r.Cookie))
	if token == "" || r.Sessions == nil {
		return "", domain.ErrUnauthorized
	}
	return r.Sessions.Lookup(c.UserContext(), token)
}

// HeaderResolver trusts an identity header set by an authenticating proxy.
type HeaderResolver struct {
	Header string
}

// Resolve implements IdentityResolver.
func (r HeaderResolver) Resolve(c *fiber.Ctx) (string, error) {
	user := strings.TrimSpace(c.Get(r.Header))
	if user == "" {
		return "", domain.ErrUnauthorized
	}
	return user, nil
}

// NewIdentityResolver builds the resolver selected by cfg.Mode.
func NewIdentityResolver(cfg config.AuthConfig, sessions ports.SessionStore) IdentityResolver {
	if cfg.Mode == "header" {
		return HeaderResolver{Header: cfg.Header}
	}
	return SessionResolver{Sessions: sessions, Cookie: cfg.CookieName}
}

// SessionToken extracts the session id from a cookie value. Signed
// express-style cookies ("s:<id>.<signature>", possibly URL-escaped) are
// reduced to <id>; the signature is checked by the issuer, not here.
func SessionToken(raw string) string {
	if unescaped, err := url.QueryUnescape(raw); err == nil {
		raw = unescaped
	}
	if strings.HasPrefix(raw, "s:") {
		raw = raw[2:]
		if i := strings.LastIndexByte(raw, '.'); i > 0 {
			raw = raw[:i]
		}
	}
	return raw
}

// resolveUser runs the resolver and stores the result in Locals. A missing
// identity is not an error: it returns "".
func resolveUser(c *fiber.Ctx, deps *Dependencies) (string, error) {
	if deps.Identity == nil {
		return "", nil
	}
	user, err := deps.Identity.Resolve(c)
	if errors.Is(err, domain.ErrUnauthorized) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	c.Locals(localUser, user)
	return user, nil
}
