package valkey

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/samirrijal/lplace/internal/core/domain"
)

// SessionPrefix namespaces session keys written by the login service.
const SessionPrefix = "session:"

// Lookup resolves a session token to its user. The stored value is either
// the bare user name or a JSON session object with a "user" field.
func (c *Cache) Lookup(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", domain.ErrUnauthorized
	}
	data, err := c.Get(ctx, SessionPrefix+token)
	if errors.Is(err, domain.ErrNotFound) {
		return "", domain.ErrUnauthorized
	}
	if err != nil {
		return "", fmt.Errorf("session lookup: %w", err)
	}
	user := parseSessionUser(data)
	if user == "" {
		return "", domain.ErrUnauthorized
	}
	return user, nil
}

func parseSessionUser(data []byte) string {
	raw := strings.TrimSpace(string(data))
	if !strings.HasPrefix(raw, "{") {
		return raw
	}
	var sess struct {
		User string `json:"user"`
	}
	if err := json.Unmarshal(data, &sess); err != nil {
		return ""
	}
	return sess.User
}
