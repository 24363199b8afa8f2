package http

import (
	"github.com/nats-io/nats.go"

	"github.com/samirrijal/lplace/internal/adapters/postgres"
	"github.com/samirrijal/lplace/internal/adapters/valkey"
	"github.com/samirrijal/lplace/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Drawings *usecases.DrawingService
	Relay    *usecases.RelayService
	Hub      *Hub
	Identity IdentityResolver
	NATS     *nats.Conn
	DB       *postgres.DB
	Cache    *valkey.Cache
}
