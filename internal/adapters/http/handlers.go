package http

import (
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/lplace/internal/core/domain"
)

// MeHandler returns the session identity, or null.
func MeHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := resolveUser(c, deps)
		if err != nil {
			LoggerFromCtx(c.UserContext()).Error("identity lookup failed", "error", err)
			return errInternal(c, "identity lookup failed")
		}
		c.Set("Cache-Control", "private, no-store")
		if user == "" {
			return c.JSON(fiber.Map{"user": nil})
		}
		return c.JSON(fiber.Map{"user": user})
	}
}

// LoadHandler returns the caller's own DrawingRecord.
func LoadHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := resolveUser(c, deps)
		if err != nil {
			return saveResult(c, fiber.StatusInternalServerError, "identity lookup failed")
		}
		if user == "" {
			return saveResult(c, fiber.StatusUnauthorized, "Unauthorized")
		}

		rec, err := deps.Drawings.Load(c.UserContext(), user)
		if err != nil {
			LoggerFromCtx(c.UserContext()).Error("load failed", "user", user, "error", err)
			return saveResult(c, fiber.StatusInternalServerError, "load failed")
		}
		c.Set("Cache-Control", "private, no-cache")
		return c.JSON(rec)
	}
}

// SaveHandler overwrites the caller's DrawingRecord with the request body.
func SaveHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := resolveUser(c, deps)
		if err != nil {
			return saveResult(c, fiber.StatusInternalServerError, "identity lookup failed")
		}
		if user == "" {
			return saveResult(c, fiber.StatusUnauthorized, "Not logged in")
		}

		var rec domain.DrawingRecord
		if err := json.Unmarshal(c.Body(), &rec); err != nil {
			return saveResult(c, fiber.StatusBadRequest, "malformed drawing record")
		}

		err = deps.Drawings.Save(c.UserContext(), user, rec)
		switch {
		case err == nil:
			return saveResult(c, fiber.StatusOK, "")
		case errors.Is(err, domain.ErrUnauthorized):
			return saveResult(c, fiber.StatusUnauthorized, "Not logged in")
		case errors.Is(err, domain.ErrOwnerMismatch):
			return saveResult(c, fiber.StatusForbidden, err.Error())
		case errors.Is(err, domain.ErrInvalidRecord):
			return saveResult(c, fiber.StatusBadRequest, err.Error())
		default:
			LoggerFromCtx(c.UserContext()).Error("save failed", "user", user, "strokes", len(rec.Strokes), "error", err)
			return saveResult(c, fiber.StatusInternalServerError, "save failed")
		}
	}
}

// AllDrawingsHandler returns every owner's record keyed by owner.
func AllDrawingsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		snap, err := deps.Drawings.All(c.UserContext())
		if err != nil {
			LoggerFromCtx(c.UserContext()).Error("snapshot failed", "error", err)
			return errInternal(c, "could not load drawings")
		}
		return c.JSON(snap)
	}
}
