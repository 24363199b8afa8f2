package http

import "github.com/gofiber/fiber/v2"

// APIError is a structured error response.
type APIError struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`    // Error code: bad_request, not_found, internal_error, etc.
	Message   string `json:"message"` // Human-readable message
	RequestID string `json:"request_id,omitempty"`
}

// Result is the body of /save and of a failed /load. Browser clients of the
// canvas check success rather than the status code.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// newError builds a JSON error response with a request ID.
func newError(c *fiber.Ctx, status int, code string, message string) error {
	reqID, _ := c.Locals("requestid").(string)
	return c.Status(status).JSON(APIError{
		Status:    status,
		Code:      code,
		Message:   message,
		RequestID: reqID,
	})
}

// saveResult writes a Result. Success is implied by a 2xx status.
func saveResult(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(Result{
		Success: status >= 200 && status < 300,
		Message: message,
	})
}

// errBadRequest returns a 400 error.
func errBadRequest(c *fiber.Ctx, msg string) error {
	return newError(c, 400, "bad_request", msg)
}

// errInternal returns a 500 error.
func errInternal(c *fiber.Ctx, msg string) error {
	return newError(c, 500, "internal_error", msg)
}

// errRateLimited returns a 429 error.
func errRateLimited(c *fiber.Ctx) error {
	return newError(c, 429, "rate_limited", "too many requests, please try again later")
}
