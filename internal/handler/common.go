package handler

import (
    "errors"
    "net/http"
    "strconv"

    "github.com/labstack/echo/v4"

    "github.com/edunest/hostel-allocation/internal/apperr"
)

// actor extracts the authenticated actor identifier injected by the JWT
// middleware.  Every mutating handler passes it down explicitly; the
// service layer rejects an empty actor so nothing is ever written with an
// ambient identity.
func actor(c echo.Context) string {
    if v, ok := c.Get("actor_id").(string); ok {
        return v
    }
    return ""
}

// statusFor maps the typed error taxonomy onto HTTP status codes.
// Conflict-shaped outcomes (duplicate, capacity, transition, contention)
// all surface as 409 so clients retry or re-read rather than treat them as
// client bugs.
func statusFor(kind apperr.Kind) int {
    switch kind {
    case apperr.KindValidation, apperr.KindInvalidAmount:
        return http.StatusBadRequest
    case apperr.KindNotFound:
        return http.StatusNotFound
    case apperr.KindDuplicateAllocation, apperr.KindCapacityExhausted,
        apperr.KindInvalidTransition, apperr.KindContention:
        return http.StatusConflict
    case apperr.KindTimeout:
        return http.StatusGatewayTimeout
    default:
        return http.StatusInternalServerError
    }
}

// fail writes the error response for a service error.  Typed errors carry
// their kind and entity reference to the client; anything else is a plain
// 500 without internals leaking.
func fail(c echo.Context, err error) error {
    var ae *apperr.Error
    if errors.As(err, &ae) {
        body := echo.Map{"error": string(ae.Kind), "message": ae.Msg}
        if ae.Entity != "" {
            body["entity"] = ae.Entity
        }
        if ae.EntityID != "" {
            body["entity_id"] = ae.EntityID
        }
        return c.JSON(statusFor(ae.Kind), body)
    }
    return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal", "message": "internal server error"})
}

// pathID parses a numeric path parameter, rejecting zero.
func pathID(c echo.Context, name string) (uint64, error) {
    id, err := strconv.ParseUint(c.Param(name), 10, 64)
    if err != nil || id == 0 {
        return 0, apperr.Validation("invalid " + name)
    }
    return id, nil
}
