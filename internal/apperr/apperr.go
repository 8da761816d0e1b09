// Package apperr defines the error taxonomy shared by the allocation engine
// and its callers.  Every failure a caller can recover from is one of the
// kinds below, carried by an *Error that names the offending entity and ID.
// Handlers translate kinds into HTTP statuses; no storage detail leaks out.
package apperr

import (
    "errors"
    "fmt"
)

// Kind identifies the failure category.  The string values are stable and
// appear verbatim in API error responses.
type Kind string

const (
    KindNotFound            Kind = "NOT_FOUND"
    KindDuplicateAllocation Kind = "DUPLICATE_ALLOCATION"
    KindCapacityExhausted   Kind = "CAPACITY_EXHAUSTED"
    KindInvalidTransition   Kind = "INVALID_TRANSITION"
    KindInvalidAmount       Kind = "INVALID_AMOUNT"
    KindContention          Kind = "CONTENTION"
    KindTimeout             Kind = "TIMEOUT"
    KindValidation          Kind = "VALIDATION_ERROR"
)

// Error is a typed, recoverable-by-caller error.  Entity and EntityID name
// the offending record when known so the calling layer can render an
// actionable message.
type Error struct {
    Kind     Kind   // failure category
    Entity   string // "hostel", "room", "allocation", "" when not entity-bound
    EntityID string // offending identifier, "" when not applicable
    Msg      string // human readable detail
    Err      error  // wrapped cause, optional
}

// Error implements the error interface.
func (e *Error) Error() string {
    s := string(e.Kind)
    if e.Entity != "" {
        s += " " + e.Entity
        if e.EntityID != "" {
            s += " " + e.EntityID
        }
    }
    if e.Msg != "" {
        s += ": " + e.Msg
    }
    if e.Err != nil {
        s += ": " + e.Err.Error()
    }
    return s
}

// Unwrap exposes the wrapped cause for errors.Is/errors.As chains.
func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by kind, so sentinel-style comparisons like
// errors.Is(err, &Error{Kind: KindNotFound}) work across wrapped chains.
func (e *Error) Is(target error) bool {
    var t *Error
    if errors.As(target, &t) {
        return e.Kind == t.Kind
    }
    return false
}

// KindOf extracts the Kind from err, or "" when err is not an *Error.
func KindOf(err error) Kind {
    var e *Error
    if errors.As(err, &e) {
        return e.Kind
    }
    return ""
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, k Kind) bool { return KindOf(err) == k }

// NotFound builds a NOT_FOUND error for the named entity.
func NotFound(entity, id string) *Error {
    return &Error{Kind: KindNotFound, Entity: entity, EntityID: id, Msg: entity + " not found"}
}

// DuplicateAllocation signals an active allocation already exists for the
// (student, academic year) pair.
func DuplicateAllocation(studentID, academicYear string) *Error {
    return &Error{
        Kind:     KindDuplicateAllocation,
        Entity:   "allocation",
        EntityID: studentID,
        Msg:      fmt.Sprintf("student already has an active allocation for %s", academicYear),
    }
}

// CapacityExhausted signals no beds were available in the room at
// reservation time.
func CapacityExhausted(roomID string) *Error {
    return &Error{Kind: KindCapacityExhausted, Entity: "room", EntityID: roomID, Msg: "no beds available"}
}

// InvalidTransition signals a lifecycle rule violation.
func InvalidTransition(allocationID, msg string) *Error {
    return &Error{Kind: KindInvalidTransition, Entity: "allocation", EntityID: allocationID, Msg: msg}
}

// InvalidAmount signals a non-positive payment amount.
func InvalidAmount(allocationID string, amount int64) *Error {
    return &Error{
        Kind:     KindInvalidAmount,
        Entity:   "allocation",
        EntityID: allocationID,
        Msg:      fmt.Sprintf("payment amount must be positive, got %d", amount),
    }
}

// Contention signals the optimistic-lock retry budget was exceeded.
func Contention(entity, id string) *Error {
    return &Error{Kind: KindContention, Entity: entity, EntityID: id, Msg: "concurrent update conflict"}
}

// Timeout signals the unit of work exceeded its deadline and was rolled
// back in full.
func Timeout(op string) *Error {
    return &Error{Kind: KindTimeout, Msg: op + " exceeded its deadline"}
}

// Validation signals malformed caller input.
func Validation(msg string) *Error {
    return &Error{Kind: KindValidation, Msg: msg}
}
