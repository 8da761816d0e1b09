package apperr

import (
    "errors"
    "fmt"
    "testing"

    "github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
    assert.Equal(t, KindNotFound, KindOf(NotFound("hostel", "7")))
    assert.Equal(t, KindValidation, KindOf(Validation("bad input")))
    assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
    assert.Equal(t, Kind(""), KindOf(nil))
}

func TestKindSurvivesWrapping(t *testing.T) {
    err := fmt.Errorf("placing student: %w", CapacityExhausted("12"))
    assert.True(t, IsKind(err, KindCapacityExhausted))
    assert.False(t, IsKind(err, KindNotFound))

    var ae *Error
    assert.True(t, errors.As(err, &ae))
    assert.Equal(t, "room", ae.Entity)
    assert.Equal(t, "12", ae.EntityID)
}

func TestIsMatchesByKind(t *testing.T) {
    err := DuplicateAllocation("stu-1", "2025-2026")
    assert.True(t, errors.Is(err, &Error{Kind: KindDuplicateAllocation}))
    assert.False(t, errors.Is(err, &Error{Kind: KindContention}))
}

func TestErrorString(t *testing.T) {
    err := &Error{Kind: KindNotFound, Entity: "allocation", EntityID: "a-1", Msg: "allocation not found"}
    assert.Equal(t, "NOT_FOUND allocation a-1: allocation not found", err.Error())
}
