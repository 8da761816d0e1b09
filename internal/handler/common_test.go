package handler

import (
    "encoding/json"
    "net/http"
    "net/http/httptest"
    "testing"

    "github.com/labstack/echo/v4"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/edunest/hostel-allocation/internal/apperr"
)

func TestStatusFor(t *testing.T) {
    cases := []struct {
        kind apperr.Kind
        want int
    }{
        {apperr.KindValidation, http.StatusBadRequest},
        {apperr.KindInvalidAmount, http.StatusBadRequest},
        {apperr.KindNotFound, http.StatusNotFound},
        {apperr.KindDuplicateAllocation, http.StatusConflict},
        {apperr.KindCapacityExhausted, http.StatusConflict},
        {apperr.KindInvalidTransition, http.StatusConflict},
        {apperr.KindContention, http.StatusConflict},
        {apperr.KindTimeout, http.StatusGatewayTimeout},
        {apperr.Kind("UNKNOWN"), http.StatusInternalServerError},
    }
    for _, tc := range cases {
        assert.Equal(t, tc.want, statusFor(tc.kind), string(tc.kind))
    }
}

func TestFailRendersTypedError(t *testing.T) {
    e := echo.New()
    rec := httptest.NewRecorder()
    c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

    err := fail(c, apperr.CapacityExhausted("12"))
    require.NoError(t, err)
    assert.Equal(t, http.StatusConflict, rec.Code)

    var body map[string]string
    require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
    assert.Equal(t, "CAPACITY_EXHAUSTED", body["error"])
    assert.Equal(t, "room", body["entity"])
    assert.Equal(t, "12", body["entity_id"])
}

func TestFailHidesInternalErrors(t *testing.T) {
    e := echo.New()
    rec := httptest.NewRecorder()
    c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

    require.NoError(t, fail(c, assert.AnError))
    assert.Equal(t, http.StatusInternalServerError, rec.Code)
    assert.NotContains(t, rec.Body.String(), assert.AnError.Error())
}
