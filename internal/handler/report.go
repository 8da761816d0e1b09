package handler

import (
    "net/http"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/edunest/hostel-allocation/internal/service"
)

// ReportHandler exposes the read-only reporting projections.  These
// endpoints are safe to cache; the router wraps them in the Redis response
// cache.
type ReportHandler struct {
    Reports *service.Reports
}

// NewReportHandler constructs a ReportHandler.  Reports must be non-nil.
func NewReportHandler(reports *service.Reports) *ReportHandler {
    if reports == nil {
        panic("nil reports passed to NewReportHandler")
    }
    return &ReportHandler{Reports: reports}
}

// period parses optional from/to query parameters as RFC 3339 timestamps
// or plain dates.  Zero values leave the bound open.
func period(c echo.Context) (service.Period, error) {
    var p service.Period
    parse := func(v string) (time.Time, error) {
        if t, err := time.Parse(time.RFC3339, v); err == nil {
            return t, nil
        }
        return time.Parse("2006-01-02", v)
    }
    if v := c.QueryParam("from"); v != "" {
        t, err := parse(v)
        if err != nil {
            return p, err
        }
        p.From = t
    }
    if v := c.QueryParam("to"); v != "" {
        t, err := parse(v)
        if err != nil {
            return p, err
        }
        p.To = t
    }
    return p, nil
}

// Occupancy handles GET /v1/schools/:id/reports/occupancy.
func (h *ReportHandler) Occupancy(c echo.Context) error {
    stats, err := h.Reports.Occupancy(c.Request().Context(), c.Param("id"))
    if err != nil {
        return fail(c, err)
    }
    return c.JSON(http.StatusOK, stats)
}

// Utilization handles GET /v1/schools/:id/reports/utilization with
// optional from/to bounds on the allocation date.
func (h *ReportHandler) Utilization(c echo.Context) error {
    p, err := period(c)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid period bound"})
    }
    rep, err := h.Reports.Utilization(c.Request().Context(), c.Param("id"), p)
    if err != nil {
        return fail(c, err)
    }
    return c.JSON(http.StatusOK, rep)
}

// Revenue handles GET /v1/schools/:id/reports/revenue with optional
// from/to bounds on the allocation date.
func (h *ReportHandler) Revenue(c echo.Context) error {
    p, err := period(c)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid period bound"})
    }
    rep, err := h.Reports.Revenue(c.Request().Context(), c.Param("id"), p)
    if err != nil {
        return fail(c, err)
    }
    return c.JSON(http.StatusOK, rep)
}
