package handler

import (
    "net/http"
    "strconv"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/edunest/hostel-allocation/internal/model"
    "github.com/edunest/hostel-allocation/internal/service"
)

// HostelHandler exposes hostel and room administration plus the public
// availability reads.
type HostelHandler struct {
    Engine *service.Engine
}

// NewHostelHandler constructs a HostelHandler.  The engine must be non-nil.
func NewHostelHandler(engine *service.Engine) *HostelHandler {
    if engine == nil {
        panic("nil engine passed to NewHostelHandler")
    }
    return &HostelHandler{Engine: engine}
}

// hostelView is the JSON shape of a hostel record.
type hostelView struct {
    ID            uint64              `json:"id"`
    SchoolID      string              `json:"school_id"`
    Code          string              `json:"code"`
    Name          string              `json:"name"`
    Type          model.HostelType    `json:"type"`
    Status        model.HostelStatus  `json:"status"`
    TotalBeds     int                 `json:"total_beds"`
    OccupiedBeds  int                 `json:"occupied_beds"`
    AvailableBeds int                 `json:"available_beds"`
    Facilities    []model.Facility    `json:"facilities,omitempty"`
    Rules         model.RuleSet       `json:"rules"`
    Pricing       model.PricingPolicy `json:"pricing"`
    CreatedAt     time.Time           `json:"created_at"`
    UpdatedAt     time.Time           `json:"updated_at"`
}

func hostelViewOf(h *model.Hostel) hostelView {
    return hostelView{
        ID:            h.ID,
        SchoolID:      h.SchoolID,
        Code:          h.Code,
        Name:          h.Name,
        Type:          h.Type,
        Status:        h.Status,
        TotalBeds:     h.TotalBeds,
        OccupiedBeds:  h.OccupiedBeds,
        AvailableBeds: h.AvailableBeds,
        Facilities:    h.Facilities,
        Rules:         h.Rules,
        Pricing:       h.Pricing,
        CreatedAt:     h.CreatedAt,
        UpdatedAt:     h.UpdatedAt,
    }
}

// roomView is the JSON shape of a room record.
type roomView struct {
    ID            uint64           `json:"id"`
    HostelID      uint64           `json:"hostel_id"`
    RoomNumber    string           `json:"room_number"`
    Floor         int              `json:"floor"`
    Status        model.RoomStatus `json:"status"`
    TotalBeds     int              `json:"total_beds"`
    OccupiedBeds  int              `json:"occupied_beds"`
    AvailableBeds int              `json:"available_beds"`
}

func roomViewOf(r *model.Room) roomView {
    return roomView{
        ID:            r.ID,
        HostelID:      r.HostelID,
        RoomNumber:    r.RoomNumber,
        Floor:         r.Floor,
        Status:        r.Status,
        TotalBeds:     r.TotalBeds,
        OccupiedBeds:  r.OccupiedBeds,
        AvailableBeds: r.AvailableBeds,
    }
}

// Create handles POST /v1/hostels.  The hostel starts active with zero
// rooms; capacity arrives as rooms are added.
func (h *HostelHandler) Create(c echo.Context) error {
    var body struct {
        SchoolID   string              `json:"school_id"`
        Code       string              `json:"code"`
        Name       string              `json:"name"`
        Type       model.HostelType    `json:"type"`
        Facilities []model.Facility    `json:"facilities"`
        Rules      model.RuleSet       `json:"rules"`
        Pricing    model.PricingPolicy `json:"pricing"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    hostel, err := h.Engine.CreateHostel(c.Request().Context(), service.CreateHostelRequest{
        SchoolID:   body.SchoolID,
        Code:       body.Code,
        Name:       body.Name,
        Type:       body.Type,
        Facilities: body.Facilities,
        Rules:      body.Rules,
        Pricing:    body.Pricing,
        Actor:      actor(c),
    })
    if err != nil {
        return fail(c, err)
    }
    return c.JSON(http.StatusCreated, hostelViewOf(hostel))
}

// CreateRoom handles POST /v1/hostels/:id/rooms.
func (h *HostelHandler) CreateRoom(c echo.Context) error {
    hostelID, err := pathID(c, "id")
    if err != nil {
        return fail(c, err)
    }
    var body struct {
        RoomNumber string `json:"room_number"`
        Floor      int    `json:"floor"`
        TotalBeds  int    `json:"total_beds"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    room, err := h.Engine.CreateRoom(c.Request().Context(), hostelID, service.CreateRoomRequest{
        RoomNumber: body.RoomNumber,
        Floor:      body.Floor,
        TotalBeds:  body.TotalBeds,
        Actor:      actor(c),
    })
    if err != nil {
        return fail(c, err)
    }
    return c.JSON(http.StatusCreated, roomViewOf(room))
}

// ListRooms handles GET /v1/hostels/:id/rooms.
func (h *HostelHandler) ListRooms(c echo.Context) error {
    hostelID, err := pathID(c, "id")
    if err != nil {
        return fail(c, err)
    }
    rooms, err := h.Engine.RoomsByHostel(c.Request().Context(), hostelID)
    if err != nil {
        return fail(c, err)
    }
    out := make([]roomView, 0, len(rooms))
    for _, r := range rooms {
        out = append(out, roomViewOf(r))
    }
    return c.JSON(http.StatusOK, echo.Map{"rooms": out})
}

// Availability handles GET /v1/hostels/:id/availability, returning the
// current counter triple for one hostel.
func (h *HostelHandler) Availability(c echo.Context) error {
    hostelID, err := pathID(c, "id")
    if err != nil {
        return fail(c, err)
    }
    av, err := h.Engine.GetAvailability(c.Request().Context(), hostelID)
    if err != nil {
        return fail(c, err)
    }
    return c.JSON(http.StatusOK, av)
}

// ListAvailable handles GET /v1/schools/:id/hostels.  Query parameters:
// type filters by hostel type, min_available by free beds, include_full=true
// keeps active hostels with no free beds in the listing.
func (h *HostelHandler) ListAvailable(c echo.Context) error {
    filters := service.HostelFilters{
        Type: model.HostelType(c.QueryParam("type")),
    }
    if v := c.QueryParam("min_available"); v != "" {
        n, err := strconv.Atoi(v)
        if err != nil || n < 0 {
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid min_available"})
        }
        filters.MinAvailable = n
    }
    if v := c.QueryParam("include_full"); v == "true" || v == "1" {
        filters.IncludeFull = true
    }
    hostels, err := h.Engine.GetAvailableHostels(c.Request().Context(), c.Param("id"), filters)
    if err != nil {
        return fail(c, err)
    }
    out := make([]hostelView, 0, len(hostels))
    for _, hostel := range hostels {
        out = append(out, hostelViewOf(hostel))
    }
    return c.JSON(http.StatusOK, echo.Map{"hostels": out})
}

// BulkStatus handles POST /v1/hostels/bulk/status.  Partial success is
// reported per item with 207 Multi-Status when any item failed.
func (h *HostelHandler) BulkStatus(c echo.Context) error {
    var body struct {
        Updates []service.BulkStatusUpdate `json:"updates"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    report, err := h.Engine.BulkUpdateStatus(c.Request().Context(), body.Updates, actor(c))
    if err != nil {
        return fail(c, err)
    }
    status := http.StatusOK
    if report.Failed > 0 {
        status = http.StatusMultiStatus
    }
    return c.JSON(status, report)
}

// BulkFacilities handles POST /v1/hostels/bulk/facilities.
func (h *HostelHandler) BulkFacilities(c echo.Context) error {
    var body struct {
        Updates []service.BulkFacilityUpdate `json:"updates"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    report, err := h.Engine.BulkUpdateFacilities(c.Request().Context(), body.Updates, actor(c))
    if err != nil {
        return fail(c, err)
    }
    status := http.StatusOK
    if report.Failed > 0 {
        status = http.StatusMultiStatus
    }
    return c.JSON(status, report)
}
