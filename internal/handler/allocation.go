package handler

import (
    "net/http"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/edunest/hostel-allocation/internal/apperr"
    "github.com/edunest/hostel-allocation/internal/model"
    "github.com/edunest/hostel-allocation/internal/service"
)

// AllocationHandler exposes the allocation lifecycle over HTTP.  All
// methods assume JWT authentication and role validation has already been
// performed by middleware; the engine re-validates domain rules and the
// handler only translates between JSON and the service types.
type AllocationHandler struct {
    Engine *service.Engine
}

// NewAllocationHandler constructs an AllocationHandler.  The engine must be
// non-nil.
func NewAllocationHandler(engine *service.Engine) *AllocationHandler {
    if engine == nil {
        panic("nil engine passed to NewAllocationHandler")
    }
    return &AllocationHandler{Engine: engine}
}

// allocationView is the JSON shape of a ledger row.  Amounts are in the
// smallest currency unit; dates are RFC 3339.
type allocationView struct {
    ID           string `json:"id"`
    SchoolID     string `json:"school_id"`
    StudentID    string `json:"student_id"`
    AcademicYear string `json:"academic_year"`

    HostelID  uint64  `json:"hostel_id"`
    RoomID    uint64  `json:"room_id"`
    BedNumber *string `json:"bed_number,omitempty"`

    Type           model.AllocationType   `json:"allocation_type"`
    Status         model.AllocationStatus `json:"status"`
    CheckInStatus  model.CheckInStatus    `json:"check_in_status"`
    CheckOutStatus model.CheckOutStatus   `json:"check_out_status"`

    AllocationDate       time.Time  `json:"allocation_date"`
    ExpectedCheckInDate  *time.Time `json:"expected_check_in,omitempty"`
    ActualCheckInDate    *time.Time `json:"actual_check_in,omitempty"`
    ExpectedCheckOutDate *time.Time `json:"expected_check_out,omitempty"`
    ActualCheckOutDate   *time.Time `json:"actual_check_out,omitempty"`

    MonthlyRent       int64               `json:"monthly_rent"`
    SecurityDeposit   int64               `json:"security_deposit"`
    PaidAmount        int64               `json:"paid_amount"`
    OutstandingAmount int64               `json:"outstanding_amount"`
    PaymentStatus     model.PaymentStatus `json:"payment_status"`
    NextPaymentDue    *time.Time          `json:"next_payment_due,omitempty"`

    TransferHistory []model.TransferRecord `json:"transfer_history,omitempty"`

    SuspensionReason string `json:"suspension_reason,omitempty"`
    Notes            string `json:"notes,omitempty"`

    CreatedBy string    `json:"created_by"`
    UpdatedBy string    `json:"updated_by"`
    CreatedAt time.Time `json:"created_at"`
    UpdatedAt time.Time `json:"updated_at"`
}

func viewOf(a *model.Allocation) allocationView {
    return allocationView{
        ID:                   a.ID,
        SchoolID:             a.SchoolID,
        StudentID:            a.StudentID,
        AcademicYear:         a.AcademicYear,
        HostelID:             a.HostelID,
        RoomID:               a.RoomID,
        BedNumber:            a.BedNumber,
        Type:                 a.Type,
        Status:               a.Status,
        CheckInStatus:        a.CheckInStatus,
        CheckOutStatus:       a.CheckOutStatus,
        AllocationDate:       a.AllocationDate,
        ExpectedCheckInDate:  a.ExpectedCheckInDate,
        ActualCheckInDate:    a.ActualCheckInDate,
        ExpectedCheckOutDate: a.ExpectedCheckOutDate,
        ActualCheckOutDate:   a.ActualCheckOutDate,
        MonthlyRent:          a.MonthlyRent,
        SecurityDeposit:      a.SecurityDeposit,
        PaidAmount:           a.PaidAmount,
        OutstandingAmount:    a.OutstandingAmount,
        PaymentStatus:        a.PaymentStatus,
        NextPaymentDue:       a.NextPaymentDue,
        TransferHistory:      a.TransferHistory,
        SuspensionReason:     a.SuspensionReason,
        Notes:                a.Notes,
        CreatedBy:            a.CreatedBy,
        UpdatedBy:            a.UpdatedBy,
        CreatedAt:            a.CreatedAt,
        UpdatedAt:            a.UpdatedAt,
    }
}

func viewsOf(as []*model.Allocation) []allocationView {
    out := make([]allocationView, 0, len(as))
    for _, a := range as {
        out = append(out, viewOf(a))
    }
    return out
}

// Create handles POST /v1/allocations.  It places a student in a hostel
// for an academic year and returns the new ledger row with 201.
func (h *AllocationHandler) Create(c echo.Context) error {
    var body struct {
        SchoolID     string `json:"school_id"`
        StudentID    string `json:"student_id"`
        AcademicYear string `json:"academic_year"`

        HostelID  uint64  `json:"hostel_id"`
        RoomID    *uint64 `json:"room_id"`
        BedNumber *string `json:"bed_number"`

        Type model.AllocationType `json:"allocation_type"`

        MonthlyRent     int64      `json:"monthly_rent"`
        SecurityDeposit int64      `json:"security_deposit"`
        PaidAmount      int64      `json:"paid_amount"`
        NextPaymentDue  *time.Time `json:"next_payment_due"`

        ExpectedCheckIn  *time.Time `json:"expected_check_in"`
        ExpectedCheckOut *time.Time `json:"expected_check_out"`
        Notes            string     `json:"notes"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    a, err := h.Engine.Allocate(c.Request().Context(), service.AllocateRequest{
        SchoolID:         body.SchoolID,
        StudentID:        body.StudentID,
        AcademicYear:     body.AcademicYear,
        HostelID:         body.HostelID,
        RoomID:           body.RoomID,
        BedNumber:        body.BedNumber,
        Type:             body.Type,
        MonthlyRent:      body.MonthlyRent,
        SecurityDeposit:  body.SecurityDeposit,
        PaidAmount:       body.PaidAmount,
        NextPaymentDue:   body.NextPaymentDue,
        ExpectedCheckIn:  body.ExpectedCheckIn,
        ExpectedCheckOut: body.ExpectedCheckOut,
        Notes:            body.Notes,
        Actor:            actor(c),
    })
    if err != nil {
        return fail(c, err)
    }
    return c.JSON(http.StatusCreated, viewOf(a))
}

// Get handles GET /v1/allocations/:id.
func (h *AllocationHandler) Get(c echo.Context) error {
    id := c.Param("id")
    if id == "" {
        return fail(c, apperr.Validation("allocation id is required"))
    }
    a, err := h.Engine.GetAllocation(c.Request().Context(), id)
    if err != nil {
        return fail(c, err)
    }
    return c.JSON(http.StatusOK, viewOf(a))
}

// ListByStudent handles GET /v1/students/:id/allocations.
func (h *AllocationHandler) ListByStudent(c echo.Context) error {
    allocs, err := h.Engine.AllocationsByStudent(c.Request().Context(), c.Param("id"))
    if err != nil {
        return fail(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"allocations": viewsOf(allocs)})
}

// CheckIn handles POST /v1/allocations/:id/check-in.
func (h *AllocationHandler) CheckIn(c echo.Context) error {
    var body struct {
        At    *time.Time `json:"at"`
        Notes string     `json:"notes"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    a, err := h.Engine.CheckIn(c.Request().Context(), c.Param("id"), body.At, body.Notes, actor(c))
    if err != nil {
        return fail(c, err)
    }
    return c.JSON(http.StatusOK, viewOf(a))
}

// CheckOut handles POST /v1/allocations/:id/check-out.  The optional mode
// distinguishes normal, early and forced departures.
func (h *AllocationHandler) CheckOut(c echo.Context) error {
    var body struct {
        At    *time.Time           `json:"at"`
        Mode  service.CheckOutMode `json:"mode"`
        Notes string               `json:"notes"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    a, err := h.Engine.CheckOut(c.Request().Context(), c.Param("id"), body.At, body.Notes, body.Mode, actor(c))
    if err != nil {
        return fail(c, err)
    }
    return c.JSON(http.StatusOK, viewOf(a))
}

// Transfer handles POST /v1/allocations/:id/transfer.
func (h *AllocationHandler) Transfer(c echo.Context) error {
    var body struct {
        HostelID   uint64 `json:"hostel_id"`
        RoomID     uint64 `json:"room_id"`
        Reason     string `json:"reason"`
        ApprovedBy string `json:"approved_by"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    a, err := h.Engine.Transfer(c.Request().Context(), c.Param("id"),
        body.HostelID, body.RoomID, body.Reason, body.ApprovedBy, actor(c))
    if err != nil {
        return fail(c, err)
    }
    return c.JSON(http.StatusOK, viewOf(a))
}

// Suspend handles POST /v1/allocations/:id/suspend.  The bed stays held.
func (h *AllocationHandler) Suspend(c echo.Context) error {
    var body struct {
        Reason string `json:"reason"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    a, err := h.Engine.Suspend(c.Request().Context(), c.Param("id"), body.Reason, actor(c))
    if err != nil {
        return fail(c, err)
    }
    return c.JSON(http.StatusOK, viewOf(a))
}

// Reactivate handles POST /v1/allocations/:id/reactivate.
func (h *AllocationHandler) Reactivate(c echo.Context) error {
    a, err := h.Engine.Reactivate(c.Request().Context(), c.Param("id"), actor(c))
    if err != nil {
        return fail(c, err)
    }
    return c.JSON(http.StatusOK, viewOf(a))
}

// RecordPayment handles POST /v1/allocations/:id/payments.  Amount is in
// the smallest currency unit and must be positive.
func (h *AllocationHandler) RecordPayment(c echo.Context) error {
    var body struct {
        Amount int64      `json:"amount"`
        At     *time.Time `json:"at"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    a, err := h.Engine.RecordPayment(c.Request().Context(), c.Param("id"), body.Amount, body.At, actor(c))
    if err != nil {
        return fail(c, err)
    }
    return c.JSON(http.StatusOK, viewOf(a))
}
