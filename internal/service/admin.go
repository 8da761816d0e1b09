package service

import (
    "context"
    "time"

    "github.com/edunest/hostel-allocation/internal/apperr"
    "github.com/edunest/hostel-allocation/internal/model"
)

// CreateHostelRequest carries the administrator input for a new hostel.
type CreateHostelRequest struct {
    SchoolID   string
    Code       string
    Name       string
    Type       model.HostelType
    Facilities []model.Facility
    Rules      model.RuleSet
    Pricing    model.PricingPolicy
    Actor      string
}

// CreateHostel registers a new hostel with zero rooms.  The hostel starts
// active; capacity arrives as rooms are added.
func (e *Engine) CreateHostel(ctx context.Context, req CreateHostelRequest) (*model.Hostel, error) {
    switch {
    case req.SchoolID == "":
        return nil, apperr.Validation("school_id is required")
    case req.Code == "":
        return nil, apperr.Validation("code is required")
    case req.Name == "":
        return nil, apperr.Validation("name is required")
    case !req.Type.Valid():
        return nil, apperr.Validation("unknown hostel type: " + string(req.Type))
    case req.Actor == "":
        return nil, apperr.Validation("actor is required")
    }
    if req.Pricing.MonthlyRent < 0 || req.Pricing.SecurityDeposit < 0 || req.Pricing.LateFee < 0 {
        return nil, apperr.Validation("pricing amounts must not be negative")
    }
    now := time.Now().UTC()
    h := &model.Hostel{
        SchoolID:   req.SchoolID,
        Code:       req.Code,
        Name:       req.Name,
        Type:       req.Type,
        Status:     model.HostelStatusActive,
        Facilities: req.Facilities,
        Rules:      req.Rules,
        Pricing:    req.Pricing,
        CreatedAt:  now,
        UpdatedAt:  now,
    }
    err := e.run(ctx, "create-hostel", func(ctx context.Context, tx Tx) error {
        return tx.InsertHostel(ctx, h)
    })
    if err != nil {
        return nil, err
    }
    return h, nil
}

// CreateRoomRequest carries the administrator input for a new room.
type CreateRoomRequest struct {
    RoomNumber string
    Floor      int
    TotalBeds  int
    Actor      string
}

// CreateRoom adds a room to a hostel.  All beds start available; the
// hostel's aggregate counters are re-synced in the same unit of work.
func (e *Engine) CreateRoom(ctx context.Context, hostelID uint64, req CreateRoomRequest) (*model.Room, error) {
    switch {
    case hostelID == 0:
        return nil, apperr.Validation("hostel_id is required")
    case req.RoomNumber == "":
        return nil, apperr.Validation("room_number is required")
    case req.TotalBeds <= 0:
        return nil, apperr.Validation("total_beds must be positive")
    case req.Actor == "":
        return nil, apperr.Validation("actor is required")
    }
    now := time.Now().UTC()
    r := &model.Room{
        HostelID:      hostelID,
        RoomNumber:    req.RoomNumber,
        Floor:         req.Floor,
        Status:        model.RoomStatusAvailable,
        TotalBeds:     req.TotalBeds,
        OccupiedBeds:  0,
        AvailableBeds: req.TotalBeds,
        CreatedAt:     now,
        UpdatedAt:     now,
    }
    err := e.run(ctx, "create-room", func(ctx context.Context, tx Tx) error {
        if _, err := tx.HostelByID(ctx, hostelID); err != nil {
            return err
        }
        return tx.InsertRoom(ctx, r)
    })
    if err != nil {
        return nil, err
    }
    return r, nil
}

// RoomsByHostel lists a hostel's rooms.
func (e *Engine) RoomsByHostel(ctx context.Context, hostelID uint64) ([]*model.Room, error) {
    if hostelID == 0 {
        return nil, apperr.Validation("hostel_id is required")
    }
    if _, err := e.store.HostelByID(ctx, hostelID); err != nil {
        return nil, err
    }
    return e.store.RoomsByHostel(ctx, hostelID)
}

// Availability is the counter triple for a hostel.
type Availability struct {
    HostelID      uint64 `json:"hostel_id"`
    TotalBeds     int    `json:"total_beds"`
    OccupiedBeds  int    `json:"occupied_beds"`
    AvailableBeds int    `json:"available_beds"`
}

// GetAvailability returns the current counters for one hostel.  Read-only.
func (e *Engine) GetAvailability(ctx context.Context, hostelID uint64) (*Availability, error) {
    h, err := e.store.HostelByID(ctx, hostelID)
    if err != nil {
        return nil, err
    }
    return &Availability{
        HostelID:      h.ID,
        TotalBeds:     h.TotalBeds,
        OccupiedBeds:  h.OccupiedBeds,
        AvailableBeds: h.AvailableBeds,
    }, nil
}

// HostelFilters narrows the availability listing.
type HostelFilters struct {
    Type         model.HostelType // zero value matches all types
    MinAvailable int              // minimum free beds; 1 when IncludeFull is false
    IncludeFull  bool             // include active hostels with no free beds
}

// GetAvailableHostels lists a school's active hostels that match the
// filters, for UI-level availability browsing.  Read-only and
// side-effect-free.
func (e *Engine) GetAvailableHostels(ctx context.Context, schoolID string, f HostelFilters) ([]*model.Hostel, error) {
    if schoolID == "" {
        return nil, apperr.Validation("school_id is required")
    }
    if f.Type != "" && !f.Type.Valid() {
        return nil, apperr.Validation("unknown hostel type: " + string(f.Type))
    }
    hostels, err := e.store.HostelsBySchool(ctx, schoolID)
    if err != nil {
        return nil, err
    }
    min := f.MinAvailable
    if min < 1 && !f.IncludeFull {
        min = 1
    }
    out := make([]*model.Hostel, 0, len(hostels))
    for _, h := range hostels {
        if !h.Status.AcceptsPlacements() {
            continue
        }
        if f.Type != "" && h.Type != f.Type {
            continue
        }
        if h.AvailableBeds < min {
            continue
        }
        out = append(out, h)
    }
    return out, nil
}
