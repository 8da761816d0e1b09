package model

import "time"

// HostelType classifies which population a hostel admits.  The value is
// stored verbatim in the hostels.hostel_type column.
type HostelType string

const (
    HostelTypeBoys          HostelType = "boys"
    HostelTypeGirls         HostelType = "girls"
    HostelTypeMixed         HostelType = "mixed"
    HostelTypeInternational HostelType = "international"
    HostelTypeVIP           HostelType = "vip"
    HostelTypeStaff         HostelType = "staff"
    HostelTypeGuest         HostelType = "guest"
)

// Valid reports whether t is one of the known hostel types.
func (t HostelType) Valid() bool {
    switch t {
    case HostelTypeBoys, HostelTypeGirls, HostelTypeMixed,
        HostelTypeInternational, HostelTypeVIP, HostelTypeStaff, HostelTypeGuest:
        return true
    }
    return false
}

// HostelStatus is the operational state of a hostel.  Only an active hostel
// admits new placements; the remaining states keep the record (and any
// allocations referencing it) readable.
type HostelStatus string

const (
    HostelStatusActive           HostelStatus = "active"
    HostelStatusInactive         HostelStatus = "inactive"
    HostelStatusUnderMaintenance HostelStatus = "under_maintenance"
    HostelStatusClosed           HostelStatus = "closed"
    HostelStatusDecommissioned   HostelStatus = "decommissioned"
)

// Valid reports whether s is a known hostel status.
func (s HostelStatus) Valid() bool {
    switch s {
    case HostelStatusActive, HostelStatusInactive, HostelStatusUnderMaintenance,
        HostelStatusClosed, HostelStatusDecommissioned:
        return true
    }
    return false
}

// AcceptsPlacements reports whether new allocations may target a hostel in
// this status.
func (s HostelStatus) AcceptsPlacements() bool { return s == HostelStatusActive }

// Facility describes a single amenity a hostel provides.  Facilities used
// to live in a loosely typed JSON bag; the struct keeps validation at the
// boundary instead of in consumers.
type Facility struct {
    Name     string `json:"name"`               // e.g. "laundry", "study hall"
    Category string `json:"category,omitempty"` // e.g. "comfort", "academic", "safety"
    Quantity int    `json:"quantity,omitempty"` // number of units, 0 when not countable
    Notes    string `json:"notes,omitempty"`
}

// RuleSet captures the house rules a hostel enforces.
type RuleSet struct {
    CurfewTime      string `json:"curfew_time,omitempty"` // "22:00" wall-clock, empty when no curfew
    VisitorsAllowed bool   `json:"visitors_allowed"`
    VisitingHours   string `json:"visiting_hours,omitempty"`
    QuietHours      string `json:"quiet_hours,omitempty"`
    Notes           string `json:"notes,omitempty"`
}

// PricingPolicy is the default financial terms applied to new allocations in
// a hostel.  Amounts are in the smallest currency unit.
type PricingPolicy struct {
    MonthlyRent     int64 `json:"monthly_rent"`
    SecurityDeposit int64 `json:"security_deposit"`
    LateFee         int64 `json:"late_fee,omitempty"`
}

// Hostel is the top level of the capacity hierarchy (hostel → room → bed).
// Its bed counters are the sum of its rooms' counters and are re-synced by
// the store whenever a room's counters change.
//
// Fields:
//  ID            – primary key identifier.
//  SchoolID      – tenant the hostel belongs to; supplied validated by callers.
//  Code          – hostel code, unique per school.
//  Name          – human readable label.
//  Type          – population the hostel admits.
//  Status        – operational status; only "active" admits placements.
//  TotalBeds     – capacity across all rooms.
//  OccupiedBeds  – beds taken by active allocations.
//  AvailableBeds – beds free for allocation.
//  Facilities    – amenities offered.
//  Rules         – house rules.
//  Pricing       – default financial terms.
type Hostel struct {
    ID            uint64        // hostels.id
    SchoolID      string        // hostels.school_id
    Code          string        // hostels.code (unique per school)
    Name          string        // hostels.name
    Type          HostelType    // hostels.hostel_type
    Status        HostelStatus  // hostels.status
    TotalBeds     int           // hostels.total_beds
    OccupiedBeds  int           // hostels.occupied_beds
    AvailableBeds int           // hostels.available_beds
    Facilities    []Facility    // hostels.facilities (JSON column)
    Rules         RuleSet       // hostels.rules (JSON column)
    Pricing       PricingPolicy // hostels.pricing (JSON column)
    CreatedAt     time.Time     // hostels.created_at
    UpdatedAt     time.Time     // hostels.updated_at
}

// CountersConsistent reports whether occupied + available == total and all
// three counters are non-negative.  The invariant must hold at all times.
func (h *Hostel) CountersConsistent() bool {
    return h.TotalBeds >= 0 && h.OccupiedBeds >= 0 && h.AvailableBeds >= 0 &&
        h.OccupiedBeds+h.AvailableBeds == h.TotalBeds
}
