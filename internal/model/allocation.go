package model

import "time"

// AllocationType records why a student was placed in a hostel.
type AllocationType string

const (
    AllocationTypeRegular      AllocationType = "regular"
    AllocationTypeTemporary    AllocationType = "temporary"
    AllocationTypeEmergency    AllocationType = "emergency"
    AllocationTypeMedical      AllocationType = "medical"
    AllocationTypeDisciplinary AllocationType = "disciplinary"
    AllocationTypeAcademic     AllocationType = "academic"
)

// Valid reports whether t is a known allocation type.
func (t AllocationType) Valid() bool {
    switch t {
    case AllocationTypeRegular, AllocationTypeTemporary, AllocationTypeEmergency,
        AllocationTypeMedical, AllocationTypeDisciplinary, AllocationTypeAcademic:
        return true
    }
    return false
}

// AllocationStatus is the lifecycle state of an allocation.  Transitions:
// active → {checked_out, terminated, suspended}; suspended → active.
// "transferred" is recorded in the transfer history only; after a transfer
// the live status resolves back to active under the new placement.
// checked_out and terminated are terminal.
type AllocationStatus string

const (
    AllocationStatusActive      AllocationStatus = "active"
    AllocationStatusCheckedOut  AllocationStatus = "checked_out"
    AllocationStatusTransferred AllocationStatus = "transferred"
    AllocationStatusTerminated  AllocationStatus = "terminated"
    AllocationStatusSuspended   AllocationStatus = "suspended"
)

// Terminal reports whether no further lifecycle transitions are accepted
// from this status.
func (s AllocationStatus) Terminal() bool {
    return s == AllocationStatusCheckedOut || s == AllocationStatusTerminated
}

// CheckInStatus tracks the check-in sub-state independently of the
// allocation lifecycle status.
type CheckInStatus string

const (
    CheckInScheduled CheckInStatus = "scheduled"
    CheckInPending   CheckInStatus = "pending"
    CheckInCompleted CheckInStatus = "completed"
    CheckInCancelled CheckInStatus = "cancelled"
)

// CheckOutStatus tracks the check-out sub-state.  "early" and "forced"
// record how the stay ended.
type CheckOutStatus string

const (
    CheckOutScheduled CheckOutStatus = "scheduled"
    CheckOutPending   CheckOutStatus = "pending"
    CheckOutCompleted CheckOutStatus = "completed"
    CheckOutEarly     CheckOutStatus = "early"
    CheckOutForced    CheckOutStatus = "forced"
)

// PaymentStatus is derived from the financial fields; "overdue" is assigned
// only by the scheduled reconciliation pass when the next payment due date
// has passed with a balance outstanding.
type PaymentStatus string

const (
    PaymentPending PaymentStatus = "pending"
    PaymentPartial PaymentStatus = "partial"
    PaymentPaid    PaymentStatus = "paid"
    PaymentOverdue PaymentStatus = "overdue"
)

// TransferRecord is one entry of an allocation's append-only transfer
// history: the placement the student occupied before the move.
type TransferRecord struct {
    HostelID      uint64    `json:"hostel_id"`
    RoomID        uint64    `json:"room_id"`
    BedNumber     *string   `json:"bed_number,omitempty"`
    Reason        string    `json:"reason"`
    ApprovedBy    string    `json:"approved_by"`
    TransferredAt time.Time `json:"transferred_at"`
}

// Allocation is the ledger entity: one row per (student, academic year)
// placement, holding the current placement, lifecycle state, dates and the
// financial balance.  At most one allocation per (StudentID, AcademicYear)
// may have status "active" at any time.
type Allocation struct {
    ID           string // allocations.id (UUID)
    SchoolID     string // allocations.school_id
    StudentID    string // allocations.student_id
    AcademicYear string // allocations.academic_year, e.g. "2024-2025"

    HostelID  uint64  // allocations.hostel_id
    RoomID    uint64  // allocations.room_id
    BedNumber *string // allocations.bed_number (nullable)

    Type           AllocationType   // allocations.allocation_type
    Status         AllocationStatus // allocations.status
    CheckInStatus  CheckInStatus    // allocations.check_in_status
    CheckOutStatus CheckOutStatus   // allocations.check_out_status

    AllocationDate       time.Time  // allocations.allocation_date
    ExpectedCheckInDate  *time.Time // allocations.expected_check_in (nullable)
    ActualCheckInDate    *time.Time // allocations.actual_check_in (nullable)
    ExpectedCheckOutDate *time.Time // allocations.expected_check_out (nullable)
    ActualCheckOutDate   *time.Time // allocations.actual_check_out (nullable)

    // Financial fields.  Amounts are in the smallest currency unit.
    MonthlyRent       int64         // allocations.monthly_rent
    SecurityDeposit   int64         // allocations.security_deposit
    PaidAmount        int64         // allocations.paid_amount
    OutstandingAmount int64         // allocations.outstanding_amount
    PaymentStatus     PaymentStatus // allocations.payment_status
    NextPaymentDue    *time.Time    // allocations.next_payment_due (nullable)

    TransferHistory []TransferRecord // allocations.transfer_history (JSON column, append-only)

    SuspensionReason string // allocations.suspension_reason (set while suspended)
    Notes            string // allocations.notes

    CreatedBy string    // allocations.created_by (explicit actor, never ambient)
    UpdatedBy string    // allocations.updated_by
    CreatedAt time.Time // allocations.created_at
    UpdatedAt time.Time // allocations.updated_at
}

// TotalDue is the full amount owed for the stay: rent plus deposit.
func (a *Allocation) TotalDue() int64 { return a.MonthlyRent + a.SecurityDeposit }

// RecomputePayment refreshes OutstandingAmount and PaymentStatus from the
// three source fields.  Outstanding never goes negative: overpayment is
// kept in PaidAmount and the balance clamps to zero.  A recompute always
// clears "overdue": the reconciliation pass re-flags it if the due date is
// still breached.
func (a *Allocation) RecomputePayment() {
    total := a.TotalDue()
    out := total - a.PaidAmount
    if out < 0 {
        out = 0
    }
    a.OutstandingAmount = out
    switch {
    case out == 0:
        a.PaymentStatus = PaymentPaid
    case a.PaidAmount > 0:
        a.PaymentStatus = PaymentPartial
    default:
        a.PaymentStatus = PaymentPending
    }
}

// Overdue reports whether the allocation should be flagged overdue as of
// the given time: a balance is outstanding and the next payment due date
// has passed.
func (a *Allocation) Overdue(asOf time.Time) bool {
    return a.OutstandingAmount > 0 && a.NextPaymentDue != nil && a.NextPaymentDue.Before(asOf)
}
