// Package queue defines message payloads exchanged over the message broker
// and the background consumer that drains them.
package queue

// Event types carried in AllocationEvent.Type.  One queue carries all
// lifecycle events; consumers switch on the type.
const (
    EventAllocationCreated     = "allocation.created"
    EventAllocationCheckedIn   = "allocation.checked_in"
    EventAllocationCheckedOut  = "allocation.checked_out"
    EventAllocationTransferred = "allocation.transferred"
    EventPaymentRecorded       = "allocation.payment_recorded"
)

// AllocationQueueName is the durable queue lifecycle events are published
// to and consumed from.
const AllocationQueueName = "allocation.events"

// AllocationEvent is published on every allocation lifecycle mutation.  It
// carries enough information for downstream consumers (notification
// delivery, audit persistence) to act without querying the primary
// database.
type AllocationEvent struct {
    EventID      string `json:"event_id"`
    Type         string `json:"type"`
    AllocationID string `json:"allocation_id"`
    SchoolID     string `json:"school_id"`
    StudentID    string `json:"student_id"`
    AcademicYear string `json:"academic_year"`
    HostelID     uint64 `json:"hostel_id"`
    RoomID       uint64 `json:"room_id"`
    Actor        string `json:"actor"`
    AmountCents  int64  `json:"amount_cents,omitempty"`
    OccurredAt   string `json:"occurred_at"`
}
