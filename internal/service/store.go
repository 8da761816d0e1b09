// Package service contains the allocation engine, the reporting aggregator
// and the storage contracts they operate over.  The engine is the only
// writer of allocation rows and hostel/room bed counters; transports call
// into it and receive domain results or typed apperr errors back.
package service

import (
    "context"
    "time"

    "github.com/edunest/hostel-allocation/internal/model"
)

// Store is the durable state behind the engine: the capacity records
// (hostels, rooms) and the allocation ledger.  Mutations go through a Tx
// unit of work; the plain read methods serve reporting and availability
// listing and must never block writers beyond snapshot semantics.
//
// Two implementations exist: the MySQL store in internal/repository and an
// in-memory store with optimistic versioning used by tests and single-node
// deployments.
type Store interface {
    // Begin opens a unit of work.  All effects staged on the returned Tx
    // become visible atomically on Commit or not at all.
    Begin(ctx context.Context) (Tx, error)

    HostelByID(ctx context.Context, id uint64) (*model.Hostel, error)
    HostelsBySchool(ctx context.Context, schoolID string) ([]*model.Hostel, error)
    RoomsByHostel(ctx context.Context, hostelID uint64) ([]*model.Room, error)

    AllocationByID(ctx context.Context, id string) (*model.Allocation, error)
    AllocationsByStudent(ctx context.Context, studentID string) ([]*model.Allocation, error)
    // AllocationsBySchool returns allocations whose allocation date falls in
    // [from, to); zero times leave that bound open.
    AllocationsBySchool(ctx context.Context, schoolID string, from, to time.Time) ([]*model.Allocation, error)
}

// Tx is one unit of work over the combined capacity + ledger state.  The
// reserve/release/write sequence of a lifecycle operation runs on a single
// Tx so that under no ordering a bed is decremented without its ledger row
// or vice versa.
//
// Implementations signal conflicts with apperr.KindContention (the engine
// retries with a fresh Tx) and capacity misses with
// apperr.KindCapacityExhausted.
type Tx interface {
    HostelByID(ctx context.Context, id uint64) (*model.Hostel, error)
    InsertHostel(ctx context.Context, h *model.Hostel) error
    UpdateHostel(ctx context.Context, h *model.Hostel) error

    RoomByID(ctx context.Context, id uint64) (*model.Room, error)
    RoomsByHostel(ctx context.Context, hostelID uint64) ([]*model.Room, error)
    InsertRoom(ctx context.Context, r *model.Room) error

    // ReserveBed performs the indivisible check-and-decrement on the room's
    // availableBeds and re-syncs the parent hostel's counters from its
    // rooms.  It fails with apperr.KindCapacityExhausted when no bed is
    // free.
    ReserveBed(ctx context.Context, hostelID, roomID uint64) error
    // ReleaseBed returns one bed to the room, clamped at totalBeds, and
    // re-syncs the parent hostel's counters.  The engine calls it exactly
    // once per terminal transition; the allocation row acts as the
    // reservation token.
    ReleaseBed(ctx context.Context, hostelID, roomID uint64) error

    // ActiveAllocation returns the active allocation for the (student,
    // academic year) pair, or nil when none exists.
    ActiveAllocation(ctx context.Context, studentID, academicYear string) (*model.Allocation, error)
    AllocationByID(ctx context.Context, id string) (*model.Allocation, error)
    InsertAllocation(ctx context.Context, a *model.Allocation) error
    UpdateAllocation(ctx context.Context, a *model.Allocation) error
    // OverdueCandidates returns non-terminal allocations with an
    // outstanding balance whose next payment due date precedes asOf and
    // whose payment status is not yet overdue.
    OverdueCandidates(ctx context.Context, asOf time.Time) ([]*model.Allocation, error)

    Commit() error
    Rollback() error
}
