package service

import (
    "context"
    "errors"
    "log"
    "math/rand"
    "sort"
    "time"

    "github.com/google/uuid"

    "github.com/edunest/hostel-allocation/internal/apperr"
    "github.com/edunest/hostel-allocation/internal/model"
    "github.com/edunest/hostel-allocation/internal/queue"
)

// Publisher emits allocation lifecycle events to the message broker.
// Implementations must never fail the calling operation: publish errors are
// logged and swallowed by the engine.
type Publisher interface {
    PublishAllocationEvent(ctx context.Context, ev queue.AllocationEvent) error
}

// Engine orchestrates the allocation lifecycle: it validates requests,
// enforces the capacity invariant, drives the state machine and keeps the
// bed counters and the ledger in step inside one unit of work.  It is the
// sole writer of allocation rows and hostel/room counters.
type Engine struct {
    store       Store
    pub         Publisher // nil disables event publishing
    txTimeout   time.Duration
    maxAttempts int
}

// NewEngine builds an Engine over the given store.  pub may be nil.
// txTimeout bounds each unit of work (default 5s); maxAttempts bounds the
// contention retry loop (default 3).
func NewEngine(store Store, pub Publisher, txTimeout time.Duration, maxAttempts int) *Engine {
    if store == nil {
        panic("nil store passed to NewEngine")
    }
    if txTimeout <= 0 {
        txTimeout = 5 * time.Second
    }
    if maxAttempts <= 0 {
        maxAttempts = 3
    }
    return &Engine{store: store, pub: pub, txTimeout: txTimeout, maxAttempts: maxAttempts}
}

// run executes fn inside a unit of work with the engine's deadline,
// retrying on contention with a short jittered backoff.  Any other error
// aborts immediately; a deadline expiry surfaces as a Timeout with the
// whole unit of work rolled back.
func (e *Engine) run(ctx context.Context, op string, fn func(ctx context.Context, tx Tx) error) error {
    var lastErr error
    for attempt := 0; attempt < e.maxAttempts; attempt++ {
        if attempt > 0 {
            // jitter between 5 and 30ms so retrying writers interleave
            time.Sleep(time.Duration(5+rand.Intn(25)) * time.Millisecond)
        }
        err := e.attempt(ctx, fn)
        if err == nil {
            return nil
        }
        if errors.Is(err, context.DeadlineExceeded) {
            return apperr.Timeout(op)
        }
        if apperr.IsKind(err, apperr.KindContention) {
            lastErr = err
            continue
        }
        return err
    }
    return lastErr
}

func (e *Engine) attempt(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
    ctx, cancel := context.WithTimeout(ctx, e.txTimeout)
    defer cancel()
    tx, err := e.store.Begin(ctx)
    if err != nil {
        return err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()
    if err := fn(ctx, tx); err != nil {
        return err
    }
    if err := tx.Commit(); err != nil {
        return err
    }
    committed = true
    return nil
}

// publish emits a lifecycle event; failures are logged, never propagated.
func (e *Engine) publish(ctx context.Context, eventType string, a *model.Allocation, actor string, amount int64) {
    if e.pub == nil {
        return
    }
    ev := queue.AllocationEvent{
        EventID:      uuid.NewString(),
        Type:         eventType,
        AllocationID: a.ID,
        SchoolID:     a.SchoolID,
        StudentID:    a.StudentID,
        AcademicYear: a.AcademicYear,
        HostelID:     a.HostelID,
        RoomID:       a.RoomID,
        Actor:        actor,
        AmountCents:  amount,
        OccurredAt:   time.Now().UTC().Format(time.RFC3339),
    }
    if err := e.pub.PublishAllocationEvent(ctx, ev); err != nil {
        log.Printf("engine: publish %s failed: %v", eventType, err)
    }
}

// AllocateRequest carries everything needed to place a student.  RoomID may
// be nil to let the engine pick a room.  Amounts are in the smallest
// currency unit.  Actor is the staff identifier performing the operation
// and is always passed explicitly.
type AllocateRequest struct {
    SchoolID     string
    StudentID    string
    AcademicYear string

    HostelID  uint64
    RoomID    *uint64
    BedNumber *string

    Type model.AllocationType

    MonthlyRent     int64
    SecurityDeposit int64
    PaidAmount      int64
    NextPaymentDue  *time.Time

    ExpectedCheckIn  *time.Time
    ExpectedCheckOut *time.Time
    Notes            string
    Actor            string
}

func (r *AllocateRequest) validate() error {
    switch {
    case r.SchoolID == "":
        return apperr.Validation("school_id is required")
    case r.StudentID == "":
        return apperr.Validation("student_id is required")
    case r.AcademicYear == "":
        return apperr.Validation("academic_year is required")
    case r.HostelID == 0:
        return apperr.Validation("hostel_id is required")
    case r.Actor == "":
        return apperr.Validation("actor is required")
    case r.MonthlyRent < 0 || r.SecurityDeposit < 0 || r.PaidAmount < 0:
        return apperr.Validation("financial terms must not be negative")
    }
    if r.Type != "" && !r.Type.Valid() {
        return apperr.Validation("unknown allocation type: " + string(r.Type))
    }
    return nil
}

// Allocate places a student in a hostel for an academic year.  The
// duplicate check, the bed reservation and the ledger insert run as one
// atomic unit: if any step fails nothing is left behind.
func (e *Engine) Allocate(ctx context.Context, req AllocateRequest) (*model.Allocation, error) {
    if err := req.validate(); err != nil {
        return nil, err
    }
    if req.Type == "" {
        req.Type = model.AllocationTypeRegular
    }
    var out *model.Allocation
    err := e.run(ctx, "allocate", func(ctx context.Context, tx Tx) error {
        existing, err := tx.ActiveAllocation(ctx, req.StudentID, req.AcademicYear)
        if err != nil {
            return err
        }
        if existing != nil {
            return apperr.DuplicateAllocation(req.StudentID, req.AcademicYear)
        }

        hostel, err := tx.HostelByID(ctx, req.HostelID)
        if err != nil {
            return err
        }
        if !hostel.Status.AcceptsPlacements() {
            return apperr.Validation("hostel " + hostel.Code + " is not accepting placements")
        }

        room, err := e.pickRoom(ctx, tx, hostel, req.RoomID)
        if err != nil {
            return err
        }

        if err := tx.ReserveBed(ctx, hostel.ID, room.ID); err != nil {
            return err
        }

        now := time.Now().UTC()
        a := &model.Allocation{
            ID:                   uuid.NewString(),
            SchoolID:             req.SchoolID,
            StudentID:            req.StudentID,
            AcademicYear:         req.AcademicYear,
            HostelID:             hostel.ID,
            RoomID:               room.ID,
            BedNumber:            req.BedNumber,
            Type:                 req.Type,
            Status:               model.AllocationStatusActive,
            CheckInStatus:        model.CheckInPending,
            CheckOutStatus:       model.CheckOutPending,
            AllocationDate:       now,
            ExpectedCheckInDate:  req.ExpectedCheckIn,
            ExpectedCheckOutDate: req.ExpectedCheckOut,
            MonthlyRent:          req.MonthlyRent,
            SecurityDeposit:      req.SecurityDeposit,
            PaidAmount:           req.PaidAmount,
            NextPaymentDue:       req.NextPaymentDue,
            Notes:                req.Notes,
            CreatedBy:            req.Actor,
            UpdatedBy:            req.Actor,
            CreatedAt:            now,
            UpdatedAt:            now,
        }
        a.RecomputePayment()
        if err := tx.InsertAllocation(ctx, a); err != nil {
            return err
        }
        out = a
        return nil
    })
    if err != nil {
        return nil, err
    }
    e.publish(ctx, queue.EventAllocationCreated, out, req.Actor, out.PaidAmount)
    return out, nil
}

// pickRoom resolves the target room.  With an explicit room ID it verifies
// the room belongs to the hostel; otherwise it selects the admitting room
// with the most available beds, ties broken by lowest room number so the
// choice is deterministic.
func (e *Engine) pickRoom(ctx context.Context, tx Tx, hostel *model.Hostel, roomID *uint64) (*model.Room, error) {
    if roomID != nil {
        room, err := tx.RoomByID(ctx, *roomID)
        if err != nil {
            return nil, err
        }
        if room.HostelID != hostel.ID {
            return nil, apperr.Validation("room does not belong to the requested hostel")
        }
        if !room.Status.AdmitsPlacements() {
            return nil, apperr.Validation("room " + room.RoomNumber + " is not accepting placements")
        }
        return room, nil
    }
    rooms, err := tx.RoomsByHostel(ctx, hostel.ID)
    if err != nil {
        return nil, err
    }
    candidates := rooms[:0]
    for _, r := range rooms {
        if r.Status.AdmitsPlacements() && r.AvailableBeds > 0 {
            candidates = append(candidates, r)
        }
    }
    if len(candidates) == 0 {
        return nil, &apperr.Error{
            Kind:     apperr.KindCapacityExhausted,
            Entity:   "hostel",
            EntityID: hostel.Code,
            Msg:      "no rooms with available beds",
        }
    }
    sort.Slice(candidates, func(i, j int) bool {
        if candidates[i].AvailableBeds != candidates[j].AvailableBeds {
            return candidates[i].AvailableBeds > candidates[j].AvailableBeds
        }
        return candidates[i].RoomNumber < candidates[j].RoomNumber
    })
    return candidates[0], nil
}

// CheckIn marks an active allocation as checked in.  A second check-in is
// rejected with InvalidTransition rather than silently succeeding, since a
// double check-in usually signals a caller bug.
func (e *Engine) CheckIn(ctx context.Context, allocationID string, at *time.Time, notes, actor string) (*model.Allocation, error) {
    if actor == "" {
        return nil, apperr.Validation("actor is required")
    }
    var out *model.Allocation
    err := e.run(ctx, "check-in", func(ctx context.Context, tx Tx) error {
        a, err := tx.AllocationByID(ctx, allocationID)
        if err != nil {
            return err
        }
        if a.Status != model.AllocationStatusActive {
            return apperr.InvalidTransition(a.ID, "check-in requires an active allocation, status is "+string(a.Status))
        }
        if a.CheckInStatus == model.CheckInCompleted {
            return apperr.InvalidTransition(a.ID, "allocation is already checked in")
        }
        ts := time.Now().UTC()
        if at != nil {
            ts = at.UTC()
        }
        a.ActualCheckInDate = &ts
        a.CheckInStatus = model.CheckInCompleted
        appendNote(a, notes)
        touch(a, actor)
        if err := tx.UpdateAllocation(ctx, a); err != nil {
            return err
        }
        out = a
        return nil
    })
    if err != nil {
        return nil, err
    }
    e.publish(ctx, queue.EventAllocationCheckedIn, out, actor, 0)
    return out, nil
}

// CheckOutMode distinguishes how a stay ends.
type CheckOutMode string

const (
    CheckOutModeNormal CheckOutMode = "normal"
    CheckOutModeEarly  CheckOutMode = "early"
    CheckOutModeForced CheckOutMode = "forced"
)

// CheckOut ends an active stay: it stamps the check-out, terminates the
// allocation and releases the bed in the same unit of work.  This is the
// terminal transition for a regular stay.
func (e *Engine) CheckOut(ctx context.Context, allocationID string, at *time.Time, notes string, mode CheckOutMode, actor string) (*model.Allocation, error) {
    if actor == "" {
        return nil, apperr.Validation("actor is required")
    }
    var coStatus model.CheckOutStatus
    switch mode {
    case CheckOutModeNormal, "":
        coStatus = model.CheckOutCompleted
    case CheckOutModeEarly:
        coStatus = model.CheckOutEarly
    case CheckOutModeForced:
        coStatus = model.CheckOutForced
    default:
        return nil, apperr.Validation("unknown check-out mode: " + string(mode))
    }
    var out *model.Allocation
    err := e.run(ctx, "check-out", func(ctx context.Context, tx Tx) error {
        a, err := tx.AllocationByID(ctx, allocationID)
        if err != nil {
            return err
        }
        if a.Status != model.AllocationStatusActive {
            return apperr.InvalidTransition(a.ID, "check-out requires an active allocation, status is "+string(a.Status))
        }
        ts := time.Now().UTC()
        if at != nil {
            ts = at.UTC()
        }
        a.ActualCheckOutDate = &ts
        a.CheckOutStatus = coStatus
        a.Status = model.AllocationStatusTerminated
        appendNote(a, notes)
        touch(a, actor)
        if err := tx.UpdateAllocation(ctx, a); err != nil {
            return err
        }
        if err := tx.ReleaseBed(ctx, a.HostelID, a.RoomID); err != nil {
            return err
        }
        out = a
        return nil
    })
    if err != nil {
        return nil, err
    }
    e.publish(ctx, queue.EventAllocationCheckedOut, out, actor, 0)
    return out, nil
}

// Transfer moves an active allocation to a new room, possibly in another
// hostel.  The new bed is reserved before the old one is released; if the
// reservation fails the original placement is untouched.  The prior
// placement is appended to the transfer history and the allocation stays
// active under the new placement.
func (e *Engine) Transfer(ctx context.Context, allocationID string, newHostelID, newRoomID uint64, reason, approvedBy, actor string) (*model.Allocation, error) {
    switch {
    case actor == "":
        return nil, apperr.Validation("actor is required")
    case approvedBy == "":
        return nil, apperr.Validation("approved_by is required")
    case reason == "":
        return nil, apperr.Validation("reason is required")
    case newHostelID == 0 || newRoomID == 0:
        return nil, apperr.Validation("new hostel and room are required")
    }
    var out *model.Allocation
    err := e.run(ctx, "transfer", func(ctx context.Context, tx Tx) error {
        a, err := tx.AllocationByID(ctx, allocationID)
        if err != nil {
            return err
        }
        if a.Status != model.AllocationStatusActive {
            return apperr.InvalidTransition(a.ID, "transfer requires an active allocation, status is "+string(a.Status))
        }
        if a.RoomID == newRoomID {
            return apperr.Validation("transfer target is the current room")
        }
        newHostel, err := tx.HostelByID(ctx, newHostelID)
        if err != nil {
            return err
        }
        if !newHostel.Status.AcceptsPlacements() {
            return apperr.Validation("hostel " + newHostel.Code + " is not accepting placements")
        }
        newRoom, err := tx.RoomByID(ctx, newRoomID)
        if err != nil {
            return err
        }
        if newRoom.HostelID != newHostel.ID {
            return apperr.Validation("room does not belong to the requested hostel")
        }
        if !newRoom.Status.AdmitsPlacements() {
            return apperr.Validation("room " + newRoom.RoomNumber + " is not accepting placements")
        }

        // Reserve the destination first; a CapacityExhausted here rolls the
        // whole unit back leaving the old placement untouched.
        if err := tx.ReserveBed(ctx, newHostel.ID, newRoom.ID); err != nil {
            return err
        }
        if err := tx.ReleaseBed(ctx, a.HostelID, a.RoomID); err != nil {
            return err
        }

        a.TransferHistory = append(a.TransferHistory, model.TransferRecord{
            HostelID:      a.HostelID,
            RoomID:        a.RoomID,
            BedNumber:     a.BedNumber,
            Reason:        reason,
            ApprovedBy:    approvedBy,
            TransferredAt: time.Now().UTC(),
        })
        a.HostelID = newHostel.ID
        a.RoomID = newRoom.ID
        a.BedNumber = nil
        // "transferred" is a transient marker kept in history; the live
        // status resolves to active under the new placement.
        a.Status = model.AllocationStatusActive
        touch(a, actor)
        if err := tx.UpdateAllocation(ctx, a); err != nil {
            return err
        }
        out = a
        return nil
    })
    if err != nil {
        return nil, err
    }
    e.publish(ctx, queue.EventAllocationTransferred, out, actor, 0)
    return out, nil
}

// Suspend pauses an active allocation without releasing the bed. The bed
// stays held for the student.
func (e *Engine) Suspend(ctx context.Context, allocationID, reason, actor string) (*model.Allocation, error) {
    switch {
    case actor == "":
        return nil, apperr.Validation("actor is required")
    case reason == "":
        return nil, apperr.Validation("reason is required")
    }
    var out *model.Allocation
    err := e.run(ctx, "suspend", func(ctx context.Context, tx Tx) error {
        a, err := tx.AllocationByID(ctx, allocationID)
        if err != nil {
            return err
        }
        if a.Status.Terminal() {
            return apperr.InvalidTransition(a.ID, "cannot suspend a "+string(a.Status)+" allocation")
        }
        if a.Status == model.AllocationStatusSuspended {
            return apperr.InvalidTransition(a.ID, "allocation is already suspended")
        }
        a.Status = model.AllocationStatusSuspended
        a.SuspensionReason = reason
        touch(a, actor)
        if err := tx.UpdateAllocation(ctx, a); err != nil {
            return err
        }
        out = a
        return nil
    })
    if err != nil {
        return nil, err
    }
    return out, nil
}

// Reactivate returns a suspended allocation to active.
func (e *Engine) Reactivate(ctx context.Context, allocationID, actor string) (*model.Allocation, error) {
    if actor == "" {
        return nil, apperr.Validation("actor is required")
    }
    var out *model.Allocation
    err := e.run(ctx, "reactivate", func(ctx context.Context, tx Tx) error {
        a, err := tx.AllocationByID(ctx, allocationID)
        if err != nil {
            return err
        }
        if a.Status != model.AllocationStatusSuspended {
            return apperr.InvalidTransition(a.ID, "reactivate requires a suspended allocation, status is "+string(a.Status))
        }
        a.Status = model.AllocationStatusActive
        a.SuspensionReason = ""
        touch(a, actor)
        if err := tx.UpdateAllocation(ctx, a); err != nil {
            return err
        }
        out = a
        return nil
    })
    if err != nil {
        return nil, err
    }
    return out, nil
}

// RecordPayment credits a payment against the allocation's balance and
// re-derives the payment status.  Settling arrears after a stay ended is
// allowed, so terminal allocations still accept payments.
func (e *Engine) RecordPayment(ctx context.Context, allocationID string, amount int64, at *time.Time, actor string) (*model.Allocation, error) {
    if actor == "" {
        return nil, apperr.Validation("actor is required")
    }
    if amount <= 0 {
        return nil, apperr.InvalidAmount(allocationID, amount)
    }
    var out *model.Allocation
    err := e.run(ctx, "record-payment", func(ctx context.Context, tx Tx) error {
        a, err := tx.AllocationByID(ctx, allocationID)
        if err != nil {
            return err
        }
        a.PaidAmount += amount
        a.RecomputePayment()
        touch(a, actor)
        if err := tx.UpdateAllocation(ctx, a); err != nil {
            return err
        }
        out = a
        return nil
    })
    if err != nil {
        return nil, err
    }
    e.publish(ctx, queue.EventPaymentRecorded, out, actor, amount)
    return out, nil
}

// ReconcileOverdue flags allocations whose next payment due date has passed
// with a balance outstanding.  It is run from the scheduler; the actor is
// recorded so the flip is attributable like any other mutation.  Returns
// the number of allocations flagged.
func (e *Engine) ReconcileOverdue(ctx context.Context, asOf time.Time, actor string) (int, error) {
    if actor == "" {
        return 0, apperr.Validation("actor is required")
    }
    flagged := 0
    err := e.run(ctx, "reconcile-overdue", func(ctx context.Context, tx Tx) error {
        flagged = 0
        candidates, err := tx.OverdueCandidates(ctx, asOf.UTC())
        if err != nil {
            return err
        }
        for _, a := range candidates {
            a.PaymentStatus = model.PaymentOverdue
            touch(a, actor)
            if err := tx.UpdateAllocation(ctx, a); err != nil {
                return err
            }
            flagged++
        }
        return nil
    })
    if err != nil {
        return 0, err
    }
    return flagged, nil
}

// GetAllocation returns a single allocation by ID.
func (e *Engine) GetAllocation(ctx context.Context, id string) (*model.Allocation, error) {
    return e.store.AllocationByID(ctx, id)
}

// AllocationsByStudent lists a student's allocations across years.
func (e *Engine) AllocationsByStudent(ctx context.Context, studentID string) ([]*model.Allocation, error) {
    if studentID == "" {
        return nil, apperr.Validation("student_id is required")
    }
    return e.store.AllocationsByStudent(ctx, studentID)
}

func appendNote(a *model.Allocation, note string) {
    if note == "" {
        return
    }
    if a.Notes == "" {
        a.Notes = note
        return
    }
    a.Notes += "\n" + note
}

func touch(a *model.Allocation, actor string) {
    a.UpdatedBy = actor
    a.UpdatedAt = time.Now().UTC()
}
