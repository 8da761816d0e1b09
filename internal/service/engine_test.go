package service_test

import (
    "context"
    "sync"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/edunest/hostel-allocation/internal/apperr"
    "github.com/edunest/hostel-allocation/internal/model"
    "github.com/edunest/hostel-allocation/internal/repository"
    "github.com/edunest/hostel-allocation/internal/service"
)

const (
    testSchool = "school-1"
    testYear   = "2025-2026"
    testActor  = "warden-7"
)

func newEngine(t *testing.T) (*service.Engine, service.Store) {
    t.Helper()
    store := repository.NewMemoryStore()
    return service.NewEngine(store, nil, 0, 0), store
}

// seedHostel creates an active hostel with one room per entry of bedsPerRoom,
// numbered R01, R02, ...
func seedHostel(t *testing.T, eng *service.Engine, bedsPerRoom ...int) (*model.Hostel, []*model.Room) {
    t.Helper()
    ctx := context.Background()
    h, err := eng.CreateHostel(ctx, service.CreateHostelRequest{
        SchoolID: testSchool,
        Code:     "BH-A",
        Name:     "Block A",
        Type:     model.HostelTypeBoys,
        Actor:    testActor,
    })
    require.NoError(t, err)

    rooms := make([]*model.Room, 0, len(bedsPerRoom))
    for i, beds := range bedsPerRoom {
        r, err := eng.CreateRoom(ctx, h.ID, service.CreateRoomRequest{
            RoomNumber: "R0" + string(rune('1'+i)),
            Floor:      1,
            TotalBeds:  beds,
            Actor:      testActor,
        })
        require.NoError(t, err)
        rooms = append(rooms, r)
    }
    return h, rooms
}

func allocReq(hostelID uint64, roomID *uint64, student string) service.AllocateRequest {
    return service.AllocateRequest{
        SchoolID:        testSchool,
        StudentID:       student,
        AcademicYear:    testYear,
        HostelID:        hostelID,
        RoomID:          roomID,
        MonthlyRent:     50000,
        SecurityDeposit: 20000,
        Actor:           testActor,
    }
}

func requireCounters(t *testing.T, store service.Store, hostelID uint64, occupied int) {
    t.Helper()
    ctx := context.Background()
    h, err := store.HostelByID(ctx, hostelID)
    require.NoError(t, err)
    assert.True(t, h.CountersConsistent(), "hostel counters inconsistent: %+v", h)
    assert.Equal(t, occupied, h.OccupiedBeds)

    rooms, err := store.RoomsByHostel(ctx, hostelID)
    require.NoError(t, err)
    sum := 0
    total, avail := 0, 0
    for _, r := range rooms {
        require.True(t, r.CountersConsistent(), "room counters inconsistent: %+v", r)
        sum += r.OccupiedBeds
        total += r.TotalBeds
        avail += r.AvailableBeds
    }
    assert.Equal(t, occupied, sum, "hostel occupied must equal sum of room occupied")
    assert.Equal(t, h.TotalBeds, total)
    assert.Equal(t, h.AvailableBeds, avail)
}

func TestAllocateAssignsBedAndDerivesPayment(t *testing.T) {
    eng, store := newEngine(t)
    h, rooms := seedHostel(t, eng, 2)

    a, err := eng.Allocate(context.Background(), allocReq(h.ID, &rooms[0].ID, "stu-1"))
    require.NoError(t, err)

    assert.NotEmpty(t, a.ID)
    assert.Equal(t, model.AllocationStatusActive, a.Status)
    assert.Equal(t, model.CheckInPending, a.CheckInStatus)
    assert.Equal(t, model.AllocationTypeRegular, a.Type)
    assert.Equal(t, int64(70000), a.OutstandingAmount)
    assert.Equal(t, model.PaymentPending, a.PaymentStatus)
    assert.Equal(t, testActor, a.CreatedBy)
    requireCounters(t, store, h.ID, 1)
}

func TestAllocateRejectsDuplicateActive(t *testing.T) {
    eng, store := newEngine(t)
    h, rooms := seedHostel(t, eng, 4)

    _, err := eng.Allocate(context.Background(), allocReq(h.ID, &rooms[0].ID, "stu-1"))
    require.NoError(t, err)

    // second placement for the same student and year must fail even with
    // beds to spare, and must not touch the counters
    _, err = eng.Allocate(context.Background(), allocReq(h.ID, &rooms[0].ID, "stu-1"))
    require.Error(t, err)
    assert.Equal(t, apperr.KindDuplicateAllocation, apperr.KindOf(err))
    requireCounters(t, store, h.ID, 1)
}

func TestAllocateSameStudentDifferentYear(t *testing.T) {
    eng, _ := newEngine(t)
    h, rooms := seedHostel(t, eng, 4)

    _, err := eng.Allocate(context.Background(), allocReq(h.ID, &rooms[0].ID, "stu-1"))
    require.NoError(t, err)

    req := allocReq(h.ID, &rooms[0].ID, "stu-1")
    req.AcademicYear = "2026-2027"
    _, err = eng.Allocate(context.Background(), req)
    assert.NoError(t, err, "a different academic year is not a duplicate")
}

func TestAllocateCapacityExhaustedLeavesNoTrace(t *testing.T) {
    eng, store := newEngine(t)
    h, rooms := seedHostel(t, eng, 1)

    _, err := eng.Allocate(context.Background(), allocReq(h.ID, &rooms[0].ID, "stu-1"))
    require.NoError(t, err)

    _, err = eng.Allocate(context.Background(), allocReq(h.ID, &rooms[0].ID, "stu-2"))
    require.Error(t, err)
    assert.Equal(t, apperr.KindCapacityExhausted, apperr.KindOf(err))

    // the failed attempt must leave no ledger row behind
    allocs, err := store.AllocationsByStudent(context.Background(), "stu-2")
    require.NoError(t, err)
    assert.Empty(t, allocs)
    requireCounters(t, store, h.ID, 1)
}

func TestAllocateAutoSelectsRoomWithMostBeds(t *testing.T) {
    eng, _ := newEngine(t)
    h, rooms := seedHostel(t, eng, 1, 3, 3)

    // R02 and R03 tie on available beds; the lower room number wins
    a, err := eng.Allocate(context.Background(), allocReq(h.ID, nil, "stu-1"))
    require.NoError(t, err)
    assert.Equal(t, rooms[1].ID, a.RoomID)

    // after one bed taken in R02 both have availability 2 vs 3; R03 wins
    b, err := eng.Allocate(context.Background(), allocReq(h.ID, nil, "stu-2"))
    require.NoError(t, err)
    assert.Equal(t, rooms[2].ID, b.RoomID)
}

func TestAllocateRejectsForeignRoom(t *testing.T) {
    eng, _ := newEngine(t)
    h1, _ := seedHostel(t, eng, 2)

    other, err := eng.CreateHostel(context.Background(), service.CreateHostelRequest{
        SchoolID: testSchool,
        Code:     "BH-B",
        Name:     "Block B",
        Type:     model.HostelTypeGirls,
        Actor:    testActor,
    })
    require.NoError(t, err)
    foreign, err := eng.CreateRoom(context.Background(), other.ID, service.CreateRoomRequest{
        RoomNumber: "R01", TotalBeds: 2, Actor: testActor,
    })
    require.NoError(t, err)

    _, err = eng.Allocate(context.Background(), allocReq(h1.ID, &foreign.ID, "stu-1"))
    require.Error(t, err)
    assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestConcurrentAllocateLastBed(t *testing.T) {
    eng, store := newEngine(t)
    h, rooms := seedHostel(t, eng, 1)

    var wg sync.WaitGroup
    errs := make([]error, 2)
    for i, student := range []string{"stu-1", "stu-2"} {
        wg.Add(1)
        go func(i int, student string) {
            defer wg.Done()
            _, errs[i] = eng.Allocate(context.Background(), allocReq(h.ID, &rooms[0].ID, student))
        }(i, student)
    }
    wg.Wait()

    // exactly one wins the last bed; the loser gets CapacityExhausted
    var won, lost int
    for _, err := range errs {
        if err == nil {
            won++
        } else {
            lost++
            assert.Equal(t, apperr.KindCapacityExhausted, apperr.KindOf(err), "unexpected loser error: %v", err)
        }
    }
    assert.Equal(t, 1, won)
    assert.Equal(t, 1, lost)
    requireCounters(t, store, h.ID, 1)
}

func TestCheckInCompletesOnce(t *testing.T) {
    eng, _ := newEngine(t)
    h, rooms := seedHostel(t, eng, 2)
    a, err := eng.Allocate(context.Background(), allocReq(h.ID, &rooms[0].ID, "stu-1"))
    require.NoError(t, err)

    got, err := eng.CheckIn(context.Background(), a.ID, nil, "", testActor)
    require.NoError(t, err)
    assert.Equal(t, model.CheckInCompleted, got.CheckInStatus)
    require.NotNil(t, got.ActualCheckInDate)

    first := *got.ActualCheckInDate
    _, err = eng.CheckIn(context.Background(), a.ID, nil, "", testActor)
    require.Error(t, err)
    assert.Equal(t, apperr.KindInvalidTransition, apperr.KindOf(err))

    // the rejected second check-in must not have changed anything
    after, err := eng.GetAllocation(context.Background(), a.ID)
    require.NoError(t, err)
    assert.Equal(t, first, *after.ActualCheckInDate)
}

func TestCheckOutReleasesBedExactlyOnce(t *testing.T) {
    eng, store := newEngine(t)
    h, rooms := seedHostel(t, eng, 2)
    a, err := eng.Allocate(context.Background(), allocReq(h.ID, &rooms[0].ID, "stu-1"))
    require.NoError(t, err)
    requireCounters(t, store, h.ID, 1)

    got, err := eng.CheckOut(context.Background(), a.ID, nil, "", service.CheckOutModeNormal, testActor)
    require.NoError(t, err)
    assert.Equal(t, model.AllocationStatusTerminated, got.Status)
    assert.Equal(t, model.CheckOutCompleted, got.CheckOutStatus)
    require.NotNil(t, got.ActualCheckOutDate)
    requireCounters(t, store, h.ID, 0)

    // a second check-out is an invalid transition and must not release again
    _, err = eng.CheckOut(context.Background(), a.ID, nil, "", service.CheckOutModeNormal, testActor)
    require.Error(t, err)
    assert.Equal(t, apperr.KindInvalidTransition, apperr.KindOf(err))
    requireCounters(t, store, h.ID, 0)
}

func TestCheckOutModes(t *testing.T) {
    eng, _ := newEngine(t)
    h, rooms := seedHostel(t, eng, 3)

    cases := []struct {
        mode service.CheckOutMode
        want model.CheckOutStatus
    }{
        {service.CheckOutModeNormal, model.CheckOutCompleted},
        {service.CheckOutModeEarly, model.CheckOutEarly},
        {service.CheckOutModeForced, model.CheckOutForced},
    }
    for i, tc := range cases {
        student := "stu-" + string(rune('a'+i))
        a, err := eng.Allocate(context.Background(), allocReq(h.ID, &rooms[0].ID, student))
        require.NoError(t, err)
        got, err := eng.CheckOut(context.Background(), a.ID, nil, "", tc.mode, testActor)
        require.NoError(t, err)
        assert.Equal(t, tc.want, got.CheckOutStatus)
        assert.Equal(t, model.AllocationStatusTerminated, got.Status)
    }
}

func TestTransferMovesPlacement(t *testing.T) {
    eng, store := newEngine(t)
    h, rooms := seedHostel(t, eng, 2, 2)
    a, err := eng.Allocate(context.Background(), allocReq(h.ID, &rooms[0].ID, "stu-1"))
    require.NoError(t, err)

    got, err := eng.Transfer(context.Background(), a.ID, h.ID, rooms[1].ID, "roommate dispute", "warden-lead", testActor)
    require.NoError(t, err)

    assert.Equal(t, rooms[1].ID, got.RoomID)
    assert.Equal(t, model.AllocationStatusActive, got.Status)
    assert.Nil(t, got.BedNumber)
    require.Len(t, got.TransferHistory, 1)
    assert.Equal(t, rooms[0].ID, got.TransferHistory[0].RoomID)
    assert.Equal(t, "warden-lead", got.TransferHistory[0].ApprovedBy)

    ctx := context.Background()
    r0, err := store.RoomsByHostel(ctx, h.ID)
    require.NoError(t, err)
    assert.Equal(t, 0, r0[0].OccupiedBeds)
    assert.Equal(t, 1, r0[1].OccupiedBeds)
    requireCounters(t, store, h.ID, 1)
}

func TestTransferToFullRoomLeavesOriginalPlacement(t *testing.T) {
    eng, store := newEngine(t)
    h, rooms := seedHostel(t, eng, 2, 1)
    // fill the destination room
    _, err := eng.Allocate(context.Background(), allocReq(h.ID, &rooms[1].ID, "stu-x"))
    require.NoError(t, err)

    a, err := eng.Allocate(context.Background(), allocReq(h.ID, &rooms[0].ID, "stu-1"))
    require.NoError(t, err)

    _, err = eng.Transfer(context.Background(), a.ID, h.ID, rooms[1].ID, "move request", "warden-lead", testActor)
    require.Error(t, err)
    assert.Equal(t, apperr.KindCapacityExhausted, apperr.KindOf(err))

    // the original placement is untouched
    after, err := eng.GetAllocation(context.Background(), a.ID)
    require.NoError(t, err)
    assert.Equal(t, rooms[0].ID, after.RoomID)
    assert.Empty(t, after.TransferHistory)
    requireCounters(t, store, h.ID, 2)
}

func TestSuspendKeepsBedUntilReactivate(t *testing.T) {
    eng, store := newEngine(t)
    h, rooms := seedHostel(t, eng, 2)
    a, err := eng.Allocate(context.Background(), allocReq(h.ID, &rooms[0].ID, "stu-1"))
    require.NoError(t, err)

    got, err := eng.Suspend(context.Background(), a.ID, "disciplinary review", testActor)
    require.NoError(t, err)
    assert.Equal(t, model.AllocationStatusSuspended, got.Status)
    assert.Equal(t, "disciplinary review", got.SuspensionReason)
    requireCounters(t, store, h.ID, 1) // bed stays held

    _, err = eng.Suspend(context.Background(), a.ID, "again", testActor)
    require.Error(t, err)
    assert.Equal(t, apperr.KindInvalidTransition, apperr.KindOf(err))

    back, err := eng.Reactivate(context.Background(), a.ID, testActor)
    require.NoError(t, err)
    assert.Equal(t, model.AllocationStatusActive, back.Status)
    assert.Empty(t, back.SuspensionReason)
    requireCounters(t, store, h.ID, 1)
}

func TestReactivateRequiresSuspended(t *testing.T) {
    eng, _ := newEngine(t)
    h, rooms := seedHostel(t, eng, 2)
    a, err := eng.Allocate(context.Background(), allocReq(h.ID, &rooms[0].ID, "stu-1"))
    require.NoError(t, err)

    _, err = eng.Reactivate(context.Background(), a.ID, testActor)
    require.Error(t, err)
    assert.Equal(t, apperr.KindInvalidTransition, apperr.KindOf(err))
}

func TestRecordPaymentDerivesStatus(t *testing.T) {
    eng, _ := newEngine(t)
    h, rooms := seedHostel(t, eng, 2)
    req := allocReq(h.ID, &rooms[0].ID, "stu-1")
    req.MonthlyRent = 500
    req.SecurityDeposit = 200
    a, err := eng.Allocate(context.Background(), req)
    require.NoError(t, err)
    assert.Equal(t, int64(700), a.OutstandingAmount)

    got, err := eng.RecordPayment(context.Background(), a.ID, 300, nil, testActor)
    require.NoError(t, err)
    assert.Equal(t, int64(300), got.PaidAmount)
    assert.Equal(t, int64(400), got.OutstandingAmount)
    assert.Equal(t, model.PaymentPartial, got.PaymentStatus)

    got, err = eng.RecordPayment(context.Background(), a.ID, 400, nil, testActor)
    require.NoError(t, err)
    assert.Equal(t, int64(700), got.PaidAmount)
    assert.Equal(t, int64(0), got.OutstandingAmount)
    assert.Equal(t, model.PaymentPaid, got.PaymentStatus)
}

func TestRecordPaymentRejectsNonPositiveAmount(t *testing.T) {
    eng, _ := newEngine(t)
    h, rooms := seedHostel(t, eng, 2)
    a, err := eng.Allocate(context.Background(), allocReq(h.ID, &rooms[0].ID, "stu-1"))
    require.NoError(t, err)

    for _, amount := range []int64{0, -100} {
        _, err := eng.RecordPayment(context.Background(), a.ID, amount, nil, testActor)
        require.Error(t, err)
        assert.Equal(t, apperr.KindInvalidAmount, apperr.KindOf(err))
    }

    // the rejected payments must not have moved the balance
    after, err := eng.GetAllocation(context.Background(), a.ID)
    require.NoError(t, err)
    assert.Equal(t, int64(0), after.PaidAmount)
}

func TestRecordPaymentAllowedAfterCheckOut(t *testing.T) {
    eng, _ := newEngine(t)
    h, rooms := seedHostel(t, eng, 2)
    a, err := eng.Allocate(context.Background(), allocReq(h.ID, &rooms[0].ID, "stu-1"))
    require.NoError(t, err)
    _, err = eng.CheckOut(context.Background(), a.ID, nil, "", service.CheckOutModeNormal, testActor)
    require.NoError(t, err)

    // settling arrears after the stay ended is allowed
    got, err := eng.RecordPayment(context.Background(), a.ID, 70000, nil, testActor)
    require.NoError(t, err)
    assert.Equal(t, model.PaymentPaid, got.PaymentStatus)
    assert.Equal(t, model.AllocationStatusTerminated, got.Status)
}

func TestReconcileOverdueFlagsAndPaymentClears(t *testing.T) {
    eng, _ := newEngine(t)
    h, rooms := seedHostel(t, eng, 2)

    past := time.Now().UTC().Add(-48 * time.Hour)
    req := allocReq(h.ID, &rooms[0].ID, "stu-1")
    req.NextPaymentDue = &past
    a, err := eng.Allocate(context.Background(), req)
    require.NoError(t, err)

    n, err := eng.ReconcileOverdue(context.Background(), time.Now().UTC(), "system:overdue-reconciler")
    require.NoError(t, err)
    assert.Equal(t, 1, n)

    flagged, err := eng.GetAllocation(context.Background(), a.ID)
    require.NoError(t, err)
    assert.Equal(t, model.PaymentOverdue, flagged.PaymentStatus)

    // a second pass finds nothing new
    n, err = eng.ReconcileOverdue(context.Background(), time.Now().UTC(), "system:overdue-reconciler")
    require.NoError(t, err)
    assert.Equal(t, 0, n)

    // full settlement clears the flag via the payment recompute
    paid, err := eng.RecordPayment(context.Background(), a.ID, 70000, nil, testActor)
    require.NoError(t, err)
    assert.Equal(t, model.PaymentPaid, paid.PaymentStatus)

    n, err = eng.ReconcileOverdue(context.Background(), time.Now().UTC(), "system:overdue-reconciler")
    require.NoError(t, err)
    assert.Equal(t, 0, n)
}

// contendingStore hands out units of work that always fail their commit
// with Contention, to drive the engine's retry loop to exhaustion.
type contendingStore struct {
    service.Store
    begins int
}

func (s *contendingStore) Begin(ctx context.Context) (service.Tx, error) {
    s.begins++
    return contendingTx{}, nil
}

type contendingTx struct {
    service.Tx
}

func (contendingTx) InsertHostel(ctx context.Context, h *model.Hostel) error { return nil }

func (contendingTx) Commit() error { return apperr.Contention("hostel", "1") }

func (contendingTx) Rollback() error { return nil }

func TestContentionRetriesThenSurfaces(t *testing.T) {
    store := &contendingStore{}
    eng := service.NewEngine(store, nil, time.Second, 3)

    _, err := eng.CreateHostel(context.Background(), service.CreateHostelRequest{
        SchoolID: testSchool,
        Code:     "BH-A",
        Name:     "Block A",
        Type:     model.HostelTypeBoys,
        Actor:    testActor,
    })
    require.Error(t, err)
    assert.Equal(t, apperr.KindContention, apperr.KindOf(err))
    assert.Equal(t, 3, store.begins, "every configured attempt must run before Contention surfaces")
}

func TestDeadlineSurfacesTimeout(t *testing.T) {
    // a unit-of-work deadline this small expires before the store is
    // touched; the whole operation must roll back into a Timeout
    eng := service.NewEngine(repository.NewMemoryStore(), nil, time.Nanosecond, 3)

    _, err := eng.CreateHostel(context.Background(), service.CreateHostelRequest{
        SchoolID: testSchool,
        Code:     "BH-A",
        Name:     "Block A",
        Type:     model.HostelTypeBoys,
        Actor:    testActor,
    })
    require.Error(t, err)
    assert.Equal(t, apperr.KindTimeout, apperr.KindOf(err))
}

func TestAllocateValidation(t *testing.T) {
    eng, _ := newEngine(t)
    h, rooms := seedHostel(t, eng, 2)

    cases := []func(*service.AllocateRequest){
        func(r *service.AllocateRequest) { r.SchoolID = "" },
        func(r *service.AllocateRequest) { r.StudentID = "" },
        func(r *service.AllocateRequest) { r.AcademicYear = "" },
        func(r *service.AllocateRequest) { r.HostelID = 0 },
        func(r *service.AllocateRequest) { r.Actor = "" },
        func(r *service.AllocateRequest) { r.MonthlyRent = -1 },
        func(r *service.AllocateRequest) { r.Type = "luxury" },
    }
    for _, mutate := range cases {
        req := allocReq(h.ID, &rooms[0].ID, "stu-1")
        mutate(&req)
        _, err := eng.Allocate(context.Background(), req)
        require.Error(t, err)
        assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
    }
}

func TestAllocateUnknownHostel(t *testing.T) {
    eng, _ := newEngine(t)
    _, err := eng.Allocate(context.Background(), allocReq(999, nil, "stu-1"))
    require.Error(t, err)
    assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestInactiveHostelRejectsPlacements(t *testing.T) {
    eng, _ := newEngine(t)
    h, rooms := seedHostel(t, eng, 2)

    _, err := eng.BulkUpdateStatus(context.Background(), []service.BulkStatusUpdate{
        {HostelID: h.ID, Status: model.HostelStatusUnderMaintenance},
    }, testActor)
    require.NoError(t, err)

    _, err = eng.Allocate(context.Background(), allocReq(h.ID, &rooms[0].ID, "stu-1"))
    require.Error(t, err)
    assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}
