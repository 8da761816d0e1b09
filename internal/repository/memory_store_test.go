package repository

import (
    "context"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/edunest/hostel-allocation/internal/apperr"
    "github.com/edunest/hostel-allocation/internal/model"
    "github.com/edunest/hostel-allocation/internal/service"
)

// seed creates a hostel with one room holding the given beds, committed in
// separate units of work the way the engine does it.
func seed(t *testing.T, s *MemoryStore, beds int) (*model.Hostel, *model.Room) {
    t.Helper()
    ctx := context.Background()

    h := &model.Hostel{
        SchoolID: "school-1",
        Code:     "BH-A",
        Name:     "Block A",
        Type:     model.HostelTypeBoys,
        Status:   model.HostelStatusActive,
    }
    tx, err := s.Begin(ctx)
    require.NoError(t, err)
    require.NoError(t, tx.InsertHostel(ctx, h))
    require.NoError(t, tx.Commit())

    r := &model.Room{
        HostelID:      h.ID,
        RoomNumber:    "R01",
        Status:        model.RoomStatusAvailable,
        TotalBeds:     beds,
        AvailableBeds: beds,
    }
    tx, err = s.Begin(ctx)
    require.NoError(t, err)
    require.NoError(t, tx.InsertRoom(ctx, r))
    require.NoError(t, tx.Commit())
    return h, r
}

func alloc(h *model.Hostel, r *model.Room, id, student string) *model.Allocation {
    now := time.Now().UTC()
    return &model.Allocation{
        ID:             id,
        SchoolID:       h.SchoolID,
        StudentID:      student,
        AcademicYear:   "2025-2026",
        HostelID:       h.ID,
        RoomID:         r.ID,
        Type:           model.AllocationTypeRegular,
        Status:         model.AllocationStatusActive,
        CheckInStatus:  model.CheckInPending,
        CheckOutStatus: model.CheckOutPending,
        AllocationDate: now,
        CreatedBy:      "warden-7",
        UpdatedBy:      "warden-7",
        CreatedAt:      now,
        UpdatedAt:      now,
    }
}

func TestMemoryStoreCommitConflict(t *testing.T) {
    s := NewMemoryStore()
    h, r := seed(t, s, 2)
    ctx := context.Background()

    tx1, err := s.Begin(ctx)
    require.NoError(t, err)
    tx2, err := s.Begin(ctx)
    require.NoError(t, err)

    require.NoError(t, tx1.ReserveBed(ctx, h.ID, r.ID))
    require.NoError(t, tx2.ReserveBed(ctx, h.ID, r.ID))

    require.NoError(t, tx1.Commit())

    // tx2 read the room at the old version; its commit must fail whole
    err = tx2.Commit()
    require.Error(t, err)
    assert.Equal(t, apperr.KindContention, apperr.KindOf(err))

    // only tx1's reservation landed
    got, err := s.RoomsByHostel(ctx, h.ID)
    require.NoError(t, err)
    require.Len(t, got, 1)
    assert.Equal(t, 1, got[0].OccupiedBeds)
    assert.Equal(t, 1, got[0].AvailableBeds)
}

func TestMemoryStoreReserveExhausted(t *testing.T) {
    s := NewMemoryStore()
    h, r := seed(t, s, 1)
    ctx := context.Background()

    tx, err := s.Begin(ctx)
    require.NoError(t, err)
    require.NoError(t, tx.ReserveBed(ctx, h.ID, r.ID))

    err = tx.ReserveBed(ctx, h.ID, r.ID)
    require.Error(t, err)
    assert.Equal(t, apperr.KindCapacityExhausted, apperr.KindOf(err))
    require.NoError(t, tx.Rollback())

    // nothing from the rolled-back unit is visible
    hs, err := s.HostelByID(ctx, h.ID)
    require.NoError(t, err)
    assert.Equal(t, 0, hs.OccupiedBeds)
}

func TestMemoryStoreReleaseClamped(t *testing.T) {
    s := NewMemoryStore()
    h, r := seed(t, s, 2)
    ctx := context.Background()

    tx, err := s.Begin(ctx)
    require.NoError(t, err)
    require.NoError(t, tx.ReleaseBed(ctx, h.ID, r.ID))
    require.NoError(t, tx.Commit())

    got, err := s.HostelByID(ctx, h.ID)
    require.NoError(t, err)
    assert.Equal(t, 0, got.OccupiedBeds, "release with nothing held is a no-op")
    assert.Equal(t, 2, got.AvailableBeds)
}

func TestMemoryStoreUniqueActiveAtCommit(t *testing.T) {
    s := NewMemoryStore()
    h, r := seed(t, s, 4)
    ctx := context.Background()

    tx1, err := s.Begin(ctx)
    require.NoError(t, err)
    tx2, err := s.Begin(ctx)
    require.NoError(t, err)

    // both units check for an active allocation, see none, and insert
    a1, err := tx1.ActiveAllocation(ctx, "stu-1", "2025-2026")
    require.NoError(t, err)
    require.Nil(t, a1)
    a2, err := tx2.ActiveAllocation(ctx, "stu-1", "2025-2026")
    require.NoError(t, err)
    require.Nil(t, a2)

    require.NoError(t, tx1.InsertAllocation(ctx, alloc(h, r, "alloc-1", "stu-1")))
    require.NoError(t, tx2.InsertAllocation(ctx, alloc(h, r, "alloc-2", "stu-1")))

    require.NoError(t, tx1.Commit())

    err = tx2.Commit()
    require.Error(t, err)
    assert.Equal(t, apperr.KindDuplicateAllocation, apperr.KindOf(err))

    // the losing row must not exist
    _, err = s.AllocationByID(ctx, "alloc-2")
    assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func mkHostel(code string) *model.Hostel {
    return &model.Hostel{
        SchoolID: "school-1",
        Code:     code,
        Name:     "Block " + code,
        Type:     model.HostelTypeBoys,
        Status:   model.HostelStatusActive,
    }
}

func TestMemoryStoreUniqueHostelCodeAtCommit(t *testing.T) {
    s := NewMemoryStore()
    ctx := context.Background()

    tx1, err := s.Begin(ctx)
    require.NoError(t, err)
    tx2, err := s.Begin(ctx)
    require.NoError(t, err)

    // neither unit sees a committed row at insert time
    h1, h2 := mkHostel("BH-A"), mkHostel("BH-A")
    require.NoError(t, tx1.InsertHostel(ctx, h1))
    require.NoError(t, tx2.InsertHostel(ctx, h2))

    require.NoError(t, tx1.Commit())

    err = tx2.Commit()
    require.Error(t, err)
    assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

    // the losing row must not exist
    _, err = s.HostelByID(ctx, h2.ID)
    assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

    // a duplicate staged inside one unit is caught at insert time
    tx3, err := s.Begin(ctx)
    require.NoError(t, err)
    defer func() { _ = tx3.Rollback() }()
    require.NoError(t, tx3.InsertHostel(ctx, mkHostel("BH-B")))
    err = tx3.InsertHostel(ctx, mkHostel("BH-B"))
    require.Error(t, err)
    assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestMemoryStoreNotFound(t *testing.T) {
    s := NewMemoryStore()
    ctx := context.Background()

    _, err := s.HostelByID(ctx, 42)
    assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

    _, err = s.AllocationByID(ctx, "missing")
    assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

    tx, err := s.Begin(ctx)
    require.NoError(t, err)
    defer func() { _ = tx.Rollback() }()
    _, err = tx.RoomByID(ctx, 42)
    assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestMemoryStoreOverdueCandidates(t *testing.T) {
    s := NewMemoryStore()
    h, r := seed(t, s, 4)
    ctx := context.Background()
    now := time.Now().UTC()
    past := now.Add(-24 * time.Hour)

    due := alloc(h, r, "alloc-due", "stu-1")
    due.OutstandingAmount = 500
    due.PaymentStatus = model.PaymentPending
    due.NextPaymentDue = &past

    settled := alloc(h, r, "alloc-settled", "stu-2")
    settled.NextPaymentDue = &past // no balance outstanding

    flagged := alloc(h, r, "alloc-flagged", "stu-3")
    flagged.OutstandingAmount = 500
    flagged.PaymentStatus = model.PaymentOverdue
    flagged.NextPaymentDue = &past

    tx, err := s.Begin(ctx)
    require.NoError(t, err)
    for _, a := range []*model.Allocation{due, settled, flagged} {
        require.NoError(t, tx.InsertAllocation(ctx, a))
    }
    require.NoError(t, tx.Commit())

    tx, err = s.Begin(ctx)
    require.NoError(t, err)
    defer func() { _ = tx.Rollback() }()
    got, err := tx.OverdueCandidates(ctx, now)
    require.NoError(t, err)
    require.Len(t, got, 1)
    assert.Equal(t, "alloc-due", got[0].ID)
}

func TestMemoryStoreSchoolPeriodFilter(t *testing.T) {
    s := NewMemoryStore()
    h, r := seed(t, s, 4)
    ctx := context.Background()
    now := time.Now().UTC()

    old := alloc(h, r, "alloc-old", "stu-1")
    old.AllocationDate = now.Add(-72 * time.Hour)
    recent := alloc(h, r, "alloc-recent", "stu-2")

    tx, err := s.Begin(ctx)
    require.NoError(t, err)
    require.NoError(t, tx.InsertAllocation(ctx, old))
    require.NoError(t, tx.InsertAllocation(ctx, recent))
    require.NoError(t, tx.Commit())

    got, err := s.AllocationsBySchool(ctx, h.SchoolID, now.Add(-time.Hour), time.Time{})
    require.NoError(t, err)
    require.Len(t, got, 1)
    assert.Equal(t, "alloc-recent", got[0].ID)

    all, err := s.AllocationsBySchool(ctx, h.SchoolID, time.Time{}, time.Time{})
    require.NoError(t, err)
    assert.Len(t, all, 2)
}

// compile-time check that both stores satisfy the service contract
var _ service.Store = (*MemoryStore)(nil)
var _ service.Store = (*MySQLStore)(nil)
