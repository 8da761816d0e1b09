package service_test

import (
    "context"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/edunest/hostel-allocation/internal/apperr"
    "github.com/edunest/hostel-allocation/internal/service"
)

func TestOccupancyStatistics(t *testing.T) {
    eng, store := newEngine(t)
    h, rooms := seedHostel(t, eng, 2, 2)
    reports := service.NewReports(store)

    _, err := eng.Allocate(context.Background(), allocReq(h.ID, &rooms[0].ID, "stu-1"))
    require.NoError(t, err)

    stats, err := reports.Occupancy(context.Background(), testSchool)
    require.NoError(t, err)

    assert.Equal(t, 4, stats.TotalBeds)
    assert.Equal(t, 1, stats.OccupiedBeds)
    assert.Equal(t, 3, stats.AvailableBeds)
    assert.InDelta(t, 0.25, stats.OccupancyRate, 1e-9)
    require.Len(t, stats.Hostels, 1)
    assert.Equal(t, h.Code, stats.Hostels[0].Code)
    assert.InDelta(t, 0.25, stats.Hostels[0].OccupancyRate, 1e-9)
}

func TestOccupancyEmptySchool(t *testing.T) {
    _, store := newEngine(t)
    reports := service.NewReports(store)

    stats, err := reports.Occupancy(context.Background(), "school-without-hostels")
    require.NoError(t, err)
    assert.Zero(t, stats.TotalBeds)
    assert.Zero(t, stats.OccupancyRate, "empty school must not divide by zero")

    _, err = reports.Occupancy(context.Background(), "")
    assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestUtilizationReport(t *testing.T) {
    eng, store := newEngine(t)
    h, rooms := seedHostel(t, eng, 2, 2)
    reports := service.NewReports(store)
    ctx := context.Background()

    a1, err := eng.Allocate(ctx, allocReq(h.ID, &rooms[0].ID, "stu-1"))
    require.NoError(t, err)
    a2, err := eng.Allocate(ctx, allocReq(h.ID, &rooms[0].ID, "stu-2"))
    require.NoError(t, err)
    _, err = eng.Transfer(ctx, a2.ID, h.ID, rooms[1].ID, "room change", "warden-lead", testActor)
    require.NoError(t, err)
    _, err = eng.CheckOut(ctx, a1.ID, nil, "", service.CheckOutModeNormal, testActor)
    require.NoError(t, err)

    rep, err := reports.Utilization(ctx, testSchool, service.Period{})
    require.NoError(t, err)

    assert.Equal(t, 2, rep.Allocations)
    assert.Equal(t, 1, rep.Active)
    assert.Equal(t, 1, rep.Ended)
    assert.Equal(t, 1, rep.Transfers)
    assert.InDelta(t, 0.25, rep.BedUtilization, 1e-9) // one bed of four still held
}

func TestUtilizationPeriodBounds(t *testing.T) {
    eng, store := newEngine(t)
    h, rooms := seedHostel(t, eng, 2)
    reports := service.NewReports(store)
    ctx := context.Background()

    _, err := eng.Allocate(ctx, allocReq(h.ID, &rooms[0].ID, "stu-1"))
    require.NoError(t, err)

    past := service.Period{
        From: time.Now().UTC().Add(-48 * time.Hour),
        To:   time.Now().UTC().Add(-24 * time.Hour),
    }
    rep, err := reports.Utilization(ctx, testSchool, past)
    require.NoError(t, err)
    assert.Zero(t, rep.Allocations, "allocation dated now must fall outside a past window")

    current := service.Period{From: time.Now().UTC().Add(-time.Hour)}
    rep, err = reports.Utilization(ctx, testSchool, current)
    require.NoError(t, err)
    assert.Equal(t, 1, rep.Allocations)
}

func TestRevenueReport(t *testing.T) {
    eng, store := newEngine(t)
    h, rooms := seedHostel(t, eng, 2, 2)
    reports := service.NewReports(store)
    ctx := context.Background()

    r1 := allocReq(h.ID, &rooms[0].ID, "stu-1")
    r1.MonthlyRent, r1.SecurityDeposit = 500, 200
    a1, err := eng.Allocate(ctx, r1)
    require.NoError(t, err)
    _, err = eng.RecordPayment(ctx, a1.ID, 300, nil, testActor)
    require.NoError(t, err)

    r2 := allocReq(h.ID, &rooms[0].ID, "stu-2")
    r2.MonthlyRent, r2.SecurityDeposit = 1000, 0
    a2, err := eng.Allocate(ctx, r2)
    require.NoError(t, err)
    _, err = eng.RecordPayment(ctx, a2.ID, 1000, nil, testActor)
    require.NoError(t, err)

    rep, err := reports.Revenue(ctx, testSchool, service.Period{})
    require.NoError(t, err)

    assert.Equal(t, int64(1700), rep.Billed)
    assert.Equal(t, int64(1300), rep.Collected)
    assert.Equal(t, int64(400), rep.Outstanding)
    assert.Equal(t, 1, rep.Paid)
    assert.Equal(t, 1, rep.Partial)
    assert.Equal(t, 0, rep.Pending)
}
