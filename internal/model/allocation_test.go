package model

import (
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
)

func TestRecomputePayment(t *testing.T) {
    cases := []struct {
        name        string
        rent        int64
        deposit     int64
        paid        int64
        outstanding int64
        status      PaymentStatus
    }{
        {"nothing paid", 500, 200, 0, 700, PaymentPending},
        {"partial", 500, 200, 300, 400, PaymentPartial},
        {"settled", 500, 200, 700, 0, PaymentPaid},
        {"overpaid clamps to zero", 500, 200, 900, 0, PaymentPaid},
        {"free stay", 0, 0, 0, 0, PaymentPaid},
    }
    for _, tc := range cases {
        t.Run(tc.name, func(t *testing.T) {
            a := Allocation{MonthlyRent: tc.rent, SecurityDeposit: tc.deposit, PaidAmount: tc.paid}
            a.RecomputePayment()
            assert.Equal(t, tc.outstanding, a.OutstandingAmount)
            assert.Equal(t, tc.status, a.PaymentStatus)
        })
    }
}

func TestRecomputePaymentClearsOverdue(t *testing.T) {
    a := Allocation{MonthlyRent: 500, PaidAmount: 100, PaymentStatus: PaymentOverdue}
    a.RecomputePayment()
    // the reconciliation pass re-flags if the due date is still breached
    assert.Equal(t, PaymentPartial, a.PaymentStatus)
}

func TestOverdue(t *testing.T) {
    now := time.Now().UTC()
    past := now.Add(-time.Hour)
    future := now.Add(time.Hour)

    a := Allocation{OutstandingAmount: 100, NextPaymentDue: &past}
    assert.True(t, a.Overdue(now))

    a.NextPaymentDue = &future
    assert.False(t, a.Overdue(now))

    a.NextPaymentDue = nil
    assert.False(t, a.Overdue(now), "no due date means never overdue")

    settled := Allocation{OutstandingAmount: 0, NextPaymentDue: &past}
    assert.False(t, settled.Overdue(now))
}

func TestStatusPredicates(t *testing.T) {
    assert.True(t, AllocationStatusCheckedOut.Terminal())
    assert.True(t, AllocationStatusTerminated.Terminal())
    assert.False(t, AllocationStatusActive.Terminal())
    assert.False(t, AllocationStatusSuspended.Terminal())

    assert.True(t, HostelStatusActive.AcceptsPlacements())
    assert.False(t, HostelStatusUnderMaintenance.AcceptsPlacements())

    assert.True(t, RoomStatusAvailable.AdmitsPlacements())
    assert.True(t, RoomStatusOccupied.AdmitsPlacements())
    assert.False(t, RoomStatusQuarantine.AdmitsPlacements())
}

func TestCountersConsistent(t *testing.T) {
    h := Hostel{TotalBeds: 10, OccupiedBeds: 4, AvailableBeds: 6}
    assert.True(t, h.CountersConsistent())

    h.AvailableBeds = 7
    assert.False(t, h.CountersConsistent())

    r := Room{TotalBeds: 2, OccupiedBeds: 3, AvailableBeds: -1}
    assert.False(t, r.CountersConsistent())
}
