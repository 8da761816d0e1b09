package service

import (
    "context"
    "time"

    "github.com/edunest/hostel-allocation/internal/apperr"
    "github.com/edunest/hostel-allocation/internal/model"
)

// Reports is the read-only reporting aggregator.  It recomputes projections
// from current store state on every call and holds no mutation capability,
// so it carries no concurrency risk and never takes locks that would block
// allocation traffic.
type Reports struct {
    store Store
}

// NewReports builds the aggregator over the given store.
func NewReports(store Store) *Reports {
    if store == nil {
        panic("nil store passed to NewReports")
    }
    return &Reports{store: store}
}

// HostelOccupancy is the occupancy projection for a single hostel.
type HostelOccupancy struct {
    HostelID      uint64           `json:"hostel_id"`
    Code          string           `json:"code"`
    Name          string           `json:"name"`
    Type          model.HostelType `json:"type"`
    TotalBeds     int              `json:"total_beds"`
    OccupiedBeds  int              `json:"occupied_beds"`
    AvailableBeds int              `json:"available_beds"`
    OccupancyRate float64          `json:"occupancy_rate"` // occupied / total, 0 for empty hostels
}

// OccupancyStatistics is the school-wide occupancy projection.
type OccupancyStatistics struct {
    SchoolID      string            `json:"school_id"`
    Hostels       []HostelOccupancy `json:"hostels"`
    TotalBeds     int               `json:"total_beds"`
    OccupiedBeds  int               `json:"occupied_beds"`
    AvailableBeds int               `json:"available_beds"`
    OccupancyRate float64           `json:"occupancy_rate"`
    GeneratedAt   time.Time         `json:"generated_at"`
}

// Occupancy computes current occupancy per hostel and school-wide.
func (r *Reports) Occupancy(ctx context.Context, schoolID string) (*OccupancyStatistics, error) {
    if schoolID == "" {
        return nil, apperr.Validation("school_id is required")
    }
    hostels, err := r.store.HostelsBySchool(ctx, schoolID)
    if err != nil {
        return nil, err
    }
    stats := &OccupancyStatistics{
        SchoolID:    schoolID,
        Hostels:     make([]HostelOccupancy, 0, len(hostels)),
        GeneratedAt: time.Now().UTC(),
    }
    for _, h := range hostels {
        stats.TotalBeds += h.TotalBeds
        stats.OccupiedBeds += h.OccupiedBeds
        stats.AvailableBeds += h.AvailableBeds
        stats.Hostels = append(stats.Hostels, HostelOccupancy{
            HostelID:      h.ID,
            Code:          h.Code,
            Name:          h.Name,
            Type:          h.Type,
            TotalBeds:     h.TotalBeds,
            OccupiedBeds:  h.OccupiedBeds,
            AvailableBeds: h.AvailableBeds,
            OccupancyRate: rate(h.OccupiedBeds, h.TotalBeds),
        })
    }
    stats.OccupancyRate = rate(stats.OccupiedBeds, stats.TotalBeds)
    return stats, nil
}

// Period bounds a report; zero times leave that bound open.
type Period struct {
    From time.Time
    To   time.Time
}

// UtilizationReport summarises allocation traffic for a school over a
// period.
type UtilizationReport struct {
    SchoolID        string    `json:"school_id"`
    Period          Period    `json:"period"`
    Allocations     int       `json:"allocations"`      // allocations dated in the period
    Active          int       `json:"active"`           // currently active among them
    Suspended       int       `json:"suspended"`
    Ended           int       `json:"ended"`            // terminated or checked out
    Transfers       int       `json:"transfers"`        // transfer-history entries
    BedUtilization  float64   `json:"bed_utilization"`  // occupied / total beds right now
    AverageStayDays float64   `json:"average_stay_days"`
    GeneratedAt     time.Time `json:"generated_at"`
}

// Utilization computes the utilization projection for a school and period.
func (r *Reports) Utilization(ctx context.Context, schoolID string, p Period) (*UtilizationReport, error) {
    if schoolID == "" {
        return nil, apperr.Validation("school_id is required")
    }
    allocs, err := r.store.AllocationsBySchool(ctx, schoolID, p.From, p.To)
    if err != nil {
        return nil, err
    }
    hostels, err := r.store.HostelsBySchool(ctx, schoolID)
    if err != nil {
        return nil, err
    }
    rep := &UtilizationReport{SchoolID: schoolID, Period: p, GeneratedAt: time.Now().UTC()}
    totalBeds, occupied := 0, 0
    for _, h := range hostels {
        totalBeds += h.TotalBeds
        occupied += h.OccupiedBeds
    }
    var staySum float64
    stays := 0
    for _, a := range allocs {
        rep.Allocations++
        switch a.Status {
        case model.AllocationStatusActive:
            rep.Active++
        case model.AllocationStatusSuspended:
            rep.Suspended++
        case model.AllocationStatusTerminated, model.AllocationStatusCheckedOut:
            rep.Ended++
        }
        rep.Transfers += len(a.TransferHistory)
        if a.ActualCheckInDate != nil {
            end := time.Now().UTC()
            if a.ActualCheckOutDate != nil {
                end = *a.ActualCheckOutDate
            }
            staySum += end.Sub(*a.ActualCheckInDate).Hours() / 24
            stays++
        }
    }
    rep.BedUtilization = rate(occupied, totalBeds)
    if stays > 0 {
        rep.AverageStayDays = staySum / float64(stays)
    }
    return rep, nil
}

// RevenueReport summarises the ledger's financial position for a school
// over a period.  Amounts are in the smallest currency unit.
type RevenueReport struct {
    SchoolID    string    `json:"school_id"`
    Period      Period    `json:"period"`
    Billed      int64     `json:"billed"`      // rent + deposit across allocations
    Collected   int64     `json:"collected"`   // payments received
    Outstanding int64     `json:"outstanding"` // balance still due
    Paid        int       `json:"paid_count"`
    Partial     int       `json:"partial_count"`
    Pending     int       `json:"pending_count"`
    Overdue     int       `json:"overdue_count"`
    GeneratedAt time.Time `json:"generated_at"`
}

// Revenue computes the revenue projection for a school and period.
func (r *Reports) Revenue(ctx context.Context, schoolID string, p Period) (*RevenueReport, error) {
    if schoolID == "" {
        return nil, apperr.Validation("school_id is required")
    }
    allocs, err := r.store.AllocationsBySchool(ctx, schoolID, p.From, p.To)
    if err != nil {
        return nil, err
    }
    rep := &RevenueReport{SchoolID: schoolID, Period: p, GeneratedAt: time.Now().UTC()}
    for _, a := range allocs {
        rep.Billed += a.TotalDue()
        rep.Collected += a.PaidAmount
        rep.Outstanding += a.OutstandingAmount
        switch a.PaymentStatus {
        case model.PaymentPaid:
            rep.Paid++
        case model.PaymentPartial:
            rep.Partial++
        case model.PaymentPending:
            rep.Pending++
        case model.PaymentOverdue:
            rep.Overdue++
        }
    }
    return rep, nil
}

func rate(part, whole int) float64 {
    if whole == 0 {
        return 0
    }
    return float64(part) / float64(whole)
}
