package service

import (
    "context"

    "github.com/edunest/hostel-allocation/internal/apperr"
    "github.com/edunest/hostel-allocation/internal/model"
)

// BulkStatusUpdate targets one hostel with a new status.
type BulkStatusUpdate struct {
    HostelID uint64             `json:"hostel_id"`
    Status   model.HostelStatus `json:"status"`
}

// BulkFacilityUpdate replaces one hostel's facility list.
type BulkFacilityUpdate struct {
    HostelID   uint64           `json:"hostel_id"`
    Facilities []model.Facility `json:"facilities"`
}

// BulkItemResult reports the outcome for a single hostel in a bulk call.
type BulkItemResult struct {
    HostelID uint64      `json:"hostel_id"`
    OK       bool        `json:"ok"`
    Kind     apperr.Kind `json:"kind,omitempty"`
    Error    string      `json:"error,omitempty"`
}

// BulkReport is the partial-success report of a bulk operation.
type BulkReport struct {
    Succeeded int              `json:"succeeded"`
    Failed    int              `json:"failed"`
    Items     []BulkItemResult `json:"items"`
}

func (r *BulkReport) add(hostelID uint64, err error) {
    item := BulkItemResult{HostelID: hostelID, OK: err == nil}
    if err != nil {
        item.Kind = apperr.KindOf(err)
        item.Error = err.Error()
        r.Failed++
    } else {
        r.Succeeded++
    }
    r.Items = append(r.Items, item)
}

// BulkUpdateStatus applies status changes hostel by hostel.  Each hostel
// runs in its own unit of work so one failure never aborts the others; the
// caller receives a per-item report.
func (e *Engine) BulkUpdateStatus(ctx context.Context, updates []BulkStatusUpdate, actor string) (*BulkReport, error) {
    if actor == "" {
        return nil, apperr.Validation("actor is required")
    }
    if len(updates) == 0 {
        return nil, apperr.Validation("no updates supplied")
    }
    report := &BulkReport{}
    for _, u := range updates {
        report.add(u.HostelID, e.setHostelStatus(ctx, u.HostelID, u.Status))
    }
    return report, nil
}

func (e *Engine) setHostelStatus(ctx context.Context, hostelID uint64, status model.HostelStatus) error {
    if !status.Valid() {
        return apperr.Validation("unknown hostel status: " + string(status))
    }
    return e.run(ctx, "update-hostel-status", func(ctx context.Context, tx Tx) error {
        h, err := tx.HostelByID(ctx, hostelID)
        if err != nil {
            return err
        }
        h.Status = status
        return tx.UpdateHostel(ctx, h)
    })
}

// BulkUpdateFacilities replaces facility lists hostel by hostel with the
// same per-item failure isolation as BulkUpdateStatus.
func (e *Engine) BulkUpdateFacilities(ctx context.Context, updates []BulkFacilityUpdate, actor string) (*BulkReport, error) {
    if actor == "" {
        return nil, apperr.Validation("actor is required")
    }
    if len(updates) == 0 {
        return nil, apperr.Validation("no updates supplied")
    }
    report := &BulkReport{}
    for _, u := range updates {
        report.add(u.HostelID, e.setHostelFacilities(ctx, u.HostelID, u.Facilities))
    }
    return report, nil
}

func (e *Engine) setHostelFacilities(ctx context.Context, hostelID uint64, facilities []model.Facility) error {
    for _, f := range facilities {
        if f.Name == "" {
            return apperr.Validation("facility name is required")
        }
        if f.Quantity < 0 {
            return apperr.Validation("facility quantity must not be negative")
        }
    }
    return e.run(ctx, "update-hostel-facilities", func(ctx context.Context, tx Tx) error {
        h, err := tx.HostelByID(ctx, hostelID)
        if err != nil {
            return err
        }
        h.Facilities = facilities
        return tx.UpdateHostel(ctx, h)
    })
}
