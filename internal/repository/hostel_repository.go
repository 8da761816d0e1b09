// Package repository implements the storage contracts of the service layer
// twice: MySQL repositories over database/sql for production and an
// in-memory store with optimistic versioning for tests and single-node use.
package repository

import (
    "context"
    "database/sql"
    "encoding/json"
    "errors"

    "github.com/go-sql-driver/mysql"

    "github.com/edunest/hostel-allocation/internal/apperr"
    "github.com/edunest/hostel-allocation/internal/model"
)

// runner is satisfied by both *sql.DB and *sql.Tx so the same query helpers
// serve plain reads and unit-of-work variants.
type runner interface {
    ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
    QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
    QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

const hostelCols = `id, school_id, code, name, hostel_type, status,
           total_beds, occupied_beds, available_beds,
           facilities, rules, pricing, created_at, updated_at`

// HostelRepo provides methods to work with hostels in the database.
type HostelRepo struct {
    db *sql.DB
}

// NewHostelRepo constructs a HostelRepo with the given DB handle.
func NewHostelRepo(db *sql.DB) *HostelRepo {
    return &HostelRepo{db: db}
}

func scanHostel(sc interface{ Scan(...interface{}) error }) (*model.Hostel, error) {
    var (
        h                  model.Hostel
        fac, rules, prices []byte
    )
    if err := sc.Scan(
        &h.ID, &h.SchoolID, &h.Code, &h.Name, &h.Type, &h.Status,
        &h.TotalBeds, &h.OccupiedBeds, &h.AvailableBeds,
        &fac, &rules, &prices, &h.CreatedAt, &h.UpdatedAt,
    ); err != nil {
        return nil, err
    }
    if len(fac) > 0 {
        if err := json.Unmarshal(fac, &h.Facilities); err != nil {
            return nil, err
        }
    }
    if len(rules) > 0 {
        if err := json.Unmarshal(rules, &h.Rules); err != nil {
            return nil, err
        }
    }
    if len(prices) > 0 {
        if err := json.Unmarshal(prices, &h.Pricing); err != nil {
            return nil, err
        }
    }
    return &h, nil
}

func getHostelByID(ctx context.Context, q runner, id uint64) (*model.Hostel, error) {
    const query = `SELECT ` + hostelCols + ` FROM hostels WHERE id = ?`
    h, err := scanHostel(q.QueryRowContext(ctx, query, id))
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return nil, apperr.NotFound("hostel", formatID(id))
        }
        return nil, err
    }
    return h, nil
}

// GetByID retrieves a hostel by its id.
func (r *HostelRepo) GetByID(ctx context.Context, id uint64) (*model.Hostel, error) {
    return getHostelByID(ctx, r.db, id)
}

// GetByIDTx retrieves a hostel inside an open transaction.
func (r *HostelRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Hostel, error) {
    return getHostelByID(ctx, tx, id)
}

// GetBySchool retrieves all hostels of a school ordered by code.
func (r *HostelRepo) GetBySchool(ctx context.Context, schoolID string) ([]*model.Hostel, error) {
    const query = `SELECT ` + hostelCols + ` FROM hostels WHERE school_id = ? ORDER BY code`
    rows, err := r.db.QueryContext(ctx, query, schoolID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()

    var result []*model.Hostel
    for rows.Next() {
        h, err := scanHostel(rows)
        if err != nil {
            return nil, err
        }
        result = append(result, h)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return result, nil
}

// InsertTx inserts a hostel record.  On success the hostel's ID is
// populated.  A duplicate (school_id, code) pair maps to ValidationError.
func (r *HostelRepo) InsertTx(ctx context.Context, tx *sql.Tx, h *model.Hostel) error {
    fac, err := json.Marshal(h.Facilities)
    if err != nil {
        return err
    }
    rules, err := json.Marshal(h.Rules)
    if err != nil {
        return err
    }
    prices, err := json.Marshal(h.Pricing)
    if err != nil {
        return err
    }
    const query = `INSERT INTO hostels
           (school_id, code, name, hostel_type, status,
            total_beds, occupied_beds, available_beds, facilities, rules, pricing)
           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
    res, err := tx.ExecContext(ctx, query,
        h.SchoolID, h.Code, h.Name, h.Type, h.Status,
        h.TotalBeds, h.OccupiedBeds, h.AvailableBeds, fac, rules, prices)
    if err != nil {
        var me *mysql.MySQLError
        if errors.As(err, &me) && me.Number == 1062 {
            return apperr.Validation("hostel code " + h.Code + " already exists for this school")
        }
        return err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return err
    }
    h.ID = uint64(id)
    return nil
}

// UpdateTx rewrites the mutable hostel columns.
func (r *HostelRepo) UpdateTx(ctx context.Context, tx *sql.Tx, h *model.Hostel) error {
    fac, err := json.Marshal(h.Facilities)
    if err != nil {
        return err
    }
    rules, err := json.Marshal(h.Rules)
    if err != nil {
        return err
    }
    prices, err := json.Marshal(h.Pricing)
    if err != nil {
        return err
    }
    const query = `UPDATE hostels
           SET name = ?, hostel_type = ?, status = ?,
               total_beds = ?, occupied_beds = ?, available_beds = ?,
               facilities = ?, rules = ?, pricing = ?, updated_at = CURRENT_TIMESTAMP
           WHERE id = ?`
    res, err := tx.ExecContext(ctx, query,
        h.Name, h.Type, h.Status,
        h.TotalBeds, h.OccupiedBeds, h.AvailableBeds, fac, rules, prices, h.ID)
    if err != nil {
        return err
    }
    if n, _ := res.RowsAffected(); n == 0 {
        // zero rows can also mean an identical update; confirm existence
        if _, err := getHostelByID(ctx, tx, h.ID); err != nil {
            return err
        }
    }
    return nil
}

// ResyncCountersTx recomputes the hostel's bed counters as the sum of its
// rooms' counters.  Called whenever a room's counters change so the
// aggregate invariant (occupied + available == total) holds at both levels.
func (r *HostelRepo) ResyncCountersTx(ctx context.Context, tx *sql.Tx, hostelID uint64) error {
    const query = `UPDATE hostels h
           LEFT JOIN (
               SELECT hostel_id,
                      COALESCE(SUM(total_beds), 0)     AS total,
                      COALESCE(SUM(occupied_beds), 0)  AS occupied,
                      COALESCE(SUM(available_beds), 0) AS available
               FROM rooms
               WHERE hostel_id = ?
               GROUP BY hostel_id
           ) r ON r.hostel_id = h.id
           SET h.total_beds     = COALESCE(r.total, 0),
               h.occupied_beds  = COALESCE(r.occupied, 0),
               h.available_beds = COALESCE(r.available, 0),
               h.updated_at     = CURRENT_TIMESTAMP
           WHERE h.id = ?`
    _, err := tx.ExecContext(ctx, query, hostelID, hostelID)
    return err
}
