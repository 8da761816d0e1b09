package repository

import (
    "context"
    "database/sql"
    "encoding/json"
    "errors"
    "time"

    "github.com/go-sql-driver/mysql"

    "github.com/edunest/hostel-allocation/internal/apperr"
    "github.com/edunest/hostel-allocation/internal/model"
)

const allocationCols = `id, school_id, student_id, academic_year,
           hostel_id, room_id, bed_number,
           allocation_type, status, check_in_status, check_out_status,
           allocation_date, expected_check_in, actual_check_in,
           expected_check_out, actual_check_out,
           monthly_rent, security_deposit, paid_amount, outstanding_amount,
           payment_status, next_payment_due, transfer_history,
           suspension_reason, notes, created_by, updated_by, created_at, updated_at`

// AllocationRepo provides methods to work with the allocation ledger in the
// database.
type AllocationRepo struct {
    db *sql.DB
}

// NewAllocationRepo constructs an AllocationRepo with the given DB handle.
func NewAllocationRepo(db *sql.DB) *AllocationRepo {
    return &AllocationRepo{db: db}
}

func nullTime(t *time.Time) sql.NullTime {
    if t == nil {
        return sql.NullTime{}
    }
    return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
    if !nt.Valid {
        return nil
    }
    t := nt.Time
    return &t
}

func nullString(s *string) sql.NullString {
    if s == nil {
        return sql.NullString{}
    }
    return sql.NullString{String: *s, Valid: true}
}

func scanAllocation(sc interface{ Scan(...interface{}) error }) (*model.Allocation, error) {
    var a model.Allocation
    var bed sql.NullString
    var expIn, actIn, expOut, actOut, due sql.NullTime
    var history []byte
    if err := sc.Scan(
        &a.ID, &a.SchoolID, &a.StudentID, &a.AcademicYear,
        &a.HostelID, &a.RoomID, &bed,
        &a.Type, &a.Status, &a.CheckInStatus, &a.CheckOutStatus,
        &a.AllocationDate, &expIn, &actIn, &expOut, &actOut,
        &a.MonthlyRent, &a.SecurityDeposit, &a.PaidAmount, &a.OutstandingAmount,
        &a.PaymentStatus, &due, &history,
        &a.SuspensionReason, &a.Notes, &a.CreatedBy, &a.UpdatedBy, &a.CreatedAt, &a.UpdatedAt,
    ); err != nil {
        return nil, err
    }
    if bed.Valid {
        a.BedNumber = &bed.String
    }
    a.ExpectedCheckInDate = timePtr(expIn)
    a.ActualCheckInDate = timePtr(actIn)
    a.ExpectedCheckOutDate = timePtr(expOut)
    a.ActualCheckOutDate = timePtr(actOut)
    a.NextPaymentDue = timePtr(due)
    if len(history) > 0 {
        if err := json.Unmarshal(history, &a.TransferHistory); err != nil {
            return nil, err
        }
    }
    return &a, nil
}

func scanAllocations(rows *sql.Rows) ([]*model.Allocation, error) {
    defer rows.Close()
    var result []*model.Allocation
    for rows.Next() {
        a, err := scanAllocation(rows)
        if err != nil {
            return nil, err
        }
        result = append(result, a)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return result, nil
}

func getAllocationByID(ctx context.Context, q runner, id, suffix string) (*model.Allocation, error) {
    query := `SELECT ` + allocationCols + ` FROM allocations WHERE id = ?` + suffix
    a, err := scanAllocation(q.QueryRowContext(ctx, query, id))
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return nil, apperr.NotFound("allocation", id)
        }
        return nil, err
    }
    return a, nil
}

// GetByID retrieves an allocation by its id.
func (r *AllocationRepo) GetByID(ctx context.Context, id string) (*model.Allocation, error) {
    return getAllocationByID(ctx, r.db, id, "")
}

// GetByIDTx retrieves an allocation inside an open transaction and locks
// the row so concurrent lifecycle operations on it serialize.
func (r *AllocationRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id string) (*model.Allocation, error) {
    return getAllocationByID(ctx, tx, id, " FOR UPDATE")
}

// GetByStudent retrieves a student's allocations, newest first.
func (r *AllocationRepo) GetByStudent(ctx context.Context, studentID string) ([]*model.Allocation, error) {
    const query = `SELECT ` + allocationCols + ` FROM allocations
           WHERE student_id = ? ORDER BY allocation_date DESC, id`
    rows, err := r.db.QueryContext(ctx, query, studentID)
    if err != nil {
        return nil, err
    }
    return scanAllocations(rows)
}

// GetBySchool retrieves a school's allocations whose allocation date falls
// in [from, to); zero times leave that bound open.
func (r *AllocationRepo) GetBySchool(ctx context.Context, schoolID string, from, to time.Time) ([]*model.Allocation, error) {
    query := `SELECT ` + allocationCols + ` FROM allocations WHERE school_id = ?`
    args := []interface{}{schoolID}
    if !from.IsZero() {
        query += ` AND allocation_date >= ?`
        args = append(args, from)
    }
    if !to.IsZero() {
        query += ` AND allocation_date < ?`
        args = append(args, to)
    }
    query += ` ORDER BY allocation_date, id`
    rows, err := r.db.QueryContext(ctx, query, args...)
    if err != nil {
        return nil, err
    }
    return scanAllocations(rows)
}

// ActiveTx returns the active allocation for the (student, academic year)
// pair or nil when none exists.  The row is locked so a racing duplicate
// check waits for the in-flight lifecycle operation to finish.
func (r *AllocationRepo) ActiveTx(ctx context.Context, tx *sql.Tx, studentID, academicYear string) (*model.Allocation, error) {
    const query = `SELECT ` + allocationCols + ` FROM allocations
           WHERE student_id = ? AND academic_year = ? AND status = 'active'
           LIMIT 1 FOR UPDATE`
    a, err := scanAllocation(tx.QueryRowContext(ctx, query, studentID, academicYear))
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return nil, nil
        }
        return nil, err
    }
    return a, nil
}

// InsertTx inserts a ledger row.  The unique index on the generated
// active_key column enforces one active allocation per (student, academic
// year); a violation maps to DuplicateAllocation.
func (r *AllocationRepo) InsertTx(ctx context.Context, tx *sql.Tx, a *model.Allocation) error {
    history, err := json.Marshal(a.TransferHistory)
    if err != nil {
        return err
    }
    const query = `INSERT INTO allocations
           (id, school_id, student_id, academic_year,
            hostel_id, room_id, bed_number,
            allocation_type, status, check_in_status, check_out_status,
            allocation_date, expected_check_in, actual_check_in,
            expected_check_out, actual_check_out,
            monthly_rent, security_deposit, paid_amount, outstanding_amount,
            payment_status, next_payment_due, transfer_history,
            suspension_reason, notes, created_by, updated_by)
           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
    _, err = tx.ExecContext(ctx, query,
        a.ID, a.SchoolID, a.StudentID, a.AcademicYear,
        a.HostelID, a.RoomID, nullString(a.BedNumber),
        a.Type, a.Status, a.CheckInStatus, a.CheckOutStatus,
        a.AllocationDate, nullTime(a.ExpectedCheckInDate), nullTime(a.ActualCheckInDate),
        nullTime(a.ExpectedCheckOutDate), nullTime(a.ActualCheckOutDate),
        a.MonthlyRent, a.SecurityDeposit, a.PaidAmount, a.OutstandingAmount,
        a.PaymentStatus, nullTime(a.NextPaymentDue), history,
        a.SuspensionReason, a.Notes, a.CreatedBy, a.UpdatedBy)
    if err != nil {
        var me *mysql.MySQLError
        if errors.As(err, &me) && me.Number == 1062 {
            return apperr.DuplicateAllocation(a.StudentID, a.AcademicYear)
        }
        return err
    }
    return nil
}

// UpdateTx rewrites the mutable ledger columns.  Reactivating while another
// active allocation exists for the same (student, academic year) trips the
// same unique index as InsertTx.
func (r *AllocationRepo) UpdateTx(ctx context.Context, tx *sql.Tx, a *model.Allocation) error {
    history, err := json.Marshal(a.TransferHistory)
    if err != nil {
        return err
    }
    const query = `UPDATE allocations
           SET hostel_id = ?, room_id = ?, bed_number = ?,
               allocation_type = ?, status = ?, check_in_status = ?, check_out_status = ?,
               expected_check_in = ?, actual_check_in = ?,
               expected_check_out = ?, actual_check_out = ?,
               monthly_rent = ?, security_deposit = ?, paid_amount = ?, outstanding_amount = ?,
               payment_status = ?, next_payment_due = ?, transfer_history = ?,
               suspension_reason = ?, notes = ?, updated_by = ?, updated_at = CURRENT_TIMESTAMP
           WHERE id = ?`
    _, err = tx.ExecContext(ctx, query,
        a.HostelID, a.RoomID, nullString(a.BedNumber),
        a.Type, a.Status, a.CheckInStatus, a.CheckOutStatus,
        nullTime(a.ExpectedCheckInDate), nullTime(a.ActualCheckInDate),
        nullTime(a.ExpectedCheckOutDate), nullTime(a.ActualCheckOutDate),
        a.MonthlyRent, a.SecurityDeposit, a.PaidAmount, a.OutstandingAmount,
        a.PaymentStatus, nullTime(a.NextPaymentDue), history,
        a.SuspensionReason, a.Notes, a.UpdatedBy, a.ID)
    if err != nil {
        var me *mysql.MySQLError
        if errors.As(err, &me) && me.Number == 1062 {
            return apperr.DuplicateAllocation(a.StudentID, a.AcademicYear)
        }
        return err
    }
    return nil
}

// OverdueCandidatesTx returns non-terminal allocations with an outstanding
// balance past their due date not yet flagged overdue, locked for the
// reconciliation pass to update.
func (r *AllocationRepo) OverdueCandidatesTx(ctx context.Context, tx *sql.Tx, asOf time.Time) ([]*model.Allocation, error) {
    const query = `SELECT ` + allocationCols + ` FROM allocations
           WHERE status NOT IN ('checked_out', 'terminated')
             AND payment_status <> 'overdue'
             AND outstanding_amount > 0
             AND next_payment_due IS NOT NULL
             AND next_payment_due < ?
           ORDER BY id
           FOR UPDATE`
    rows, err := tx.QueryContext(ctx, query, asOf)
    if err != nil {
        return nil, err
    }
    return scanAllocations(rows)
}
