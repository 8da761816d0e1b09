package repository

import (
    "context"
    "database/sql"
    "errors"

    "github.com/go-sql-driver/mysql"

    "github.com/edunest/hostel-allocation/internal/apperr"
    "github.com/edunest/hostel-allocation/internal/model"
)

const roomCols = `id, hostel_id, room_number, floor, status,
           total_beds, occupied_beds, available_beds, created_at, updated_at`

// RoomRepo provides methods to work with rooms in the database.
type RoomRepo struct {
    db *sql.DB
}

// NewRoomRepo constructs a RoomRepo with the given DB handle.
func NewRoomRepo(db *sql.DB) *RoomRepo {
    return &RoomRepo{db: db}
}

func scanRoom(sc interface{ Scan(...interface{}) error }) (*model.Room, error) {
    var r model.Room
    if err := sc.Scan(
        &r.ID, &r.HostelID, &r.RoomNumber, &r.Floor, &r.Status,
        &r.TotalBeds, &r.OccupiedBeds, &r.AvailableBeds, &r.CreatedAt, &r.UpdatedAt,
    ); err != nil {
        return nil, err
    }
    return &r, nil
}

func getRoomByID(ctx context.Context, q runner, id uint64) (*model.Room, error) {
    const query = `SELECT ` + roomCols + ` FROM rooms WHERE id = ?`
    r, err := scanRoom(q.QueryRowContext(ctx, query, id))
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return nil, apperr.NotFound("room", formatID(id))
        }
        return nil, err
    }
    return r, nil
}

func getRoomsByHostel(ctx context.Context, q runner, hostelID uint64) ([]*model.Room, error) {
    const query = `SELECT ` + roomCols + ` FROM rooms WHERE hostel_id = ? ORDER BY room_number`
    rows, err := q.QueryContext(ctx, query, hostelID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()

    var result []*model.Room
    for rows.Next() {
        r, err := scanRoom(rows)
        if err != nil {
            return nil, err
        }
        result = append(result, r)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return result, nil
}

// GetByID retrieves a room by its id.
func (r *RoomRepo) GetByID(ctx context.Context, id uint64) (*model.Room, error) {
    return getRoomByID(ctx, r.db, id)
}

// GetByIDTx retrieves a room inside an open transaction.
func (r *RoomRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Room, error) {
    return getRoomByID(ctx, tx, id)
}

// GetByHostel retrieves all rooms of a hostel ordered by room_number.
func (r *RoomRepo) GetByHostel(ctx context.Context, hostelID uint64) ([]*model.Room, error) {
    return getRoomsByHostel(ctx, r.db, hostelID)
}

// GetByHostelTx retrieves a hostel's rooms inside an open transaction.
func (r *RoomRepo) GetByHostelTx(ctx context.Context, tx *sql.Tx, hostelID uint64) ([]*model.Room, error) {
    return getRoomsByHostel(ctx, tx, hostelID)
}

// InsertTx inserts a room record.  On success the room's ID is populated.
// A duplicate (hostel_id, room_number) pair maps to ValidationError.
func (r *RoomRepo) InsertTx(ctx context.Context, tx *sql.Tx, room *model.Room) error {
    const query = `INSERT INTO rooms
           (hostel_id, room_number, floor, status, total_beds, occupied_beds, available_beds)
           VALUES (?, ?, ?, ?, ?, ?, ?)`
    res, err := tx.ExecContext(ctx, query,
        room.HostelID, room.RoomNumber, room.Floor, room.Status,
        room.TotalBeds, room.OccupiedBeds, room.AvailableBeds)
    if err != nil {
        var me *mysql.MySQLError
        if errors.As(err, &me) && me.Number == 1062 {
            return apperr.Validation("room number " + room.RoomNumber + " already exists in this hostel")
        }
        return err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return err
    }
    room.ID = uint64(id)
    return nil
}

// ReserveTx performs the indivisible check-and-decrement: one statement
// that takes a bed only while availability remains, so two racing
// reservations can never both succeed on the last bed.  Zero affected rows
// means the capacity is exhausted (or the room does not belong to the
// hostel).  MySQL evaluates SET clauses left to right, so the status CASE
// sees the already-decremented available_beds.
func (r *RoomRepo) ReserveTx(ctx context.Context, tx *sql.Tx, hostelID, roomID uint64) error {
    const query = `UPDATE rooms
           SET available_beds = available_beds - 1,
               occupied_beds  = occupied_beds + 1,
               status = CASE WHEN available_beds = 0 AND status = 'available'
                             THEN 'occupied' ELSE status END,
               updated_at = CURRENT_TIMESTAMP
           WHERE id = ? AND hostel_id = ? AND available_beds > 0`
    res, err := tx.ExecContext(ctx, query, roomID, hostelID)
    if err != nil {
        return err
    }
    if n, _ := res.RowsAffected(); n == 0 {
        return apperr.CapacityExhausted(formatID(roomID))
    }
    return nil
}

// ReleaseTx returns one bed to the room, clamped so occupied never goes
// negative.  Zero affected rows means nothing was held; that is not an
// error because release idempotence is enforced one level up via the
// allocation row's terminal status.
func (r *RoomRepo) ReleaseTx(ctx context.Context, tx *sql.Tx, hostelID, roomID uint64) error {
    const query = `UPDATE rooms
           SET occupied_beds  = occupied_beds - 1,
               available_beds = available_beds + 1,
               status = CASE WHEN status = 'occupied' THEN 'available' ELSE status END,
               updated_at = CURRENT_TIMESTAMP
           WHERE id = ? AND hostel_id = ? AND occupied_beds > 0`
    _, err := tx.ExecContext(ctx, query, roomID, hostelID)
    return err
}
