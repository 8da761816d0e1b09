package repository

import (
    "context"
    "database/sql"
    "errors"
    "strconv"
    "time"

    "github.com/go-sql-driver/mysql"

    "github.com/edunest/hostel-allocation/internal/apperr"
    "github.com/edunest/hostel-allocation/internal/model"
    "github.com/edunest/hostel-allocation/internal/service"
)

func formatID(id uint64) string { return strconv.FormatUint(id, 10) }

// mapConflict converts MySQL lock errors into the Contention kind so the
// engine retries the whole unit of work with fresh reads.  1213 is a
// deadlock (InnoDB rolls the transaction back), 1205 a lock wait timeout.
func mapConflict(err error, entity, id string) error {
    var me *mysql.MySQLError
    if errors.As(err, &me) && (me.Number == 1213 || me.Number == 1205) {
        return apperr.Contention(entity, id)
    }
    return err
}

// MySQLStore implements the service storage contract over MySQL using the
// typed repositories in this package.  Lifecycle mutations run on a single
// database transaction; row locks on the allocation plus the conditional
// reserve UPDATE give the check-and-decrement its atomicity.
type MySQLStore struct {
    db      *sql.DB
    hostels *HostelRepo
    rooms   *RoomRepo
    allocs  *AllocationRepo
}

// NewMySQLStore builds the store over an open DB handle.
func NewMySQLStore(db *sql.DB) *MySQLStore {
    return &MySQLStore{
        db:      db,
        hostels: NewHostelRepo(db),
        rooms:   NewRoomRepo(db),
        allocs:  NewAllocationRepo(db),
    }
}

// HostelByID returns the hostel or NotFound.
func (s *MySQLStore) HostelByID(ctx context.Context, id uint64) (*model.Hostel, error) {
    return s.hostels.GetByID(ctx, id)
}

// HostelsBySchool returns the school's hostels ordered by code.
func (s *MySQLStore) HostelsBySchool(ctx context.Context, schoolID string) ([]*model.Hostel, error) {
    return s.hostels.GetBySchool(ctx, schoolID)
}

// RoomsByHostel returns the hostel's rooms ordered by room number.
func (s *MySQLStore) RoomsByHostel(ctx context.Context, hostelID uint64) ([]*model.Room, error) {
    return s.rooms.GetByHostel(ctx, hostelID)
}

// AllocationByID returns the allocation or NotFound.
func (s *MySQLStore) AllocationByID(ctx context.Context, id string) (*model.Allocation, error) {
    return s.allocs.GetByID(ctx, id)
}

// AllocationsByStudent returns a student's allocations, newest first.
func (s *MySQLStore) AllocationsByStudent(ctx context.Context, studentID string) ([]*model.Allocation, error) {
    return s.allocs.GetByStudent(ctx, studentID)
}

// AllocationsBySchool returns allocations dated in [from, to).
func (s *MySQLStore) AllocationsBySchool(ctx context.Context, schoolID string, from, to time.Time) ([]*model.Allocation, error) {
    return s.allocs.GetBySchool(ctx, schoolID, from, to)
}

// Begin opens a database transaction wrapped as a unit of work.
func (s *MySQLStore) Begin(ctx context.Context) (service.Tx, error) {
    tx, err := s.db.BeginTx(ctx, nil)
    if err != nil {
        return nil, err
    }
    return &mysqlTx{s: s, tx: tx}, nil
}

type mysqlTx struct {
    s  *MySQLStore
    tx *sql.Tx
}

func (t *mysqlTx) HostelByID(ctx context.Context, id uint64) (*model.Hostel, error) {
    return t.s.hostels.GetByIDTx(ctx, t.tx, id)
}

func (t *mysqlTx) InsertHostel(ctx context.Context, h *model.Hostel) error {
    return t.s.hostels.InsertTx(ctx, t.tx, h)
}

func (t *mysqlTx) UpdateHostel(ctx context.Context, h *model.Hostel) error {
    return mapConflict(t.s.hostels.UpdateTx(ctx, t.tx, h), "hostel", formatID(h.ID))
}

func (t *mysqlTx) RoomByID(ctx context.Context, id uint64) (*model.Room, error) {
    return t.s.rooms.GetByIDTx(ctx, t.tx, id)
}

func (t *mysqlTx) RoomsByHostel(ctx context.Context, hostelID uint64) ([]*model.Room, error) {
    return t.s.rooms.GetByHostelTx(ctx, t.tx, hostelID)
}

func (t *mysqlTx) InsertRoom(ctx context.Context, r *model.Room) error {
    if err := t.s.rooms.InsertTx(ctx, t.tx, r); err != nil {
        return err
    }
    return t.s.hostels.ResyncCountersTx(ctx, t.tx, r.HostelID)
}

func (t *mysqlTx) ReserveBed(ctx context.Context, hostelID, roomID uint64) error {
    if err := t.s.rooms.ReserveTx(ctx, t.tx, hostelID, roomID); err != nil {
        return mapConflict(err, "room", formatID(roomID))
    }
    return mapConflict(t.s.hostels.ResyncCountersTx(ctx, t.tx, hostelID), "hostel", formatID(hostelID))
}

func (t *mysqlTx) ReleaseBed(ctx context.Context, hostelID, roomID uint64) error {
    if err := t.s.rooms.ReleaseTx(ctx, t.tx, hostelID, roomID); err != nil {
        return mapConflict(err, "room", formatID(roomID))
    }
    return mapConflict(t.s.hostels.ResyncCountersTx(ctx, t.tx, hostelID), "hostel", formatID(hostelID))
}

func (t *mysqlTx) ActiveAllocation(ctx context.Context, studentID, academicYear string) (*model.Allocation, error) {
    a, err := t.s.allocs.ActiveTx(ctx, t.tx, studentID, academicYear)
    if err != nil {
        return nil, mapConflict(err, "allocation", studentID)
    }
    return a, nil
}

func (t *mysqlTx) AllocationByID(ctx context.Context, id string) (*model.Allocation, error) {
    a, err := t.s.allocs.GetByIDTx(ctx, t.tx, id)
    if err != nil {
        return nil, mapConflict(err, "allocation", id)
    }
    return a, nil
}

func (t *mysqlTx) InsertAllocation(ctx context.Context, a *model.Allocation) error {
    return mapConflict(t.s.allocs.InsertTx(ctx, t.tx, a), "allocation", a.ID)
}

func (t *mysqlTx) UpdateAllocation(ctx context.Context, a *model.Allocation) error {
    return mapConflict(t.s.allocs.UpdateTx(ctx, t.tx, a), "allocation", a.ID)
}

func (t *mysqlTx) OverdueCandidates(ctx context.Context, asOf time.Time) ([]*model.Allocation, error) {
    out, err := t.s.allocs.OverdueCandidatesTx(ctx, t.tx, asOf)
    if err != nil {
        return nil, mapConflict(err, "allocation", "")
    }
    return out, nil
}

func (t *mysqlTx) Commit() error {
    return mapConflict(t.tx.Commit(), "transaction", "")
}

func (t *mysqlTx) Rollback() error {
    err := t.tx.Rollback()
    if errors.Is(err, sql.ErrTxDone) {
        return nil
    }
    return err
}
