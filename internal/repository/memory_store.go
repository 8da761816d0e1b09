package repository

import (
    "context"
    "sort"
    "strconv"
    "sync"
    "time"

    "github.com/edunest/hostel-allocation/internal/apperr"
    "github.com/edunest/hostel-allocation/internal/model"
    "github.com/edunest/hostel-allocation/internal/service"
)

// MemoryStore is the in-memory twin of the MySQL store: the same Store
// contract over maps guarded by a mutex, with a version counter per row for
// optimistic concurrency.  A unit of work stages copies and commits only if
// every row it read is still at the version it saw; otherwise the commit
// fails with Contention and the engine retries.  Used by tests and
// single-node deployments (STORE_DRIVER=memory).
type MemoryStore struct {
    mu sync.Mutex

    hostels     map[uint64]*model.Hostel
    rooms       map[uint64]*model.Room
    allocations map[string]*model.Allocation

    hostelVer map[uint64]uint64
    roomVer   map[uint64]uint64
    allocVer  map[string]uint64

    nextHostelID uint64
    nextRoomID   uint64
}

// NewMemoryStore returns an empty memory store.
func NewMemoryStore() *MemoryStore {
    return &MemoryStore{
        hostels:     make(map[uint64]*model.Hostel),
        rooms:       make(map[uint64]*model.Room),
        allocations: make(map[string]*model.Allocation),
        hostelVer:   make(map[uint64]uint64),
        roomVer:     make(map[uint64]uint64),
        allocVer:    make(map[string]uint64),
    }
}

func copyHostel(h *model.Hostel) *model.Hostel {
    c := *h
    c.Facilities = append([]model.Facility(nil), h.Facilities...)
    return &c
}

func copyRoom(r *model.Room) *model.Room {
    c := *r
    return &c
}

func copyTime(t *time.Time) *time.Time {
    if t == nil {
        return nil
    }
    c := *t
    return &c
}

func copyString(s *string) *string {
    if s == nil {
        return nil
    }
    c := *s
    return &c
}

func copyAllocation(a *model.Allocation) *model.Allocation {
    c := *a
    c.BedNumber = copyString(a.BedNumber)
    c.ExpectedCheckInDate = copyTime(a.ExpectedCheckInDate)
    c.ActualCheckInDate = copyTime(a.ActualCheckInDate)
    c.ExpectedCheckOutDate = copyTime(a.ExpectedCheckOutDate)
    c.ActualCheckOutDate = copyTime(a.ActualCheckOutDate)
    c.NextPaymentDue = copyTime(a.NextPaymentDue)
    c.TransferHistory = append([]model.TransferRecord(nil), a.TransferHistory...)
    return &c
}

// HostelByID returns a copy of the hostel or NotFound.
func (s *MemoryStore) HostelByID(ctx context.Context, id uint64) (*model.Hostel, error) {
    if err := ctx.Err(); err != nil {
        return nil, err
    }
    s.mu.Lock()
    defer s.mu.Unlock()
    h, ok := s.hostels[id]
    if !ok {
        return nil, apperr.NotFound("hostel", strconv.FormatUint(id, 10))
    }
    return copyHostel(h), nil
}

// HostelsBySchool returns the school's hostels ordered by code.
func (s *MemoryStore) HostelsBySchool(ctx context.Context, schoolID string) ([]*model.Hostel, error) {
    if err := ctx.Err(); err != nil {
        return nil, err
    }
    s.mu.Lock()
    defer s.mu.Unlock()
    out := make([]*model.Hostel, 0)
    for _, h := range s.hostels {
        if h.SchoolID == schoolID {
            out = append(out, copyHostel(h))
        }
    }
    sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
    return out, nil
}

// RoomsByHostel returns the hostel's rooms ordered by room number.
func (s *MemoryStore) RoomsByHostel(ctx context.Context, hostelID uint64) ([]*model.Room, error) {
    if err := ctx.Err(); err != nil {
        return nil, err
    }
    s.mu.Lock()
    defer s.mu.Unlock()
    out := make([]*model.Room, 0)
    for _, r := range s.rooms {
        if r.HostelID == hostelID {
            out = append(out, copyRoom(r))
        }
    }
    sort.Slice(out, func(i, j int) bool { return out[i].RoomNumber < out[j].RoomNumber })
    return out, nil
}

// AllocationByID returns a copy of the allocation or NotFound.
func (s *MemoryStore) AllocationByID(ctx context.Context, id string) (*model.Allocation, error) {
    if err := ctx.Err(); err != nil {
        return nil, err
    }
    s.mu.Lock()
    defer s.mu.Unlock()
    a, ok := s.allocations[id]
    if !ok {
        return nil, apperr.NotFound("allocation", id)
    }
    return copyAllocation(a), nil
}

// AllocationsByStudent returns a student's allocations, newest first.
func (s *MemoryStore) AllocationsByStudent(ctx context.Context, studentID string) ([]*model.Allocation, error) {
    if err := ctx.Err(); err != nil {
        return nil, err
    }
    s.mu.Lock()
    defer s.mu.Unlock()
    out := make([]*model.Allocation, 0)
    for _, a := range s.allocations {
        if a.StudentID == studentID {
            out = append(out, copyAllocation(a))
        }
    }
    sort.Slice(out, func(i, j int) bool { return out[i].AllocationDate.After(out[j].AllocationDate) })
    return out, nil
}

// AllocationsBySchool returns allocations dated in [from, to); zero times
// leave that bound open.
func (s *MemoryStore) AllocationsBySchool(ctx context.Context, schoolID string, from, to time.Time) ([]*model.Allocation, error) {
    if err := ctx.Err(); err != nil {
        return nil, err
    }
    s.mu.Lock()
    defer s.mu.Unlock()
    out := make([]*model.Allocation, 0)
    for _, a := range s.allocations {
        if a.SchoolID != schoolID {
            continue
        }
        if !from.IsZero() && a.AllocationDate.Before(from) {
            continue
        }
        if !to.IsZero() && !a.AllocationDate.Before(to) {
            continue
        }
        out = append(out, copyAllocation(a))
    }
    sort.Slice(out, func(i, j int) bool { return out[i].AllocationDate.Before(out[j].AllocationDate) })
    return out, nil
}

// Begin opens a unit of work.  The transaction stages copies and validates
// its read set at commit time.
func (s *MemoryStore) Begin(ctx context.Context) (service.Tx, error) {
    if err := ctx.Err(); err != nil {
        return nil, err
    }
    return &MemoryTx{
        s:             s,
        hostels:       make(map[uint64]*model.Hostel),
        rooms:         make(map[uint64]*model.Room),
        allocs:        make(map[string]*model.Allocation),
        readHostelVer: make(map[uint64]uint64),
        readRoomVer:   make(map[uint64]uint64),
        readAllocVer:  make(map[string]uint64),
        dirtyHostels:  make(map[uint64]bool),
        dirtyRooms:    make(map[uint64]bool),
        dirtyAllocs:   make(map[string]bool),
    }, nil
}

// MemoryTx is one optimistic unit of work over a MemoryStore.
type MemoryTx struct {
    s    *MemoryStore
    done bool

    // working copies, keyed by ID; loaded lazily on first read
    hostels map[uint64]*model.Hostel
    rooms   map[uint64]*model.Room
    allocs  map[string]*model.Allocation

    // versions observed at first read; validated at commit
    readHostelVer map[uint64]uint64
    readRoomVer   map[uint64]uint64
    readAllocVer  map[string]uint64

    dirtyHostels map[uint64]bool
    dirtyRooms   map[uint64]bool
    dirtyAllocs  map[string]bool

    newHostels []*model.Hostel
    newRooms   []*model.Room
    newAllocs  []*model.Allocation
}

func (t *MemoryTx) hostelWorking(id uint64) (*model.Hostel, error) {
    if h, ok := t.hostels[id]; ok {
        return h, nil
    }
    for _, h := range t.newHostels {
        if h.ID == id {
            return h, nil
        }
    }
    t.s.mu.Lock()
    defer t.s.mu.Unlock()
    h, ok := t.s.hostels[id]
    if !ok {
        return nil, apperr.NotFound("hostel", strconv.FormatUint(id, 10))
    }
    c := copyHostel(h)
    t.hostels[id] = c
    t.readHostelVer[id] = t.s.hostelVer[id]
    return c, nil
}

func (t *MemoryTx) roomWorking(id uint64) (*model.Room, error) {
    if r, ok := t.rooms[id]; ok {
        return r, nil
    }
    t.s.mu.Lock()
    defer t.s.mu.Unlock()
    r, ok := t.s.rooms[id]
    if !ok {
        return nil, apperr.NotFound("room", strconv.FormatUint(id, 10))
    }
    c := copyRoom(r)
    t.rooms[id] = c
    t.readRoomVer[id] = t.s.roomVer[id]
    return c, nil
}

func (t *MemoryTx) allocWorking(id string) (*model.Allocation, error) {
    if a, ok := t.allocs[id]; ok {
        return a, nil
    }
    t.s.mu.Lock()
    defer t.s.mu.Unlock()
    a, ok := t.s.allocations[id]
    if !ok {
        return nil, apperr.NotFound("allocation", id)
    }
    c := copyAllocation(a)
    t.allocs[id] = c
    t.readAllocVer[id] = t.s.allocVer[id]
    return c, nil
}

// HostelByID returns a copy of the hostel within the unit of work.
func (t *MemoryTx) HostelByID(ctx context.Context, id uint64) (*model.Hostel, error) {
    if err := ctx.Err(); err != nil {
        return nil, err
    }
    h, err := t.hostelWorking(id)
    if err != nil {
        return nil, err
    }
    return copyHostel(h), nil
}

// InsertHostel stages a new hostel.  The ID is assigned immediately so the
// caller can reference it; hostel codes are unique per school, checked here
// against committed and staged rows and re-checked at commit.
func (t *MemoryTx) InsertHostel(ctx context.Context, h *model.Hostel) error {
    if err := ctx.Err(); err != nil {
        return err
    }
    for _, staged := range t.newHostels {
        if staged.SchoolID == h.SchoolID && staged.Code == h.Code {
            return apperr.Validation("hostel code " + h.Code + " already exists for this school")
        }
    }
    t.s.mu.Lock()
    defer t.s.mu.Unlock()
    for _, existing := range t.s.hostels {
        if existing.SchoolID == h.SchoolID && existing.Code == h.Code {
            return apperr.Validation("hostel code " + h.Code + " already exists for this school")
        }
    }
    t.s.nextHostelID++
    h.ID = t.s.nextHostelID
    t.newHostels = append(t.newHostels, copyHostel(h))
    return nil
}

// UpdateHostel stages an updated hostel row.
func (t *MemoryTx) UpdateHostel(ctx context.Context, h *model.Hostel) error {
    if err := ctx.Err(); err != nil {
        return err
    }
    if _, err := t.hostelWorking(h.ID); err != nil {
        return err
    }
    c := copyHostel(h)
    c.UpdatedAt = time.Now().UTC()
    t.hostels[h.ID] = c
    t.dirtyHostels[h.ID] = true
    return nil
}

// RoomByID returns a copy of the room within the unit of work.
func (t *MemoryTx) RoomByID(ctx context.Context, id uint64) (*model.Room, error) {
    if err := ctx.Err(); err != nil {
        return nil, err
    }
    r, err := t.roomWorking(id)
    if err != nil {
        return nil, err
    }
    return copyRoom(r), nil
}

// RoomsByHostel lists the hostel's rooms within the unit of work, ordered
// by room number.  Every room read joins the validation read set.
func (t *MemoryTx) RoomsByHostel(ctx context.Context, hostelID uint64) ([]*model.Room, error) {
    if err := ctx.Err(); err != nil {
        return nil, err
    }
    t.s.mu.Lock()
    ids := make([]uint64, 0)
    for id, r := range t.s.rooms {
        if r.HostelID == hostelID {
            ids = append(ids, id)
        }
    }
    t.s.mu.Unlock()
    out := make([]*model.Room, 0, len(ids))
    for _, id := range ids {
        r, err := t.roomWorking(id)
        if err != nil {
            return nil, err
        }
        out = append(out, copyRoom(r))
    }
    sort.Slice(out, func(i, j int) bool { return out[i].RoomNumber < out[j].RoomNumber })
    return out, nil
}

// InsertRoom stages a new room and re-syncs the parent hostel's counters to
// include its beds.  Room numbers are unique per hostel, checked here and
// re-checked at commit.
func (t *MemoryTx) InsertRoom(ctx context.Context, r *model.Room) error {
    if err := ctx.Err(); err != nil {
        return err
    }
    for _, staged := range t.newRooms {
        if staged.HostelID == r.HostelID && staged.RoomNumber == r.RoomNumber {
            return apperr.Validation("room number " + r.RoomNumber + " already exists in this hostel")
        }
    }
    t.s.mu.Lock()
    for _, existing := range t.s.rooms {
        if existing.HostelID == r.HostelID && existing.RoomNumber == r.RoomNumber {
            t.s.mu.Unlock()
            return apperr.Validation("room number " + r.RoomNumber + " already exists in this hostel")
        }
    }
    t.s.nextRoomID++
    r.ID = t.s.nextRoomID
    t.s.mu.Unlock()

    t.newRooms = append(t.newRooms, copyRoom(r))

    h, err := t.hostelWorking(r.HostelID)
    if err != nil {
        return err
    }
    h.TotalBeds += r.TotalBeds
    h.AvailableBeds += r.AvailableBeds
    h.OccupiedBeds += r.OccupiedBeds
    t.dirtyHostels[h.ID] = true
    return nil
}

// ReserveBed performs the check-and-decrement on the room and shifts the
// parent hostel's counters in step.  Fails with CapacityExhausted when no
// bed is free.
func (t *MemoryTx) ReserveBed(ctx context.Context, hostelID, roomID uint64) error {
    if err := ctx.Err(); err != nil {
        return err
    }
    r, err := t.roomWorking(roomID)
    if err != nil {
        return err
    }
    if r.AvailableBeds <= 0 {
        return apperr.CapacityExhausted(strconv.FormatUint(roomID, 10))
    }
    r.AvailableBeds--
    r.OccupiedBeds++
    if r.Status == model.RoomStatusAvailable && r.AvailableBeds == 0 {
        r.Status = model.RoomStatusOccupied
    }
    t.dirtyRooms[roomID] = true

    h, err := t.hostelWorking(hostelID)
    if err != nil {
        return err
    }
    h.AvailableBeds--
    h.OccupiedBeds++
    t.dirtyHostels[hostelID] = true
    return nil
}

// ReleaseBed returns one bed to the room, clamped at totalBeds, and shifts
// the parent hostel's counters in step.
func (t *MemoryTx) ReleaseBed(ctx context.Context, hostelID, roomID uint64) error {
    if err := ctx.Err(); err != nil {
        return err
    }
    r, err := t.roomWorking(roomID)
    if err != nil {
        return err
    }
    if r.OccupiedBeds <= 0 {
        return nil // nothing held; release is clamped
    }
    r.OccupiedBeds--
    r.AvailableBeds++
    if r.Status == model.RoomStatusOccupied && r.AvailableBeds > 0 {
        r.Status = model.RoomStatusAvailable
    }
    t.dirtyRooms[roomID] = true

    h, err := t.hostelWorking(hostelID)
    if err != nil {
        return err
    }
    if h.OccupiedBeds > 0 {
        h.OccupiedBeds--
        h.AvailableBeds++
    }
    t.dirtyHostels[hostelID] = true
    return nil
}

// ActiveAllocation returns the active allocation for the (student, year)
// pair or nil when none exists.  A found row joins the read set.
func (t *MemoryTx) ActiveAllocation(ctx context.Context, studentID, academicYear string) (*model.Allocation, error) {
    if err := ctx.Err(); err != nil {
        return nil, err
    }
    for _, a := range t.newAllocs {
        if a.StudentID == studentID && a.AcademicYear == academicYear && a.Status == model.AllocationStatusActive {
            return copyAllocation(a), nil
        }
    }
    t.s.mu.Lock()
    var foundID string
    for id, a := range t.s.allocations {
        if a.StudentID == studentID && a.AcademicYear == academicYear && a.Status == model.AllocationStatusActive {
            foundID = id
            break
        }
    }
    t.s.mu.Unlock()
    if foundID == "" {
        return nil, nil
    }
    a, err := t.allocWorking(foundID)
    if err != nil {
        return nil, err
    }
    return copyAllocation(a), nil
}

// AllocationByID returns a copy of the allocation within the unit of work.
func (t *MemoryTx) AllocationByID(ctx context.Context, id string) (*model.Allocation, error) {
    if err := ctx.Err(); err != nil {
        return nil, err
    }
    a, err := t.allocWorking(id)
    if err != nil {
        return nil, err
    }
    return copyAllocation(a), nil
}

// InsertAllocation stages a new ledger row.  The one-active-per-(student,
// year) rule is re-verified at commit so a racing insert cannot slip in
// between check and apply.
func (t *MemoryTx) InsertAllocation(ctx context.Context, a *model.Allocation) error {
    if err := ctx.Err(); err != nil {
        return err
    }
    t.newAllocs = append(t.newAllocs, copyAllocation(a))
    return nil
}

// UpdateAllocation stages an updated ledger row.
func (t *MemoryTx) UpdateAllocation(ctx context.Context, a *model.Allocation) error {
    if err := ctx.Err(); err != nil {
        return err
    }
    if _, err := t.allocWorking(a.ID); err != nil {
        return err
    }
    t.allocs[a.ID] = copyAllocation(a)
    t.dirtyAllocs[a.ID] = true
    return nil
}

// OverdueCandidates returns non-terminal allocations with an outstanding
// balance past their due date that are not yet flagged overdue.
func (t *MemoryTx) OverdueCandidates(ctx context.Context, asOf time.Time) ([]*model.Allocation, error) {
    if err := ctx.Err(); err != nil {
        return nil, err
    }
    t.s.mu.Lock()
    ids := make([]string, 0)
    for id, a := range t.s.allocations {
        if a.Status.Terminal() || a.PaymentStatus == model.PaymentOverdue {
            continue
        }
        if a.Overdue(asOf) {
            ids = append(ids, id)
        }
    }
    t.s.mu.Unlock()
    sort.Strings(ids)
    out := make([]*model.Allocation, 0, len(ids))
    for _, id := range ids {
        a, err := t.allocWorking(id)
        if err != nil {
            return nil, err
        }
        out = append(out, copyAllocation(a))
    }
    return out, nil
}

// Commit validates the read set and applies staged changes atomically.  A
// version mismatch fails the whole unit with Contention; a staged active
// allocation colliding with a committed one fails with
// DuplicateAllocation.  Staged hostels and rooms are re-checked against
// rows committed since insert time, mirroring the MySQL unique keys.
func (t *MemoryTx) Commit() error {
    if t.done {
        return nil
    }
    t.done = true
    t.s.mu.Lock()
    defer t.s.mu.Unlock()

    for id, ver := range t.readHostelVer {
        if t.s.hostelVer[id] != ver {
            return apperr.Contention("hostel", strconv.FormatUint(id, 10))
        }
    }
    for id, ver := range t.readRoomVer {
        if t.s.roomVer[id] != ver {
            return apperr.Contention("room", strconv.FormatUint(id, 10))
        }
    }
    for id, ver := range t.readAllocVer {
        if t.s.allocVer[id] != ver {
            return apperr.Contention("allocation", id)
        }
    }
    for _, a := range t.newAllocs {
        if a.Status != model.AllocationStatusActive {
            continue
        }
        for _, existing := range t.s.allocations {
            if existing.StudentID == a.StudentID && existing.AcademicYear == a.AcademicYear &&
                existing.Status == model.AllocationStatusActive {
                return apperr.DuplicateAllocation(a.StudentID, a.AcademicYear)
            }
        }
    }
    for _, h := range t.newHostels {
        for _, existing := range t.s.hostels {
            if existing.SchoolID == h.SchoolID && existing.Code == h.Code {
                return apperr.Validation("hostel code " + h.Code + " already exists for this school")
            }
        }
    }
    for _, r := range t.newRooms {
        for _, existing := range t.s.rooms {
            if existing.HostelID == r.HostelID && existing.RoomNumber == r.RoomNumber {
                return apperr.Validation("room number " + r.RoomNumber + " already exists in this hostel")
            }
        }
    }

    for id := range t.dirtyHostels {
        h, ok := t.hostels[id]
        if !ok {
            continue // staged in this unit; applied with newHostels below
        }
        t.s.hostels[id] = copyHostel(h)
        t.s.hostelVer[id]++
    }
    for id := range t.dirtyRooms {
        t.s.rooms[id] = copyRoom(t.rooms[id])
        t.s.roomVer[id]++
    }
    for id := range t.dirtyAllocs {
        t.s.allocations[id] = copyAllocation(t.allocs[id])
        t.s.allocVer[id]++
    }
    for _, h := range t.newHostels {
        t.s.hostels[h.ID] = copyHostel(h)
        t.s.hostelVer[h.ID] = 1
    }
    for _, r := range t.newRooms {
        t.s.rooms[r.ID] = copyRoom(r)
        t.s.roomVer[r.ID] = 1
    }
    for _, a := range t.newAllocs {
        t.s.allocations[a.ID] = copyAllocation(a)
        t.s.allocVer[a.ID] = 1
    }
    return nil
}

// Rollback discards all staged changes.  Safe to call after Commit.
func (t *MemoryTx) Rollback() error {
    t.done = true
    return nil
}
