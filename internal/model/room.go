package model

import "time"

// RoomStatus is the operational state of a single room.  "available" and
// "occupied" admit further placements while beds remain; the rest take the
// room out of rotation without touching existing allocations.
type RoomStatus string

const (
    RoomStatusAvailable        RoomStatus = "available"
    RoomStatusOccupied         RoomStatus = "occupied"
    RoomStatusReserved         RoomStatus = "reserved"
    RoomStatusUnderMaintenance RoomStatus = "under_maintenance"
    RoomStatusOutOfOrder       RoomStatus = "out_of_order"
    RoomStatusQuarantine       RoomStatus = "quarantine"
)

// Valid reports whether s is a known room status.
func (s RoomStatus) Valid() bool {
    switch s {
    case RoomStatusAvailable, RoomStatusOccupied, RoomStatusReserved,
        RoomStatusUnderMaintenance, RoomStatusOutOfOrder, RoomStatusQuarantine:
        return true
    }
    return false
}

// AdmitsPlacements reports whether a room in this status may receive new
// allocations (capacity permitting).
func (s RoomStatus) AdmitsPlacements() bool {
    return s == RoomStatusAvailable || s == RoomStatusOccupied
}

// Room is the finer grain of the capacity hierarchy.  Each room belongs to
// exactly one hostel and mirrors the same counter invariant the hostel
// carries: occupied + available == total, all non-negative.
//
// Fields:
//  ID            – primary key identifier.
//  HostelID      – the hostel this room belongs to.
//  RoomNumber    – unique room number within the hostel.
//  Floor         – floor the room is on.
//  Status        – operational status of the room.
//  TotalBeds     – number of beds in the room.
//  OccupiedBeds  – beds taken by active allocations.
//  AvailableBeds – beds free for allocation.
type Room struct {
    ID            uint64     // rooms.id
    HostelID      uint64     // rooms.hostel_id
    RoomNumber    string     // rooms.room_number (unique per hostel)
    Floor         int        // rooms.floor
    Status        RoomStatus // rooms.status
    TotalBeds     int        // rooms.total_beds
    OccupiedBeds  int        // rooms.occupied_beds
    AvailableBeds int        // rooms.available_beds
    CreatedAt     time.Time  // rooms.created_at
    UpdatedAt     time.Time  // rooms.updated_at
}

// CountersConsistent reports whether the room's bed counters satisfy
// occupied + available == total with all three non-negative.
func (r *Room) CountersConsistent() bool {
    return r.TotalBeds >= 0 && r.OccupiedBeds >= 0 && r.AvailableBeds >= 0 &&
        r.OccupiedBeds+r.AvailableBeds == r.TotalBeds
}
