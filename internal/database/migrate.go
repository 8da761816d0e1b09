package database

import (
    "context"
    "database/sql"
    "fmt"
)

// migrations holds the schema in dependency order.  Statements are
// idempotent so running them at every start is safe.
var migrations = []string{
    `CREATE TABLE IF NOT EXISTS hostels (
        id             BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
        school_id      VARCHAR(64)  NOT NULL,
        code           VARCHAR(32)  NOT NULL,
        name           VARCHAR(191) NOT NULL,
        hostel_type    VARCHAR(32)  NOT NULL,
        status         VARCHAR(32)  NOT NULL DEFAULT 'active',
        total_beds     INT NOT NULL DEFAULT 0,
        occupied_beds  INT NOT NULL DEFAULT 0,
        available_beds INT NOT NULL DEFAULT 0,
        facilities     JSON NULL,
        rules          JSON NULL,
        pricing        JSON NULL,
        created_at     TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
        updated_at     TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
        PRIMARY KEY (id),
        UNIQUE KEY uq_hostels_school_code (school_id, code),
        CONSTRAINT chk_hostels_counters CHECK (
            total_beds >= 0 AND occupied_beds >= 0 AND available_beds >= 0
            AND occupied_beds + available_beds = total_beds
        )
    ) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

    `CREATE TABLE IF NOT EXISTS rooms (
        id             BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
        hostel_id      BIGINT UNSIGNED NOT NULL,
        room_number    VARCHAR(32) NOT NULL,
        floor          INT NOT NULL DEFAULT 0,
        status         VARCHAR(32) NOT NULL DEFAULT 'available',
        total_beds     INT NOT NULL DEFAULT 0,
        occupied_beds  INT NOT NULL DEFAULT 0,
        available_beds INT NOT NULL DEFAULT 0,
        created_at     TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
        updated_at     TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
        PRIMARY KEY (id),
        UNIQUE KEY uq_rooms_hostel_number (hostel_id, room_number),
        KEY idx_rooms_hostel (hostel_id),
        CONSTRAINT fk_rooms_hostel FOREIGN KEY (hostel_id) REFERENCES hostels (id),
        CONSTRAINT chk_rooms_counters CHECK (
            total_beds >= 0 AND occupied_beds >= 0 AND available_beds >= 0
            AND occupied_beds + available_beds = total_beds
        )
    ) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

    // active_key collapses to NULL for every non-active row, so the unique
    // index enforces at most one active allocation per (student, year)
    // while leaving history rows unconstrained.
    `CREATE TABLE IF NOT EXISTS allocations (
        id                 CHAR(36)     NOT NULL,
        school_id          VARCHAR(64)  NOT NULL,
        student_id         VARCHAR(64)  NOT NULL,
        academic_year      VARCHAR(16)  NOT NULL,
        hostel_id          BIGINT UNSIGNED NOT NULL,
        room_id            BIGINT UNSIGNED NOT NULL,
        bed_number         VARCHAR(16)  NULL,
        allocation_type    VARCHAR(32)  NOT NULL DEFAULT 'regular',
        status             VARCHAR(32)  NOT NULL DEFAULT 'active',
        check_in_status    VARCHAR(32)  NOT NULL DEFAULT 'pending',
        check_out_status   VARCHAR(32)  NOT NULL DEFAULT 'pending',
        allocation_date    DATETIME     NOT NULL,
        expected_check_in  DATETIME     NULL,
        actual_check_in    DATETIME     NULL,
        expected_check_out DATETIME     NULL,
        actual_check_out   DATETIME     NULL,
        monthly_rent       BIGINT NOT NULL DEFAULT 0,
        security_deposit   BIGINT NOT NULL DEFAULT 0,
        paid_amount        BIGINT NOT NULL DEFAULT 0,
        outstanding_amount BIGINT NOT NULL DEFAULT 0,
        payment_status     VARCHAR(16) NOT NULL DEFAULT 'pending',
        next_payment_due   DATETIME NULL,
        transfer_history   JSON NULL,
        suspension_reason  VARCHAR(255) NOT NULL DEFAULT '',
        notes              TEXT NULL,
        created_by         VARCHAR(64) NOT NULL,
        updated_by         VARCHAR(64) NOT NULL,
        created_at         TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
        updated_at         TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
        active_key         VARCHAR(96) GENERATED ALWAYS AS (
            CASE WHEN status = 'active' THEN CONCAT(student_id, '#', academic_year) END
        ) STORED,
        PRIMARY KEY (id),
        UNIQUE KEY uq_allocations_active (active_key),
        KEY idx_allocations_student (student_id),
        KEY idx_allocations_school_date (school_id, allocation_date),
        KEY idx_allocations_hostel (hostel_id),
        KEY idx_allocations_due (payment_status, next_payment_due),
        CONSTRAINT fk_allocations_hostel FOREIGN KEY (hostel_id) REFERENCES hostels (id),
        CONSTRAINT fk_allocations_room FOREIGN KEY (room_id) REFERENCES rooms (id)
    ) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate applies the schema.  Called once at startup before the server
// begins accepting traffic.
func Migrate(ctx context.Context, db *sql.DB) error {
    for i, stmt := range migrations {
        if _, err := db.ExecContext(ctx, stmt); err != nil {
            return fmt.Errorf("migration %d failed: %w", i+1, err)
        }
    }
    return nil
}
