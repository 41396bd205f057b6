// Package repository defines error types that are reused across multiple
// repositories and the MySQL implementations of the booking store.  The
// sentinel values allow higher layers such as handlers to distinguish
// between different failure scenarios.
package repository

import (
    "errors"
    "fmt"
    "strings"

    "github.com/go-sql-driver/mysql"

    "github.com/iliyamo/dining-table-reservation/internal/booking"
)

// ErrConflict is returned when an update cannot be performed because of
// conflicting state, such as shrinking a slot below a table number that an
// active reservation still holds.  Handlers translate this into HTTP 409.
var ErrConflict = errors.New("conflict")

// ErrSlotNotFound indicates that a time slot was not located in the DB.
var ErrSlotNotFound = errors.New("time slot not found")

// ErrUserNotFound indicates that no user matched the lookup.
var ErrUserNotFound = errors.New("user not found")

// ErrEmailExists is returned by user creation on a duplicate email.
var ErrEmailExists = errors.New("email already exists")

// ErrTokenInvalid covers unknown, expired and revoked refresh tokens.
var ErrTokenInvalid = errors.New("refresh token invalid")

// MySQL server error numbers the store reacts to.
const (
    mysqlDupEntry        = 1062
    mysqlLockWaitTimeout = 1205
    mysqlDeadlock        = 1213
)

// Unique key names from the reservations migration.
const (
    keyActiveTable = "uq_reservations_active_table"
    keyActiveUser  = "uq_reservations_active_user"
)

// classify maps MySQL driver errors onto the booking store sentinels.  Errors
// it does not recognise are returned unchanged.
func classify(err error) error {
    if err == nil {
        return nil
    }
    var me *mysql.MySQLError
    if !errors.As(err, &me) {
        return err
    }
    switch me.Number {
    case mysqlDupEntry:
        switch {
        case strings.Contains(me.Message, keyActiveTable):
            return fmt.Errorf("%w: %v", booking.ErrActiveTableTaken, err)
        case strings.Contains(me.Message, keyActiveUser):
            return fmt.Errorf("%w: %v", booking.ErrActiveBookingExists, err)
        }
    case mysqlDeadlock, mysqlLockWaitTimeout:
        return fmt.Errorf("%w: %v", booking.ErrTxConflict, err)
    }
    return err
}

// isDuplicate reports a 1062 duplicate-key error on any key.
func isDuplicate(err error) bool {
    var me *mysql.MySQLError
    return errors.As(err, &me) && me.Number == mysqlDupEntry
}
