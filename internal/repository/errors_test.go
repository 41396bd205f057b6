package repository

import (
    "errors"
    "fmt"
    "testing"

    "github.com/go-sql-driver/mysql"
    "github.com/stretchr/testify/assert"

    "github.com/iliyamo/dining-table-reservation/internal/booking"
)

func TestClassify(t *testing.T) {
    dup := func(key string) error {
        return &mysql.MySQLError{Number: mysqlDupEntry, Message: "Duplicate entry '3-2025-01-02-4-1' for key 'reservations." + key + "'"}
    }
    plain := errors.New("bad connection")

    tests := []struct {
        name string
        in   error
        want error
    }{
        {"active table", dup(keyActiveTable), booking.ErrActiveTableTaken},
        {"active user", dup(keyActiveUser), booking.ErrActiveBookingExists},
        {"deadlock", &mysql.MySQLError{Number: mysqlDeadlock, Message: "Deadlock found"}, booking.ErrTxConflict},
        {"lock wait", fmt.Errorf("query: %w", &mysql.MySQLError{Number: mysqlLockWaitTimeout}), booking.ErrTxConflict},
        {"other driver error", plain, plain},
    }
    for _, tt := range tests {
        t.Run(tt.name, func(t *testing.T) {
            assert.ErrorIs(t, classify(tt.in), tt.want)
        })
    }

    assert.NoError(t, classify(nil))

    other := dup("PRIMARY")
    assert.Same(t, other, classify(other))
}

func TestIsDuplicate(t *testing.T) {
    assert.True(t, isDuplicate(fmt.Errorf("insert: %w", &mysql.MySQLError{Number: mysqlDupEntry})))
    assert.False(t, isDuplicate(&mysql.MySQLError{Number: mysqlDeadlock}))
    assert.False(t, isDuplicate(errors.New("x")))
}
