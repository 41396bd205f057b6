package repository

import (
    "context"
    "database/sql"
    "database/sql/driver"
    "errors"
    "sync"
    "testing"
    "time"

    "github.com/go-sql-driver/mysql"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/dining-table-reservation/internal/booking"
    "github.com/iliyamo/dining-table-reservation/internal/model"
)

// txLog is a scripted database/sql driver that records transaction
// boundaries.  Only ExecContext is supported; queries fail.
type txLog struct {
    mu        sync.Mutex
    begins    int
    commits   int
    rollbacks int
    execs     []string

    beginErr  error
    execErr   error
    commitErr error
}

func (l *txLog) Connect(context.Context) (driver.Conn, error) { return &txConn{log: l}, nil }
func (l *txLog) Driver() driver.Driver                      { return txDriver{l} }

func (l *txLog) counts() (begins, commits, rollbacks int) {
    l.mu.Lock()
    defer l.mu.Unlock()
    return l.begins, l.commits, l.rollbacks
}

type txDriver struct{ log *txLog }

func (d txDriver) Open(string) (driver.Conn, error) { return &txConn{log: d.log}, nil }

type txConn struct{ log *txLog }

func (c *txConn) Prepare(string) (driver.Stmt, error) { return nil, errors.New("prepare not supported") }
func (c *txConn) Close() error                        { return nil }

func (c *txConn) Begin() (driver.Tx, error) {
    c.log.mu.Lock()
    defer c.log.mu.Unlock()
    if c.log.beginErr != nil {
        return nil, c.log.beginErr
    }
    c.log.begins++
    return &txTx{log: c.log}, nil
}

func (c *txConn) ExecContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Result, error) {
    c.log.mu.Lock()
    defer c.log.mu.Unlock()
    c.log.execs = append(c.log.execs, query)
    if c.log.execErr != nil {
        return nil, c.log.execErr
    }
    return driver.RowsAffected(1), nil
}

type txTx struct{ log *txLog }

func (t *txTx) Commit() error {
    t.log.mu.Lock()
    defer t.log.mu.Unlock()
    if t.log.commitErr != nil {
        return t.log.commitErr
    }
    t.log.commits++
    return nil
}

func (t *txTx) Rollback() error {
    t.log.mu.Lock()
    defer t.log.mu.Unlock()
    t.log.rollbacks++
    return nil
}

func newTxRepo(t *testing.T, l *txLog) *ReservationRepo {
    t.Helper()
    db := sql.OpenDB(l)
    t.Cleanup(func() { _ = db.Close() })
    return NewReservationRepo(db)
}

func newReservation() *model.Reservation {
    now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
    return &model.Reservation{
        ID:          "4f7d1c2a-9e0b-4a61-8d3c-2b5e6f708192",
        UserID:      7,
        TimeSlotID:  3,
        Date:        time.Date(2025, 5, 9, 0, 0, 0, 0, time.UTC),
        TableNumber: 1,
        Status:      model.ReservationActive,
        CreatedAt:   now,
        UpdatedAt:   now,
    }
}

func TestInTxCommits(t *testing.T) {
    l := &txLog{}
    repo := newTxRepo(t, l)

    err := repo.InTx(context.Background(), func(tx booking.TxStore) error {
        return tx.InsertReservation(context.Background(), newReservation())
    })
    require.NoError(t, err)

    begins, commits, rollbacks := l.counts()
    assert.Equal(t, 1, begins)
    assert.Equal(t, 1, commits)
    assert.Zero(t, rollbacks)
    require.Len(t, l.execs, 1)
    assert.Contains(t, l.execs[0], "INSERT INTO reservations")
}

func TestInTxRollsBackOnError(t *testing.T) {
    t.Run("plain error", func(t *testing.T) {
        l := &txLog{}
        repo := newTxRepo(t, l)
        boom := errors.New("boom")

        err := repo.InTx(context.Background(), func(booking.TxStore) error { return boom })
        assert.ErrorIs(t, err, boom)
        _, commits, rollbacks := l.counts()
        assert.Zero(t, commits)
        assert.Equal(t, 1, rollbacks)
    })

    t.Run("table taken on insert", func(t *testing.T) {
        l := &txLog{execErr: &mysql.MySQLError{
            Number:  mysqlDupEntry,
            Message: "Duplicate entry '3-2025-05-09-1-1' for key 'reservations." + keyActiveTable + "'",
        }}
        repo := newTxRepo(t, l)

        err := repo.InTx(context.Background(), func(tx booking.TxStore) error {
            return tx.InsertReservation(context.Background(), newReservation())
        })
        assert.ErrorIs(t, err, booking.ErrActiveTableTaken)
        _, commits, rollbacks := l.counts()
        assert.Zero(t, commits)
        assert.Equal(t, 1, rollbacks)
    })

    t.Run("deadlock inside fn", func(t *testing.T) {
        l := &txLog{}
        repo := newTxRepo(t, l)

        err := repo.InTx(context.Background(), func(booking.TxStore) error {
            return &mysql.MySQLError{Number: mysqlDeadlock, Message: "Deadlock found"}
        })
        assert.ErrorIs(t, err, booking.ErrTxConflict)
        _, _, rollbacks := l.counts()
        assert.Equal(t, 1, rollbacks)
    })
}

func TestInTxCommitErrors(t *testing.T) {
    t.Run("unknown outcome", func(t *testing.T) {
        l := &txLog{commitErr: errors.New("read tcp: i/o timeout")}
        repo := newTxRepo(t, l)

        err := repo.InTx(context.Background(), func(booking.TxStore) error { return nil })
        assert.ErrorIs(t, err, booking.ErrOutcomeUnknown)
        assert.ErrorIs(t, err, booking.ErrStoreUnavailable)
        _, commits, rollbacks := l.counts()
        assert.Zero(t, commits)
        assert.Zero(t, rollbacks)
    })

    t.Run("deadlock at commit", func(t *testing.T) {
        l := &txLog{commitErr: &mysql.MySQLError{Number: mysqlDeadlock, Message: "Deadlock found"}}
        repo := newTxRepo(t, l)

        err := repo.InTx(context.Background(), func(booking.TxStore) error { return nil })
        assert.ErrorIs(t, err, booking.ErrTxConflict)
        assert.NotErrorIs(t, err, booking.ErrOutcomeUnknown)
    })
}

func TestInTxBeginFailure(t *testing.T) {
    l := &txLog{beginErr: &mysql.MySQLError{Number: mysqlLockWaitTimeout, Message: "Lock wait timeout exceeded"}}
    repo := newTxRepo(t, l)

    called := false
    err := repo.InTx(context.Background(), func(booking.TxStore) error {
        called = true
        return nil
    })
    assert.ErrorIs(t, err, booking.ErrTxConflict)
    assert.False(t, called)
}
