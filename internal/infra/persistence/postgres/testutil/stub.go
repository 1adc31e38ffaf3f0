// Package testutil provides a stub database for postgres store tests.
package testutil

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// StubConn records statements executed by the postgres store during tests and
// keeps one payload per state bucket.
type StubConn struct {
	mu      sync.Mutex
	Execs   []string
	Buckets map[string][]byte

	FailPing   bool
	FailExec   bool
	FailBegin  bool
	FailCommit bool
}

// NewStubDB registers a sql.DB backed by an in-memory stub connection.
func NewStubDB() (*sql.DB, *StubConn) {
	conn := &StubConn{Buckets: make(map[string][]byte)}
	name := fmt.Sprintf("stubpg%d", time.Now().UnixNano())
	sql.Register(name, &stubDriver{conn: conn})
	db, err := sql.Open(name, "stub")
	if err != nil {
		panic(err)
	}
	return db, conn
}

// Seed stores a payload under bucket as if previously persisted.
func (c *StubConn) Seed(bucket string, payload []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Buckets[bucket] = append([]byte(nil), payload...)
}

// Payload returns the stored payload for bucket.
func (c *StubConn) Payload(bucket string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.Buckets[bucket]
	return append([]byte(nil), p...), ok
}

type stubDriver struct {
	conn *StubConn
}

func (d *stubDriver) Open(string) (driver.Conn, error) { return d.conn, nil }

// Prepare implements driver.Conn.
func (c *StubConn) Prepare(string) (driver.Stmt, error) { return nil, fmt.Errorf("not implemented") }

// Close implements driver.Conn.
func (c *StubConn) Close() error { return nil }

// Begin implements driver.Conn.
func (c *StubConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

// Ping implements driver.Pinger.
func (c *StubConn) Ping(context.Context) error {
	if c.FailPing {
		return fmt.Errorf("ping fail")
	}
	return nil
}

// BeginTx implements driver.ConnBeginTx.
func (c *StubConn) BeginTx(context.Context, driver.TxOptions) (driver.Tx, error) {
	if c.FailBegin {
		return nil, fmt.Errorf("begin fail")
	}
	return &stubTx{conn: c}, nil
}

// ExecContext implements driver.ExecerContext.
func (c *StubConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Execs = append(c.Execs, query)
	if c.FailExec {
		return nil, fmt.Errorf("exec fail")
	}
	upper := strings.ToUpper(strings.TrimSpace(query))
	switch {
	case strings.HasPrefix(upper, "CREATE TABLE"):
		return driver.RowsAffected(0), nil
	case strings.HasPrefix(upper, "INSERT INTO"):
		if len(args) != 2 {
			return nil, fmt.Errorf("expected bucket and payload args, got %d", len(args))
		}
		bucket, ok := args[0].Value.(string)
		if !ok {
			return nil, fmt.Errorf("bucket arg must be string")
		}
		payload, err := asBytes(args[1].Value)
		if err != nil {
			return nil, err
		}
		c.Buckets[bucket] = payload
		return driver.RowsAffected(1), nil
	default:
		return nil, fmt.Errorf("unexpected exec %q", query)
	}
}

// QueryContext implements driver.QueryerContext.
func (c *StubConn) QueryContext(_ context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !strings.Contains(strings.ToUpper(query), "SELECT PAYLOAD FROM STATE") {
		return nil, fmt.Errorf("unexpected query %q", query)
	}
	if len(args) != 1 {
		return nil, fmt.Errorf("expected bucket arg")
	}
	bucket, ok := args[0].Value.(string)
	if !ok {
		return nil, fmt.Errorf("bucket arg must be string")
	}
	payload, found := c.Buckets[bucket]
	rows := &stubRows{}
	if found {
		rows.payloads = [][]byte{append([]byte(nil), payload...)}
	}
	return rows, nil
}

func asBytes(v driver.Value) ([]byte, error) {
	switch t := v.(type) {
	case []byte:
		return append([]byte(nil), t...), nil
	case string:
		return []byte(t), nil
	default:
		return nil, fmt.Errorf("payload arg must be bytes, got %T", v)
	}
}

type stubTx struct {
	conn *StubConn
}

func (t *stubTx) Commit() error {
	if t.conn.FailCommit {
		return fmt.Errorf("commit fail")
	}
	return nil
}

func (t *stubTx) Rollback() error { return nil }

type stubRows struct {
	payloads [][]byte
	pos      int
}

func (r *stubRows) Columns() []string { return []string{"payload"} }

func (r *stubRows) Close() error { return nil }

func (r *stubRows) Next(dest []driver.Value) error {
	if r.pos >= len(r.payloads) {
		return io.EOF
	}
	dest[0] = r.payloads[r.pos]
	r.pos++
	return nil
}
