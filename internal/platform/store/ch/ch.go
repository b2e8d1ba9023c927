// Package ch provides a clickhouse client over the native protocol
package ch

import (
	"context"
	"errors"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// Config configures clickhouse client
type Config struct {
	URL string

	// ClientInfo identifies this process to the server, see BuildClientInfo
	ClientInfo clickhouse.ClientInfo
}

// Rows is the minimal result set iteration for ch
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
	Columns() []string
}

// CH wraps a native clickhouse connection
type CH struct {
	conn driver.Conn
}

var openConn = clickhouse.Open

// Open parses the DSN, opens a native connection, and verifies it
func Open(ctx context.Context, cfg Config) (*CH, error) {
	opts, err := clickhouse.ParseDSN(cfg.URL)
	if err != nil {
		return nil, err
	}
	if len(cfg.ClientInfo.Products) > 0 {
		opts.ClientInfo = cfg.ClientInfo
	}
	conn, err := openConn(opts)
	if err != nil {
		return nil, err
	}
	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return &CH{conn: conn}, nil
}

// Insert appends rows to table via a prepared batch.
// rows is row major: one []any per row, positional columns.
func (c *CH) Insert(ctx context.Context, table string, rows [][]any) error {
	if c == nil || c.conn == nil {
		return errors.New("ch: client not open")
	}
	if len(rows) == 0 {
		return nil
	}
	batch, err := c.conn.PrepareBatch(ctx, "INSERT INTO "+table)
	if err != nil {
		return err
	}
	for _, r := range rows {
		if err := batch.Append(r...); err != nil {
			_ = batch.Abort()
			return err
		}
	}
	return batch.Send()
}

// Query runs a query and returns ch.Rows
func (c *CH) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	if c == nil || c.conn == nil {
		return nil, errors.New("ch: client not open")
	}
	return c.conn.Query(ctx, sql, args...)
}

// Ping verifies connectivity
func (c *CH) Ping(ctx context.Context) error {
	if c == nil || c.conn == nil {
		return errors.New("ch: client not open")
	}
	return c.conn.Ping(ctx)
}

// Close closes the connection
func (c *CH) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}
	return c.conn.Close()
}
