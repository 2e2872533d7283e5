// Package sqlpool implements an optional SQL connection pool: a
// process-wide resource created during facade init and handed to workers
// by reference, never touched by the core itself. It wraps database/sql
// directly and adds an Acquire()/Release() bound-concurrency contract on
// top.
package sqlpool

import (
	"context"
	"database/sql"
	"fmt"
)

// Config names the connection parameters for the pooled database.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	DB       string
	PoolSize int
}

// Pool bounds concurrent checkouts to PoolSize via a buffered-channel
// semaphore, on top of *sql.DB's own internal pooling.
type Pool struct {
	db  *sql.DB
	sem chan struct{}
}

// Open dials the configured database and prepares the bounding semaphore.
// driverName must name a driver already registered via database/sql's
// init-time registration (e.g. by importing a driver package in main).
func Open(driverName string, cfg Config) (*Pool, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s", cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.DB)
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 8
	}
	db.SetMaxOpenConns(poolSize)

	return &Pool{db: db, sem: make(chan struct{}, poolSize)}, nil
}

// Acquire blocks until a checkout slot is available (or ctx is done), then
// returns a live connection. Callers must Release exactly once.
func (p *Pool) Acquire(ctx context.Context) (*sql.Conn, error) {
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	conn, err := p.db.Conn(ctx)
	if err != nil {
		<-p.sem
		return nil, err
	}
	return conn, nil
}

// Release returns a connection acquired via Acquire to the pool.
func (p *Pool) Release(conn *sql.Conn) {
	_ = conn.Close()
	<-p.sem
}

// Close shuts down the underlying *sql.DB. Call once, at facade shutdown.
func (p *Pool) Close() error {
	return p.db.Close()
}
