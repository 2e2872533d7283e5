// Package server wires the engine's components — the reactor, the worker
// pool it owns, the static file ResponseSource, the logger, and the
// optional SQL pool — into a single Server facade with New/Run/Stop that a
// process entrypoint constructs and drives for one process lifetime.
package server

import (
	"fmt"

	"github.com/s00inx/reactorweb/internal/config"
	"github.com/s00inx/reactorweb/internal/content"
	"github.com/s00inx/reactorweb/internal/logging"
	"github.com/s00inx/reactorweb/internal/reactor"
	"github.com/s00inx/reactorweb/internal/sqlpool"
)

// Server owns every long-lived collaborator for one process lifetime.
type Server struct {
	cfg     config.Config
	log     *logging.Logger
	sqlPool *sqlpool.Pool
	reactor *reactor.Reactor
}

// discardLogger satisfies reactor.ErrorLogger without allocating a
// logging.Logger when the operator disables logging via -open-log=false.
type discardLogger struct{}

func (discardLogger) Debugf(string, ...any) {}
func (discardLogger) Infof(string, ...any)  {}
func (discardLogger) Warnf(string, ...any)  {}
func (discardLogger) Errorf(string, ...any) {}

// New constructs every collaborator named in cfg but does not yet bind a
// listening socket — that happens in Run.
func New(cfg config.Config) (*Server, error) {
	s := &Server{cfg: cfg}

	var errLog reactor.ErrorLogger = discardLogger{}
	if cfg.OpenLog {
		log, err := logging.New(cfg.LogDir, logging.Level(cfg.LogLevel), cfg.LogAsync, cfg.LogQueueSize)
		if err != nil {
			return nil, fmt.Errorf("server: open log: %w", err)
		}
		s.log = log
		errLog = log
	}

	if cfg.SQLHost != "" {
		pool, err := sqlpool.Open("mysql", sqlpool.Config{
			Host:     cfg.SQLHost,
			Port:     cfg.SQLPort,
			User:     cfg.SQLUser,
			Password: cfg.SQLPassword,
			DB:       cfg.SQLDB,
			PoolSize: cfg.SQLPoolSize,
		})
		if err != nil {
			return nil, fmt.Errorf("server: open sql pool: %w", err)
		}
		s.sqlPool = pool
	}

	source := content.New(cfg.DocRoot, cfg.ErrorPagesDir)

	s.reactor = reactor.New(reactor.Config{
		Addr:         [4]byte{0, 0, 0, 0},
		Port:         cfg.Port,
		TrigMode:     reactor.TrigMode(cfg.TrigMode),
		TimeoutMS:    cfg.TimeoutMS,
		OptLinger:    cfg.OptLinger,
		ThreadNum:    cfg.ThreadNum,
		MaxBodyBytes: cfg.MaxBodyBytes,
	}, source, errLog)

	return s, nil
}

// SQLPool exposes the optional SQL connection pool so future request
// handlers can Acquire/Release against it; nil when cfg.SQLHost is unset.
func (s *Server) SQLPool() *sqlpool.Pool { return s.sqlPool }

// Run binds the listener and blocks in the reactor's event loop until Stop
// is called from another goroutine.
func (s *Server) Run() error {
	return s.reactor.Run()
}

// Stop drains the event loop and releases every collaborator in reverse
// construction order.
func (s *Server) Stop() {
	s.reactor.Stop()
	if s.sqlPool != nil {
		_ = s.sqlPool.Close()
	}
	if s.log != nil {
		_ = s.log.Close()
	}
}
