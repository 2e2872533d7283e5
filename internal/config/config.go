// Package config loads the process's runtime configuration from command
// line flags using the standard library's flag package.
package config

import (
	"flag"
	"fmt"
)

// Config holds every runtime-tunable option the server needs, plus the
// document root and error-pages directory the static file source uses.
type Config struct {
	Port      int
	TrigMode  int // 0..3: bit0 = connection edge, bit1 = listener edge
	TimeoutMS int
	OptLinger bool

	SQLHost     string
	SQLPort     int
	SQLUser     string
	SQLPassword string
	SQLDB       string
	SQLPoolSize int

	ThreadNum int

	OpenLog      bool
	LogLevel     int // 0=DEBUG .. 3=ERROR, matching internal/logging.Level
	LogQueueSize int
	LogDir       string
	LogAsync     bool

	DocRoot       string
	ErrorPagesDir string
	MaxBodyBytes  int
}

// Parse builds a Config from args (os.Args[1:] in production, a literal
// slice in tests), applying documented defaults.
func Parse(args []string) (Config, error) {
	fs := flag.NewFlagSet("reactorweb", flag.ContinueOnError)

	cfg := Config{}
	fs.IntVar(&cfg.Port, "port", 8080, "listening port")
	fs.IntVar(&cfg.TrigMode, "trig-mode", 3, "readiness mode: 0=LL 1=LE 2=EL 3=EE")
	fs.IntVar(&cfg.TimeoutMS, "timeout-ms", 60000, "per-connection inactivity timeout in milliseconds")
	fs.BoolVar(&cfg.OptLinger, "opt-linger", false, "enable SO_LINGER on accepted sockets")

	fs.StringVar(&cfg.SQLHost, "sql-host", "", "SQL server host (blank disables the SQL pool)")
	fs.IntVar(&cfg.SQLPort, "sql-port", 3306, "SQL server port")
	fs.StringVar(&cfg.SQLUser, "sql-user", "", "SQL user")
	fs.StringVar(&cfg.SQLPassword, "sql-password", "", "SQL password")
	fs.StringVar(&cfg.SQLDB, "sql-db", "", "SQL database name")
	fs.IntVar(&cfg.SQLPoolSize, "sql-pool-size", 8, "maximum concurrent SQL checkouts")

	fs.IntVar(&cfg.ThreadNum, "thread-num", 8, "worker pool goroutine count")

	fs.BoolVar(&cfg.OpenLog, "open-log", true, "enable file logging")
	fs.IntVar(&cfg.LogLevel, "log-level", 1, "minimum log level: 0=DEBUG 1=INFO 2=WARN 3=ERROR")
	fs.IntVar(&cfg.LogQueueSize, "log-queue-size", 1024, "async log queue capacity")
	fs.StringVar(&cfg.LogDir, "log-dir", "./log", "directory for daily-rotated log files")
	fs.BoolVar(&cfg.LogAsync, "log-async", true, "drain log records on a background goroutine")

	fs.StringVar(&cfg.DocRoot, "doc-root", "./www", "static file document root")
	fs.StringVar(&cfg.ErrorPagesDir, "error-pages-dir", "", "directory holding canned 400/403/404 pages (defaults to doc-root)")
	fs.IntVar(&cfg.MaxBodyBytes, "max-body-bytes", 1<<20, "maximum accepted request body size")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if cfg.TrigMode < 0 || cfg.TrigMode > 3 {
		return Config{}, fmt.Errorf("config: trig-mode must be in [0,3], got %d", cfg.TrigMode)
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return Config{}, fmt.Errorf("config: port %d out of range", cfg.Port)
	}

	return cfg, nil
}
