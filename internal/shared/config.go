package shared

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv      string
	LogLevel    string
	HTTPAddr    string
	MetricsAddr string

	StoreDriver string // mysql | sqlite
	MySQLDSN    string
	SQLitePath  string

	RedisAddr string // empty disables the status store
	RedisDB   int
	RedisPass string
	StatusTTL time.Duration

	Workers       int
	BatchSize     int
	BatchesPerSec float64
	UnknownPolicy string
	SniffContent  bool
	CSVDelimiter  rune

	QueueDBPath      string
	QueueWorkers     int
	QueueMaxAttempts int
	QueueTaskTimeout time.Duration
	QueueBackoff     time.Duration
}

func Load() Config {
	c := Config{
		AppEnv:      env("APP_ENV", "prod"),
		LogLevel:    env("LOG_LEVEL", "info"),
		HTTPAddr:    env("HTTP_ADDR", ":8080"),
		MetricsAddr: env("METRICS_ADDR", ":9100"),

		StoreDriver: strings.ToLower(env("STORE_DRIVER", "mysql")),
		MySQLDSN:    env("MYSQL_DSN", "root:root@tcp(localhost:3306)/poi?parseTime=true&multiStatements=true&charset=utf8mb4,utf8&loc=UTC"),
		SQLitePath:  env("SQLITE_PATH", "poi.db"),

		RedisAddr: os.Getenv("REDIS_ADDR"),
		RedisPass: env("REDIS_PASSWORD", ""),
		RedisDB:   atoi("REDIS_DB", 0),
		StatusTTL: time.Duration(atoi("STATUS_TTL_SECONDS", 7*24*3600)) * time.Second,

		Workers:       atoi("INGEST_WORKERS", 4),
		BatchSize:     atoi("INGEST_BATCH_SIZE", 1000),
		BatchesPerSec: atof("INGEST_BATCHES_PER_SEC", 0),
		UnknownPolicy: env("INGEST_UNKNOWN_POLICY", "skip"),
		SniffContent:  atob("INGEST_SNIFF_CONTENT", false),
		CSVDelimiter:  delimiter("INGEST_CSV_DELIMITER", ','),

		QueueDBPath:      env("QUEUE_DB_PATH", "poi-tasks.db"),
		QueueWorkers:     atoi("QUEUE_WORKERS", 2),
		QueueMaxAttempts: atoi("QUEUE_MAX_ATTEMPTS", 1),
		QueueTaskTimeout: time.Duration(atoi("QUEUE_TASK_TIMEOUT_SECONDS", 1800)) * time.Second,
		QueueBackoff:     time.Duration(atoi("QUEUE_RETRY_BACKOFF_SECONDS", 30)) * time.Second,
	}
	if c.RedisAddr == "" {
		log.Warn().Msg("REDIS_ADDR is empty; import status tracking disabled")
	}
	return c
}

// Validate reports settings that cannot work together.
func (c Config) Validate() error {
	switch c.StoreDriver {
	case "mysql", "sqlite":
	default:
		return fmt.Errorf("STORE_DRIVER %q: want mysql or sqlite", c.StoreDriver)
	}
	if c.Workers <= 0 || c.BatchSize <= 0 || c.QueueWorkers <= 0 {
		return fmt.Errorf("INGEST_WORKERS, INGEST_BATCH_SIZE and QUEUE_WORKERS must be positive")
	}
	if c.BatchesPerSec < 0 {
		return fmt.Errorf("INGEST_BATCHES_PER_SEC must not be negative")
	}
	if !validDelimiter(c.CSVDelimiter) {
		return fmt.Errorf("INGEST_CSV_DELIMITER %q: want tab or one printable ASCII character other than a double quote", c.CSVDelimiter)
	}
	return nil
}

// validDelimiter mirrors what encoding/csv accepts as Comma, narrowed to
// ASCII so the reader can track quoting byte by byte.
func validDelimiter(r rune) bool {
	if r == '\t' {
		return true
	}
	return r >= ' ' && r < utf8.RuneSelf && r != 0x7f && r != '"'
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func atoi(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		log.Warn().Str("key", k).Str("value", v).Msg("not an integer, using default")
	}
	return def
}

func atof(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
		log.Warn().Str("key", k).Str("value", v).Msg("not a number, using default")
	}
	return def
}

func atob(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// delimiter accepts a single character or the word "tab".
func delimiter(k string, def rune) rune {
	v := os.Getenv(k)
	if strings.EqualFold(v, "tab") {
		return '\t'
	}
	if utf8.RuneCountInString(v) == 1 {
		r, _ := utf8.DecodeRuneInString(v)
		return r
	}
	if v != "" {
		log.Warn().Str("key", k).Str("value", v).Msg("not a single character, using default")
	}
	return def
}
