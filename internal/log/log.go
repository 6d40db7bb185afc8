// Package log provides category-tagged structured logging backed by zerolog.
//
// Call sites pass a Category and alternating key/value fields:
//
//	log.Info(log.CatWait, "session finished", "agent_id", id, "outcome", outcome)
//
// Until Init is called, messages at info level and above go to stderr.
package log

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Category groups related log messages.
type Category string

const (
	CatConfig Category = "config" // Configuration loading
	CatHTTP   Category = "http"   // HTTP transport and middleware
	CatMCP    Category = "mcp"    // MCP protocol handling
	CatAuth   Category = "auth"   // Credential resolution and tokens
	CatAPI    Category = "api"    // Remote agent API calls
	CatWait   Category = "wait"   // Create-and-wait sessions
	CatTrace  Category = "trace"  // Tracing provider lifecycle
)

// Options configures the process logger.
type Options struct {
	Level  string // debug, info, warn, error; defaults to info
	Pretty bool   // human-readable console output
	Writer io.Writer
}

var (
	mu     sync.RWMutex
	logger = zerolog.New(os.Stderr).Level(zerolog.InfoLevel).With().Timestamp().Logger()
)

// Init replaces the process logger.
func Init(opts Options) error {
	level := zerolog.InfoLevel
	if s := strings.TrimSpace(opts.Level); s != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(s))
		if err != nil {
			return err
		}
		level = parsed
	}

	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	if opts.Pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	mu.Lock()
	logger = zerolog.New(w).Level(level).With().Timestamp().Logger()
	mu.Unlock()
	return nil
}

// Logger returns the process logger for callers that need zerolog directly.
func Logger() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// Debug logs at debug level.
func Debug(cat Category, msg string, fields ...any) {
	emit(zerolog.DebugLevel, cat, msg, fields)
}

// Info logs at info level.
func Info(cat Category, msg string, fields ...any) {
	emit(zerolog.InfoLevel, cat, msg, fields)
}

// Warn logs at warning level.
func Warn(cat Category, msg string, fields ...any) {
	emit(zerolog.WarnLevel, cat, msg, fields)
}

// Error logs at error level.
func Error(cat Category, msg string, fields ...any) {
	emit(zerolog.ErrorLevel, cat, msg, fields)
}

// ErrorErr logs err at error level. A nil err is logged as "<nil>".
func ErrorErr(cat Category, msg string, err error, fields ...any) {
	if err != nil {
		fields = append(fields, "error", err.Error())
	} else {
		fields = append(fields, "error", "<nil>")
	}
	emit(zerolog.ErrorLevel, cat, msg, fields)
}

func emit(level zerolog.Level, cat Category, msg string, fields []any) {
	l := Logger()
	ev := l.WithLevel(level)
	if ev == nil {
		return
	}
	if len(fields)%2 != 0 {
		fields = append(fields, "<missing>")
	}
	ev.Str("cat", string(cat)).Fields(fields).Msg(msg)
}
