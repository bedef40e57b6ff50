// Package logging provides structured logging utilities.
package logging

import (
	"os"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the process logger. Commands log through ForRun rather than
// using it directly.
var Logger = zap.NewNop()

// maxStatement bounds the SQL text attached to a log entry
const maxStatement = 400

// Config contains logging configuration
type Config struct {
	// Level is the minimum log level
	Level string `json:"level" yaml:"level"`

	// Format is the output format (json, console)
	Format string `json:"format" yaml:"format"`

	// Output is stderr, stdout or a file path. Report tables go to stdout,
	// so logs default to stderr.
	Output string `json:"output" yaml:"output"`

	// Development adds stack traces to errors
	Development bool `json:"development" yaml:"development"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Level:  "warn",
		Format: "console",
		Output: "stderr",
	}
}

// Initialize replaces the process logger. An unparsable level falls back
// to warn.
func Initialize(cfg Config) error {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.WarnLevel
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if cfg.Format == "json" {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	var sink zapcore.WriteSyncer
	switch cfg.Output {
	case "stdout":
		sink = zapcore.Lock(os.Stdout)
	case "stderr", "":
		sink = zapcore.Lock(os.Stderr)
	default:
		file, err := os.OpenFile(cfg.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		sink = zapcore.AddSync(file)
	}

	opts := []zap.Option{zap.AddCaller()}
	if cfg.Development {
		opts = append(opts, zap.Development(), zap.AddStacktrace(zapcore.ErrorLevel))
	}
	Logger = zap.New(zapcore.NewCore(encoder, sink, level), opts...)
	return nil
}

// Sync flushes the logger
func Sync() {
	_ = Logger.Sync()
}

// ForRun returns a logger tagged with a fresh run id and the command name.
func ForRun(command string) *zap.Logger {
	return Logger.With(
		zap.String("run_id", uuid.NewString()),
		zap.String("command", command),
	)
}

// Nop returns a logger that discards everything; used when callers pass nil.
func Nop() *zap.Logger {
	return zap.NewNop()
}

// Statement is a log field holding SQL text on one line, truncated.
func Statement(sql string) zap.Field {
	one := strings.Join(strings.Fields(sql), " ")
	if utf8.RuneCountInString(one) > maxStatement {
		one = string([]rune(one)[:maxStatement]) + "..."
	}
	return zap.String("statement", one)
}
