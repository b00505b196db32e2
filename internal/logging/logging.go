// Package logging holds the process-wide zap logger.
//
// Components take a named child with Named. Package-level Debug, Info and
// Warn are for call sites with no component of their own; they report the
// caller's line, not this package's.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ServiceName is attached to every entry
const ServiceName = "premium-rating"

var (
	base    *zap.Logger
	helpers *zap.Logger
)

// Config contains logging configuration
type Config struct {
	// Level is the minimum log level; unknown levels fall back to info
	Level string `json:"level" mapstructure:"level"`

	// Format is json or console
	Format string `json:"format" mapstructure:"format"`

	// Output is stdout, stderr or a file path
	Output string `json:"output" mapstructure:"output"`

	Development bool `json:"development" mapstructure:"development"`
}

// DefaultConfig logs info and above to stderr in console format
func DefaultConfig() Config {
	return Config{
		Level:  "info",
		Format: "console",
		Output: "stderr",
	}
}

func encoder(format string) zapcore.Encoder {
	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey = "timestamp"
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	if format == "console" {
		ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return zapcore.NewConsoleEncoder(ec)
	}
	return zapcore.NewJSONEncoder(ec)
}

func sink(output string) (zapcore.WriteSyncer, error) {
	switch output {
	case "stdout":
		return zapcore.Lock(os.Stdout), nil
	case "stderr", "":
		return zapcore.Lock(os.Stderr), nil
	}
	f, err := os.OpenFile(output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	return zapcore.AddSync(f), nil
}

// Build constructs a logger from cfg without touching the process logger
func Build(cfg Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}
	ws, err := sink(cfg.Output)
	if err != nil {
		return nil, err
	}

	opts := []zap.Option{zap.AddCaller(), zap.Fields(zap.String("service", ServiceName))}
	if cfg.Development {
		opts = append(opts, zap.Development(), zap.AddStacktrace(zapcore.ErrorLevel))
	}
	return zap.New(zapcore.NewCore(encoder(cfg.Format), ws, level), opts...), nil
}

// Initialize replaces the process logger
func Initialize(cfg Config) error {
	logger, err := Build(cfg)
	if err != nil {
		return err
	}
	Replace(logger)
	return nil
}

// Replace installs logger as the process logger
func Replace(logger *zap.Logger) {
	base = logger
	helpers = logger.WithOptions(zap.AddCallerSkip(1))
}

// Sync flushes buffered entries
func Sync() {
	if base != nil {
		_ = base.Sync()
	}
}

// Named returns a child of the process logger for a component
func Named(component string) *zap.Logger {
	return base.Named(component)
}

// Plan returns the standard fields identifying a rate plan version
func Plan(planID, version, productType, carrierID string) []zap.Field {
	return []zap.Field{
		zap.String("plan_id", planID),
		zap.String("plan_version", version),
		zap.String("product_type", productType),
		zap.String("carrier_id", carrierID),
	}
}

func Debug(msg string, fields ...zap.Field) { helpers.Debug(msg, fields...) }
func Info(msg string, fields ...zap.Field)  { helpers.Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { helpers.Warn(msg, fields...) }

func init() {
	_ = Initialize(DefaultConfig())
}
