// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package audit

import (
	"io"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/go-core-stack/mcp-gateway/pkg/auth"
)

const (
	// name of the audit logger as carried in every record
	LoggerName = "mcp-gateway.audit"

	EventRequestReceived  = "request_received"
	EventRequestCompleted = "request_completed"
	EventOperation        = "mcp_operation"
)

// Config for the audit logger
type Config struct {
	// Enabled turns audit output on, a disabled logger drops
	// every record
	Enabled bool

	// File is the path of the audit log, records go to stdout
	// when empty
	File string

	// Level is the minimum level written, defaults to info
	Level zapcore.Level
}

// Logger emits one structured JSON record per audit event. Audit is
// best effort, a failure to write a record never reaches the caller.
type Logger struct {
	logger *zap.Logger
	closer io.Closer
}

func encoderConfig() zapcore.EncoderConfig {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.LevelKey = "level"
	encoderCfg.NameKey = "logger"
	encoderCfg.MessageKey = "msg"
	encoderCfg.CallerKey = zapcore.OmitKey
	encoderCfg.StacktraceKey = zapcore.OmitKey
	encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	encoderCfg.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		zapcore.ISO8601TimeEncoder(t.UTC(), enc)
	}
	return encoderCfg
}

// New creates an audit logger for the given config
func New(cfg Config) *Logger {
	if !cfg.Enabled {
		return Disabled()
	}

	var sink zapcore.WriteSyncer
	var closer io.Closer
	if cfg.File == "" {
		// log only to stdout
		sink = zapcore.Lock(os.Stdout)
	} else {
		lumberjackLogger := &lumberjack.Logger{
			Filename:   cfg.File, // Log file path
			MaxSize:    10,       // Max size in MB before rotation
			MaxBackups: 5,        // Max number of old log files to keep
			MaxAge:     30,       // Max age in days to keep a log file
			Compress:   true,     // Compress old logs
		}
		sink = zapcore.AddSync(lumberjackLogger)
		closer = lumberjackLogger
	}

	l := NewWithSink(sink, cfg.Level)
	l.closer = closer
	return l
}

// NewWithSink creates an audit logger writing JSON records to the
// provided sink
func NewWithSink(sink zapcore.WriteSyncer, level zapcore.Level) *Logger {
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig()), sink, level)
	return NewFromCore(core)
}

// NewFromCore creates an audit logger on top of an existing zap core
func NewFromCore(core zapcore.Core) *Logger {
	logger := zap.New(core, zap.ErrorOutput(zapcore.AddSync(io.Discard))).Named(LoggerName)
	return &Logger{logger: logger}
}

// Disabled returns a logger that drops every record
func Disabled() *Logger {
	return &Logger{logger: zap.NewNop()}
}

// emit writes the record, recovering from any failure in the logging
// path so that the request pipeline is never aborted by audit
func (l *Logger) emit(event string, fields ...zap.Field) {
	if l == nil || l.logger == nil {
		return
	}
	defer func() {
		_ = recover()
	}()
	l.logger.Info(event, append([]zap.Field{zap.String("event_type", event)}, fields...)...)
}

// RequestReceived records an inbound request before it is handled
func (l *Logger) RequestReceived(id, method, path, clientIP, userAgent string) {
	l.emit(EventRequestReceived,
		zap.String("request_id", id),
		zap.String("method", method),
		zap.String("path", path),
		zap.String("client_ip", clientIP),
		zap.String("user_agent", userAgent),
	)
}

// RequestCompleted records the final status of a handled request
func (l *Logger) RequestCompleted(id string, status int, path string, duration time.Duration) {
	l.emit(EventRequestCompleted,
		zap.String("request_id", id),
		zap.Int("status_code", status),
		zap.String("path", path),
		zap.Float64("duration_ms", float64(duration.Microseconds())/1000),
	)
}

// Operation records a named operation performed by an identity on a
// tenant, details are optional
func (l *Logger) Operation(operation string, id *auth.Identity, tenant string, details map[string]any) {
	fields := []zap.Field{
		zap.String("operation", operation),
		zap.String("tenant_id", tenant),
	}
	if id != nil {
		fields = append(fields,
			zap.String("user_id", id.ID),
			zap.String("user_email", id.Email),
		)
	}
	if len(details) != 0 {
		fields = append(fields, zap.Any("details", details))
	}
	l.emit(EventOperation, fields...)
}

// Sync flushes buffered records and releases the file sink, if any
func (l *Logger) Sync() error {
	if l == nil || l.logger == nil {
		return nil
	}
	err := l.logger.Sync()
	if l.closer != nil {
		if cerr := l.closer.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
