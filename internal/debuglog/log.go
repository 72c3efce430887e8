package debuglog

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel represents the severity level of a log message
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelOff // Disables all logging
)

// String returns the string representation of the log level
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelOff:
		return "OFF"
	default:
		return "UNKNOWN"
	}
}

// ParseLogLevel parses a string into a LogLevel
func ParseLogLevel(s string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug
	case "INFO":
		return LevelInfo
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	case "OFF":
		return LevelOff
	default:
		return LevelInfo
	}
}

func (l LogLevel) zapLevel() zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError, LevelOff:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

var (
	mu           sync.RWMutex
	currentLevel = LevelOff
	atomicLevel  = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	logger       *zap.SugaredLogger
	logFile      *os.File
)

// Setup configures the logging system with the specified level and optional file path.
// If filePath is empty, defaults to ~/.przepisy/przepisy.log.
func Setup(level LogLevel, filePath ...string) error {
	mu.Lock()
	defer mu.Unlock()

	currentLevel = level
	closeLocked()

	if level == LevelOff {
		return nil
	}

	var logPath string
	if len(filePath) > 0 && filePath[0] != "" {
		logPath = filePath[0]
	} else {
		home, _ := os.UserHomeDir()
		logPath = filepath.Join(home, ".przepisy", "przepisy.log")
	}
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", logPath, err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	atomicLevel.SetLevel(level.zapLevel())
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(f), atomicLevel)

	logFile = f
	logger = zap.New(core).Named("przepisy").Sugar()
	return nil
}

// SetupWithBool provides backward compatibility with the old Setup(bool) signature
func SetupWithBool(enabled bool) {
	if enabled {
		_ = Setup(LevelInfo)
	} else {
		_ = Setup(LevelOff)
	}
}

// SetLevel changes the current logging level
func SetLevel(level LogLevel) {
	mu.Lock()
	defer mu.Unlock()
	currentLevel = level
	atomicLevel.SetLevel(level.zapLevel())
}

// GetLevel returns the current logging level
func GetLevel() LogLevel {
	mu.RLock()
	defer mu.RUnlock()
	return currentLevel
}

// Close flushes and closes the log file if open
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	return closeLocked()
}

func closeLocked() error {
	if logger != nil {
		_ = logger.Sync()
		logger = nil
	}
	if logFile != nil {
		err := logFile.Close()
		logFile = nil
		return err
	}
	return nil
}

func logw(level LogLevel, msg string, kv []interface{}) {
	mu.RLock()
	defer mu.RUnlock()
	if level < currentLevel || currentLevel == LevelOff || logger == nil {
		return
	}
	switch level {
	case LevelDebug:
		logger.Debugw(msg, kv...)
	case LevelInfo:
		logger.Infow(msg, kv...)
	case LevelWarn:
		logger.Warnw(msg, kv...)
	default:
		logger.Errorw(msg, kv...)
	}
}

func Debugf(format string, args ...any) {
	logw(LevelDebug, fmt.Sprintf(format, args...), nil)
}

func Infof(format string, args ...any) {
	logw(LevelInfo, fmt.Sprintf(format, args...), nil)
}

func Warnf(format string, args ...any) {
	logw(LevelWarn, fmt.Sprintf(format, args...), nil)
}

func Errorf(format string, args ...any) {
	logw(LevelError, fmt.Sprintf(format, args...), nil)
}

// FieldLogger attaches key-value fields to every message.
type FieldLogger struct {
	kv []interface{}
}

// WithFields returns a new logger with the specified fields
func WithFields(fields map[string]interface{}) *FieldLogger {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	kv := make([]interface{}, 0, len(fields)*2)
	for _, k := range keys {
		kv = append(kv, k, fields[k])
	}
	return &FieldLogger{kv: kv}
}

func (fl *FieldLogger) Debugf(format string, args ...any) {
	logw(LevelDebug, fmt.Sprintf(format, args...), fl.kv)
}

func (fl *FieldLogger) Infof(format string, args ...any) {
	logw(LevelInfo, fmt.Sprintf(format, args...), fl.kv)
}

func (fl *FieldLogger) Warnf(format string, args ...any) {
	logw(LevelWarn, fmt.Sprintf(format, args...), fl.kv)
}

func (fl *FieldLogger) Errorf(format string, args ...any) {
	logw(LevelError, fmt.Sprintf(format, args...), fl.kv)
}
