// Package logger owns the process-wide zap logger of the bake tools.
// Console output is human readable; the optional log file is JSON lines
// so bake logs can be searched by stage and asset.
package logger

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Log is the global logger. Stages take named children of it.
var Log = zap.NewNop()

// Sugar is the sugared form of Log.
var Sugar = Log.Sugar()

// FileConfig controls the rotated log file.
type FileConfig struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// DefaultFileConfig keeps a few compressed backups of a week's bakes.
func DefaultFileConfig(path string) FileConfig {
	return FileConfig{
		Path:       path,
		MaxSizeMB:  50,
		MaxBackups: 3,
		MaxAgeDays: 7,
		Compress:   true,
	}
}

// Options selects the level and sinks of a logger.
type Options struct {
	Level   string
	File    FileConfig // no file output when Path is empty
	Console io.Writer  // no console output when nil
}

// New builds a logger writing to every sink in opts.
func New(opts Options) *zap.Logger {
	lvl := parseLevel(opts.Level)

	var cores []zapcore.Core
	if opts.Console != nil {
		enc := zapcore.NewConsoleEncoder(encoderConfig(
			zapcore.TimeEncoderOfLayout("15:04:05"),
			zapcore.CapitalColorLevelEncoder,
		))
		cores = append(cores, zapcore.NewCore(enc, zapcore.Lock(zapcore.AddSync(opts.Console)), lvl))
	}
	if f := opts.File; f.Path != "" {
		w := &lumberjack.Logger{
			Filename:   f.Path,
			MaxSize:    f.MaxSizeMB,
			MaxBackups: f.MaxBackups,
			MaxAge:     f.MaxAgeDays,
			Compress:   f.Compress,
			LocalTime:  true,
		}
		enc := zapcore.NewJSONEncoder(encoderConfig(zapcore.ISO8601TimeEncoder, zapcore.CapitalLevelEncoder))
		cores = append(cores, zapcore.NewCore(enc, zapcore.AddSync(w), lvl))
	}
	if len(cores) == 0 {
		return zap.NewNop()
	}
	return zap.New(zapcore.NewTee(cores...), zap.AddCaller())
}

// Init replaces the global logger. Console logs go to stderr; stdout
// carries tool output.
func Init(level string, logFile string) error {
	opts := Options{Level: level, Console: os.Stderr}
	if logFile != "" {
		opts.File = DefaultFileConfig(logFile)
	}
	set(New(opts))
	return nil
}

// InitWithFileConfig replaces the global logger with one writing to a custom
// log file, and to stderr when consoleOutput is set.
func InitWithFileConfig(level string, fileCfg FileConfig, consoleOutput bool) error {
	opts := Options{Level: level, File: fileCfg}
	if consoleOutput {
		opts.Console = os.Stderr
	}
	set(New(opts))
	return nil
}

func set(l *zap.Logger) {
	Log = l
	Sugar = l.Sugar()
}

func encoderConfig(time zapcore.TimeEncoder, level zapcore.LevelEncoder) zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:          "time",
		LevelKey:         "level",
		NameKey:          "stage",
		MessageKey:       "msg",
		CallerKey:        "caller",
		EncodeTime:       time,
		EncodeLevel:      level,
		EncodeName:       zapcore.FullNameEncoder,
		EncodeCaller:     zapcore.ShortCallerEncoder,
		EncodeDuration:   zapcore.StringDurationEncoder,
		ConsoleSeparator: " ",
	}
}

// parseLevel maps a config level name to a zap level, defaulting to info.
func parseLevel(level string) zapcore.Level {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil || lvl > zapcore.ErrorLevel {
		return zapcore.InfoLevel
	}
	return lvl
}

// Named returns a child of the global logger for one pipeline stage.
func Named(stage string) *zap.Logger {
	return Log.Named(stage)
}

// Sync flushes buffered entries.
func Sync() {
	_ = Log.Sync()
}

// Debug, Info, Warn and Error log through the global logger.
func Debug(msg string, fields ...zap.Field) { Log.Debug(msg, fields...) }
func Info(msg string, fields ...zap.Field)  { Log.Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { Log.Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { Log.Error(msg, fields...) }
