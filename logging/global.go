package logging

import (
	"io"
	"log"
	"os"
	"runtime/debug"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogFileOptions configures the rotated JSON log file written alongside the console output.
type LogFileOptions struct {
	FilePath   string
	MaxSizeMB  int
	MaxBackups int
}

func (o *LogFileOptions) writer() io.Writer {
	maxSize := o.MaxSizeMB
	if maxSize == 0 {
		maxSize = 500
	}
	maxBackups := o.MaxBackups
	if maxBackups == 0 {
		maxBackups = 3
	}
	return &lumberjack.Logger{
		Filename:   o.FilePath,
		MaxSize:    maxSize, // megabytes
		MaxBackups: maxBackups,
		MaxAge:     28, // days
		Compress:   false,
	}
}

func parseConfigLevel(levelName string) (zapcore.Level, error) {
	return zapcore.ParseLevel(levelName)
}

func parseConfigLevelEncoder(levelEncoderName string) zapcore.LevelEncoder {
	switch levelEncoderName {
	case "capitalColor":
		return zapcore.CapitalColorLevelEncoder
	case "capital":
		return zapcore.CapitalLevelEncoder
	case "lowercase":
		return zapcore.LowercaseLevelEncoder
	default:
		return zapcore.CapitalLevelEncoder
	}
}

// SetGlobalLogger replaces zap's global logger with a console logger at the given level.
// When file options are given, all levels are additionally written as JSON to a rotated file.
func SetGlobalLogger(levelName string, levelEncoderName string, logFormat string, fileOpts *LogFileOptions) error {
	level, err := parseConfigLevel(levelName)
	if err != nil {
		return err
	}

	lv := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return lvl >= level
	})

	encoderConfig := zapcore.EncoderConfig{
		MessageKey:  "message",
		LevelKey:    "level",
		EncodeLevel: parseConfigLevelEncoder(levelEncoderName),
		TimeKey:     "time",
		EncodeTime: func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
			enc.AppendString(t.UTC().Format("2006-01-02T15:04:05.000000Z"))
		},
		CallerKey:        "caller",
		EncodeCaller:     zapcore.ShortCallerEncoder,
		EncodeDuration:   zapcore.StringDurationEncoder,
		NameKey:          "name",
		ConsoleSeparator: "\t",
	}

	var encoder zapcore.Encoder
	if logFormat == "json" {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}
	consoleCore := zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), lv)

	if fileOpts == nil || fileOpts.FilePath == "" {
		zap.ReplaceGlobals(zap.New(consoleCore))
		return nil
	}

	lv2 := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return true // debug log returns all logs
	})

	dev := zapcore.NewJSONEncoder(zap.NewDevelopmentEncoderConfig())
	fileCore := zapcore.NewCore(dev, zapcore.AddSync(fileOpts.writer()), lv2)

	zap.ReplaceGlobals(zap.New(zapcore.NewTee(consoleCore, fileCore)))

	return nil
}

func CapturePanic(logger *zap.Logger) {
	if r := recover(); r != nil {
		defer func() {
			if err := logger.Sync(); err != nil {
				log.Println("failed to sync zap.Logger", err)
			}
		}()
		stackTrace := string(debug.Stack())
		logger.Panic("Recovered from panic", zap.Any("panic", r), zap.String("stackTrace", stackTrace))
	}
}
