package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the service-wide structured logger. It embeds zap.Logger
// so call sites attach fields directly.
type Logger struct {
	*zap.Logger
}

// New builds a logger at the given level. Development mode emits
// colored console lines with stack traces on errors; otherwise the
// output is one JSON object per line, suitable for log collection on
// the device.
func New(level string, development bool) *Logger {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = zapcore.InfoLevel
	}

	core := zapcore.NewCore(encoder(development), zapcore.Lock(os.Stdout), lvl)
	opts := []zap.Option{zap.AddCaller()}
	if development {
		opts = append(opts, zap.AddStacktrace(zapcore.ErrorLevel))
	}
	return &Logger{Logger: zap.New(core, opts...)}
}

// NewDefault returns the production logger: JSON at info level.
func NewDefault() *Logger {
	return New("info", false)
}

// NewDevelopment returns a console logger at debug level.
func NewDevelopment() *Logger {
	return New("debug", true)
}

func encoder(development bool) zapcore.Encoder {
	ec := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stack",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	if development {
		ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return zapcore.NewConsoleEncoder(ec)
	}
	return zapcore.NewJSONEncoder(ec)
}
