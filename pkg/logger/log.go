package logger

import (
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/eqtlab/wallet/pkg/logger/output"
)

const logStreamLimit = 20

type Logger struct {
	*zap.Logger
	ch output.LimitedChanWriter
}

// New writes to out at warn level, or at debug level with a console encoder when debug is set.
// The last entries below that level are kept aside for Recent, so nothing shows twice.
func New(debug bool, out io.Writer) *Logger {
	config := zap.NewProductionEncoderConfig()
	config.EncodeTime = zapcore.ISO8601TimeEncoder

	ch := output.NewLimitedChanWriter(logStreamLimit)

	consoleEncoder := zapcore.NewConsoleEncoder(config)
	defaultEncoder := consoleEncoder

	defaultLogLevel := zapcore.DebugLevel

	if !debug {
		defaultLogLevel = zapcore.WarnLevel
		defaultEncoder = zapcore.NewJSONEncoder(config)
	}

	trailLevel := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return lvl < defaultLogLevel
	})

	core := zapcore.NewTee(
		zapcore.NewCore(consoleEncoder, zapcore.AddSync(ch), trailLevel),
		zapcore.NewCore(defaultEncoder, zapcore.AddSync(out), defaultLogLevel),
	)

	return &Logger{
		Logger: zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)),
		ch:     ch,
	}
}

// Recent returns the buffered entries, oldest first, and clears the buffer.
func (l *Logger) Recent() []string {
	return l.ch.Drain()
}
