package hooking

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the console logger used by flowmem tools. Debug output is
// enabled when verbose is set.
func NewLogger(verbose bool) *zap.SugaredLogger {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:      "timestamp",
		LevelKey:     "level",
		MessageKey:   "message",
		CallerKey:    "caller",
		EncodeLevel:  zapcore.CapitalLevelEncoder,
		EncodeTime:   zapcore.ISO8601TimeEncoder,
		EncodeCaller: zapcore.ShortCallerEncoder,
	}

	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.AddSync(os.Stderr),
		level,
	)

	return zap.New(core, zap.AddCaller()).Sugar()
}

// A LogHook writes every hook context it receives to a zap logger at debug
// level.
type LogHook struct {
	*zap.SugaredLogger
}

// NewLogHook creates a LogHook that writes to logger.
func NewLogHook(logger *zap.SugaredLogger) *LogHook {
	return &LogHook{SugaredLogger: logger}
}

// Func logs the hook position and its item.
func (h *LogHook) Func(ctx HookCtx) {
	fields := []any{"pos", ctx.Pos.Name}

	if s, ok := ctx.Item.(fmt.Stringer); ok {
		fields = append(fields, "item", s.String())
	} else if ctx.Item != nil {
		fields = append(fields, "item", ctx.Item)
	}

	if ctx.Detail != nil {
		fields = append(fields, "detail", ctx.Detail)
	}

	h.Debugw("hook", fields...)
}
