package logger

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// StepLogTimeLayout is the timestamp layout of step log lines.
const StepLogTimeLayout = "2006-01-02 15:04:05"

func bracketTimeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString("[" + t.Format(StepLogTimeLayout) + "]")
}

// NewStepLog opens path for writing, truncating previous content, and returns a logger
// that writes one "[YYYY-MM-DD HH:MM:SS] message" line per entry. The returned
// function flushes and closes the file.
func NewStepLog(path string) (*zap.Logger, func() error, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open step log %q: %w", path, err)
	}

	encoder := zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		TimeKey:          "time",
		MessageKey:       "msg",
		EncodeTime:       bracketTimeEncoder,
		ConsoleSeparator: " ",
		LineEnding:       zapcore.DefaultLineEnding,
	})

	core := zapcore.NewCore(encoder, zapcore.Lock(f), zapcore.InfoLevel)
	log := zap.New(core)

	closer := func() error {
		_ = log.Sync()
		return f.Close()
	}

	return log, closer, nil
}
