package logger

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Loggers splits informational output (stdout) from errors (stderr).
type Loggers struct {
	InfoLogger  *zap.Logger
	ErrorLogger *zap.Logger
}

func SetupLogger(level string) (*Loggers, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "time"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewJSONEncoder(encoderCfg)

	infoLevel := zap.LevelEnablerFunc(func(l zapcore.Level) bool {
		return l >= lvl && l < zapcore.ErrorLevel
	})
	errorLevel := zap.LevelEnablerFunc(func(l zapcore.Level) bool {
		return l >= zapcore.ErrorLevel
	})

	infoCore := zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), infoLevel)
	errorCore := zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), errorLevel)

	return &Loggers{
		InfoLogger:  zap.New(infoCore),
		ErrorLogger: zap.New(errorCore, zap.AddCaller()),
	}, nil
}

// NewNop returns loggers that discard everything.
func NewNop() *Loggers {
	return &Loggers{
		InfoLogger:  zap.NewNop(),
		ErrorLogger: zap.NewNop(),
	}
}

func (l *Loggers) Sync() {
	_ = l.InfoLogger.Sync()
	_ = l.ErrorLogger.Sync()
}
