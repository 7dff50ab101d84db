package log

import (
	stdlog "log"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// zapLogger implements Logger on top of a zap.Logger.
type zapLogger struct {
	z     *zap.Logger
	level zap.AtomicLevel
}

func newZapLogger(o options) *zapLogger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeDuration = zapcore.StringDurationEncoder

	var enc zapcore.Encoder
	if o.format == FormatJSON {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	level := zap.NewAtomicLevelAt(toZapLevel(o.level))
	core := zapcore.NewCore(enc, zapcore.Lock(zapcore.AddSync(o.out)), level)
	return &zapLogger{z: zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)), level: level}
}

// NewNop returns a Logger that discards all entries.
func NewNop() Logger {
	return &zapLogger{z: zap.NewNop(), level: zap.NewAtomicLevelAt(zapcore.ErrorLevel)}
}

func (l *zapLogger) Debug(msg string, fields ...Field) { l.z.Debug(msg, toZapFields(fields)...) }
func (l *zapLogger) Info(msg string, fields ...Field)  { l.z.Info(msg, toZapFields(fields)...) }
func (l *zapLogger) Warn(msg string, fields ...Field)  { l.z.Warn(msg, toZapFields(fields)...) }
func (l *zapLogger) Error(msg string, fields ...Field) { l.z.Error(msg, toZapFields(fields)...) }

func (l *zapLogger) With(fields ...Field) Logger {
	if len(fields) == 0 {
		return l
	}
	return &zapLogger{z: l.z.With(toZapFields(fields)...), level: l.level}
}

func (l *zapLogger) WithComponent(component string) Logger {
	return l.With(Component(component))
}

func (l *zapLogger) WithError(err error) Logger {
	return l.With(Err(err))
}

func (l *zapLogger) SetLevel(level Level) { l.level.SetLevel(toZapLevel(level)) }

func (l *zapLogger) GetLevel() Level { return fromZapLevel(l.level.Level()) }

func (l *zapLogger) Sync() error { return l.z.Sync() }

// RedirectStdLog routes the standard library logger to logger at info level.
// The returned function restores the previous configuration.
func RedirectStdLog(logger Logger) func() {
	zl, ok := logger.(*zapLogger)
	if !ok {
		return func() {}
	}
	restore := zap.RedirectStdLog(zl.z.WithOptions(zap.AddCallerSkip(-1)))
	return func() {
		restore()
		stdlog.SetFlags(stdlog.LstdFlags)
	}
}

func toZapFields(fields []Field) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, len(fields))
	for _, f := range fields {
		if err, ok := f.Value.(error); ok {
			out = append(out, zap.NamedError(f.Key, err))
			continue
		}
		out = append(out, zap.Any(f.Key, f.Value))
	}
	return out
}

func toZapLevel(level Level) zapcore.Level {
	switch level {
	case DebugLevel:
		return zapcore.DebugLevel
	case WarnLevel:
		return zapcore.WarnLevel
	case ErrorLevel:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func fromZapLevel(level zapcore.Level) Level {
	switch {
	case level <= zapcore.DebugLevel:
		return DebugLevel
	case level == zapcore.InfoLevel:
		return InfoLevel
	case level == zapcore.WarnLevel:
		return WarnLevel
	default:
		return ErrorLevel
	}
}
