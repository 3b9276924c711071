package logging

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLoggerOptions zap 日志提供者选项
type ZapLoggerOptions struct {
	// Format 输出格式："console"（默认）或 "json"
	Format          string
	TimestampFormat string
	ColorOutput     bool
	Output          io.Writer
}

// ZapLoggerProvider 基于 zap 的日志提供者
type ZapLoggerProvider struct {
	base  *zap.Logger
	level zap.AtomicLevel
}

// NewZapLoggerProvider 创建 zap 日志提供者
func NewZapLoggerProvider(options ZapLoggerOptions) *ZapLoggerProvider {
	if options.Output == nil {
		options.Output = os.Stdout
	}
	if options.TimestampFormat == "" {
		options.TimestampFormat = "2006-01-02 15:04:05"
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.MessageKey = "msg"
	encCfg.NameKey = "category"
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout(options.TimestampFormat)
	encCfg.EncodeLevel = encodeLevel(options.ColorOutput)

	var encoder zapcore.Encoder
	if options.Format == "json" {
		encoder = zapcore.NewJSONEncoder(encCfg)
	} else {
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	level := zap.NewAtomicLevelAt(toZapLevel(LogLevelInfo))
	core := zapcore.NewCore(encoder, zapcore.AddSync(options.Output), level)

	return &ZapLoggerProvider{
		base:  zap.New(core),
		level: level,
	}
}

func (p *ZapLoggerProvider) CreateLogger(category string) Logger {
	base := p.base
	if category != "" {
		base = base.Named(category)
	}
	return &zapLogger{base: base, root: p.base}
}

func (p *ZapLoggerProvider) SetMinimumLevel(level LogLevel) {
	p.level.SetLevel(toZapLevel(level))
}

// Sync 刷新缓冲的日志
func (p *ZapLoggerProvider) Sync() error {
	return p.base.Sync()
}

// zapLogger 是 Logger 在 zap 上的适配
type zapLogger struct {
	base *zap.Logger
	root *zap.Logger
}

func (l *zapLogger) Trace(msg string, fields ...Field) { l.Log(LogLevelTrace, msg, fields...) }
func (l *zapLogger) Debug(msg string, fields ...Field) { l.Log(LogLevelDebug, msg, fields...) }
func (l *zapLogger) Info(msg string, fields ...Field)  { l.Log(LogLevelInfo, msg, fields...) }
func (l *zapLogger) Warn(msg string, fields ...Field)  { l.Log(LogLevelWarn, msg, fields...) }
func (l *zapLogger) Error(msg string, fields ...Field) { l.Log(LogLevelError, msg, fields...) }
func (l *zapLogger) Fatal(msg string, fields ...Field) { l.Log(LogLevelFatal, msg, fields...) }

func (l *zapLogger) Log(level LogLevel, msg string, fields ...Field) {
	ce := l.base.Check(toZapLevel(level), msg)
	if ce == nil {
		return
	}
	ce.Write(toZapFields(fields)...)
}

func (l *zapLogger) WithFields(fields ...Field) Logger {
	return &zapLogger{base: l.base.With(toZapFields(fields)...), root: l.root}
}

func (l *zapLogger) WithCategory(category string) Logger {
	return &zapLogger{base: l.root.Named(category), root: l.root}
}

func toZapFields(fields []Field) []zap.Field {
	out := make([]zap.Field, 0, len(fields))
	for _, f := range fields {
		out = append(out, zap.Any(f.Key, f.Value))
	}
	return out
}

// zap 没有 TRACE 级别，使用 DebugLevel-1
const zapTraceLevel = zapcore.DebugLevel - 1

func toZapLevel(level LogLevel) zapcore.Level {
	switch level {
	case LogLevelTrace:
		return zapTraceLevel
	case LogLevelDebug:
		return zapcore.DebugLevel
	case LogLevelInfo:
		return zapcore.InfoLevel
	case LogLevelWarn:
		return zapcore.WarnLevel
	case LogLevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.FatalLevel
	}
}

func fromZapLevel(level zapcore.Level) LogLevel {
	switch {
	case level <= zapTraceLevel:
		return LogLevelTrace
	case level == zapcore.DebugLevel:
		return LogLevelDebug
	case level == zapcore.InfoLevel:
		return LogLevelInfo
	case level == zapcore.WarnLevel:
		return LogLevelWarn
	case level == zapcore.ErrorLevel:
		return LogLevelError
	default:
		return LogLevelFatal
	}
}

func encodeLevel(color bool) zapcore.LevelEncoder {
	return func(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
		l := fromZapLevel(level)
		if color {
			enc.AppendString(colorize(l, l.String()))
			return
		}
		enc.AppendString(l.String())
	}
}

// colorize 为日志级别添加颜色
func colorize(level LogLevel, text string) string {
	const (
		reset   = "\033[0m"
		gray    = "\033[90m"
		cyan    = "\033[36m"
		green   = "\033[32m"
		yellow  = "\033[33m"
		red     = "\033[31m"
		magenta = "\033[35m"
	)

	switch level {
	case LogLevelTrace:
		return gray + text + reset
	case LogLevelDebug:
		return cyan + text + reset
	case LogLevelInfo:
		return green + text + reset
	case LogLevelWarn:
		return yellow + text + reset
	case LogLevelError:
		return red + text + reset
	case LogLevelFatal:
		return magenta + text + reset
	default:
		return text
	}
}
