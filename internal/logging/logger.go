package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogLevel определяет уровни логирования
type LogLevel int

const (
	TRACE LogLevel = iota
	DEBUG
	INFO
	WARN
	ERROR
)

// String возвращает строковое представление уровня логирования
func (l LogLevel) String() string {
	switch l {
	case TRACE:
		return "TRACE"
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel разбирает уровень из строки конфигурации ("debug", "INFO"...).
// Неизвестное значение дает INFO.
func ParseLevel(s string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return TRACE
	case "DEBUG":
		return DEBUG
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	default:
		return INFO
	}
}

// zapLevel отображает наш уровень на шкалу zap (TRACE = -2).
func (l LogLevel) zapLevel() zapcore.Level {
	return zapcore.Level(int(l) - 2)
}

func encodeLevel(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(LogLevel(int(l) + 2).String())
}

// Options настройки вывода логов
type Options struct {
	Dir          string   // каталог файлов логов; пустая строка: только консоль
	ConsoleLevel LogLevel // минимальный уровень для консоли
	FileLevel    LogLevel // минимальный уровень для файла
	MaxSizeMB    int      // размер файла до ротации
	MaxBackups   int      // сколько старых файлов хранить
	MaxAgeDays   int      // сколько дней хранить старые файлы
	Compress     bool     // сжимать ротированные файлы
}

// DefaultOptions настройки по умолчанию
func DefaultOptions() Options {
	return Options{
		Dir:          "logs",
		ConsoleLevel: INFO,
		FileLevel:    TRACE,
		MaxSizeMB:    64,
		MaxBackups:   5,
		MaxAgeDays:   7,
	}
}

var (
	optionsMu sync.RWMutex
	options   = DefaultOptions()
)

// Configure задает настройки для логгеров, создаваемых после вызова.
func Configure(o Options) {
	optionsMu.Lock()
	options = o
	optionsMu.Unlock()
}

func currentOptions() Options {
	optionsMu.RLock()
	defer optionsMu.RUnlock()
	return options
}

// Logger логгер одного компонента: консоль + файл с ротацией
type Logger struct {
	component    string
	sugar        *zap.SugaredLogger
	base         *zap.Logger
	rotator      *lumberjack.Logger
	consoleLevel zap.AtomicLevel
	fileLevel    zap.AtomicLevel
}

// NewLogger создает логгер компонента с текущими Options
func NewLogger(component string) (*Logger, error) {
	return newLoggerWithOptions(component, currentOptions())
}

func newLoggerWithOptions(component string, o Options) (*Logger, error) {
	encCfg := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "component",
		MessageKey:     "msg",
		EncodeLevel:    encodeLevel,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeName:     zapcore.FullNameEncoder,
	}

	l := &Logger{
		component:    component,
		consoleLevel: zap.NewAtomicLevelAt(o.ConsoleLevel.zapLevel()),
		fileLevel:    zap.NewAtomicLevelAt(o.FileLevel.zapLevel()),
	}

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(os.Stdout), l.consoleLevel),
	}

	if o.Dir != "" {
		if err := os.MkdirAll(o.Dir, 0755); err != nil {
			return nil, fmt.Errorf("ошибка создания директории %s: %w", o.Dir, err)
		}
		l.rotator = &lumberjack.Logger{
			Filename:   filepath.Join(o.Dir, component+".log"),
			MaxSize:    o.MaxSizeMB,
			MaxBackups: o.MaxBackups,
			MaxAge:     o.MaxAgeDays,
			LocalTime:  true,
			Compress:   o.Compress,
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(l.rotator), l.fileLevel))
	}

	l.base = zap.New(zapcore.NewTee(cores...)).Named(component)
	l.sugar = l.base.Sugar()
	return l, nil
}

// Component имя компонента
func (l *Logger) Component() string { return l.component }

// SetLevels меняет минимальные уровни на лету
func (l *Logger) SetLevels(console, file LogLevel) {
	l.consoleLevel.SetLevel(console.zapLevel())
	l.fileLevel.SetLevel(file.zapLevel())
}

func (l *Logger) logf(level LogLevel, format string, args ...interface{}) {
	if l == nil || l.base == nil {
		return
	}
	if ce := l.base.Check(level.zapLevel(), fmt.Sprintf(format, args...)); ce != nil {
		ce.Write()
	}
}

// Trace логирует сообщение уровня TRACE
func (l *Logger) Trace(format string, args ...interface{}) { l.logf(TRACE, format, args...) }

// Debug логирует сообщение уровня DEBUG
func (l *Logger) Debug(format string, args ...interface{}) { l.logf(DEBUG, format, args...) }

// Info логирует сообщение уровня INFO
func (l *Logger) Info(format string, args ...interface{}) { l.logf(INFO, format, args...) }

// Warn логирует сообщение уровня WARN
func (l *Logger) Warn(format string, args ...interface{}) { l.logf(WARN, format, args...) }

// Error логирует сообщение уровня ERROR
func (l *Logger) Error(format string, args ...interface{}) { l.logf(ERROR, format, args...) }

// Zap возвращает структурированный zap-логгер компонента
func (l *Logger) Zap() *zap.Logger {
	if l == nil || l.base == nil {
		return zap.NewNop()
	}
	return l.base
}

// Close сбрасывает буферы и закрывает файл
func (l *Logger) Close() error {
	if l == nil || l.base == nil {
		return nil
	}
	_ = l.base.Sync()
	if l.rotator != nil {
		return l.rotator.Close()
	}
	return nil
}

// Глобальный логгер процесса
var defaultLogger *Logger

// InitDefaultLogger инициализирует глобальный логгер
func InitDefaultLogger(component string) error {
	logger, err := NewLogger(component)
	if err != nil {
		return err
	}
	defaultLogger = logger
	return nil
}

// CloseDefaultLogger закрывает глобальный логгер
func CloseDefaultLogger() {
	if defaultLogger != nil {
		_ = defaultLogger.Close()
	}
}

// До InitDefaultLogger сообщения глобального уровня отбрасываются.

// Trace логирует сообщение уровня TRACE
func Trace(format string, args ...interface{}) { defaultLogger.logf(TRACE, format, args...) }

// Debug логирует сообщение уровня DEBUG
func Debug(format string, args ...interface{}) { defaultLogger.logf(DEBUG, format, args...) }

// Info логирует сообщение уровня INFO
func Info(format string, args ...interface{}) { defaultLogger.logf(INFO, format, args...) }

// Warn логирует сообщение уровня WARN
func Warn(format string, args ...interface{}) { defaultLogger.logf(WARN, format, args...) }

// Error логирует сообщение уровня ERROR
func Error(format string, args ...interface{}) { defaultLogger.logf(ERROR, format, args...) }
