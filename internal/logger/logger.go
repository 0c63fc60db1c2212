package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"
)

// Level represents the severity of a log message.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

func (l Level) String() string {
	switch l {
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

// ParseLevel parses a string into a Level. Unknown values map to INFO.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return DEBUG
	case "INFO":
		return INFO
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	default:
		return INFO
	}
}

// Format selects how records are encoded.
type Format int

const (
	FormatText Format = iota
	FormatJSON
)

// ParseFormat maps "json" to FormatJSON and anything else to FormatText.
func ParseFormat(s string) Format {
	if strings.EqualFold(strings.TrimSpace(s), "json") {
		return FormatJSON
	}
	return FormatText
}

// Logger is a leveled logger carrying a prefix and key/value fields.
// Loggers derived with WithField/WithPrefix share the parent's output lock.
type Logger struct {
	mu       *sync.Mutex
	out      io.Writer
	level    Level
	prefix   string
	fields   map[string]any
	colorize bool
	format   Format
}

// Option configures a Logger.
type Option func(*Logger)

// WithOutput sets the output destination.
func WithOutput(w io.Writer) Option {
	return func(l *Logger) {
		l.out = w
	}
}

// WithLevel sets the minimum log level.
func WithLevel(level Level) Option {
	return func(l *Logger) {
		l.level = level
	}
}

// WithPrefix sets a prefix for log messages.
func WithPrefix(prefix string) Option {
	return func(l *Logger) {
		l.prefix = prefix
	}
}

// WithFormat sets the record encoding. JSON output is never colorized.
func WithFormat(f Format) Option {
	return func(l *Logger) {
		l.format = f
	}
}

// WithColors enables or disables colorized output.
func WithColors(enabled bool) Option {
	return func(l *Logger) {
		l.colorize = enabled
	}
}

// New creates a new Logger with the given options.
func New(opts ...Option) *Logger {
	l := &Logger{
		mu:       &sync.Mutex{},
		out:      os.Stdout,
		level:    INFO,
		fields:   make(map[string]any),
		colorize: true,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Discard returns a logger that drops everything. Handy in tests.
func Discard() *Logger {
	return New(WithOutput(io.Discard), WithLevel(ERROR+1), WithColors(false))
}

var (
	defaultMu     sync.RWMutex
	defaultLogger = New()
)

// SetDefault sets the default logger.
func SetDefault(l *Logger) {
	defaultMu.Lock()
	defaultLogger = l
	defaultMu.Unlock()
}

// Default returns the default logger.
func Default() *Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

func (l *Logger) clone(extra int) *Logger {
	fields := make(map[string]any, len(l.fields)+extra)
	for k, v := range l.fields {
		fields[k] = v
	}
	return &Logger{
		mu:       l.mu,
		out:      l.out,
		level:    l.level,
		prefix:   l.prefix,
		fields:   fields,
		colorize: l.colorize,
		format:   l.format,
	}
}

// WithField returns a new logger with the given field added.
func (l *Logger) WithField(key string, value any) *Logger {
	n := l.clone(1)
	n.fields[key] = value
	return n
}

// WithFields returns a new logger with the given fields added.
func (l *Logger) WithFields(fields map[string]any) *Logger {
	n := l.clone(len(fields))
	for k, v := range fields {
		n.fields[k] = v
	}
	return n
}

// WithPrefix returns a new logger with the given prefix.
func (l *Logger) WithPrefix(prefix string) *Logger {
	n := l.clone(0)
	n.prefix = prefix
	return n
}

// Enabled reports whether messages at level would be written.
func (l *Logger) Enabled(level Level) bool {
	return level >= l.level
}

// entry is one rendered log record before encoding.
type entry struct {
	time   time.Time
	level  Level
	prefix string
	caller string
	msg    string
	keys   []string
	fields map[string]any
}

func (l *Logger) log(level Level, msg string, args ...any) {
	if !l.Enabled(level) {
		return
	}

	e := entry{
		time:   time.Now(),
		level:  level,
		prefix: l.prefix,
		msg:    msg,
		fields: l.fields,
	}
	if len(args) > 0 {
		e.msg = fmt.Sprintf(msg, args...)
	}
	if _, file, line, ok := runtime.Caller(2); ok {
		e.caller = fmt.Sprintf("%s:%d", file[strings.LastIndex(file, "/")+1:], line)
	}
	e.keys = make([]string, 0, len(l.fields))
	for k := range l.fields {
		e.keys = append(e.keys, k)
	}
	sort.Strings(e.keys)

	var line []byte
	if l.format == FormatJSON {
		line = encodeJSON(e)
	} else {
		line = encodeText(e, l.colorize)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = l.out.Write(line)
}

func encodeText(e entry, color bool) []byte {
	var sb strings.Builder
	sb.WriteString(e.time.Format("2006-01-02 15:04:05.000"))
	sb.WriteByte(' ')
	if color {
		sb.WriteString(colorize(e.level))
	} else {
		fmt.Fprintf(&sb, "%-5s", e.level.String())
	}
	sb.WriteByte(' ')
	if e.prefix != "" {
		sb.WriteString("[" + e.prefix + "] ")
	}
	if e.caller != "" {
		sb.WriteString("[" + e.caller + "] ")
	}
	sb.WriteString(e.msg)
	for _, k := range e.keys {
		fmt.Fprintf(&sb, " %s=%v", k, e.fields[k])
	}
	sb.WriteByte('\n')
	return []byte(sb.String())
}

// encodeJSON writes one object per line. Field values that cannot be
// marshalled are rendered with %v.
func encodeJSON(e entry) []byte {
	rec := make(map[string]any, len(e.fields)+5)
	for k, v := range e.fields {
		if _, err := json.Marshal(v); err != nil {
			v = fmt.Sprintf("%v", v)
		}
		rec[k] = v
	}
	rec["time"] = e.time.UTC().Format(time.RFC3339Nano)
	rec["level"] = e.level.String()
	rec["msg"] = e.msg
	if e.prefix != "" {
		rec["component"] = e.prefix
	}
	if e.caller != "" {
		rec["caller"] = e.caller
	}
	b, err := json.Marshal(rec)
	if err != nil {
		b = []byte(fmt.Sprintf(`{"level":%q,"msg":%q}`, e.level.String(), e.msg))
	}
	return append(b, '\n')
}

var levelColors = map[Level]string{
	DEBUG: "\033[36m",
	INFO:  "\033[32m",
	WARN:  "\033[33m",
	ERROR: "\033[31m",
}

func colorize(level Level) string {
	c, ok := levelColors[level]
	if !ok {
		c = "\033[0m"
	}
	return fmt.Sprintf("%s%-5s\033[0m", c, level.String())
}

// Debug logs a message at DEBUG level.
func (l *Logger) Debug(msg string, args ...any) {
	l.log(DEBUG, msg, args...)
}

// Info logs a message at INFO level.
func (l *Logger) Info(msg string, args ...any) {
	l.log(INFO, msg, args...)
}

// Warn logs a message at WARN level.
func (l *Logger) Warn(msg string, args ...any) {
	l.log(WARN, msg, args...)
}

// Error logs a message at ERROR level.
func (l *Logger) Error(msg string, args ...any) {
	l.log(ERROR, msg, args...)
}

// Package-level functions that use the default logger.

func Debug(msg string, args ...any) { Default().log(DEBUG, msg, args...) }
func Info(msg string, args ...any)  { Default().log(INFO, msg, args...) }
func Warn(msg string, args ...any)  { Default().log(WARN, msg, args...) }
func Error(msg string, args ...any) { Default().log(ERROR, msg, args...) }

type ctxKey struct{}

// FromContext returns the logger from the context, or the default logger.
func FromContext(ctx context.Context) *Logger {
	if ctx != nil {
		if l, ok := ctx.Value(ctxKey{}).(*Logger); ok {
			return l
		}
	}
	return Default()
}

// NewContext returns a new context with the given logger.
func NewContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}
