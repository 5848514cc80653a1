// Package logger is the structured JSON-lines logger used across LingoFin Hub.
// It is a typed-field front end over a log/slog JSON handler: every line has
// ts, level, msg, an optional caller, and the fields nested under "fields".
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

// slogLevel spaces levels four apart, as slog does, so Fatal lands on
// ERROR+4.
func (l Level) slogLevel() slog.Level { return slog.Level(4*int(l) - 4) }

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelFatal:
		return "FATAL"
	}
	return "UNKNOWN"
}

// ParseLevel reads a config value. Anything unrecognised is Info.
func ParseLevel(s string) Level {
	for l := LevelDebug; l <= LevelFatal; l++ {
		if strings.EqualFold(strings.TrimSpace(s), l.String()) {
			return l
		}
	}
	if strings.EqualFold(strings.TrimSpace(s), "warning") {
		return LevelWarn
	}
	return LevelInfo
}

// Field is one key/value. Constructors below cover the common types.
type Field struct {
	Key   string
	Value any
}

func (f Field) attr() slog.Attr { return slog.Any(f.Key, f.Value) }

func F(key string, value any) Field            { return Field{key, value} }
func String(key, value string) Field           { return Field{key, value} }
func Int(key string, value int) Field          { return Field{key, value} }
func Int64(key string, value int64) Field      { return Field{key, value} }
func Float64(key string, value float64) Field  { return Field{key, value} }
func Bool(key string, value bool) Field        { return Field{key, value} }
func Any(key string, value any) Field          { return Field{key, value} }
func Strings(key string, value []string) Field { return Field{key, value} }

// Err stores the message under "error"; nil becomes null.
func Err(err error) Field {
	if err == nil {
		return Field{"error", nil}
	}
	return Field{"error", err.Error()}
}

func Duration(key string, d time.Duration) Field { return Field{key, d.String()} }
func Time(key string, t time.Time) Field         { return Field{key, t.UTC().Format(time.RFC3339)} }

// Entry is the decoded shape of one line.
type Entry struct {
	Timestamp string         `json:"ts"`
	Level     string         `json:"level"`
	Message   string         `json:"msg"`
	Caller    string         `json:"caller,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
}

type Options struct {
	Output     io.Writer
	Level      Level
	AddCaller  bool
	CallerSkip int
}

func DefaultOptions() Options {
	return Options{Output: os.Stdout, Level: LevelInfo, AddCaller: true}
}

// Logger is immutable; With and WithLevel return children writing to the
// same handler.
type Logger struct {
	h          slog.Handler
	level      Level
	addCaller  bool
	callerSkip int
	now        func() time.Time
}

func New(opts Options) *Logger {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	h := slog.NewJSONHandler(opts.Output, &slog.HandlerOptions{
		AddSource:   opts.AddCaller,
		Level:       slog.Level(-8),
		ReplaceAttr: rewriteBuiltins,
	})
	return &Logger{
		h:          h.WithGroup("fields"),
		level:      opts.Level,
		addCaller:  opts.AddCaller,
		callerSkip: opts.CallerSkip,
		now:        time.Now,
	}
}

// rewriteBuiltins renames slog's top-level keys to ts/level/msg/caller.
func rewriteBuiltins(groups []string, a slog.Attr) slog.Attr {
	if len(groups) > 0 {
		return a
	}
	switch a.Key {
	case slog.TimeKey:
		return slog.String("ts", a.Value.Time().UTC().Format(time.RFC3339Nano))
	case slog.LevelKey:
		lvl, _ := a.Value.Any().(slog.Level)
		return slog.String(slog.LevelKey, levelName(lvl))
	case slog.SourceKey:
		src, ok := a.Value.Any().(*slog.Source)
		if !ok || src.File == "" {
			return slog.Attr{}
		}
		return slog.String("caller", filepath.Base(src.File)+":"+strconv.Itoa(src.Line))
	}
	return a
}

func levelName(l slog.Level) string {
	for lv := LevelDebug; lv <= LevelFatal; lv++ {
		if lv.slogLevel() == l {
			return lv.String()
		}
	}
	return l.String()
}

func Default() *Logger { return New(DefaultOptions()) }

// Nop writes nothing.
func Nop() *Logger { return New(Options{Output: io.Discard, Level: LevelFatal + 1}) }

func (l *Logger) With(fields ...Field) *Logger {
	attrs := make([]slog.Attr, len(fields))
	for i, f := range fields {
		attrs[i] = f.attr()
	}
	c := *l
	c.h = l.h.WithAttrs(attrs)
	return &c
}

func (l *Logger) WithLevel(level Level) *Logger {
	c := *l
	c.level = level
	return &c
}

func (l *Logger) Enabled(level Level) bool { return level >= l.level }

// skip frames: runtime.Callers, log, the level method.
const baseSkip = 3

func (l *Logger) log(level Level, msg string, fields []Field) {
	if !l.Enabled(level) {
		return
	}
	var pc uintptr
	if l.addCaller {
		var pcs [1]uintptr
		runtime.Callers(baseSkip+l.callerSkip, pcs[:])
		pc = pcs[0]
	}
	r := slog.NewRecord(l.now(), level.slogLevel(), msg, pc)
	for _, f := range fields {
		r.AddAttrs(f.attr())
	}
	_ = l.h.Handle(context.Background(), r)
}

func (l *Logger) Debug(msg string, fields ...Field) { l.log(LevelDebug, msg, fields) }
func (l *Logger) Info(msg string, fields ...Field)  { l.log(LevelInfo, msg, fields) }
func (l *Logger) Warn(msg string, fields ...Field)  { l.log(LevelWarn, msg, fields) }
func (l *Logger) Error(msg string, fields ...Field) { l.log(LevelError, msg, fields) }

// Fatal logs and exits with status 1.
func (l *Logger) Fatal(msg string, fields ...Field) {
	l.log(LevelFatal, msg, fields)
	os.Exit(1)
}

type ctxKey struct{}

func WithContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext falls back to Default when ctx carries no logger.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(ctxKey{}).(*Logger); ok && l != nil {
		return l
	}
	return Default()
}

const RequestIDKey = "request_id"

func (l *Logger) WithRequestID(id string) *Logger { return l.With(String(RequestIDKey, id)) }

// Domain fields.
func UserID(id string) Field        { return String("user_id", id) }
func CourseID(id string) Field      { return String("course_id", id) }
func LessonID(id string) Field      { return String("lesson_id", id) }
func ChallengeID(id string) Field   { return String("challenge_id", id) }
func PostID(id string) Field        { return String("post_id", id) }
func Email(email string) Field      { return String("email", email) }
func Points(n int) Field            { return Int("points", n) }
func UserLevel(n int) Field         { return Int("level", n) }
func Component(name string) Field   { return String("component", name) }
func Operation(name string) Field   { return String("operation", name) }
func Latency(d time.Duration) Field { return Duration("latency", d) }
