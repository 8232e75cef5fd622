package telemetry

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

const (
	MaxFields     = 64
	MaxKeyLen     = 64
	MaxValLen     = 512
	MaxMessageLen = 1024
	MaxServiceLen = 64
)

// Field is a deterministic key/value field representation.
type Field struct {
	K string `json:"k"`
	V string `json:"v"`
}

// Event is a single log record (JSON line).
type Event struct {
	Ts      string  `json:"ts,omitempty"`
	Level   Level   `json:"level"`
	Service string  `json:"service,omitempty"`
	Msg     string  `json:"msg"`
	Fields  []Field `json:"fields,omitempty"`
}

// Options configures the logger.
type Options struct {
	Service string
	Level   Level
	// NoTimestamp omits the ts key (tests, golden output).
	NoTimestamp bool
	// Now overrides the clock.
	Now func() time.Time
}

// Logger is a structured JSON-lines logger.
type Logger struct {
	w     io.Writer
	mu    *sync.Mutex
	opt   Options
	bound map[string]any
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{w: io.Discard, mu: &sync.Mutex{}, opt: Options{Level: LevelError, NoTimestamp: true}}
}

// NewLogger creates a logger writing JSON lines to w.
func NewLogger(w io.Writer, opt Options) *Logger {
	if w == nil {
		w = os.Stdout
	}
	opt.Service = strings.TrimSpace(opt.Service)
	if len(opt.Service) > MaxServiceLen {
		opt.Service = opt.Service[:MaxServiceLen]
	}
	if opt.Level == "" {
		opt.Level = LevelInfo
	}
	if opt.Now == nil {
		opt.Now = time.Now
	}
	return &Logger{w: w, mu: &sync.Mutex{}, opt: opt}
}

// ParseLevel maps a config string to a Level; unknown values yield info.
func ParseLevel(s string) Level {
	switch Level(strings.ToLower(strings.TrimSpace(s))) {
	case LevelDebug:
		return LevelDebug
	case LevelWarn, "warning":
		return LevelWarn
	case LevelError:
		return LevelError
	default:
		return LevelInfo
	}
}

// With returns a child logger that adds fields to every event.
// Caller fields passed at log time win over bound ones.
func (l *Logger) With(fields map[string]any) *Logger {
	if l == nil {
		return nil
	}
	b := make(map[string]any, len(l.bound)+len(fields))
	for k, v := range l.bound {
		b[k] = v
	}
	for k, v := range fields {
		b[k] = v
	}
	return &Logger{w: l.w, mu: l.mu, opt: l.opt, bound: b}
}

func (l *Logger) Debug(ctx context.Context, msg string, fields map[string]any) {
	l.log(ctx, LevelDebug, msg, fields)
}

func (l *Logger) Info(ctx context.Context, msg string, fields map[string]any) {
	l.log(ctx, LevelInfo, msg, fields)
}

func (l *Logger) Warn(ctx context.Context, msg string, fields map[string]any) {
	l.log(ctx, LevelWarn, msg, fields)
}

func (l *Logger) Error(ctx context.Context, msg string, fields map[string]any) {
	l.log(ctx, LevelError, msg, fields)
}

func rank(x Level) int {
	switch x {
	case LevelDebug:
		return 1
	case LevelInfo:
		return 2
	case LevelWarn:
		return 3
	default:
		return 4
	}
}

func (l *Logger) Enabled(level Level) bool {
	return l != nil && rank(level) >= rank(l.opt.Level)
}

type ctxKey string

const requestIDKey ctxKey = "request_id"

// WithRequestID stores a request id that every event logged with ctx carries.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID returns the id stored by WithRequestID.
func RequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	s, _ := ctx.Value(requestIDKey).(string)
	return s
}

func (l *Logger) log(ctx context.Context, level Level, msg string, fields map[string]any) {
	if !l.Enabled(level) {
		return
	}
	ev := Event{
		Level:   level,
		Service: l.opt.Service,
		Msg:     sanitize(msg, MaxMessageLen),
	}
	if !l.opt.NoTimestamp {
		ev.Ts = l.opt.Now().UTC().Format(time.RFC3339Nano)
	}

	merged := make(map[string]string, len(l.bound)+len(fields)+1)
	set := func(k string, v any) {
		k = strings.TrimSpace(k)
		if k == "" || len(k) > MaxKeyLen {
			return
		}
		merged[k] = sanitize(valueToString(v), MaxValLen)
	}
	for k, v := range l.bound {
		set(k, v)
	}
	for k, v := range fields {
		set(k, v)
	}
	// request_id is authoritative
	if id := RequestID(ctx); strings.TrimSpace(id) != "" {
		set("request_id", id)
	}

	if len(merged) > 0 {
		keys := make([]string, 0, len(merged))
		for k := range merged {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		if len(keys) > MaxFields {
			keys = keys[:MaxFields]
		}
		ev.Fields = make([]Field, 0, len(keys))
		for _, k := range keys {
			ev.Fields = append(ev.Fields, Field{K: k, V: merged[k]})
		}
	}

	line, err := json.Marshal(ev)
	if err != nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = l.w.Write(line)
	_, _ = l.w.Write([]byte("\n"))
}

// sanitize trims, truncates, and removes control chars/newlines.
func sanitize(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) > max {
		s = s[:max]
	}
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7f {
			continue
		}
		out = append(out, r)
	}
	return string(out)
}

// valueToString encodes composite values as JSON (map keys sorted by encoding/json).
func valueToString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case time.Duration:
		return x.String()
	case error:
		return x.Error()
	case json.Number:
		return x.String()
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
