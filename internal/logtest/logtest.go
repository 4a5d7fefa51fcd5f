// Package logtest records zlog output so tests can assert on it.
package logtest

import (
	"context"
	"sync"

	lg "github.com/Andrej220/go-utils/zlog"
	"go.uber.org/zap/zapcore"
)

// Entry is one recorded log call.
type Entry struct {
	Level  string
	Msg    string
	Fields []lg.Field
}

// Field returns the value of the named field and whether it was set.
func (e Entry) Field(key string) (any, bool) {
	for _, f := range e.Fields {
		if f.Key != key {
			continue
		}
		switch f.Type {
		case zapcore.StringType:
			return f.String, true
		case zapcore.Int64Type, zapcore.Int32Type:
			return f.Integer, true
		default:
			return f.Interface, true
		}
	}
	return nil, false
}

type sink struct {
	mu      sync.Mutex
	entries []Entry
}

// Recorder is a ZLogger that keeps every entry in memory. Loggers derived
// with With share the same entries.
type Recorder struct {
	sink   *sink
	fields []lg.Field
}

var _ lg.ZLogger = (*Recorder)(nil)

// New returns an empty Recorder.
func New() *Recorder { return &Recorder{sink: &sink{}} }

// Attach returns ctx carrying a new Recorder.
func Attach(ctx context.Context) (context.Context, *Recorder) {
	r := New()
	return lg.Attach(ctx, r), r
}

func (r *Recorder) Debug(msg string, fields ...lg.Field) { r.record("debug", msg, fields) }
func (r *Recorder) Info(msg string, fields ...lg.Field)  { r.record("info", msg, fields) }
func (r *Recorder) Warn(msg string, fields ...lg.Field)  { r.record("warn", msg, fields) }
func (r *Recorder) Error(msg string, fields ...lg.Field) { r.record("error", msg, fields) }
func (r *Recorder) Sync() error                          { return nil }

func (r *Recorder) With(fields ...lg.Field) lg.ZLogger {
	merged := make([]lg.Field, 0, len(r.fields)+len(fields))
	merged = append(merged, r.fields...)
	merged = append(merged, fields...)
	return &Recorder{sink: r.sink, fields: merged}
}

func (r *Recorder) record(level, msg string, fields []lg.Field) {
	e := Entry{Level: level, Msg: msg}
	e.Fields = append(append(e.Fields, r.fields...), fields...)

	r.sink.mu.Lock()
	r.sink.entries = append(r.sink.entries, e)
	r.sink.mu.Unlock()
}

// Entries returns a copy of everything recorded so far.
func (r *Recorder) Entries() []Entry {
	r.sink.mu.Lock()
	defer r.sink.mu.Unlock()
	return append([]Entry(nil), r.sink.entries...)
}

// Find returns the entries with the given level and message.
func (r *Recorder) Find(level, msg string) []Entry {
	var out []Entry
	for _, e := range r.Entries() {
		if e.Level == level && e.Msg == msg {
			out = append(out, e)
		}
	}
	return out
}
