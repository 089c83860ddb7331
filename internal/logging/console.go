package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// consoleHandler writes one human-readable line per record:
//
//	2026-01-02T15:04:05Z WARN  diskcache [pass 1a2b3c4d]: message key=value
//
// The component and pass ID are lifted out of the attribute list.
type consoleHandler struct {
	mu         *sync.Mutex
	out        io.Writer
	level      slog.Level
	withSource bool
	prefix     string
	preset     []field
}

type field struct {
	key   string
	value slog.Value
}

func newConsoleHandler(out io.Writer, level slog.Level, withSource bool) *consoleHandler {
	return &consoleHandler{mu: &sync.Mutex{}, out: out, level: level, withSource: withSource}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	fields := make([]field, 0, len(h.preset)+record.NumAttrs())
	fields = append(fields, h.preset...)
	record.Attrs(func(attr slog.Attr) bool {
		fields = appendField(fields, h.prefix, attr)
		return true
	})

	var component, passID string
	rest := fields[:0]
	for _, f := range fields {
		switch f.key {
		case FieldComponent:
			if component == "" {
				component = f.value.String()
			}
		case FieldPassID:
			passID = f.value.String()
		default:
			rest = append(rest, f)
		}
	}

	ts := record.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	line := make([]byte, 0, 160)
	line = ts.UTC().AppendFormat(line, time.RFC3339)
	line = append(line, ' ')
	line = fmt.Appendf(line, "%-5s ", levelName(record.Level))
	if component != "" {
		line = append(line, component...)
		if passID != "" {
			line = fmt.Appendf(line, " [pass %s]", shortPass(passID))
		}
		line = append(line, ": "...)
	} else if passID != "" {
		line = fmt.Appendf(line, "[pass %s] ", shortPass(passID))
	}
	msg := strings.TrimSpace(record.Message)
	if msg == "" {
		msg = "(no message)"
	}
	line = append(line, msg...)
	if h.withSource {
		if src := record.Source(); src != nil && src.File != "" {
			line = fmt.Appendf(line, " [%s:%d]", filepath.Base(src.File), src.Line)
		}
	}
	for _, f := range rest {
		line = append(line, ' ')
		line = append(line, f.key...)
		line = append(line, '=')
		line = appendValue(line, f.value)
	}
	line = append(line, '\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.out.Write(line)
	return err
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.preset = append([]field(nil), h.preset...)
	for _, attr := range attrs {
		clone.preset = appendField(clone.preset, h.prefix, attr)
	}
	return &clone
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.prefix = h.prefix + name + "."
	return &clone
}

// appendField flattens groups into dotted keys.
func appendField(dst []field, prefix string, attr slog.Attr) []field {
	attr.Value = attr.Value.Resolve()
	if attr.Equal(slog.Attr{}) {
		return dst
	}
	if attr.Value.Kind() == slog.KindGroup {
		inner := prefix
		if attr.Key != "" {
			inner = prefix + attr.Key + "."
		}
		for _, member := range attr.Value.Group() {
			dst = appendField(dst, inner, member)
		}
		return dst
	}
	return append(dst, field{key: prefix + attr.Key, value: attr.Value})
}

func appendValue(dst []byte, v slog.Value) []byte {
	var s string
	switch v.Kind() {
	case slog.KindString:
		s = v.String()
	case slog.KindInt64:
		return strconv.AppendInt(dst, v.Int64(), 10)
	case slog.KindUint64:
		return strconv.AppendUint(dst, v.Uint64(), 10)
	case slog.KindFloat64:
		return strconv.AppendFloat(dst, v.Float64(), 'f', -1, 64)
	case slog.KindBool:
		return strconv.AppendBool(dst, v.Bool())
	case slog.KindDuration:
		return append(dst, v.Duration().String()...)
	case slog.KindTime:
		return v.Time().UTC().AppendFormat(dst, time.RFC3339)
	default:
		if err, ok := v.Any().(error); ok {
			s = err.Error()
		} else {
			s = fmt.Sprint(v.Any())
		}
	}
	if s == "" || strings.ContainsFunc(s, func(r rune) bool { return r <= ' ' || r == '=' || r == '"' }) {
		return strconv.AppendQuote(dst, s)
	}
	return append(dst, s...)
}

func levelName(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}

func shortPass(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
