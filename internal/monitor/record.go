package monitor

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Record is one structured log line printed by the firmware.
type Record struct {
	Level string
	Msg   string
	Attrs map[string]string
}

// Attr returns the value of key, or "" when absent.
func (r Record) Attr(key string) string {
	return r.Attrs[key]
}

// Float parses the attribute key as a float.
func (r Record) Float(key string) (float64, error) {
	v, ok := r.Attrs[key]
	if !ok {
		return 0, fmt.Errorf("missing attribute %q", key)
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

var errNotRecord = errors.New("not a log record")

// ParseLine parses a line in the slog text format:
//
//	time=2024-01-01T00:00:00.000Z level=INFO msg=mic:levels rms_l=0.031 dbfs_l=-30.3
//
// Lines without a msg key, such as panics or raw prints, return an error.
func ParseLine(line string) (Record, error) {
	rec := Record{Attrs: make(map[string]string)}
	rest := strings.TrimSpace(line)
	for rest != "" {
		eq := strings.IndexByte(rest, '=')
		if eq <= 0 {
			return Record{}, fmt.Errorf("%w: expected key=value in %q", errNotRecord, rest)
		}
		key := rest[:eq]
		if strings.ContainsAny(key, " \t\"") {
			return Record{}, fmt.Errorf("%w: bad key %q", errNotRecord, key)
		}
		rest = rest[eq+1:]
		var value string
		if strings.HasPrefix(rest, `"`) {
			quoted, err := strconv.QuotedPrefix(rest)
			if err != nil {
				return Record{}, fmt.Errorf("%w: unterminated value for %s", errNotRecord, key)
			}
			value, _ = strconv.Unquote(quoted)
			rest = rest[len(quoted):]
		} else {
			end := strings.IndexAny(rest, " \t")
			if end < 0 {
				end = len(rest)
			}
			value = rest[:end]
			rest = rest[end:]
		}
		rest = strings.TrimLeft(rest, " \t")
		switch key {
		case "level":
			rec.Level = value
		case "msg":
			rec.Msg = value
		case "time":
		default:
			rec.Attrs[key] = value
		}
	}
	if rec.Msg == "" {
		return Record{}, fmt.Errorf("%w: no msg", errNotRecord)
	}
	return rec, nil
}
