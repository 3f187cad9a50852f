package logger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"
)

// FixedFormatWriter turns zerolog JSON events into fixed-column text lines:
//
//	2026-02-26 12:00:00.000 [INF] [worker         ] Cycle completed cycle=3 duration=1.2
//	2026-02-26 12:00:01.200 [ERR] [agent          ] Cycle failed err="collector disk: timeout"
//
// The err field always follows the message. A stack field is written on the
// following lines, indented.
type FixedFormatWriter struct {
	w io.Writer
}

// NewFixedFormatWriter creates a FixedFormatWriter on top of w.
func NewFixedFormatWriter(w io.Writer) *FixedFormatWriter {
	return &FixedFormatWriter{w: w}
}

const (
	componentWidth  = 15
	timestampLayout = "2006-01-02 15:04:05.000"
	timestampWidth  = len(timestampLayout)
)

var levelAbbrev = map[string]string{
	"trace": "TRC",
	"debug": "DBG",
	"info":  "INF",
	"warn":  "WRN",
	"error": "ERR",
	"fatal": "FTL",
	"panic": "PNC",
}

// Write implements io.Writer. Input that is not a JSON object is passed through.
func (f *FixedFormatWriter) Write(p []byte) (int, error) {
	dec := json.NewDecoder(bytes.NewReader(p))
	dec.UseNumber()

	var fields map[string]interface{}
	if err := dec.Decode(&fields); err != nil {
		return f.w.Write(p)
	}

	ts := formatTimestamp(popString(fields, "time"))
	lvl, ok := levelAbbrev[popString(fields, "level")]
	if !ok {
		lvl = "???"
	}
	component := popString(fields, "component")
	if len(component) > componentWidth {
		component = component[:componentWidth]
	}
	message := popString(fields, "message")
	errText, hasErr := fields["err"]
	delete(fields, "err")
	stack := popString(fields, "stack")
	delete(fields, "caller")

	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s] [%-*s] %s", ts, lvl, componentWidth, component, message)
	if hasErr {
		b.WriteByte(' ')
		b.WriteString(formatPair("err", errText))
	}
	if extra := formatExtra(fields); extra != "" {
		b.WriteByte(' ')
		b.WriteString(extra)
	}
	b.WriteByte('\n')
	if stack != "" {
		for _, line := range strings.Split(strings.TrimRight(stack, "\n"), "\n") {
			b.WriteString("    ")
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}

	if _, err := io.WriteString(f.w, b.String()); err != nil {
		return 0, err
	}
	// zerolog treats a short count as an error.
	return len(p), nil
}

func popString(fields map[string]interface{}, key string) string {
	v, ok := fields[key]
	if !ok {
		return ""
	}
	delete(fields, key)
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// formatTimestamp renders an RFC3339 timestamp as wall-clock time with
// milliseconds, keeping the event's own offset. The result is always
// timestampWidth characters wide.
func formatTimestamp(ts string) string {
	if ts == "" {
		return strings.Repeat(" ", timestampWidth)
	}
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		if len(ts) > timestampWidth {
			return ts[:timestampWidth]
		}
		return ts + strings.Repeat(" ", timestampWidth-len(ts))
	}
	return t.Format(timestampLayout)
}

// formatExtra renders the remaining fields as sorted key=value pairs.
func formatExtra(fields map[string]interface{}) string {
	if len(fields) == 0 {
		return ""
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, formatPair(k, fields[k]))
	}
	return strings.Join(parts, " ")
}

func formatPair(key string, value interface{}) string {
	s := fmt.Sprint(value)
	if s == "" || strings.ContainsAny(s, " \t\n\"=") {
		return fmt.Sprintf("%s=%q", key, s)
	}
	return key + "=" + s
}
