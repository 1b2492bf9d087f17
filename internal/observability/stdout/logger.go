package stdout

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/jchook/retrace/internal/observability"
)

// Logger implements observability.Logger using stdout.
type Logger struct {
	fields   map[string]interface{}
	logger   *log.Logger
	json     bool
	minLevel int
}

var levelOrder = map[string]int{
	"DEBUG": 0,
	"INFO":  1,
	"WARN":  2,
	"ERROR": 3,
}

// NewLogger creates a stdout logger. Format is "json" or "text"; level is
// one of debug/info/warn/error (case-insensitive).
func NewLogger(format, level string) observability.Logger {
	min, ok := levelOrder[strings.ToUpper(level)]
	if !ok {
		min = levelOrder["INFO"]
	}
	return &Logger{
		fields:   make(map[string]interface{}),
		logger:   log.New(os.Stdout, "", 0), // no prefix, we format ourselves
		json:     strings.EqualFold(format, "json"),
		minLevel: min,
	}
}

func (l *Logger) Info(msg string, fields ...interface{})  { l.log("INFO", msg, fields...) }
func (l *Logger) Warn(msg string, fields ...interface{})  { l.log("WARN", msg, fields...) }
func (l *Logger) Error(msg string, fields ...interface{}) { l.log("ERROR", msg, fields...) }
func (l *Logger) Debug(msg string, fields ...interface{}) { l.log("DEBUG", msg, fields...) }

// WithFields returns a new Logger with additional persistent fields.
func (l *Logger) WithFields(fields map[string]interface{}) observability.Logger {
	newFields := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		newFields[k] = v
	}
	for k, v := range fields {
		newFields[k] = v
	}
	return &Logger{
		fields:   newFields,
		logger:   l.logger,
		json:     l.json,
		minLevel: l.minLevel,
	}
}

func (l *Logger) log(level string, msg string, fields ...interface{}) {
	if levelOrder[level] < l.minLevel {
		return
	}

	entry := l.createLogEntry(level, msg, fields...)

	if l.json {
		l.logJSON(entry)
	} else {
		l.logText(entry)
	}
}

func (l *Logger) createLogEntry(level string, msg string, fields ...interface{}) map[string]interface{} {
	entry := make(map[string]interface{})

	entry["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	entry["level"] = level
	entry["message"] = msg

	for k, v := range l.fields {
		entry[k] = v
	}

	// Variadic fields come as alternating key/value pairs. A trailing key
	// without a value is recorded as-is.
	for i := 0; i < len(fields); i += 2 {
		key := fmt.Sprintf("%v", fields[i])
		if i+1 < len(fields) {
			entry[key] = normalizeValue(fields[i+1])
		} else {
			entry[key] = "(missing)"
		}
	}

	return entry
}

func (l *Logger) logJSON(entry map[string]interface{}) {
	data, err := json.Marshal(entry)
	if err != nil {
		l.logger.Printf("failed to marshal log entry: %v", err)
		return
	}
	l.logger.Println(string(data))
}

func (l *Logger) logText(entry map[string]interface{}) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s [%s] %s", entry["timestamp"], entry["level"], entry["message"])
	for k, v := range entry {
		switch k {
		case "timestamp", "level", "message":
			continue
		}
		fmt.Fprintf(&sb, " %s=%v", k, v)
	}
	l.logger.Println(sb.String())
}

// normalizeValue makes errors render as their message rather than "{}".
func normalizeValue(v interface{}) interface{} {
	if err, ok := v.(error); ok {
		return err.Error()
	}
	return v
}
