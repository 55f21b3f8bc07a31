// Package logger is a small leveled logger with per-component tagging.
// Output goes to stderr so CLI output on stdout stays clean.
package logger

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync/atomic"
	"time"
)

type Level int32

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

var currentLevel atomic.Int32

func init() {
	currentLevel.Store(int32(INFO))
	if lvl := os.Getenv("AIKO_LOG_LEVEL"); lvl != "" {
		SetLevel(ParseLevel(lvl))
	}
}

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

func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
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

func SetLevel(l Level) {
	currentLevel.Store(int32(l))
}

func GetLevel() Level {
	return Level(currentLevel.Load())
}

func logf(level Level, component, msg string, fields map[string]any) {
	if level < GetLevel() {
		return
	}

	var b strings.Builder
	b.WriteString(time.Now().Format("2006-01-02 15:04:05"))
	b.WriteString(" [")
	b.WriteString(level.String())
	b.WriteString("] [")
	b.WriteString(component)
	b.WriteString("] ")
	b.WriteString(msg)

	if len(fields) > 0 {
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			b.WriteString(fmt.Sprintf(" %s=%v", k, fields[k]))
		}
	}

	fmt.Fprintln(os.Stderr, b.String())
}

// C variants log a message tagged with a component name. CF variants add
// structured fields, printed as sorted key=value pairs.

func DebugC(component, msg string) { logf(DEBUG, component, msg, nil) }

func DebugCF(component, msg string, fields map[string]any) { logf(DEBUG, component, msg, fields) }

func InfoC(component, msg string) { logf(INFO, component, msg, nil) }

func InfoCF(component, msg string, fields map[string]any) { logf(INFO, component, msg, fields) }

func WarnC(component, msg string) { logf(WARN, component, msg, nil) }

func WarnCF(component, msg string, fields map[string]any) { logf(WARN, component, msg, fields) }

func ErrorC(component, msg string) { logf(ERROR, component, msg, nil) }

func ErrorCF(component, msg string, fields map[string]any) { logf(ERROR, component, msg, fields) }
