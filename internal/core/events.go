package core

import (
	"fmt"
	"strings"
	"time"
)

// CommandEvent describes one executed command. Hooks receive it after the
// round trip settles, whether it succeeded or failed.
type CommandEvent struct {
	Time         time.Time
	Operation    Operation
	Table        string
	SQL          string // parameterized text as sent to the driver
	Raw          string // text with arguments interpolated, for humans
	Args         []any
	Duration     time.Duration
	RowsAffected int64
	Err          error
}

// CommandHook observes executed commands. Hooks run synchronously on the
// calling goroutine; they must not block.
type CommandHook func(CommandEvent)

// Interpolate substitutes args into the ? placeholders of sql for display.
// The result is for logs and events only, never for execution.
func Interpolate(sql string, args []any) string {
	if len(args) == 0 {
		return sql
	}
	var b strings.Builder
	b.Grow(len(sql))
	i := 0
	for _, r := range sql {
		if r == '?' && i < len(args) {
			b.WriteString(displayValue(args[i]))
			i++
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func displayValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case string:
		return "'" + strings.ReplaceAll(x, "'", "''") + "'"
	case []byte:
		return "'" + strings.ReplaceAll(string(x), "'", "''") + "'"
	case time.Time:
		return "'" + x.Format("2006-01-02 15:04:05") + "'"
	case bool:
		if x {
			return "TRUE"
		}
		return "FALSE"
	}
	return fmt.Sprintf("%v", v)
}
