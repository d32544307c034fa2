// Package format holds the message-formatting helpers shared by the bot
// handlers and the web layer.
package format

import (
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"
)

// ReadableTime renders a duration as "1d 2h 3m 4s", skipping zero units.
// Zero and negative durations render as "0s".
func ReadableTime(d time.Duration) string {
	total := int64(d.Seconds())
	if total <= 0 {
		return "0s"
	}
	days := total / 86400
	hours := total % 86400 / 3600
	minutes := total % 3600 / 60
	seconds := total % 60
	var parts []string
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	if seconds > 0 {
		parts = append(parts, fmt.Sprintf("%ds", seconds))
	}
	return strings.Join(parts, " ")
}

// Bytes renders a byte count with binary units, one decimal place.
func Bytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// Mention builds an HTML user mention. The name is escaped.
func Mention(userID int64, name string) string {
	if name == "" {
		name = strconv.FormatInt(userID, 10)
	}
	return fmt.Sprintf(`<a href="tg://user?id=%d">%s</a>`, userID, html.EscapeString(name))
}

// FillUserTemplate substitutes the {first}, {last}, {username}, {mention}
// and {id} placeholders operators may use in configurable messages.
func FillUserTemplate(tpl string, userID int64, first, last, username string) string {
	if username == "" {
		username = "N/A"
	} else {
		username = "@" + username
	}
	return strings.NewReplacer(
		"{first}", html.EscapeString(first),
		"{last}", html.EscapeString(last),
		"{username}", username,
		"{mention}", Mention(userID, first),
		"{id}", strconv.FormatInt(userID, 10),
	).Replace(tpl)
}

// Truncate cuts s to max runes, appending an ellipsis when it cut.
func Truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 1 {
		return string(runes[:max])
	}
	return string(runes[:max-1]) + "…"
}

// ParseTimestamp parses "SS", "MM:SS" or "HH:MM:SS" into a duration.
func ParseTimestamp(ts string) (time.Duration, error) {
	parts := strings.Split(strings.TrimSpace(ts), ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("invalid timestamp [%s]", ts)
	}
	for len(parts) < 3 {
		parts = append([]string{"0"}, parts...)
	}
	var total time.Duration
	for i, mult := range []time.Duration{time.Hour, time.Minute, time.Second} {
		v, err := strconv.Atoi(parts[i])
		if err != nil || v < 0 {
			return 0, fmt.Errorf("invalid timestamp [%s]", ts)
		}
		total += time.Duration(v) * mult
	}
	return total, nil
}

// Timestamp renders a duration as HH:MM:SS for ffmpeg arguments and
// screenshot overlays.
func Timestamp(d time.Duration) string {
	total := int64(d.Seconds())
	if total < 0 {
		total = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, total%3600/60, total%60)
}
