package source

import (
	"fmt"
	"strconv"
	"strings"
)

// DisplayWidth is the fixed width of each display line. Longer values are
// truncated with an ellipsis marker, never wrapped.
const DisplayWidth = 80

// TempUnit selects the display unit for temperatures. Values are stored in
// Celsius internally and converted only at the normalization boundary.
type TempUnit string

const (
	Celsius    TempUnit = "celsius"
	Fahrenheit TempUnit = "fahrenheit"
)

// ParseTempUnit normalizes a configured unit string. Accepts "c"/"celsius"
// and "f"/"fahrenheit" in any case; anything else falls back to Celsius.
func ParseTempUnit(s string) TempUnit {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "f", "fahrenheit":
		return Fahrenheit
	default:
		return Celsius
	}
}

// Options carries the normalization preferences shared by all pollers.
type Options struct {
	TempUnit TempUnit
}

// Truncate bounds s to max runes, replacing the overflow with "...".
func Truncate(s string, max int) string {
	if max <= 3 {
		max = 3
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}

// twoLines bounds both display lines to DisplayWidth.
func twoLines(title, detail string) (string, string) {
	return Truncate(title, DisplayWidth), Truncate(detail, DisplayWidth)
}

// joinDetail builds the pipe-delimited secondary line.
func joinDetail(parts ...string) string {
	return strings.Join(parts, " | ")
}

// formatTemp renders a Celsius value in the configured unit.
func formatTemp(celsius float64, unit TempUnit) string {
	if unit == Fahrenheit {
		return fmt.Sprintf("%.1f°F", celsius*9/5+32)
	}
	return fmt.Sprintf("%.1f°C", celsius)
}

// formatBytes renders a byte count in the largest sensible unit.
func formatBytes(n int64) string {
	if n == 0 {
		return "0 B"
	}
	units := []string{"B", "KB", "MB", "GB", "TB", "PB"}
	size := float64(n)
	i := 0
	for size >= 1024 && i < len(units)-1 {
		size /= 1024
		i++
	}
	return fmt.Sprintf("%.1f %s", size, units[i])
}

// formatUptime renders seconds as "Nd Nh Nm".
func formatUptime(totalSeconds int64) string {
	if totalSeconds <= 0 {
		return "0 seconds"
	}
	days := totalSeconds / 86400
	hours := (totalSeconds % 86400) / 3600
	minutes := (totalSeconds % 3600) / 60

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
	if len(parts) == 0 {
		return "< 1m"
	}
	return strings.Join(parts, " ")
}

// parseUptime converts the appliance's "H:M:S" uptime string to seconds.
// A plain number is accepted as seconds; anything else parses to zero.
func parseUptime(s string) int64 {
	parts := strings.Split(s, ":")
	if len(parts) == 3 {
		h, err1 := strconv.ParseInt(parts[0], 10, 64)
		m, err2 := strconv.ParseInt(parts[1], 10, 64)
		sec, err3 := strconv.ParseInt(parts[2], 10, 64)
		if err1 == nil && err2 == nil && err3 == nil {
			return h*3600 + m*60 + sec
		}
		return 0
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	return 0
}

// title uppercases the first rune, for status words coming off the wire.
func title(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
