// Package duration parses the short durations accepted by `timereport log`,
// such as 1h30m, 2h, 45m or 1.5h.
package duration

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Max is the longest duration Parse accepts.
const Max = 1000 * time.Hour

var pattern = regexp.MustCompile(`^(?:(\d+(?:\.\d+)?)h)?(?:(\d+)m)?$`)

// Parse converts input into a positive duration. Hours may be fractional,
// minutes may not.
func Parse(input string) (time.Duration, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return 0, fmt.Errorf("invalid duration: %q", input)
	}
	match := pattern.FindStringSubmatch(trimmed)
	if match == nil {
		return 0, fmt.Errorf("invalid duration: %q. Use format like 1h30m, 2h, 45m, 1.5h", input)
	}

	var total time.Duration
	if match[1] != "" {
		hours, err := strconv.ParseFloat(match[1], 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration: %q: %w", input, err)
		}
		if hours > Max.Hours() {
			return 0, tooLong(input)
		}
		total += time.Duration(math.Round(hours * float64(time.Hour)))
	}
	if match[2] != "" {
		minutes, err := strconv.ParseInt(match[2], 10, 64)
		if err != nil || minutes > int64(Max/time.Minute) {
			return 0, tooLong(input)
		}
		total += time.Duration(minutes) * time.Minute
	}
	if total > Max {
		return 0, tooLong(input)
	}
	if total <= 0 {
		return 0, fmt.Errorf("duration must be greater than zero: %q", input)
	}
	return total, nil
}

func tooLong(input string) error {
	return fmt.Errorf("duration too long: %q (max %s)", input, Format(Max))
}

// Format renders d as whole hours and minutes, e.g. "1h 30m". Seconds are
// truncated.
func Format(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	totalMinutes := int64(d / time.Minute)
	return fmt.Sprintf("%dh %dm", totalMinutes/60, totalMinutes%60)
}
