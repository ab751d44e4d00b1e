package scheduler

import (
	"strconv"
	"strings"
	"time"
)

// safetyBuffer prevents alternating-day drift when a prior batch finishes
// late (§4.6 step 3's interval cutoff).
const safetyBuffer = 10 * time.Minute

func bucketIntervalMinutes(bucket string) int {
	switch bucket {
	case Bucket5Min:
		return 5
	case Bucket15Min:
		return 15
	case Bucket30Min:
		return 30
	case Bucket1Hr:
		return 60
	case Bucket6Hr:
		return 360
	case BucketDaily:
		return 1440
	case BucketWeekly:
		return 10080
	default:
		return 0
	}
}

// intervalDue applies §4.6 step 3's interval cutoff: due if there is no
// prior scheduled run, or the last one is strictly older than
// now - (interval - safetyBuffer). The gap is clamped at zero so buckets
// whose own interval is shorter than the buffer (5min, effectively) are
// simply due on every tick rather than never.
func intervalDue(bucket string, lastRun *time.Time, now time.Time) bool {
	if lastRun == nil {
		return true
	}
	interval := time.Duration(bucketIntervalMinutes(bucket)) * time.Minute
	gap := interval - safetyBuffer
	if gap < 0 {
		gap = 0
	}
	cutoff := now.Add(-gap)
	return lastRun.Before(cutoff)
}

// timeOfDayDue applies §4.6 step 3's time-of-day gate: the automation is
// due only if time_of_day's minute-of-day falls in the current 5-minute
// UTC window. A missing or unparseable time_of_day passes the gate (the
// bucket's own interval cutoff is the only rule then in effect).
func timeOfDayDue(cfg map[string]any, now time.Time) bool {
	raw, _ := cfg["time_of_day"].(string)
	if raw == "" {
		return true
	}
	target, ok := parseHHMM(raw)
	if !ok {
		return true
	}
	nowMin := now.UTC().Hour()*60 + now.UTC().Minute()
	windowStart := (nowMin / 5) * 5
	return target >= windowStart && target < windowStart+5
}

func parseHHMM(s string) (int, bool) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, false
	}
	h, errH := strconv.Atoi(parts[0])
	m, errM := strconv.Atoi(parts[1])
	if errH != nil || errM != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}

// dayOfWeekDue applies §4.6 step 3's weekly day-of-week gate. A missing or
// unparseable day_of_week passes the gate.
func dayOfWeekDue(cfg map[string]any, now time.Time) bool {
	raw, ok := cfg["day_of_week"]
	if !ok {
		return true
	}
	target, ok := parseDayOfWeek(raw)
	if !ok {
		return true
	}
	return int(now.UTC().Weekday()) == target
}

var dayNames = map[string]int{
	"sunday": 0, "monday": 1, "tuesday": 2, "wednesday": 3,
	"thursday": 4, "friday": 5, "saturday": 6,
}

func parseDayOfWeek(v any) (int, bool) {
	switch x := v.(type) {
	case float64:
		return int(x), true
	case int:
		return x, true
	case string:
		if n, err := strconv.Atoi(x); err == nil {
			return n, true
		}
		if d, ok := dayNames[strings.ToLower(x)]; ok {
			return d, true
		}
	}
	return 0, false
}

// isDue combines every applicable dueness rule for bucket (§4.6 step 3).
func isDue(bucket string, cfg map[string]any, lastRun *time.Time, now time.Time) bool {
	if !intervalDue(bucket, lastRun, now) {
		return false
	}
	if bucket == BucketDaily || bucket == BucketWeekly {
		if !timeOfDayDue(cfg, now) {
			return false
		}
	}
	if bucket == BucketWeekly {
		if !dayOfWeekDue(cfg, now) {
			return false
		}
	}
	return true
}

func stringField(cfg map[string]any, key string) string {
	s, _ := cfg[key].(string)
	return s
}
