package core

import "time"

// BuiltinTimeVars computes the fixed set of datetime values the template
// engine exposes as `{{today}}`, `{{now}}`, etc. Everything is evaluated
// once per execution (not re-evaluated per template occurrence) in loc, so
// a single action's templates never disagree about "now". Callers pass the
// automation owner's timezone; time.UTC is the fallback when none is known.
// `now` is always UTC per its ISO-in-UTC contract; the calendar-day values
// (today/yesterday/.../this_week_start) follow loc.
func BuiltinTimeVars(at time.Time, loc *time.Location) map[string]string {
	if loc == nil {
		loc = time.UTC
	}
	utcNow := at.UTC()
	local := at.In(loc)
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	utcToday := time.Date(utcNow.Year(), utcNow.Month(), utcNow.Day(), 0, 0, 0, 0, time.UTC)

	// Monday-anchored week start; time.Monday == 1, time.Sunday == 0.
	offset := int(today.Weekday()) - int(time.Monday)
	if offset < 0 {
		offset += 7
	}
	weekStart := today.AddDate(0, 0, -offset)

	const dateLayout = "2006-01-02"
	return map[string]string{
		"now":             utcNow.Format(time.RFC3339),
		"today":           today.Format(dateLayout),
		"yesterday":       today.AddDate(0, 0, -1).Format(dateLayout),
		"tomorrow":        today.AddDate(0, 0, 1).Format(dateLayout),
		"two_days_ago":    today.AddDate(0, 0, -2).Format(dateLayout),
		"this_week_start": weekStart.Format(dateLayout),
		"this_week_end":   weekStart.AddDate(0, 0, 6).Format(dateLayout),
		"now_minus_1h":    utcNow.Add(-1 * time.Hour).Format(time.RFC3339),
		"now_minus_6h":    utcNow.Add(-6 * time.Hour).Format(time.RFC3339),
		"now_minus_12h":   utcNow.Add(-12 * time.Hour).Format(time.RFC3339),
		"now_minus_24h":   utcNow.Add(-24 * time.Hour).Format(time.RFC3339),
		"today_utc":       utcToday.Format(dateLayout),
		"yesterday_utc":   utcToday.AddDate(0, 0, -1).Format(dateLayout),
		"tomorrow_utc":    utcToday.AddDate(0, 0, 1).Format(dateLayout),
	}
}
