package core_test

import (
	"testing"
	"time"

	"github.com/SimbaBuilds/NL-To-Automation/engine/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltinTimeVars(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	at := time.Date(2026, time.March, 11, 1, 30, 0, 0, time.UTC) // Wednesday

	t.Run("Should compute calendar-day variables in the caller's timezone", func(t *testing.T) {
		vars := core.BuiltinTimeVars(at, loc)
		localDay := at.In(loc)
		assert.Equal(t, localDay.Format("2006-01-02"), vars["today"])
		assert.Equal(t, localDay.AddDate(0, 0, -1).Format("2006-01-02"), vars["yesterday"])
		assert.Equal(t, localDay.AddDate(0, 0, 1).Format("2006-01-02"), vars["tomorrow"])
		assert.Equal(t, localDay.AddDate(0, 0, -2).Format("2006-01-02"), vars["two_days_ago"])
	})

	t.Run("Should anchor this_week_start on Monday and this_week_end on Sunday", func(t *testing.T) {
		vars := core.BuiltinTimeVars(at, loc)
		start, err := time.ParseInLocation("2006-01-02", vars["this_week_start"], loc)
		require.NoError(t, err)
		assert.Equal(t, time.Monday, start.Weekday())
		end, err := time.ParseInLocation("2006-01-02", vars["this_week_end"], loc)
		require.NoError(t, err)
		assert.Equal(t, time.Sunday, end.Weekday())
		assert.Equal(t, 6*24*time.Hour, end.Sub(start))
	})

	t.Run("Should default calendar days to UTC when no location is supplied", func(t *testing.T) {
		vars := core.BuiltinTimeVars(at, nil)
		assert.Equal(t, at.Format("2006-01-02"), vars["today"])
	})

	t.Run("Should always render now in UTC regardless of location", func(t *testing.T) {
		vars := core.BuiltinTimeVars(at, loc)
		assert.Equal(t, at.UTC().Format(time.RFC3339), vars["now"])
	})

	t.Run("Should compute now-minus offsets relative to UTC now", func(t *testing.T) {
		vars := core.BuiltinTimeVars(at, loc)
		got, err := time.Parse(time.RFC3339, vars["now_minus_1h"])
		require.NoError(t, err)
		assert.Equal(t, at.Add(-time.Hour).Unix(), got.Unix())
	})
}
