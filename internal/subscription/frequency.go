package subscription

import (
	"sort"
	"time"

	"github.com/znz-systems/mailsift/internal/header"
	"github.com/znz-systems/mailsift/internal/models"
)

// Cadence cut points in days, compared with strict less-than against the
// mean gap between consecutive emails.
const (
	dailyMaxGap         = 1.5
	everyOtherDayMaxGap = 4
	weeklyMaxGap        = 10
	biweeklyMaxGap      = 20
	monthlyMaxGap       = 45
)

// EstimateFrequency infers a cadence label from raw date header values.
// Unparseable dates are dropped before the estimate.
func EstimateFrequency(dates []string) models.Frequency {
	parsed := make([]time.Time, 0, len(dates))
	for _, d := range dates {
		if t, ok := header.ParseDate(d); ok {
			parsed = append(parsed, t)
		}
	}
	return frequencyFromTimes(parsed)
}

func frequencyFromTimes(times []time.Time) models.Frequency {
	if len(times) < 2 {
		return models.FrequencySingle
	}

	sorted := make([]time.Time, len(times))
	copy(sorted, times)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].After(sorted[j]) })

	// Gaps telescope, so the mean is the full span over the gap count.
	span := sorted[0].Sub(sorted[len(sorted)-1])
	avgDays := span.Hours() / 24 / float64(len(sorted)-1)

	switch {
	case avgDays < dailyMaxGap:
		return models.FrequencyDaily
	case avgDays < everyOtherDayMaxGap:
		return models.FrequencyEveryOtherDay
	case avgDays < weeklyMaxGap:
		return models.FrequencyWeekly
	case avgDays < biweeklyMaxGap:
		return models.FrequencyBiweekly
	case avgDays < monthlyMaxGap:
		return models.FrequencyMonthly
	default:
		return models.FrequencySporadic
	}
}
