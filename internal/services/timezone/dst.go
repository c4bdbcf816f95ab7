package timezone

import (
	"time"

	"SessionLens/internal/domain/models"
)

// SecondSundayOfMarch returns the US daylight saving start date for year.
func SecondSundayOfMarch(year int) time.Time {
	return nthSunday(year, time.March, 2)
}

// FirstSundayOfNovember returns the US daylight saving end date for year.
func FirstSundayOfNovember(year int) time.Time {
	return nthSunday(year, time.November, 1)
}

// IsUSDST reports whether date falls inside the US daylight saving period,
// from the second Sunday of March to the first Sunday of November (exclusive).
func IsUSDST(date time.Time) bool {
	d := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	return !d.Before(SecondSundayOfMarch(d.Year())) && d.Before(FirstSundayOfNovember(d.Year()))
}

// MarkUSDST sets USDST on every day whose date is inside the US daylight
// saving period.
func MarkUSDST(days []models.DailyStats) {
	for i := range days {
		if d, err := time.Parse(models.DateLayout, days[i].Date); err == nil {
			days[i].USDST = IsUSDST(d)
		}
	}
}

func nthSunday(year int, month time.Month, n int) time.Time {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	offset := (7 - int(first.Weekday())) % 7
	return first.AddDate(0, 0, offset+7*(n-1))
}
