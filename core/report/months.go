package report

import "time"

const monthLabelLayout = "Jan 2006"

type monthWindow struct {
	label string
	from  time.Time // first day of the month, inclusive
	to    time.Time // first day of the next month, exclusive
}

// trailingMonths returns the n calendar months ending with now's month, oldest first.
func trailingMonths(now time.Time, n int) []monthWindow {
	y, m, _ := now.UTC().Date()
	current := time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)

	windows := make([]monthWindow, 0, n)
	for i := n - 1; i >= 0; i-- {
		from := current.AddDate(0, -i, 0)
		windows = append(windows, monthWindow{
			label: from.Format(monthLabelLayout),
			from:  from,
			to:    from.AddDate(0, 1, 0),
		})
	}
	return windows
}

// MonthToDate returns the first day of now's month and now's day, both in UTC.
func MonthToDate(now time.Time) (start, end time.Time) {
	y, m, d := now.UTC().Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC), time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
