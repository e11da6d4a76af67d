package view

import (
	"time"

	"tasksync/domain"
)

// GridDays is the number of cells in a month grid: six Monday-first weeks.
const GridDays = 42

// DayCell is one day of the month grid.
type DayCell struct {
	Date     time.Time `json:"date"`
	InMonth  bool      `json:"isCurrentMonth"`
	IsToday  bool      `json:"isToday"`
	HasTasks bool      `json:"hasTasks"`
}

// MonthGrid lays out the month containing month as 42 days starting on the
// Monday of the week of its first day. HasTasks must be computed from the
// unfiltered mirror so that day markers ignore active filters.
func MonthGrid(month, today time.Time, mirror []domain.Task) [GridDays]DayCell {
	loc := month.Location()
	first := FirstOfMonth(month)
	offset := (int(first.Weekday()) + 6) % 7
	start := first.AddDate(0, 0, -offset)

	due := make(map[dayKey]struct{}, len(mirror))
	for _, t := range mirror {
		if t.DueDate != nil {
			due[keyOf(*t.DueDate, loc)] = struct{}{}
		}
	}

	var grid [GridDays]DayCell
	for i := range grid {
		day := start.AddDate(0, 0, i)
		_, hasTasks := due[keyOf(day, loc)]
		grid[i] = DayCell{
			Date:     day,
			InMonth:  day.Month() == first.Month(),
			IsToday:  SameDay(day, today.In(loc)),
			HasTasks: hasTasks,
		}
	}
	return grid
}

// FirstOfMonth returns midnight of the first day of t's month.
func FirstOfMonth(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
}

// ShiftMonth moves a month reference by delta months.
func ShiftMonth(month time.Time, delta int) time.Time {
	return FirstOfMonth(month).AddDate(0, delta, 0)
}
