// Package stats derives streaks and focus analytics from a user's completed
// focus sessions.
package stats

import (
	"fmt"
	"sort"
	"time"
)

// Counters are the per-user values persisted alongside the user record.
type Counters struct {
	TotalPomodoros int        `json:"totalPomodoros"`
	CurrentStreak  int        `json:"currentStreak"`
	LongestStreak  int        `json:"longestStreak"`
	LastActiveDate *time.Time `json:"lastActiveDate,omitempty"`
}

// Session is the subset of a completed focus session the aggregator needs.
type Session struct {
	Duration    int
	CompletedAt time.Time
	Category    string
}

type Day struct {
	Day       string `json:"day"`
	Date      string `json:"date"`
	Pomodoros int    `json:"pomodoros"`
}

type Category struct {
	Name    string `json:"name"`
	Minutes int    `json:"minutes"`
	Hours   string `json:"hours"`
}

type Summary struct {
	TotalPomodoros  int        `json:"totalPomodoros"`
	TodayPomodoros  int        `json:"todayPomodoros"`
	WeekPomodoros   int        `json:"weekPomodoros"`
	CurrentStreak   int        `json:"currentStreak"`
	LongestStreak   int        `json:"longestStreak"`
	TotalFocusTime  int        `json:"totalFocusTime"`
	TotalFocusHours string     `json:"totalFocusHours"`
	Last7Days       []Day      `json:"last7Days"`
	ByCategory      []Category `json:"byCategory"`
}

// Midnight truncates t to the start of its calendar day in loc.
func Midnight(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// DayGap returns the number of calendar days from `from` to `to` in loc.
// It is negative when `to` falls on an earlier day than `from`.
func DayGap(from, to time.Time, loc *time.Location) int {
	fy, fm, fd := from.In(loc).Date()
	ty, tm, td := to.In(loc).Date()
	// Compare in UTC so DST transitions never produce 23 or 25 hour days.
	a := time.Date(fy, fm, fd, 0, 0, 0, 0, time.UTC)
	b := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

// Advance applies one completed session at time now to c and returns the
// updated counters. It must be called exactly once per completed session.
func Advance(c Counters, now time.Time, loc *time.Location) Counters {
	c.TotalPomodoros++

	if c.LastActiveDate == nil {
		c.CurrentStreak = 1
	} else {
		switch gap := DayGap(*c.LastActiveDate, now, loc); {
		case gap == 1:
			c.CurrentStreak++
		case gap > 1:
			c.CurrentStreak = 1
		}
		// gap == 0 is a repeat on the same day; gap < 0 is a backdated or
		// skewed completion and leaves the streak alone.
		if c.CurrentStreak == 0 {
			c.CurrentStreak = 1
		}
	}

	if c.CurrentStreak > c.LongestStreak {
		c.LongestStreak = c.CurrentStreak
	}

	if c.LastActiveDate == nil || !now.Before(*c.LastActiveDate) {
		t := now
		c.LastActiveDate = &t
	}
	return c
}

// EffectiveStreak is the streak as of now: a streak whose last active day is
// older than yesterday has already been broken even if no session has been
// completed since to reset it.
func EffectiveStreak(c Counters, now time.Time, loc *time.Location) int {
	if c.LastActiveDate == nil {
		return 0
	}
	if DayGap(*c.LastActiveDate, now, loc) > 1 {
		return 0
	}
	return c.CurrentStreak
}

// Summarize computes the dashboard statistics. The lifetime total and streaks
// come from the stored counters. The windowed counts and focus time come from
// the completed sessions.
func Summarize(c Counters, sessions []Session, now time.Time, loc *time.Location) Summary {
	today := Midnight(now, loc)
	weekAgo := now.AddDate(0, 0, -7)

	s := Summary{
		TotalPomodoros: c.TotalPomodoros,
		CurrentStreak:  EffectiveStreak(c, now, loc),
		LongestStreak:  c.LongestStreak,
		Last7Days:      make([]Day, 0, 7),
		ByCategory:     []Category{},
	}

	minutes := make(map[string]int)
	for _, sess := range sessions {
		s.TotalFocusTime += sess.Duration
		// Today and week have no upper bound so a session stamped at now, or
		// by a clock slightly ahead of ours, still counts.
		if !sess.CompletedAt.Before(today) {
			s.TodayPomodoros++
		}
		if !sess.CompletedAt.Before(weekAgo) {
			s.WeekPomodoros++
		}
		category := sess.Category
		if category == "" {
			category = "uncategorized"
		}
		minutes[category] += sess.Duration
	}
	s.TotalFocusHours = hours(s.TotalFocusTime)

	for i := 6; i >= 0; i-- {
		start := today.AddDate(0, 0, -i)
		end := start.AddDate(0, 0, 1)
		day := Day{
			Day:  start.Format("Mon"),
			Date: start.Format("2006-01-02"),
		}
		for _, sess := range sessions {
			if within(sess.CompletedAt, start, end) {
				day.Pomodoros++
			}
		}
		s.Last7Days = append(s.Last7Days, day)
	}

	for name, m := range minutes {
		s.ByCategory = append(s.ByCategory, Category{Name: name, Minutes: m, Hours: hours(m)})
	}
	sort.Slice(s.ByCategory, func(i, j int) bool {
		if s.ByCategory[i].Minutes != s.ByCategory[j].Minutes {
			return s.ByCategory[i].Minutes > s.ByCategory[j].Minutes
		}
		return s.ByCategory[i].Name < s.ByCategory[j].Name
	})
	return s
}

// within reports whether t lies in [start, end).
func within(t, start, end time.Time) bool {
	return !t.Before(start) && t.Before(end)
}

func hours(minutes int) string {
	return fmt.Sprintf("%.1f", float64(minutes)/60)
}
