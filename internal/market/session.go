package market

import "time"

// Schedule 미장 정규장 (US Eastern Time)
type Schedule struct {
	OpenHour  int
	OpenMin   int
	CloseHour int
	CloseMin  int
}

// DefaultSchedule NYSE/NASDAQ 정규장 09:30-16:00 ET
func DefaultSchedule() Schedule {
	return Schedule{OpenHour: 9, OpenMin: 30, CloseHour: 16, CloseMin: 0}
}

// ETLocation US Eastern Time 로케이션
func ETLocation() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		// tzdata 없는 환경: EST 고정
		loc = time.FixedZone("EST", -5*60*60)
	}
	return loc
}

func isWeekend(d time.Weekday) bool {
	return d == time.Saturday || d == time.Sunday
}

func (s Schedule) open(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), s.OpenHour, s.OpenMin, 0, 0, day.Location())
}

func (s Schedule) close(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), s.CloseHour, s.CloseMin, 0, 0, day.Location())
}

// IsOpen reports whether now falls inside a regular session.
// Holidays are not modelled.
func (s Schedule) IsOpen(now time.Time) bool {
	et := now.In(ETLocation())
	if isWeekend(et.Weekday()) {
		return false
	}
	return !et.Before(s.open(et)) && et.Before(s.close(et))
}

// LastSessionDate returns the date of the most recent completed session as a
// UTC midnight. Before today's close it is the previous weekday.
func (s Schedule) LastSessionDate(now time.Time) time.Time {
	et := now.In(ETLocation())
	day := et
	if isWeekend(day.Weekday()) || et.Before(s.close(et)) {
		day = day.AddDate(0, 0, -1)
	}
	for isWeekend(day.Weekday()) {
		day = day.AddDate(0, 0, -1)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
}
