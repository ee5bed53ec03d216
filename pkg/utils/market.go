package utils

import (
	"time"

	"stock-analyzer/internal/models"
)

// Session is one continuous trading window in exchange-local time.
type Session struct {
	OpenMinute  int // minutes after midnight
	CloseMinute int
}

type exchangeCalendar struct {
	location *time.Location
	sessions []Session
}

var calendars = map[models.Exchange]exchangeCalendar{
	models.NSE:  {location: loadLocation("Asia/Kolkata", 5*60*60+30*60), sessions: []Session{{555, 930}}},
	models.BSE:  {location: loadLocation("Asia/Kolkata", 5*60*60+30*60), sessions: []Session{{555, 930}}},
	models.SZSE: {location: loadLocation("Asia/Shanghai", 8*60*60), sessions: []Session{{570, 690}, {780, 900}}},
}

func loadLocation(name string, offset int) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.FixedZone(name, offset)
	}
	return loc
}

// ExchangeLocation returns the exchange's time zone, or UTC when unknown.
func ExchangeLocation(exchange models.Exchange) *time.Location {
	if cal, ok := calendars[exchange]; ok {
		return cal.location
	}
	return time.UTC
}

// IsTradingDay reports whether t falls on a weekday. Exchange holidays are
// not modelled.
func IsTradingDay(t time.Time) bool {
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// IsTradingHours reports whether t is inside one of the exchange's sessions.
func IsTradingHours(exchange models.Exchange, t time.Time) bool {
	cal, ok := calendars[exchange]
	if !ok {
		return false
	}
	local := t.In(cal.location)
	if !IsTradingDay(local) {
		return false
	}
	minutes := local.Hour()*60 + local.Minute()
	for _, s := range cal.sessions {
		if minutes >= s.OpenMinute && minutes < s.CloseMinute {
			return true
		}
	}
	return false
}

// TradingDays returns the weekdays in [from, to] at midnight UTC.
func TradingDays(from, to time.Time) []time.Time {
	start := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	end := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)

	var days []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if IsTradingDay(d) {
			days = append(days, d)
		}
	}
	return days
}

// LastTradingDay returns t's date, or the previous weekday if t is a weekend.
func LastTradingDay(t time.Time) time.Time {
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	for !IsTradingDay(d) {
		d = d.AddDate(0, 0, -1)
	}
	return d
}
