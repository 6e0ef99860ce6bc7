// Package market provides trading-session classification and calendar
// helpers for the supported exchanges.
package market

import (
	"time"

	"charting-systemv1/internal/model"
)

// IST is the Indian Standard Time location (UTC+5:30).
var IST = time.FixedZone("IST", 5*3600+30*60)

// eastern falls back to a fixed EST offset where the tz database is missing;
// session boundaries will be off by an hour during US DST in that case.
var eastern = func() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return time.FixedZone("EST", -5*3600)
	}
	return loc
}()

// Indian market hours in IST.
const (
	inPreOpenStart = 9 * 60     // 09:00
	inOpen         = 9*60 + 15  // 09:15
	inClose        = 15*60 + 30 // 15:30
	inClosingEnd   = 15*60 + 40 // 15:40
)

// US market hours in Eastern Time.
const (
	usPreStart = 4 * 60    // 04:00
	usOpen     = 9*60 + 30 // 09:30
	usClose    = 16 * 60   // 16:00
	usPostEnd  = 20 * 60   // 20:00
)

func indianMarket(market string) bool {
	switch market {
	case "NSE", "BSE", "NFO", "BFO":
		return true
	}
	return false
}

func usMarket(market string) bool {
	switch market {
	case "NYSE", "NASDAQ":
		return true
	}
	return false
}

// SessionAt classifies the trading session containing the Unix timestamp ts
// for the given market, and reports whether it is outside regular hours.
// Unknown markets and out-of-session timestamps classify as regular hours.
func SessionAt(market string, ts int64) (model.Session, bool) {
	switch {
	case indianMarket(market):
		hm := minuteOfDay(ts, IST)
		switch {
		case hm >= inPreOpenStart && hm < inOpen:
			return model.SessionPreOpen, true
		case hm >= inOpen && hm < inClose:
			return model.SessionRTH, false
		case hm >= inClose && hm < inClosingEnd:
			return model.SessionClosing, true
		}
	case usMarket(market):
		hm := minuteOfDay(ts, eastern)
		switch {
		case hm >= usPreStart && hm < usOpen:
			return model.SessionPre, true
		case hm >= usOpen && hm < usClose:
			return model.SessionRTH, false
		case hm >= usClose && hm < usPostEnd:
			return model.SessionPost, true
		}
	}
	return model.SessionRTH, false
}

func minuteOfDay(ts int64, loc *time.Location) int {
	t := time.Unix(ts, 0).In(loc)
	return t.Hour()*60 + t.Minute()
}

// IsMarketOpen returns true if t falls within the market's regular trading
// hours on a trading day.
func IsMarketOpen(market string, t time.Time) bool {
	if !IsTradingDay(market, t) {
		return false
	}
	session, _ := SessionAt(market, t.Unix())
	if session != model.SessionRTH {
		return false
	}
	// The RTH fallback also fires outside every window; reject those.
	switch {
	case indianMarket(market):
		hm := minuteOfDay(t.Unix(), IST)
		return hm >= inOpen && hm < inClose
	case usMarket(market):
		hm := minuteOfDay(t.Unix(), eastern)
		return hm >= usOpen && hm < usClose
	}
	return false
}

// IsTradingDay returns true if t is a weekday and not an exchange holiday.
func IsTradingDay(market string, t time.Time) bool {
	loc := eastern
	if indianMarket(market) {
		loc = IST
	}
	local := t.In(loc)
	wd := local.Weekday()
	if wd == time.Saturday || wd == time.Sunday {
		return false
	}
	if indianMarket(market) && IsNSEHoliday(local) {
		return false
	}
	return true
}

// NextOpen returns the next regular-session open for the market. If t is
// before today's open on a trading day, returns today's open.
func NextOpen(market string, t time.Time) time.Time {
	loc, openMin := eastern, usOpen
	if indianMarket(market) {
		loc, openMin = IST, inOpen
	}
	local := t.In(loc)

	todayOpen := time.Date(local.Year(), local.Month(), local.Day(), openMin/60, openMin%60, 0, 0, loc)
	if local.Before(todayOpen) && IsTradingDay(market, local) {
		return todayOpen
	}

	d := local.AddDate(0, 0, 1)
	for i := 0; i < 10; i++ {
		if IsTradingDay(market, d) {
			return time.Date(d.Year(), d.Month(), d.Day(), openMin/60, openMin%60, 0, 0, loc)
		}
		d = d.AddDate(0, 0, 1)
	}
	return time.Date(local.Year(), local.Month(), local.Day()+1, openMin/60, openMin%60, 0, 0, loc)
}
