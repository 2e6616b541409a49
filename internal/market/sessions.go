// Package market classifies wall-clock time into named trading sessions and
// recommends the poll cadence for quote-driven tasks.
package market

import (
	"fmt"
	"strings"
	"time"
)

// Session is a named sub-interval of a market's trading day.
type Session string

const (
	// US sessions (Eastern time).
	SessionPreMarket  Session = "pre_market"
	SessionRegular    Session = "regular"
	SessionPostMarket Session = "post_market"
	SessionOvernight  Session = "overnight"

	// HK sessions (Hong Kong time).
	SessionMorning   Session = "morning"
	SessionAfternoon Session = "afternoon"
)

// Session boundaries in minutes from midnight, half-open [start, end).
const (
	usPreMarketStart = 4 * 60    // 04:00 ET
	usRegularStart   = 9*60 + 30 // 09:30 ET
	usRegularEnd     = 16 * 60   // 16:00 ET
	usPostMarketEnd  = 20 * 60   // 20:00 ET; overnight runs 20:00-04:00
	hkMorningStart   = 9*60 + 30 // 09:30 HKT
	hkMorningEnd     = 12 * 60   // 12:00 HKT
	hkAfternoonStart = 13 * 60   // 13:00 HKT, after the lunch gap
	hkAfternoonEnd   = 16 * 60   // 16:00 HKT
)

// Clock classifies symbols into trading sessions and recommends poll cadence.
// The zero value is not usable; construct with NewClock.
type Clock struct {
	usLoc *time.Location
	hkLoc *time.Location

	// ActiveInterval is the cadence while any enabled session is live,
	// IdleInterval while none is. Defaults: 60s and 600s.
	ActiveInterval time.Duration
	IdleInterval   time.Duration
}

// NewClock builds a Clock with the market timezones loaded. When tzdata is
// unavailable (minimal containers) it falls back to fixed offsets.
func NewClock() *Clock {
	usLoc, err := time.LoadLocation("America/New_York")
	if err != nil {
		usLoc = time.FixedZone("ET", -5*60*60)
	}
	hkLoc, err := time.LoadLocation("Asia/Hong_Kong")
	if err != nil {
		hkLoc = time.FixedZone("HKT", 8*60*60)
	}
	return &Clock{
		usLoc:          usLoc,
		hkLoc:          hkLoc,
		ActiveInterval: 60 * time.Second,
		IdleInterval:   600 * time.Second,
	}
}

func minuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// SessionFor returns the active session for the symbol's market at the given
// instant, or false when the market is closed (HK lunch gap, unknown suffix).
func (c *Clock) SessionFor(symbol string, now time.Time) (Session, bool) {
	switch {
	case strings.HasSuffix(symbol, ".US"):
		return usSession(minuteOfDay(now.In(c.usLoc)))
	case strings.HasSuffix(symbol, ".HK"):
		return hkSession(minuteOfDay(now.In(c.hkLoc)))
	}
	return "", false
}

func usSession(m int) (Session, bool) {
	switch {
	case m >= usPreMarketStart && m < usRegularStart:
		return SessionPreMarket, true
	case m >= usRegularStart && m < usRegularEnd:
		return SessionRegular, true
	case m >= usRegularEnd && m < usPostMarketEnd:
		return SessionPostMarket, true
	default:
		// Overnight wraps past midnight: 20:00 <= now or now < 04:00.
		return SessionOvernight, true
	}
}

func hkSession(m int) (Session, bool) {
	switch {
	case m >= hkMorningStart && m < hkMorningEnd:
		return SessionMorning, true
	case m >= hkAfternoonStart && m < hkAfternoonEnd:
		return SessionAfternoon, true
	}
	return "", false
}

// IsTradable reports whether the symbol should be polled right now. An empty
// enabled set means the task runs continuously: any active session qualifies,
// and symbols with no session concept are always pollable.
func (c *Clock) IsTradable(symbol string, now time.Time, enabled []Session) bool {
	session, ok := c.SessionFor(symbol, now)
	if len(enabled) == 0 {
		if !strings.HasSuffix(symbol, ".US") && !strings.HasSuffix(symbol, ".HK") {
			return true
		}
		return ok
	}
	if !ok {
		return false
	}
	for _, s := range enabled {
		if s == session {
			return true
		}
	}
	return false
}

// ParseSessions validates a list of session names, e.g. from an API request.
// Nil input yields nil, meaning the task polls continuously.
func ParseSessions(names []string) ([]Session, error) {
	if len(names) == 0 {
		return nil, nil
	}
	sessions := make([]Session, 0, len(names))
	for _, name := range names {
		switch s := Session(name); s {
		case SessionPreMarket, SessionRegular, SessionPostMarket, SessionOvernight,
			SessionMorning, SessionAfternoon:
			sessions = append(sessions, s)
		default:
			return nil, fmt.Errorf("unknown trading session %q", name)
		}
	}
	return sessions, nil
}

// PollInterval recommends the sleep between polls: the active cadence when
// any symbol in the task is currently tradable, otherwise the idle cadence.
// Idle off-hours polling is throttled 10x by default.
func (c *Clock) PollInterval(anyTradable bool) time.Duration {
	if anyTradable {
		return c.ActiveInterval
	}
	return c.IdleInterval
}
