package market

import (
	"testing"
	"time"
)

// January dates keep the US side on standard time, so wall-clock expectations
// hold whether the clock loaded the IANA zone or fell back to a fixed offset.
var (
	etZone  = time.FixedZone("ET", -5*60*60)
	hktZone = time.FixedZone("HKT", 8*60*60)
)

func usTime(hour, minute int) time.Time {
	return time.Date(2026, time.January, 15, hour, minute, 0, 0, etZone)
}

func hkTime(hour, minute int) time.Time {
	return time.Date(2026, time.January, 15, hour, minute, 0, 0, hktZone)
}

func TestSessionForUS(t *testing.T) {
	clock := NewClock()
	tests := []struct {
		name string
		now  time.Time
		want Session
	}{
		{"pre-market open", usTime(4, 0), SessionPreMarket},
		{"last pre-market minute", usTime(9, 29), SessionPreMarket},
		{"regular open", usTime(9, 30), SessionRegular},
		{"mid regular", usTime(12, 0), SessionRegular},
		{"last regular minute", usTime(15, 59), SessionRegular},
		{"post-market open", usTime(16, 0), SessionPostMarket},
		{"last post-market minute", usTime(19, 59), SessionPostMarket},
		{"overnight start", usTime(20, 0), SessionOvernight},
		{"overnight past midnight", usTime(2, 30), SessionOvernight},
		{"overnight last minute", usTime(3, 59), SessionOvernight},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			session, ok := clock.SessionFor("AAPL.US", tc.now)
			if !ok {
				t.Fatal("US market should always have an active session")
			}
			if session != tc.want {
				t.Errorf("SessionFor = %s, want %s", session, tc.want)
			}
		})
	}
}

func TestSessionForHK(t *testing.T) {
	clock := NewClock()
	tests := []struct {
		name   string
		now    time.Time
		want   Session
		active bool
	}{
		{"before open", hkTime(9, 0), "", false},
		{"morning open", hkTime(9, 30), SessionMorning, true},
		{"last morning minute", hkTime(11, 59), SessionMorning, true},
		{"lunch gap", hkTime(12, 30), "", false},
		{"afternoon open", hkTime(13, 0), SessionAfternoon, true},
		{"last afternoon minute", hkTime(15, 59), SessionAfternoon, true},
		{"after close", hkTime(16, 0), "", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			session, ok := clock.SessionFor("700.HK", tc.now)
			if ok != tc.active {
				t.Fatalf("active = %v, want %v", ok, tc.active)
			}
			if session != tc.want {
				t.Errorf("SessionFor = %s, want %s", session, tc.want)
			}
		})
	}
}

func TestSessionForUnknownSuffix(t *testing.T) {
	clock := NewClock()
	if _, ok := clock.SessionFor("BTCUSD", usTime(12, 0)); ok {
		t.Error("symbols without a market suffix should report no session")
	}
}

func TestIsTradable(t *testing.T) {
	clock := NewClock()
	tests := []struct {
		name    string
		symbol  string
		now     time.Time
		enabled []Session
		want    bool
	}{
		{"continuous US always polls", "AAPL.US", usTime(2, 0), nil, true},
		{"continuous HK lunch gap", "700.HK", hkTime(12, 30), nil, false},
		{"continuous unknown suffix", "BTCUSD", usTime(2, 0), nil, true},
		{"regular only, in session", "AAPL.US", usTime(10, 0), []Session{SessionRegular}, true},
		{"regular only, pre-market", "AAPL.US", usTime(8, 0), []Session{SessionRegular}, false},
		{"multi session match", "AAPL.US", usTime(17, 0), []Session{SessionRegular, SessionPostMarket}, true},
		{"restricted unknown suffix", "BTCUSD", usTime(10, 0), []Session{SessionRegular}, false},
		{"hk morning enabled", "700.HK", hkTime(10, 0), []Session{SessionMorning}, true},
		{"hk morning enabled, afternoon", "700.HK", hkTime(14, 0), []Session{SessionMorning}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := clock.IsTradable(tc.symbol, tc.now, tc.enabled); got != tc.want {
				t.Errorf("IsTradable = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestPollInterval(t *testing.T) {
	clock := NewClock()
	if got := clock.PollInterval(true); got != 60*time.Second {
		t.Errorf("active interval = %s, want 60s", got)
	}
	if got := clock.PollInterval(false); got != 600*time.Second {
		t.Errorf("idle interval = %s, want 600s", got)
	}

	clock.ActiveInterval = time.Second
	clock.IdleInterval = 2 * time.Second
	if got := clock.PollInterval(true); got != time.Second {
		t.Errorf("overridden active interval = %s, want 1s", got)
	}
}

func TestParseSessions(t *testing.T) {
	sessions, err := ParseSessions([]string{"regular", "post_market"})
	if err != nil {
		t.Fatalf("ParseSessions failed: %v", err)
	}
	if len(sessions) != 2 || sessions[0] != SessionRegular || sessions[1] != SessionPostMarket {
		t.Errorf("ParseSessions = %v", sessions)
	}

	if got, err := ParseSessions(nil); err != nil || got != nil {
		t.Errorf("ParseSessions(nil) = %v, %v, want nil, nil", got, err)
	}

	if _, err := ParseSessions([]string{"regular", "brunch"}); err == nil {
		t.Error("expected error for unknown session name")
	}
}
