// Package clock provides the wall clock and calendar used to bucket sales
// by day. Production code injects Real; tests inject a Fake with a fixed
// instant and zone.
package clock

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// DayLayout is the day key format, YYYY-MM-DD.
const DayLayout = "2006-01-02"

// Clock supplies the current time and the calendar zone that day keys are
// computed in.
type Clock interface {
	Now() time.Time
	Location() *time.Location
}

// DayKey returns the calendar date of t in c's zone.
func DayKey(c Clock, t time.Time) string {
	return t.In(c.Location()).Format(DayLayout)
}

// Today returns the current calendar date in c's zone.
func Today(c Clock) string {
	return DayKey(c, c.Now())
}

type zoned struct {
	base clockwork.Clock
	loc  *time.Location
}

func (z zoned) Now() time.Time           { return z.base.Now().In(z.loc) }
func (z zoned) Location() *time.Location { return z.loc }

// Real returns a Clock backed by the system clock. A nil loc means the
// server's local zone.
func Real(loc *time.Location) Clock {
	if loc == nil {
		loc = time.Local
	}
	return zoned{base: clockwork.NewRealClock(), loc: loc}
}

type advancer interface {
	clockwork.Clock
	Advance(d time.Duration)
}

// Fake is a Clock that only moves when told to.
type Fake struct {
	zoned
	fake advancer
}

// NewFake returns a Fake frozen at now, computing days in loc (UTC when nil).
func NewFake(now time.Time, loc *time.Location) *Fake {
	if loc == nil {
		loc = time.UTC
	}
	fake := clockwork.NewFakeClockAt(now)
	return &Fake{zoned: zoned{base: fake, loc: loc}, fake: fake}
}

// Set moves the clock to t.
func (f *Fake) Set(t time.Time) {
	f.fake.Advance(t.Sub(f.fake.Now()))
}

// Advance moves the clock forward by d.
func (f *Fake) Advance(d time.Duration) {
	f.fake.Advance(d)
}
