// Package calendar resolves known market-structure events for a run date.
// Event context never changes a score; it caps how much conviction the
// narrative may attach to positioning reads on distorted days.
package calendar

import (
	"fmt"
	"time"
)

// Flag names for the built-in events. Override files may carry additional
// names (AUCTION_WEEK, REFUNDING, INDEX_REBALANCE, ...) verbatim.
const (
	FlagMonthlyOPEX    = "MONTHLY_OPEX"
	FlagTripleWitching = "TRIPLE_WITCHING"
	FlagMonthEnd       = "MONTH_END"
)

// EventFlag is one active event with its operator-facing note.
type EventFlag struct {
	Name string `json:"name"`
	Note string `json:"note"`
}

// Context is the resolved event picture for one date.
type Context struct {
	Date            string      `json:"date"`
	MonthlyOPEX     bool        `json:"monthly_opex"`
	TripleWitching  bool        `json:"triple_witching"`
	MonthEnd        bool        `json:"month_end"`
	Undetermined    bool        `json:"undetermined"`
	OverrideApplied bool        `json:"override_applied"`
	Flags           []EventFlag `json:"flags"`
	Notes           []string    `json:"notes,omitempty"`
}

// Active reports whether any event flag (or an undetermined state) should
// cap directional conviction for this date.
func (c *Context) Active() bool {
	return len(c.Flags) > 0 || c.Undetermined
}

// Calendar evaluates event flags from derivation rules plus overrides.
type Calendar struct {
	cfg       *Config
	holidays  map[string]bool
	overrides map[string]Override
}

// New builds a calendar; a nil config falls back to defaults.
func New(cfg *Config) *Calendar {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	cal := &Calendar{
		cfg:       cfg,
		holidays:  make(map[string]bool, len(cfg.Holidays)),
		overrides: make(map[string]Override, len(cfg.Overrides)),
	}
	for _, h := range cfg.Holidays {
		cal.holidays[h] = true
	}
	for _, o := range cfg.Overrides {
		cal.overrides[o.Date] = o
	}
	return cal
}

// Evaluate resolves the event context for a date. An override for the date
// wins verbatim over every derivation rule.
func (cal *Calendar) Evaluate(date time.Time) *Context {
	date = date.UTC().Truncate(24 * time.Hour)
	ctx := &Context{Date: date.Format("2006-01-02")}

	if ov, ok := cal.overrides[ctx.Date]; ok {
		ctx.OverrideApplied = true
		for _, name := range ov.Flags {
			flag := EventFlag{Name: name, Note: ov.Note}
			if flag.Note == "" {
				flag.Note = builtinNote(name)
			}
			ctx.Flags = append(ctx.Flags, flag)
			switch name {
			case FlagMonthlyOPEX:
				ctx.MonthlyOPEX = true
			case FlagTripleWitching:
				ctx.TripleWitching = true
			case FlagMonthEnd:
				ctx.MonthEnd = true
			}
		}
		return ctx
	}

	cal.evalExpiry(date, ctx)
	cal.evalMonthEnd(date, ctx)
	return ctx
}

// evalExpiry derives monthly OPEX (third Friday) and triple witching
// (quarterly OPEX). When the third Friday is a listed holiday the real
// expiry shifts and we refuse to guess: the surrounding session is marked
// undetermined unless an override says otherwise.
func (cal *Calendar) evalExpiry(date time.Time, ctx *Context) {
	thirdFri := thirdFriday(date.Year(), date.Month())
	friKey := thirdFri.Format("2006-01-02")

	if cal.holidays[friKey] {
		// Expiry moves off the holiday; without an override the exact
		// session is ambiguous for the Friday and the day before it.
		if sameDay(date, thirdFri) || sameDay(date, prevBusinessDay(thirdFri, cal.holidays)) {
			ctx.Undetermined = true
			ctx.Notes = append(ctx.Notes,
				fmt.Sprintf("expiry ambiguous: third Friday %s is a holiday and no override is configured", friKey))
		}
		return
	}

	if !sameDay(date, thirdFri) {
		return
	}
	ctx.MonthlyOPEX = true
	ctx.Flags = append(ctx.Flags, EventFlag{Name: FlagMonthlyOPEX, Note: builtinNote(FlagMonthlyOPEX)})
	switch date.Month() {
	case time.March, time.June, time.September, time.December:
		ctx.TripleWitching = true
		ctx.Flags = append(ctx.Flags, EventFlag{Name: FlagTripleWitching, Note: builtinNote(FlagTripleWitching)})
	}
}

// evalMonthEnd derives the last trading day of the month: the last calendar
// day shifted back over weekends and listed holidays.
func (cal *Calendar) evalMonthEnd(date time.Time, ctx *Context) {
	last := lastDayOfMonth(date.Year(), date.Month())
	for isWeekend(last) || cal.holidays[last.Format("2006-01-02")] {
		last = last.AddDate(0, 0, -1)
	}
	if sameDay(date, last) {
		ctx.MonthEnd = true
		ctx.Flags = append(ctx.Flags, EventFlag{Name: FlagMonthEnd, Note: builtinNote(FlagMonthEnd)})
	}
}

func builtinNote(name string) string {
	switch name {
	case FlagMonthlyOPEX:
		return "Monthly options expiration: OI deltas reflect expiring contracts rolling off, not fresh positioning."
	case FlagTripleWitching:
		return "Triple witching: index futures, index options and stock options expire together; flow reads are unreliable."
	case FlagMonthEnd:
		return "Month-end rebalancing flows can dominate open-interest changes."
	default:
		return "Scheduled market event; positioning reads may be distorted."
	}
}

func thirdFriday(year int, month time.Month) time.Time {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	offset := (int(time.Friday) - int(first.Weekday()) + 7) % 7
	return first.AddDate(0, 0, offset+14)
}

func lastDayOfMonth(year int, month time.Month) time.Time {
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, -1)
}

func prevBusinessDay(t time.Time, holidays map[string]bool) time.Time {
	d := t.AddDate(0, 0, -1)
	for isWeekend(d) || holidays[d.Format("2006-01-02")] {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

func isWeekend(t time.Time) bool {
	return t.Weekday() == time.Saturday || t.Weekday() == time.Sunday
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}
