package planner

import (
	"fmt"
	"strings"
	"time"

	"storeops/internal/domain"
)

// DateLayout is the ISO 8601 calendar date format used for order dates.
const DateLayout = "2006-01-02"

// ScheduleKey identifies a delivery schedule entry.
type ScheduleKey struct {
	Supplier string `json:"supplier_name"`
	Store    string `json:"store_name"`
}

func (k ScheduleKey) String() string {
	return k.Supplier + "@" + k.Store
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
	"sun":       time.Sunday,
	"mon":       time.Monday,
	"tue":       time.Tuesday,
	"wed":       time.Wednesday,
	"thu":       time.Thursday,
	"fri":       time.Friday,
	"sat":       time.Saturday,
}

// ParseWeekday accepts English weekday names or their three letter
// abbreviations, case-insensitively.
func ParseWeekday(name string) (time.Weekday, error) {
	d, ok := weekdays[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("unknown weekday %q", name)
	}
	return d, nil
}

// CanonicalDays parses weekday names and returns them in canonical form
// ("Monday"), keeping first-seen order and dropping repeats.
func CanonicalDays(names []string) ([]string, error) {
	days, err := parseDays(names)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(days))
	for _, d := range days {
		out = append(out, d.String())
	}
	return out, nil
}

func parseDays(names []string) ([]time.Weekday, error) {
	var (
		out  []time.Weekday
		seen [7]bool
	)
	for _, n := range names {
		d, err := ParseWeekday(n)
		if err != nil {
			return nil, err
		}
		if seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	return out, nil
}

// ScheduleTable indexes delivery weekdays by (supplier, store).
type ScheduleTable struct {
	days map[ScheduleKey][]time.Weekday
}

// NewScheduleTable builds the lookup table. Unknown weekday names and
// repeated keys are validation errors.
func NewScheduleTable(entries []domain.DeliverySchedule) (ScheduleTable, error) {
	t := ScheduleTable{days: make(map[ScheduleKey][]time.Weekday, len(entries))}
	for _, e := range entries {
		key := ScheduleKey{Supplier: e.SupplierName, Store: e.StoreName}
		label := "schedule " + key.String()
		if _, dup := t.days[key]; dup {
			return ScheduleTable{}, ValidationError{Record: label, Reason: "is listed more than once"}
		}
		days, err := parseDays(e.DeliveryDays)
		if err != nil {
			return ScheduleTable{}, ValidationError{Record: label, Field: "delivery_days", Reason: err.Error()}
		}
		t.days[key] = days
	}
	return t, nil
}

// Days returns the scheduled weekdays for a pair. An entry without days
// counts as absent.
func (t ScheduleTable) Days(supplier, store string) ([]time.Weekday, bool) {
	days := t.days[ScheduleKey{Supplier: supplier, Store: store}]
	return days, len(days) > 0
}

// NextDelivery returns the earliest date strictly after today falling on one
// of days. A delivery day equal to today's weekday counts as a week out.
func NextDelivery(today time.Time, days []time.Weekday) time.Time {
	today = civilDate(today)
	best := 7
	for _, d := range days {
		offset := (int(d) - int(today.Weekday()) + 7) % 7
		if offset == 0 {
			offset = 7
		}
		if offset < best {
			best = offset
		}
	}
	return today.AddDate(0, 0, best)
}

// OrderDate back-computes the latest order date for a delivery.
func OrderDate(delivery time.Time, leadTimeDays int) time.Time {
	return civilDate(delivery).AddDate(0, 0, -leadTimeDays)
}

// Resolved is the delivery and order date for one (supplier, store) pair.
type Resolved struct {
	Delivery  time.Time
	OrderDate time.Time
	// Fallback is set when the pair had no schedule and the fallback day was used.
	Fallback bool
}

// ResolveSchedule dates an order for the pair. Pairs missing from the table
// deliver on the fallback weekday.
func ResolveSchedule(t ScheduleTable, supplier, store string, leadTimeDays int, today time.Time, fallback time.Weekday) Resolved {
	days, ok := t.Days(supplier, store)
	if !ok {
		days = []time.Weekday{fallback}
	}
	delivery := NextDelivery(today, days)
	return Resolved{Delivery: delivery, OrderDate: OrderDate(delivery, leadTimeDays), Fallback: !ok}
}

// civilDate drops the clock and zone, keeping the calendar date as read in
// t's own location.
func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate reads an ISO 8601 calendar date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", s)
	}
	return t, nil
}
