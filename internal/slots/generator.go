package slots

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/courtside/backend/internal/models"
)

// TemplateSlot is one row of the fixed Sunday schedule.
type TemplateSlot struct {
	TimeSlot    string
	SessionType string
	CategoryMin int
	CategoryMax int
	MaxCapacity int
}

// SundayTemplate is the set of slots created for every generated Sunday:
// four hour-long group sessions, one per age band, six seats each.
var SundayTemplate = []TemplateSlot{
	{TimeSlot: "09:00-10:00", SessionType: models.SessionTypeGroup, CategoryMin: 6, CategoryMax: 8, MaxCapacity: 6},
	{TimeSlot: "10:00-11:00", SessionType: models.SessionTypeGroup, CategoryMin: 9, CategoryMax: 11, MaxCapacity: 6},
	{TimeSlot: "11:00-12:00", SessionType: models.SessionTypeGroup, CategoryMin: 12, CategoryMax: 14, MaxCapacity: 6},
	{TimeSlot: "12:00-13:00", SessionType: models.SessionTypeGroup, CategoryMin: 15, CategoryMax: 17, MaxCapacity: 6},
}

// GeneratorStore is the slot surface the generator writes through.
type GeneratorStore interface {
	HasAnyOnDate(ctx context.Context, date time.Time) (bool, error)
	Insert(ctx context.Context, slot *models.Slot) (bool, error)
}

// Generator creates the upcoming Sundays' slots. Runs are idempotent: a date
// with any existing rows is left entirely untouched, so re-running never
// duplicates slots or resets capacity counters.
type Generator struct {
	Store        GeneratorStore
	Location     *time.Location
	Template     []TemplateSlot
	DefaultWeeks int
}

// NewGenerator returns a generator over the fixed Sunday template. loc is
// the club timezone, which decides when "today" rolls over to the next
// Sunday.
func NewGenerator(store GeneratorStore, loc *time.Location, defaultWeeks int) *Generator {
	if loc == nil {
		loc = time.UTC
	}
	if defaultWeeks < 1 {
		defaultWeeks = 4
	}
	return &Generator{
		Store:        store,
		Location:     loc,
		Template:     SundayTemplate,
		DefaultWeeks: defaultWeeks,
	}
}

// Generate creates slots for every Sunday from today through the horizon and
// returns how many were written. Zero is a valid outcome: it means every
// Sunday in the horizon already had its schedule.
func (g *Generator) Generate(ctx context.Context, weeksAhead int) (int, error) {
	if weeksAhead < 1 {
		weeksAhead = g.DefaultWeeks
	}
	now := time.Now().In(g.Location)
	limit := startOfDay(now).AddDate(0, 0, 7*weeksAhead)

	created := 0
	for d := nextSunday(now); d.Before(limit); d = d.AddDate(0, 0, 7) {
		date := asCalendarDate(d)
		has, err := g.Store.HasAnyOnDate(ctx, date)
		if err != nil {
			return created, err
		}
		if has {
			continue
		}
		for _, tpl := range g.Template {
			inserted, err := g.Store.Insert(ctx, &models.Slot{
				ID:              uuid.New(),
				SessionDate:     date,
				TimeSlot:        tpl.TimeSlot,
				SessionType:     tpl.SessionType,
				CategoryMin:     tpl.CategoryMin,
				CategoryMax:     tpl.CategoryMax,
				MaxCapacity:     tpl.MaxCapacity,
				CurrentBookings: 0,
			})
			if err != nil {
				return created, err
			}
			if inserted {
				created++
			}
		}
	}
	return created, nil
}

// NextSessionDate returns the upcoming Sunday as a calendar date: today when
// today is a Sunday in the club timezone.
func NextSessionDate(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return asCalendarDate(nextSunday(now.In(loc)))
}

// nextSunday returns local midnight of the soonest Sunday at or after t.
func nextSunday(t time.Time) time.Time {
	d := startOfDay(t)
	offset := (int(time.Sunday) - int(d.Weekday()) + 7) % 7
	return d.AddDate(0, 0, offset)
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// asCalendarDate strips the timezone: session dates are stored and compared
// as plain calendar days.
func asCalendarDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
