package engine

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"storeops/internal/config"
	"storeops/internal/domain"
	"storeops/internal/events"
	"storeops/internal/planner"
	"storeops/internal/repo"
)

type Engine struct {
	DB      *sql.DB
	Repo    repo.Repo
	Events  events.Writer
	Config  *config.Config
	Planner planner.Planner
	Now     func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	e := Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{},
		Config: cfg,
		Now:    time.Now,
	}
	if cfg != nil {
		e.Planner.Policy = cfg.Policy()
	}
	return e
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) writer() events.Writer {
	w := e.Events
	if w.Now == nil {
		w.Now = e.now
	}
	return w
}

func (e Engine) stamp() string {
	return e.now().UTC().Format(time.RFC3339)
}

// Suggestion is one computed run of the ordering pipeline.
type Suggestion struct {
	RunID     string                 `json:"run_id"`
	Scope     string                 `json:"scope"`
	Today     string                 `json:"today" format:"date"`
	Orders    []domain.SupplierOrder `json:"orders"`
	Fallbacks []planner.ScheduleKey  `json:"fallbacks"`
}

// SuggestOrders computes the ranked supplier orders for scope over the stored
// snapshot. A zero today uses the engine clock's date. Only the run summary is
// recorded; the orders themselves are not stored.
func (e Engine) SuggestOrders(ctx context.Context, scope domain.Scope, today time.Time, actorID string) (Suggestion, error) {
	if e.Config == nil {
		return Suggestion{}, errors.New("config not loaded")
	}
	if len(scope.Stores) == 0 {
		scope.Stores = e.Config.Stores
	}
	if today.IsZero() {
		today = e.now()
	}
	ingredients, err := e.Repo.ListIngredients(ctx, repo.IngredientFilters{})
	if err != nil {
		return Suggestion{}, err
	}
	schedules, err := e.Repo.ListSchedules(ctx, "")
	if err != nil {
		return Suggestion{}, err
	}
	plan, err := e.Planner.Plan(ingredients, schedules, scope, today)
	if err != nil {
		return Suggestion{}, err
	}
	y, m, d := today.Date()
	s := Suggestion{
		RunID:     uuid.NewString(),
		Scope:     scope.String(),
		Today:     time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Format(planner.DateLayout),
		Orders:    plan.Orders,
		Fallbacks: plan.Fallbacks,
	}

	urgency := map[domain.Urgency]int{domain.UrgencyHigh: 0, domain.UrgencyMedium: 0, domain.UrgencyLow: 0}
	for _, o := range s.Orders {
		urgency[o.Urgency]++
	}
	fallbacks := make([]string, 0, len(s.Fallbacks))
	for _, k := range s.Fallbacks {
		fallbacks = append(fallbacks, k.String())
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return Suggestion{}, err
	}
	defer tx.Rollback()
	if err := e.writer().Append(ctx, tx, events.OrdersSuggested, "run", s.RunID, actorID, events.EventPayload{
		"scope":     s.Scope,
		"today":     s.Today,
		"orders":    len(s.Orders),
		"urgency":   urgency,
		"fallbacks": fallbacks,
	}); err != nil {
		return Suggestion{}, err
	}
	if err := tx.Commit(); err != nil {
		return Suggestion{}, err
	}
	return s, nil
}

// knownStore reports whether store is configured. Without a config every
// store is accepted.
func (e Engine) knownStore(store string) bool {
	if e.Config == nil {
		return true
	}
	for _, s := range e.Config.Stores {
		if s == store {
			return true
		}
	}
	return false
}
