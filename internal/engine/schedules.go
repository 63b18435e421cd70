package engine

import (
	"context"
	"fmt"
	"strings"

	"storeops/internal/domain"
	"storeops/internal/events"
	"storeops/internal/planner"
)

// PutSchedule stores the delivery weekdays for a supplier at a store. Day
// names are stored in canonical form.
func (e Engine) PutSchedule(ctx context.Context, s domain.DeliverySchedule, actorID string) (domain.DeliverySchedule, error) {
	s, err := e.normalizeSchedule(-1, s)
	if err != nil {
		return domain.DeliverySchedule{}, err
	}
	s.UpdatedAt = e.stamp()
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.DeliverySchedule{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpsertScheduleTx(ctx, tx, s); err != nil {
		return domain.DeliverySchedule{}, fmt.Errorf("upsert schedule: %w", err)
	}
	key := planner.ScheduleKey{Supplier: s.SupplierName, Store: s.StoreName}
	if err := e.writer().Append(ctx, tx, events.ScheduleUpserted, "schedule", key.String(), actorID, events.EventPayload{
		"delivery_days": s.DeliveryDays,
	}); err != nil {
		return domain.DeliverySchedule{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.DeliverySchedule{}, err
	}
	return s, nil
}

func (e Engine) DeleteSchedule(ctx context.Context, supplier, store, actorID string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.DeleteScheduleTx(ctx, tx, supplier, store); err != nil {
		return err
	}
	key := planner.ScheduleKey{Supplier: supplier, Store: store}
	if err := e.writer().Append(ctx, tx, events.ScheduleDeleted, "schedule", key.String(), actorID, nil); err != nil {
		return err
	}
	return tx.Commit()
}

func (e Engine) normalizeSchedule(idx int, s domain.DeliverySchedule) (domain.DeliverySchedule, error) {
	s.SupplierName = strings.TrimSpace(s.SupplierName)
	s.StoreName = strings.TrimSpace(s.StoreName)
	label := "schedule"
	if idx >= 0 {
		label = fmt.Sprintf("schedule[%d]", idx)
	}
	if s.SupplierName == "" {
		return s, planner.ValidationError{Record: label, Field: "supplier_name", Reason: "is required"}
	}
	if s.StoreName == "" {
		return s, planner.ValidationError{Record: label, Field: "store_name", Reason: "is required"}
	}
	if !e.knownStore(s.StoreName) {
		return s, planner.ValidationError{Record: label, Field: "store_name", Reason: fmt.Sprintf("%q is not a known store", s.StoreName)}
	}
	if len(s.DeliveryDays) == 0 {
		return s, planner.ValidationError{Record: label, Field: "delivery_days", Reason: "must list at least one weekday"}
	}
	days, err := planner.CanonicalDays(s.DeliveryDays)
	if err != nil {
		return s, planner.ValidationError{Record: label, Field: "delivery_days", Reason: err.Error()}
	}
	s.DeliveryDays = days
	return s, nil
}
