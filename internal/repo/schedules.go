package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"storeops/internal/domain"
)

func scanSchedule(scan func(dest ...any) error) (domain.DeliverySchedule, error) {
	var s domain.DeliverySchedule
	var days string
	if err := scan(&s.SupplierName, &s.StoreName, &days, &s.UpdatedAt); err != nil {
		return s, err
	}
	if err := json.Unmarshal([]byte(days), &s.DeliveryDays); err != nil {
		return s, fmt.Errorf("decode delivery days for %s/%s: %w", s.SupplierName, s.StoreName, err)
	}
	return s, nil
}

func (r Repo) UpsertScheduleTx(ctx context.Context, tx *sql.Tx, s domain.DeliverySchedule) error {
	days, err := json.Marshal(s.DeliveryDays)
	if err != nil {
		return err
	}
	_, err = r.on(tx).ExecContext(ctx, `INSERT INTO delivery_schedules(supplier_name,store_name,delivery_days_json,updated_at) VALUES (?,?,?,?)
ON CONFLICT(supplier_name,store_name) DO UPDATE SET delivery_days_json=excluded.delivery_days_json, updated_at=excluded.updated_at`,
		s.SupplierName, s.StoreName, string(days), s.UpdatedAt)
	return err
}

func (r Repo) GetSchedule(ctx context.Context, supplier, store string) (domain.DeliverySchedule, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT supplier_name,store_name,delivery_days_json,updated_at FROM delivery_schedules WHERE supplier_name=? AND store_name=?`, supplier, store)
	s, err := scanSchedule(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.DeliverySchedule{}, ErrNotFound
	}
	return s, err
}

// ListSchedules returns the schedule table; an empty store matches all.
func (r Repo) ListSchedules(ctx context.Context, store string) ([]domain.DeliverySchedule, error) {
	query := `SELECT supplier_name,store_name,delivery_days_json,updated_at FROM delivery_schedules`
	var args []any
	if store != "" {
		query += ` WHERE store_name=?`
		args = append(args, store)
	}
	query += ` ORDER BY supplier_name, store_name`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.DeliverySchedule{}
	for rows.Next() {
		s, err := scanSchedule(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

func (r Repo) DeleteScheduleTx(ctx context.Context, tx *sql.Tx, supplier, store string) error {
	res, err := r.on(tx).ExecContext(ctx, `DELETE FROM delivery_schedules WHERE supplier_name=? AND store_name=?`, supplier, store)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ReplaceSchedulesTx swaps the whole schedule table.
func (r Repo) ReplaceSchedulesTx(ctx context.Context, tx *sql.Tx, items []domain.DeliverySchedule) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM delivery_schedules`); err != nil {
		return err
	}
	for _, s := range items {
		if err := r.UpsertScheduleTx(ctx, tx, s); err != nil {
			return err
		}
	}
	return nil
}
