package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"storeops/internal/config"
	"storeops/internal/domain"
	"storeops/internal/events"
	"storeops/internal/planner"
)

// Format names an import document encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatForPath picks the encoding from a file extension, defaulting to YAML.
func FormatForPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

// ingredientRecord uses pointers so absent fields can be told apart from zeros.
type ingredientRecord struct {
	Name          *string  `yaml:"name" json:"name"`
	CurrentStock  *float64 `yaml:"current_stock" json:"current_stock"`
	MinStockLevel *float64 `yaml:"min_stock_level" json:"min_stock_level"`
	Category      string   `yaml:"category" json:"category"`
	SupplierName  *string  `yaml:"supplier_name" json:"supplier_name"`
	LeadTimeDays  *int     `yaml:"lead_time_days" json:"lead_time_days"`
	Unit          *string  `yaml:"unit" json:"unit"`
}

type ingredientDoc struct {
	Ingredients []ingredientRecord `yaml:"ingredients" json:"ingredients"`
}

type scheduleDoc struct {
	Schedules []domain.DeliverySchedule `yaml:"schedules" json:"schedules"`
}

func decode(data []byte, format Format, v any) error {
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(v); err != nil {
			return fmt.Errorf("invalid json: %w", err)
		}
	case FormatYAML, "":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(v); err != nil {
			return fmt.Errorf("invalid yaml: %w", err)
		}
	default:
		return fmt.Errorf("unsupported format %q", format)
	}
	return nil
}

func (r ingredientRecord) toDomain(idx int) (domain.Ingredient, error) {
	label := fmt.Sprintf("ingredient[%d]", idx)
	if r.Name != nil {
		label = fmt.Sprintf("ingredient[%d] %q", idx, *r.Name)
	}
	missing := func(field string) error {
		return planner.ValidationError{Record: label, Field: field, Reason: "is missing"}
	}
	switch {
	case r.Name == nil:
		return domain.Ingredient{}, missing("name")
	case r.CurrentStock == nil:
		return domain.Ingredient{}, missing("current_stock")
	case r.MinStockLevel == nil:
		return domain.Ingredient{}, missing("min_stock_level")
	case r.SupplierName == nil:
		return domain.Ingredient{}, missing("supplier_name")
	case r.LeadTimeDays == nil:
		return domain.Ingredient{}, missing("lead_time_days")
	case r.Unit == nil:
		return domain.Ingredient{}, missing("unit")
	}
	return domain.Ingredient{
		Name:          strings.TrimSpace(*r.Name),
		CurrentStock:  *r.CurrentStock,
		MinStockLevel: *r.MinStockLevel,
		Category:      r.Category,
		SupplierName:  *r.SupplierName,
		LeadTimeDays:  *r.LeadTimeDays,
		Unit:          *r.Unit,
	}, nil
}

// ParseIngredients decodes and validates an inventory snapshot document.
func ParseIngredients(data []byte, format Format) ([]domain.Ingredient, error) {
	var doc ingredientDoc
	if err := decode(data, format, &doc); err != nil {
		return nil, err
	}
	items := make([]domain.Ingredient, 0, len(doc.Ingredients))
	for i, rec := range doc.Ingredients {
		ing, err := rec.toDomain(i)
		if err != nil {
			return nil, err
		}
		items = append(items, ing)
	}
	if err := planner.ValidateIngredients(items); err != nil {
		return nil, err
	}
	return items, nil
}

// ImportIngredients replaces the stored snapshot with the document's
// records, in document order. Nothing is written when any record is invalid.
func (e Engine) ImportIngredients(ctx context.Context, data []byte, format Format, actorID string) ([]domain.Ingredient, error) {
	items, err := ParseIngredients(data, format)
	if err != nil {
		return nil, err
	}
	now := e.stamp()
	for i := range items {
		items[i].UpdatedAt = now
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	if err := e.Repo.ReplaceIngredientsTx(ctx, tx, items); err != nil {
		return nil, fmt.Errorf("replace ingredients: %w", err)
	}
	if err := e.writer().Append(ctx, tx, events.IngredientImported, "ingredient", "", actorID, events.EventPayload{
		"count": len(items),
	}); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return items, nil
}

// ImportSchedules replaces the schedule table. Nothing is written when any
// entry is invalid.
func (e Engine) ImportSchedules(ctx context.Context, data []byte, format Format, actorID string) ([]domain.DeliverySchedule, error) {
	var doc scheduleDoc
	if err := decode(data, format, &doc); err != nil {
		return nil, err
	}
	now := e.stamp()
	items := make([]domain.DeliverySchedule, 0, len(doc.Schedules))
	for i, s := range doc.Schedules {
		s, err := e.normalizeSchedule(i, s)
		if err != nil {
			return nil, err
		}
		s.UpdatedAt = now
		items = append(items, s)
	}
	if _, err := planner.NewScheduleTable(items); err != nil {
		return nil, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	if err := e.Repo.ReplaceSchedulesTx(ctx, tx, items); err != nil {
		return nil, fmt.Errorf("replace schedules: %w", err)
	}
	if err := e.writer().Append(ctx, tx, events.ScheduleUpserted, "schedule", "", actorID, events.EventPayload{
		"count":    len(items),
		"imported": true,
	}); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return items, nil
}

// ImportConfig stores a storeops.yml document and returns the parsed config.
func (e Engine) ImportConfig(ctx context.Context, data []byte, actorID string) (*config.Config, error) {
	cfg, err := config.FromYAML(data)
	if err != nil {
		return nil, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpsertConfigTx(ctx, tx, cfg); err != nil {
		return nil, fmt.Errorf("store config: %w", err)
	}
	if err := e.writer().Append(ctx, tx, events.ConfigImported, "config", "", actorID, events.EventPayload{
		"stores":               cfg.Stores,
		"default_delivery_day": cfg.Ordering.DefaultDeliveryDay,
		"require_schedules":    cfg.Ordering.RequireSchedules,
	}); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return cfg, nil
}
