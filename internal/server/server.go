package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"storeops/internal/domain"
	"storeops/internal/engine"
	"storeops/internal/migrate"
	"storeops/internal/planner"
	"storeops/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"validation_failed"`
	Message string         `json:"message" example:"invalid ingredient \"Butter\": unit is required"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true" example:"{\"field\":\"unit\"}"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// badRequest marks malformed input that passed schema validation.
type badRequest struct {
	msg     string
	details map[string]any
}

func (e badRequest) Error() string { return e.msg }

// New returns an HTTP handler exposing the storeops API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	if cfg.Engine.Config == nil {
		return nil, errors.New("server: engine config not loaded")
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity {
			// Schema and request decoding failures are the caller's malformed input.
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	hcfg := huma.DefaultConfig("storeops API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group, cfg.Engine)
	registerConfig(group, cfg.Engine)
	registerIngredients(group, cfg.Engine)
	registerSchedules(group, cfg.Engine)
	registerSuggestedOrders(group, cfg.Engine)
	registerEvents(group, cfg.Engine)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var verr planner.ValidationError
	if errors.As(err, &verr) {
		details := map[string]any{"record": verr.Record}
		if verr.Field != "" {
			details["field"] = verr.Field
		}
		return newAPIError(http.StatusUnprocessableEntity, "validation_failed", err.Error(), details)
	}
	var missing planner.MissingScheduleError
	if errors.As(err, &missing) {
		return newAPIError(http.StatusUnprocessableEntity, "missing_schedule", err.Error(), map[string]any{
			"supplier_name": missing.Key.Supplier,
			"store_name":    missing.Key.Store,
		})
	}
	var bad badRequest
	if errors.As(err, &bad) {
		return newAPIError(http.StatusBadRequest, "bad_request", bad.msg, bad.details)
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": err.Error()})
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerDocs(r chi.Router, basePath string) {
	r.Get(path.Join(basePath, "docs"), func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var (
		once sync.Once
		spec []byte
	)
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		once.Do(func() {
			oas := api.OpenAPI()
			ensureDefaultErrorResponses(oas)
			spec, _ = json.Marshal(oas)
		})
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func ensureDefaultErrorResponses(oas *huma.OpenAPI) {
	if oas == nil || oas.Paths == nil {
		return
	}
	for _, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if op.Responses == nil {
				op.Responses = map[string]*huma.Response{}
			}
			op.Responses["default"] = &huma.Response{
				Description: "Error",
				Content: map[string]*huma.MediaType{
					"application/json": {
						Schema: &huma.Schema{Ref: "#/components/schemas/ApiError"},
					},
				},
			}
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>storeops API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
  </body>
</html>`, specURL)
}

// HealthResponse reports liveness and the workspace schema version.
type HealthResponse struct {
	Status string         `json:"status" enum:"ok,outdated"`
	Schema migrate.Status `json:"schema"`
}

func registerHealth(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body HealthResponse `json:"body"`
	}, error) {
		st, err := migrate.Check(ctx, e.DB)
		if err != nil {
			return nil, handleError(err)
		}
		status := "ok"
		if st.Current < st.Latest {
			status = "outdated"
		}
		return &struct {
			Body HealthResponse `json:"body"`
		}{Body: HealthResponse{Status: status, Schema: st}}, nil
	})
}

func registerConfig(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "get-config",
		Method:      http.MethodGet,
		Path:        "/config",
		Summary:     "Workspace config",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body ConfigResponse `json:"body"`
	}, error) {
		return &struct {
			Body ConfigResponse `json:"body"`
		}{Body: configResponse(e.Config)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-stores",
		Method:      http.MethodGet,
		Path:        "/stores",
		Summary:     "List stores in planning order",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body StoreList `json:"body"`
	}, error) {
		return &struct {
			Body StoreList `json:"body"`
		}{Body: StoreList{Items: nonNilSlice(e.Config.Stores)}}, nil
	})
}

type ActorHeader struct {
	ActorID string `header:"X-Actor-Id" doc:"Actor recorded on the event log"`
}

func registerIngredients(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-ingredients",
		Method:      http.MethodGet,
		Path:        "/ingredients",
		Summary:     "List the inventory snapshot",
	}, func(ctx context.Context, input *struct {
		Supplier string `query:"supplier"`
		Category string `query:"category"`
		BelowMin bool   `query:"below_min" doc:"Only records under their minimum level"`
	}) (*struct {
		Body IngredientList `json:"body"`
	}, error) {
		items, err := e.Repo.ListIngredients(ctx, repo.IngredientFilters{Supplier: input.Supplier, Category: input.Category, BelowMin: input.BelowMin})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body IngredientList `json:"body"`
		}{Body: IngredientList{Items: items}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-ingredient",
		Method:      http.MethodGet,
		Path:        "/ingredients/{name}",
		Summary:     "Get ingredient",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Name string `path:"name"`
	}) (*struct {
		Body domain.Ingredient `json:"body"`
	}, error) {
		ing, err := e.Repo.GetIngredient(ctx, input.Name)
		if err != nil {
			return nil, handleError(fmt.Errorf("ingredient %q: %w", input.Name, err))
		}
		return &struct {
			Body domain.Ingredient `json:"body"`
		}{Body: ing}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "put-ingredient",
		Method:      http.MethodPut,
		Path:        "/ingredients/{name}",
		Summary:     "Create or replace ingredient",
		Errors:      []int{http.StatusBadRequest, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		Name string `path:"name"`
		ActorHeader
		Body IngredientRequest `json:"body"`
	}) (*struct {
		Body domain.Ingredient `json:"body"`
	}, error) {
		ing, err := e.UpsertIngredient(ctx, input.Body.toDomain(input.Name), input.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Ingredient `json:"body"`
		}{Body: ing}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-ingredient",
		Method:        http.MethodDelete,
		Path:          "/ingredients/{name}",
		Summary:       "Delete ingredient",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Name string `path:"name"`
		ActorHeader
	}) (*struct{}, error) {
		if err := e.DeleteIngredient(ctx, input.Name, input.ActorID); err != nil {
			return nil, handleError(fmt.Errorf("ingredient %q: %w", input.Name, err))
		}
		return nil, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-ingredient-stock",
		Method:      http.MethodPatch,
		Path:        "/ingredients/{name}/stock",
		Summary:     "Record a stock count",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		Name string `path:"name"`
		ActorHeader
		Body StockRequest `json:"body"`
	}) (*struct {
		Body domain.Ingredient `json:"body"`
	}, error) {
		ing, err := e.SetStock(ctx, input.Name, input.Body.CurrentStock, input.ActorID)
		if err != nil {
			return nil, handleError(fmt.Errorf("ingredient %q: %w", input.Name, err))
		}
		return &struct {
			Body domain.Ingredient `json:"body"`
		}{Body: ing}, nil
	})
}

func registerSchedules(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-schedules",
		Method:      http.MethodGet,
		Path:        "/schedules",
		Summary:     "List delivery schedules",
	}, func(ctx context.Context, input *struct {
		Store string `query:"store"`
	}) (*struct {
		Body ScheduleList `json:"body"`
	}, error) {
		items, err := e.Repo.ListSchedules(ctx, input.Store)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ScheduleList `json:"body"`
		}{Body: ScheduleList{Items: items}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "put-schedule",
		Method:      http.MethodPut,
		Path:        "/schedules/{supplier}/{store}",
		Summary:     "Set a supplier's delivery days at a store",
		Errors:      []int{http.StatusBadRequest, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		Supplier string `path:"supplier"`
		Store    string `path:"store"`
		ActorHeader
		Body ScheduleRequest `json:"body"`
	}) (*struct {
		Body domain.DeliverySchedule `json:"body"`
	}, error) {
		s, err := e.PutSchedule(ctx, domain.DeliverySchedule{
			SupplierName: input.Supplier,
			StoreName:    input.Store,
			DeliveryDays: input.Body.DeliveryDays,
		}, input.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.DeliverySchedule `json:"body"`
		}{Body: s}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-schedule",
		Method:        http.MethodDelete,
		Path:          "/schedules/{supplier}/{store}",
		Summary:       "Delete a delivery schedule",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Supplier string `path:"supplier"`
		Store    string `path:"store"`
		ActorHeader
	}) (*struct{}, error) {
		if err := e.DeleteSchedule(ctx, input.Supplier, input.Store, input.ActorID); err != nil {
			key := planner.ScheduleKey{Supplier: input.Supplier, Store: input.Store}
			return nil, handleError(fmt.Errorf("schedule %s: %w", key, err))
		}
		return nil, nil
	})
}

func registerSuggestedOrders(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "suggested-orders",
		Method:      http.MethodGet,
		Path:        "/suggested-orders",
		Summary:     "Compute ranked supplier orders",
		Description: "Orders for one store, or for every configured store with store=all. Each call is recorded as an orders.suggested event.",
		Errors:      []int{http.StatusBadRequest, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		Store string `query:"store" doc:"Store name, or all" default:"all"`
		Today string `query:"today" doc:"Planning date (YYYY-MM-DD); defaults to the server date"`
		ActorHeader
	}) (*struct {
		Body engine.Suggestion `json:"body"`
	}, error) {
		var today time.Time
		if input.Today != "" {
			parsed, err := planner.ParseDate(input.Today)
			if err != nil {
				return nil, handleError(badRequest{msg: err.Error(), details: map[string]any{"today": input.Today}})
			}
			today = parsed
		}
		scope := domain.ParseScope(input.Store, e.Config.Stores)
		s, err := e.SuggestOrders(ctx, scope, today, input.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.Suggestion `json:"body"`
		}{Body: s}, nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "List recent events",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Type       string `query:"type"`
		EntityKind string `query:"entity_kind" enum:"ingredient,schedule,config,run"`
		EntityID   string `query:"entity_id"`
		Limit      int    `query:"limit" default:"50"`
		Cursor     string `query:"cursor"`
	}) (*struct {
		Body paginatedEvents `json:"body"`
	}, error) {
		limit := normalizeLimit(input.Limit)
		var cursorID int64
		if input.Cursor != "" {
			parsed, err := strconv.ParseInt(input.Cursor, 10, 64)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
			}
			cursorID = parsed
		}
		items, err := e.Repo.LatestEventsFrom(ctx, limit+1, cursorID, repo.EventFilters{
			Type:       input.Type,
			EntityKind: input.EntityKind,
			EntityID:   input.EntityID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		resp := paginatedEvents{Items: []EventResponse{}}
		if len(items) > limit {
			items = items[:limit]
			resp.NextCursor = strconv.FormatInt(items[limit-1].ID, 10)
		}
		for _, evt := range items {
			resp.Items = append(resp.Items, eventResponse(evt))
		}
		return &struct {
			Body paginatedEvents `json:"body"`
		}{Body: resp}, nil
	})
}

func normalizeLimit(in int) int {
	if in <= 0 {
		return 50
	}
	if in > 200 {
		return 200
	}
	return in
}
