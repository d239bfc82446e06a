package router

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pastvra/pastvra/internal/config"
	"github.com/pastvra/pastvra/internal/domain/models"
	"github.com/pastvra/pastvra/internal/repository/memory"
	"github.com/pastvra/pastvra/internal/server/handlers"
	"github.com/pastvra/pastvra/internal/service/reporting"
	"github.com/pastvra/pastvra/internal/service/weights"
)

const token = "secret"

func newTestEngine(t *testing.T) (http.Handler, *memory.Store) {
	t.Helper()
	store := memory.New()
	weightSvc := weights.NewService(store, nil, nil, config.FarmDefaults{LowGainThresholdADG: 0.3, OverdueDays: 45}, nil)
	reportSvc := reporting.NewService(store, weightSvc, nil, nil, nil)

	engine := New(Handlers{
		Weights: handlers.NewWeightHandler(weightSvc, nil),
		Reports: handlers.NewReportHandler(reportSvc, nil),
		Health:  handlers.NewHealthHandler(store, nil),
	}, token, nil)
	return engine, store
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHealthAndMetrics(t *testing.T) {
	engine, _ := newTestEngine(t)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestBearerAuth(t *testing.T) {
	engine, _ := newTestEngine(t)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/farms/farm-1", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, handlers.CodeUnauthorized, decode[handlers.ErrorResponse](t, w).Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/farms/farm-1", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w = httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, engine, http.MethodGet, "/api/v1/farms/farm-1", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRecordWeightIsIdempotent(t *testing.T) {
	engine, store := newTestEngine(t)
	body := handlers.RecordWeightRequest{
		AnimalID:       "a1",
		MeasuredOn:     "2025-04-10",
		WeightKg:       310.5,
		IdempotencyKey: "key-1",
		Source:         models.SourceOfflineSync,
		CreatedBy:      "operator",
	}

	w := do(t, engine, http.MethodPost, "/api/v1/farms/farm-1/weights", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	rec := decode[models.AnimalWeightRecord](t, w)
	assert.Equal(t, "farm-1", rec.FarmID)
	assert.Equal(t, models.SourceOfflineSync, rec.Source)

	w = do(t, engine, http.MethodPost, "/api/v1/farms/farm-1/weights", body)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, handlers.CodeDuplicateIdempotencyKey, decode[handlers.ErrorResponse](t, w).Code)

	stored, err := store.ListWeightsByAnimal(t.Context(), "farm-1", "a1")
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestRecordWeightValidation(t *testing.T) {
	engine, _ := newTestEngine(t)

	cases := map[string]any{
		"zero weight":   handlers.RecordWeightRequest{AnimalID: "a1", MeasuredOn: "2025-04-10", WeightKg: 0},
		"bad date":      handlers.RecordWeightRequest{AnimalID: "a1", MeasuredOn: "10/04/2025", WeightKg: 10},
		"no animal":     handlers.RecordWeightRequest{MeasuredOn: "2025-04-10", WeightKg: 10},
		"bad source":    handlers.RecordWeightRequest{AnimalID: "a1", MeasuredOn: "2025-04-10", WeightKg: 10, Source: "scale"},
		"not an object": "weight",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			w := do(t, engine, http.MethodPost, "/api/v1/farms/farm-1/weights", body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, handlers.CodeInvalidRequest, decode[handlers.ErrorResponse](t, w).Code)
		})
	}
}

func TestLookupAndHistory(t *testing.T) {
	engine, _ := newTestEngine(t)

	w := do(t, engine, http.MethodPost, "/api/v1/farms/farm-1/animals", models.Animal{ID: "a1", EarTag: "T-9", Name: "Lola"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	for i, date := range []string{"2025-01-01", "2025-01-11"} {
		w = do(t, engine, http.MethodPost, "/api/v1/farms/farm-1/weights", handlers.RecordWeightRequest{
			AnimalID: "a1", MeasuredOn: date, WeightKg: 100 + float64(i)*50,
		})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w = do(t, engine, http.MethodGet, "/api/v1/farms/farm-1/animals/lookup?term=T-9", nil)
	require.Equal(t, http.StatusOK, w.Code)
	lookup := decode[handlers.LookupResponse](t, w)
	assert.Equal(t, "Lola", lookup.Animal.Name)
	require.Len(t, lookup.History, 2)
	assert.Equal(t, 150.0, lookup.History[0].WeightKg)

	w = do(t, engine, http.MethodGet, "/api/v1/farms/farm-1/animals/lookup?term=nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, handlers.CodeAnimalNotFound, decode[handlers.ErrorResponse](t, w).Code)

	w = do(t, engine, http.MethodGet, "/api/v1/farms/farm-1/animals/lookup", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, engine, http.MethodGet, "/api/v1/farms/farm-1/animals/a1/weights", nil)
	require.Equal(t, http.StatusOK, w.Code)
	history := decode[[]models.AnimalWeightRecord](t, w)
	require.Len(t, history, 2)
	assert.Equal(t, 100.0, history[0].WeightKg)

	w = do(t, engine, http.MethodGet, "/api/v1/farms/farm-1/animals/a1/trend", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"latest_adg":5`)

	w = do(t, engine, http.MethodGet, "/api/v1/farms/farm-1/monthly-matrix?year=2025", nil)
	require.Equal(t, http.StatusOK, w.Code)
	matrix := decode[handlers.MatrixResponse](t, w)
	assert.Equal(t, "ENE", matrix.MonthLabels[0])
	require.Len(t, matrix.Rows, 1)
	require.NotNil(t, matrix.Rows[0].Cells[0].Weight)
	assert.Equal(t, 150.0, *matrix.Rows[0].Cells[0].Weight)

	w = do(t, engine, http.MethodGet, "/api/v1/farms/farm-1/monthly-matrix?year=25x", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, engine, http.MethodPost, "/api/v1/farms/farm-1/monthly-matrix/export?year=2025", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestSaveAnimalRequiresIdentifier(t *testing.T) {
	engine, _ := newTestEngine(t)

	w := do(t, engine, http.MethodPost, "/api/v1/farms/farm-1/animals", models.Animal{Name: "Sin arete"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFarmSettings(t *testing.T) {
	engine, _ := newTestEngine(t)

	w := do(t, engine, http.MethodGet, "/api/v1/farms/farm-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	farm := decode[models.Farm](t, w)
	assert.Equal(t, 45, farm.OverdueDays)

	w = do(t, engine, http.MethodPut, "/api/v1/farms/farm-1", models.Farm{Name: "La Loma", LowGainThresholdADG: 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, engine, http.MethodPut, "/api/v1/farms/farm-1", models.Farm{Name: "La Loma", LowGainThresholdADG: 0.5, OverdueDays: 30})
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, engine, http.MethodGet, "/api/v1/farms/farm-1", nil)
	farm = decode[models.Farm](t, w)
	assert.Equal(t, "La Loma", farm.Name)
	assert.Equal(t, 30, farm.OverdueDays)
}

func TestInventoryLedger(t *testing.T) {
	engine, _ := newTestEngine(t)
	movements := []string{
		`{"movement_date":"2025-02-01","destination_name":"Feria","category_name":"Vacas","purchases_qty":10,"unit_value_usd":"450.50","freight_usd":"120","commission_rate":"0.02"}`,
		`{"movement_date":"2025-02-10","destination_name":"Matadero","category_name":"Vacas","sales_qty":4,"unit_value_usd":500}`,
		`{"movement_date":"2025-03-01","destination_name":"Finca 2","transfers_qty":2}`,
	}
	for _, m := range movements {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/farms/farm-1/inventory/movements", strings.NewReader(m))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	w := do(t, engine, http.MethodGet, "/api/v1/farms/farm-1/inventory/ledger", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var report struct {
		Rows []struct {
			ClosingBalance      float64 `json:"closing_balance"`
			TotalAcquisitionUSD string  `json:"total_acquisition_usd"`
		} `json:"rows"`
		Totals struct {
			ClosingBalance float64 `json:"closing_balance"`
		} `json:"totals"`
		Options struct {
			Destinations []string `json:"destinations"`
			Categories   []string `json:"categories"`
		} `json:"filter_options"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report), w.Body.String())
	require.Len(t, report.Rows, 3)
	assert.Equal(t, 10.0, report.Rows[0].ClosingBalance)
	assert.Equal(t, 6.0, report.Rows[1].ClosingBalance)
	assert.Equal(t, 4.0, report.Rows[2].ClosingBalance)
	assert.Equal(t, "4715.1", report.Rows[0].TotalAcquisitionUSD)
	assert.Equal(t, 4.0, report.Totals.ClosingBalance)
	assert.Equal(t, []string{"Feria", "Matadero", "Finca 2"}, report.Options.Destinations)
	assert.Equal(t, []string{"Vacas"}, report.Options.Categories)

	w = do(t, engine, http.MethodGet, "/api/v1/farms/farm-1/inventory/ledger?from=2025-02-05&to=2025-02-28", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	require.Len(t, report.Rows, 1)
	assert.Equal(t, -4.0, report.Rows[0].ClosingBalance)

	w = do(t, engine, http.MethodGet, "/api/v1/farms/farm-1/inventory/ledger?from=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, engine, http.MethodPost, "/api/v1/farms/farm-1/inventory/movements", map[string]any{"movement_date": "2025-03-01", "sales_qty": -1})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
