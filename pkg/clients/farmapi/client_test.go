package farmapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pastvra/pastvra/internal/config"
	"github.com/pastvra/pastvra/internal/domain/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *APIClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.AgentConfig{APIBaseURL: srv.URL + "/", APIToken: "tok"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func weightRecord() models.AnimalWeightRecord {
	return models.AnimalWeightRecord{
		FarmID:         "farm-1",
		AnimalID:       "a1",
		MeasuredOn:     time.Date(2025, time.August, 3, 0, 0, 0, 0, time.UTC),
		WeightKg:       402.5,
		IdempotencyKey: "key-1",
		Source:         models.SourceOfflineSync,
		CreatedBy:      "op-1",
	}
}

func TestInsertWeight(t *testing.T) {
	var got RecordWeightRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/farms/farm-1/weights", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, http.StatusCreated, map[string]string{"id": "w-1"})
	})

	require.NoError(t, client.InsertWeight(context.Background(), weightRecord()))
	assert.Equal(t, "2025-08-03", got.MeasuredOn)
	assert.Equal(t, "key-1", got.IdempotencyKey)
	assert.Equal(t, models.SourceOfflineSync, got.Source)
}

func TestInsertWeightErrors(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   ErrorResponse
		want   error
	}{
		{"duplicate", http.StatusConflict, ErrorResponse{Code: CodeDuplicateIdempotencyKey}, models.ErrDuplicateWeight},
		{"invalid", http.StatusBadRequest, ErrorResponse{Code: CodeInvalidRequest, Message: "WeightKg failed gt"}, models.ErrInvalidWeight},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tc.status, tc.body)
			})
			err := client.InsertWeight(context.Background(), weightRecord())
			assert.ErrorIs(t, err, tc.want)
		})
	}

	t.Run("server error is opaque", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusBadGateway, ErrorResponse{Message: "upstream"})
		})
		err := client.InsertWeight(context.Background(), weightRecord())
		require.Error(t, err)
		assert.NotErrorIs(t, err, models.ErrDuplicateWeight)
		assert.Contains(t, err.Error(), "status=502")
	})
}

func TestFindAnimalAndHistory(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/farms/farm-1/animals/lookup":
			if r.URL.Query().Get("term") != "T-9" {
				writeJSON(w, http.StatusNotFound, ErrorResponse{Code: CodeAnimalNotFound})
				return
			}
			writeJSON(w, http.StatusOK, LookupResponse{Animal: models.Animal{ID: "a9", FarmID: "farm-1", EarTag: "T-9"}})
		case "/api/v1/farms/farm-1/animals/a9/weights":
			writeJSON(w, http.StatusOK, []models.AnimalWeightRecord{weightRecord()})
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	animal, err := client.FindAnimalByIdentifier(ctx, "farm-1", "T-9")
	require.NoError(t, err)
	assert.Equal(t, "a9", animal.ID)

	_, err = client.FindAnimalByIdentifier(ctx, "farm-1", "nope")
	assert.ErrorIs(t, err, models.ErrAnimalNotFound)

	history, err := client.ListWeightsByAnimal(ctx, "farm-1", "a9")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, 402.5, history[0].WeightKg)
}

func TestOnline(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/healthz", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	})
	assert.True(t, client.Online(context.Background()))

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	offline := NewClient(config.AgentConfig{APIBaseURL: down.URL})
	down.Close()
	assert.False(t, offline.Online(context.Background()))
}
