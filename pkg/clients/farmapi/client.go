package farmapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/pastvra/pastvra/internal/config"
	"github.com/pastvra/pastvra/internal/domain/models"
)

// Error codes returned by the farm API in its error payload.
const (
	CodeDuplicateIdempotencyKey = "duplicate_idempotency_key"
	CodeAnimalNotFound          = "animal_not_found"
	CodeInvalidRequest          = "invalid_request"
)

const pingTimeout = 3 * time.Second

// APIClient talks to the pastvra server on behalf of a field agent. It
// satisfies the capture flow's remote store and connectivity ports and the
// reconciler's insert port.
type APIClient struct {
	httpClient *resty.Client
}

// NewClient builds a client from the agent configuration.
func NewClient(cfg config.AgentConfig) *APIClient {
	base := strings.TrimSuffix(cfg.APIBaseURL, "/")

	restyClient := resty.New()
	restyClient.
		SetBaseURL(base).
		SetHeader("Content-Type", "application/json").
		SetTimeout(15 * time.Second)
	if cfg.APIToken != "" {
		restyClient.SetAuthToken(cfg.APIToken)
	}

	return &APIClient{httpClient: restyClient}
}

// RecordWeightRequest is the body of POST /farms/:farmID/weights.
type RecordWeightRequest struct {
	AnimalID       string  `json:"animal_id"`
	MeasuredOn     string  `json:"measured_on"`
	WeightKg       float64 `json:"weight_kg"`
	IdempotencyKey string  `json:"idempotency_key"`
	Source         string  `json:"source,omitempty"`
	CreatedBy      string  `json:"created_by,omitempty"`
}

// LookupResponse is the body of GET /farms/:farmID/animals/lookup.
type LookupResponse struct {
	Animal  models.Animal        `json:"animal"`
	History []models.WeightPoint `json:"history"`
}

// ErrorResponse is the error payload of every farm API endpoint.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Online reports whether the server answers its health check.
func (c *APIClient) Online(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	resp, err := c.httpClient.R().SetContext(ctx).Get("/healthz")
	return err == nil && resp.StatusCode() == http.StatusOK
}

// InsertWeight posts one measurement. A 409 maps to models.ErrDuplicateWeight.
func (c *APIClient) InsertWeight(ctx context.Context, rec models.AnimalWeightRecord) error {
	apiErr := new(ErrorResponse)
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(RecordWeightRequest{
			AnimalID:       rec.AnimalID,
			MeasuredOn:     rec.MeasuredOn.Format(models.DateLayout),
			WeightKg:       rec.WeightKg,
			IdempotencyKey: rec.IdempotencyKey,
			Source:         rec.Source,
			CreatedBy:      rec.CreatedBy,
		}).
		SetError(apiErr).
		Post(fmt.Sprintf("/api/v1/farms/%s/weights", url.PathEscape(rec.FarmID)))
	if err != nil {
		return fmt.Errorf("post weight: %w", err)
	}
	return statusError(resp, apiErr)
}

// FindAnimalByIdentifier resolves a chip id or ear tag.
func (c *APIClient) FindAnimalByIdentifier(ctx context.Context, farmID, term string) (*models.Animal, error) {
	result := new(LookupResponse)
	apiErr := new(ErrorResponse)
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParam("term", term).
		SetResult(result).
		SetError(apiErr).
		Get(fmt.Sprintf("/api/v1/farms/%s/animals/lookup", url.PathEscape(farmID)))
	if err != nil {
		return nil, fmt.Errorf("lookup animal: %w", err)
	}
	if err := statusError(resp, apiErr); err != nil {
		return nil, err
	}
	return &result.Animal, nil
}

// ListWeightsByAnimal returns the animal's history, oldest first.
func (c *APIClient) ListWeightsByAnimal(ctx context.Context, farmID, animalID string) ([]models.AnimalWeightRecord, error) {
	var result []models.AnimalWeightRecord
	apiErr := new(ErrorResponse)
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetResult(&result).
		SetError(apiErr).
		Get(fmt.Sprintf("/api/v1/farms/%s/animals/%s/weights", url.PathEscape(farmID), url.PathEscape(animalID)))
	if err != nil {
		return nil, fmt.Errorf("list weights: %w", err)
	}
	if err := statusError(resp, apiErr); err != nil {
		return nil, err
	}
	return result, nil
}

func statusError(resp *resty.Response, apiErr *ErrorResponse) error {
	code := resp.StatusCode()
	if code < http.StatusBadRequest {
		return nil
	}

	switch {
	case code == http.StatusConflict || apiErr.Code == CodeDuplicateIdempotencyKey:
		return models.ErrDuplicateWeight
	case code == http.StatusNotFound && apiErr.Code == CodeAnimalNotFound:
		return models.ErrAnimalNotFound
	case code == http.StatusBadRequest:
		return fmt.Errorf("%w: %s", models.ErrInvalidWeight, apiErr.Message)
	}
	return fmt.Errorf("farm api error: status=%d, code=%s, message=%s", code, apiErr.Code, apiErr.Message)
}
