// Package classifier calls the plant image classification service over HTTP.
package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	domainClassifier "watering_notification_bot/internal/domain/classifier"
)

const predictPath = "/predict"

// ErrClassifierUnavailable is returned for transport errors and non-2xx responses.
var ErrClassifierUnavailable = errors.New("classifier unavailable")

// labelID accepts the label as a JSON string or number.
type labelID string

func (l *labelID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*l = labelID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("species_id: %w", err)
	}
	*l = labelID(n.String())
	return nil
}

// PredictResponse is the body returned by POST /predict.
type PredictResponse struct {
	SpeciesID  labelID `json:"species_id"`
	Confidence float64 `json:"confidence"`
}

// HTTPClient posts the raw image bytes and reads the best label.
type HTTPClient struct {
	httpClient *resty.Client
}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetHeader("Accept", "application/json")

	return &HTTPClient{httpClient: client}
}

func (c *HTTPClient) Classify(ctx context.Context, image []byte) (*domainClassifier.Result, error) {
	if len(image) == 0 {
		return nil, errors.New("empty image")
	}

	var response PredictResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/octet-stream").
		SetBody(image).
		SetResult(&response).
		Post(predictPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrClassifierUnavailable, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: status %d", ErrClassifierUnavailable, resp.StatusCode())
	}
	if response.SpeciesID == "" {
		return nil, errors.New("classifier response without species_id")
	}
	if response.Confidence < 0 || response.Confidence > 1 {
		return nil, fmt.Errorf("classifier confidence out of range: %s", strconv.FormatFloat(response.Confidence, 'f', -1, 64))
	}

	return &domainClassifier.Result{
		SpeciesID:  string(response.SpeciesID),
		Confidence: response.Confidence,
	}, nil
}
