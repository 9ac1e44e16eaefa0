// Package client calls the prediction service on behalf of the form and
// dashboard surfaces and turns every outcome into a message for a person.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"taxanalyzer/predict"
)

// DefaultTimeout bounds a single prediction call.
const DefaultTimeout = 5 * time.Second

// Client posts prediction requests to one service instance.
type Client struct {
	baseURL string
	client  *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the service address without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// ParseForm parses raw form values. A failure here is reported locally and
// the request is never sent.
func ParseForm(incomeRaw, yearRaw string) (predict.Request, error) {
	income, err := strconv.ParseFloat(strings.TrimSpace(incomeRaw), 64)
	if err != nil || math.IsNaN(income) || math.IsInf(income, 0) {
		return predict.Request{}, ErrInvalidInput
	}
	year, err := strconv.Atoi(strings.TrimSpace(yearRaw))
	if err != nil {
		return predict.Request{}, ErrInvalidInput
	}
	return predict.Request{Income: income, Year: year}, nil
}

// Predict sends req and returns the predicted tax. Errors are one of
// *TransportError, *ServiceError or ErrMalformedResponse.
func (c *Client) Predict(ctx context.Context, req predict.Request) (float64, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return 0, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict", bytes.NewReader(payload))
	if err != nil {
		return 0, &TransportError{Kind: Other, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return 0, classify(err)
	}
	defer resp.Body.Close()

	var body predict.Response
	decodeErr := json.NewDecoder(resp.Body).Decode(&body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if decodeErr == nil && body.Error != "" {
			return 0, &ServiceError{Status: resp.StatusCode, Message: body.Error}
		}
		return 0, &ServiceError{
			Status:  resp.StatusCode,
			Message: fmt.Sprintf("prediction service returned status %d", resp.StatusCode),
		}
	}

	if decodeErr != nil {
		if isTimeout(decodeErr) {
			return 0, &TransportError{Kind: Timeout, Err: decodeErr}
		}
		return 0, fmt.Errorf("%w: %v", ErrMalformedResponse, decodeErr)
	}
	if body.PredictedTax == nil {
		return 0, ErrMalformedResponse
	}
	return *body.PredictedTax, nil
}
