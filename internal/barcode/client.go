package barcode

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// RequestError reports a failed barcode allocation.
type RequestError struct {
	Err error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("barcode request: %v", e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

type Client interface {
	Request(ctx context.Context, received time.Time) (string, error)
}

type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type barcodeRequest struct {
	DateReceived string `json:"date_received"`
}

type barcodeResponse struct {
	Barcode string `json:"barcode"`
}

// Request allocates an examination barcode stamped with the given received
// date.
func (c *HTTPClient) Request(ctx context.Context, received time.Time) (string, error) {
	payload, err := json.Marshal(barcodeRequest{DateReceived: received.UTC().Format("20060102")})
	if err != nil {
		return "", &RequestError{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/barcodes", bytes.NewReader(payload))
	if err != nil {
		return "", &RequestError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &RequestError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", &RequestError{Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &RequestError{Err: err}
	}

	var parsed barcodeResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", &RequestError{Err: fmt.Errorf("unable to parse barcode response: %w", err)}
	}
	if parsed.Barcode == "" {
		return "", &RequestError{Err: fmt.Errorf("empty barcode returned")}
	}
	return parsed.Barcode, nil
}
