package avscan

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ScanStatus is the anti-virus verdict reported for a single file. Values
// other than clean/infected mean the scan has not completed.
type ScanStatus string

const (
	ScanStatusClean    ScanStatus = "clean"
	ScanStatusInfected ScanStatus = "infected"
)

type FileDetails struct {
	FileStatus ScanStatus `json:"av_status"`
}

// StatusError reports a non-success response from the scan status endpoint.
type StatusError struct {
	FileID     string
	StatusCode int
	Err        error
}

func (e *StatusError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("scan status for file %s: %v", e.FileID, e.Err)
	}
	return fmt.Sprintf("scan status for file %s: unexpected status %d", e.FileID, e.StatusCode)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

type Client interface {
	Details(ctx context.Context, fileID string) (FileDetails, error)
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

func (c *HTTPClient) Details(ctx context.Context, fileID string) (FileDetails, error) {
	url := fmt.Sprintf("%s/files/%s", c.baseURL, fileID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return FileDetails{}, &StatusError{FileID: fileID, Err: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return FileDetails{}, &StatusError{FileID: fileID, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return FileDetails{}, &StatusError{FileID: fileID, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return FileDetails{}, &StatusError{FileID: fileID, Err: err}
	}

	var details FileDetails
	if err := json.Unmarshal(body, &details); err != nil {
		return FileDetails{}, &StatusError{FileID: fileID, Err: fmt.Errorf("unable to parse scan response: %w", err)}
	}
	return details, nil
}
