package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"filing-processor/internal/domain"
)

type conversionCall struct {
	submissionID string
	fileID       string
	result       domain.ConversionResult
}

type fakeEventService struct {
	conversions []conversionCall
	delayed     []domain.ServiceLevel
	processRuns int
	submitRuns  int

	conversionErr error
	processErr    error
	submitErr     error
	delayedErr    error
}

func (f *fakeEventService) ProcessFiles(context.Context) error {
	f.processRuns++
	return f.processErr
}

func (f *fakeEventService) SubmitToFes(context.Context) error {
	f.submitRuns++
	return f.submitErr
}

func (f *fakeEventService) UpdateConversionFileStatus(_ context.Context, submissionID, fileID string, result domain.ConversionResult) error {
	if f.conversionErr != nil {
		return f.conversionErr
	}
	f.conversions = append(f.conversions, conversionCall{submissionID: submissionID, fileID: fileID, result: result})
	return nil
}

func (f *fakeEventService) HandleDelayedSubmissions(_ context.Context, level domain.ServiceLevel) error {
	if f.delayedErr != nil {
		return f.delayedErr
	}
	f.delayed = append(f.delayed, level)
	return nil
}

type fakePinger struct {
	err error
}

func (f *fakePinger) Ping(context.Context) error {
	return f.err
}

func newTestRouter(svc *fakeEventService, store *fakePinger) http.Handler {
	return NewRouter(NewHandler(svc, store))
}

func doRequest(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestConversionStatusAccepted(t *testing.T) {
	svc := &fakeEventService{}
	router := newTestRouter(svc, &fakePinger{})

	rec := doRequest(t, router, http.MethodPost, "/v1/submissions/sub-1/files/f-1/conversion",
		`{"conversion_status":"CONVERTED","converted_file_id":"conv-1","page_count":4}`)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Len(t, svc.conversions, 1)
	call := svc.conversions[0]
	require.Equal(t, "sub-1", call.submissionID)
	require.Equal(t, "f-1", call.fileID)
	require.Equal(t, domain.ConversionConverted, call.result.Status)
	require.Equal(t, "conv-1", call.result.ConvertedFileID)
	require.Equal(t, 4, call.result.PageCount)
}

func TestConversionStatusRejectsInvalidJSON(t *testing.T) {
	svc := &fakeEventService{}
	router := newTestRouter(svc, &fakePinger{})

	rec := doRequest(t, router, http.MethodPost, "/v1/submissions/sub-1/files/f-1/conversion", `{not json`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Empty(t, svc.conversions)
}

func TestConversionStatusRejectsUnknownStatus(t *testing.T) {
	svc := &fakeEventService{}
	router := newTestRouter(svc, &fakePinger{})

	for _, status := range []string{"DONE", "QUEUED", "CLEAN_AV", ""} {
		rec := doRequest(t, router, http.MethodPost, "/v1/submissions/sub-1/files/f-1/conversion",
			fmt.Sprintf(`{"conversion_status":%q}`, status))
		require.Equal(t, http.StatusBadRequest, rec.Code, "status %q", status)
	}
	require.Empty(t, svc.conversions)
}

func TestConversionStatusErrorMapping(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"not found", fmt.Errorf("submission sub-1: %w", domain.ErrNotFound), http.StatusNotFound},
		{"incorrect state", fmt.Errorf("file f-1 is CONVERTED: %w", domain.ErrIncorrectState), http.StatusConflict},
		{"internal", errors.New("database down"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &fakeEventService{conversionErr: tc.err}
			router := newTestRouter(svc, &fakePinger{})

			rec := doRequest(t, router, http.MethodPost, "/v1/submissions/sub-1/files/f-1/conversion",
				`{"conversion_status":"FAILED"}`)

			require.Equal(t, tc.wantCode, rec.Code)
		})
	}
}

func TestRunProcessFiles(t *testing.T) {
	svc := &fakeEventService{}
	router := newTestRouter(svc, &fakePinger{})

	rec := doRequest(t, router, http.MethodPost, "/v1/runs/process-files", "")

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, 1, svc.processRuns)
}

func TestRunProcessFilesFailure(t *testing.T) {
	svc := &fakeEventService{processErr: errors.New("store unavailable")}
	router := newTestRouter(svc, &fakePinger{})

	rec := doRequest(t, router, http.MethodPost, "/v1/runs/process-files", "")

	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRunSubmitToFes(t *testing.T) {
	svc := &fakeEventService{}
	router := newTestRouter(svc, &fakePinger{})

	rec := doRequest(t, router, http.MethodPost, "/v1/runs/submit-to-fes", "")

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, 1, svc.submitRuns)
}

func TestRunDelayed(t *testing.T) {
	svc := &fakeEventService{}
	router := newTestRouter(svc, &fakePinger{})

	rec := doRequest(t, router, http.MethodPost, "/v1/runs/delayed/STANDARD", "")
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = doRequest(t, router, http.MethodPost, "/v1/runs/delayed/SAMEDAY", "")
	require.Equal(t, http.StatusAccepted, rec.Code)

	require.Equal(t, []domain.ServiceLevel{domain.ServiceLevelStandard, domain.ServiceLevelSameDay}, svc.delayed)
}

func TestRunDelayedUnknownServiceLevel(t *testing.T) {
	svc := &fakeEventService{}
	router := newTestRouter(svc, &fakePinger{})

	rec := doRequest(t, router, http.MethodPost, "/v1/runs/delayed/EXPRESS", "")

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Empty(t, svc.delayed)
}

func TestHealthz(t *testing.T) {
	router := newTestRouter(&fakeEventService{}, &fakePinger{})

	rec := doRequest(t, router, http.MethodGet, "/healthz", "")

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestReadyz(t *testing.T) {
	router := newTestRouter(&fakeEventService{}, &fakePinger{})
	rec := doRequest(t, router, http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusOK, rec.Code)

	router = newTestRouter(&fakeEventService{}, &fakePinger{err: errors.New("connection refused")})
	rec = doRequest(t, router, http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
