package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/block-scheduler-api/internal/dto"
	appErrors "github.com/noah-isme/block-scheduler-api/pkg/errors"
)

type schedulerRunnerMock struct {
	captured dto.RunSchedulerRequest
	result   *dto.RunSchedulerResponse
	err      error
	record   *dto.RunRecord
}

func (m *schedulerRunnerMock) Run(ctx context.Context, req dto.RunSchedulerRequest) (*dto.RunSchedulerResponse, error) {
	m.captured = req
	return m.result, m.err
}

func (m *schedulerRunnerMock) RunAsync(ctx context.Context, req dto.RunSchedulerRequest) (*dto.RunAccepted, error) {
	m.captured = req
	if m.err != nil {
		return nil, m.err
	}
	return &dto.RunAccepted{RunID: "run-1", Status: dto.RunStatusQueued}, nil
}

func (m *schedulerRunnerMock) GetRun(ctx context.Context, runID string) (*dto.RunRecord, error) {
	if m.record == nil || m.record.RunID != runID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "run not found or expired")
	}
	return m.record, nil
}

func newJSONContext(method, path, body string) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestSchedulerHandlerRun(t *testing.T) {
	mock := &schedulerRunnerMock{result: &dto.RunSchedulerResponse{RunID: "run-1", AssignedCount: 2}}
	handler := &SchedulerHandler{service: mock}
	c, w := newJSONContext(http.MethodPost, "/scheduler/runs", `{"programId":"prog-1","numWeeks":2,"startDate":"2025-01-06","shift":"day"}`)

	handler.Run(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "prog-1", mock.captured.ProgramID)
	assert.Equal(t, 2, mock.captured.NumWeeks)
	assert.Nil(t, mock.captured.StartDate)
	assert.Equal(t, "2025-01-06", mock.captured.StartDay)
	data := decodeEnvelope(t, w)["data"].(map[string]interface{})
	assert.Equal(t, float64(2), data["assignedCount"])
}

func TestSchedulerHandlerRunMapsErrors(t *testing.T) {
	cases := map[string]struct {
		err  error
		want int
	}{
		"validation":  {appErrors.Clone(appErrors.ErrValidation, "programId is required"), http.StatusBadRequest},
		"no teachers": {appErrors.ErrNoEligibleTeachers, http.StatusNotFound},
		"no rooms":    {appErrors.ErrNoUsableRooms, http.StatusNotFound},
		"storage":     {appErrors.ErrStorageUnavailable, http.StatusServiceUnavailable},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			handler := &SchedulerHandler{service: &schedulerRunnerMock{err: tc.err}}
			c, w := newJSONContext(http.MethodPost, "/scheduler/runs", `{"programId":"prog-1"}`)
			handler.Run(c)
			assert.Equal(t, tc.want, w.Code)
		})
	}
}

func TestSchedulerHandlerRunReturnsPartialResultOnStorageFailure(t *testing.T) {
	mock := &schedulerRunnerMock{
		result: &dto.RunSchedulerResponse{RunID: "run-1", AssignedCount: 1},
		err:    appErrors.ErrStorageUnavailable,
	}
	handler := &SchedulerHandler{service: mock}
	c, w := newJSONContext(http.MethodPost, "/scheduler/runs", `{"programId":"prog-1"}`)

	handler.Run(c)

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	body := decodeEnvelope(t, w)
	assert.Equal(t, "STORAGE_UNAVAILABLE", body["error"].(map[string]interface{})["code"])
	partial := body["meta"].(map[string]interface{})["partialResult"].(map[string]interface{})
	assert.Equal(t, float64(1), partial["assignedCount"])
}

func TestSchedulerHandlerRunRejectsMalformedBody(t *testing.T) {
	handler := &SchedulerHandler{service: &schedulerRunnerMock{}}

	for _, body := range []string{`{"programId":`, `{"programId":"p","startDate":"tomorrow"}`} {
		c, w := newJSONContext(http.MethodPost, "/scheduler/runs", body)
		handler.Run(c)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
}

func TestSchedulerHandlerRunAsync(t *testing.T) {
	handler := &SchedulerHandler{service: &schedulerRunnerMock{}}
	c, w := newJSONContext(http.MethodPost, "/scheduler/runs/async", `{"programId":"prog-1"}`)

	handler.RunAsync(c)

	require.Equal(t, http.StatusAccepted, w.Code)
	data := decodeEnvelope(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "run-1", data["runId"])

	busy := &SchedulerHandler{service: &schedulerRunnerMock{err: appErrors.ErrSchedulerBusy}}
	c, w = newJSONContext(http.MethodPost, "/scheduler/runs/async", `{"programId":"prog-1"}`)
	busy.RunAsync(c)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestSchedulerHandlerGetRun(t *testing.T) {
	mock := &schedulerRunnerMock{record: &dto.RunRecord{RunID: "run-1", Status: dto.RunStatusSucceeded}}
	handler := &SchedulerHandler{service: mock}
	router := gin.New()
	router.GET("/scheduler/runs/:id", handler.GetRun)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/scheduler/runs/run-1", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "SUCCEEDED", decodeEnvelope(t, w)["data"].(map[string]interface{})["status"])

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/scheduler/runs/other", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
