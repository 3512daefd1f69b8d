package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promptflow/backend/internal/logging"
	"promptflow/backend/internal/repository"
	"promptflow/backend/internal/services"
	"promptflow/backend/internal/telemetry"
	"promptflow/backend/pkg/models"
)

func newTestRouter(t *testing.T, gen services.Generator, heartbeat time.Duration) *echo.Echo {
	t.Helper()
	store, err := repository.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	logger := logging.NewNop()
	runner := services.NewRunner(store, gen, heartbeat, telemetry.Default(), logger)
	srv := NewServer(services.NewWorkflowService(store), runner, logger, []string{"*"})
	return NewRouter(srv, logger)
}

func doJSON(t *testing.T, e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	e := newTestRouter(t, services.NewAdapter(nil, 0, nil), time.Hour)
	rec := doJSON(t, e, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestWorkflowLifecycle(t *testing.T) {
	e := newTestRouter(t, services.NewAdapter(nil, 0, nil), time.Hour)

	rec := doJSON(t, e, http.MethodPost, "/api/workflows", `{"name":"Blog post","description":"draft and polish"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	created := decode[models.Workflow](t, rec)
	assert.NotZero(t, created.ID)
	assert.Equal(t, "Blog post", created.Name)
	require.NotNil(t, created.Description)
	assert.Equal(t, "draft and polish", *created.Description)
	assert.Empty(t, created.Steps)
	assert.Contains(t, rec.Body.String(), `"steps":[]`)

	base := "/api/workflows/" + itoa(created.ID)
	for _, p := range []string{"outline", "draft", "polish"} {
		rec = doJSON(t, e, http.MethodPost, base+"/steps", `{"prompt":"`+p+`"}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		step := decode[models.Step](t, rec)
		assert.Equal(t, p, step.Prompt)
		assert.Nil(t, step.Result)
		assert.Nil(t, step.Progress)
		assert.NotContains(t, rec.Body.String(), "workflow_id")
	}

	rec = doJSON(t, e, http.MethodGet, base, "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[models.Workflow](t, rec)
	require.Len(t, got.Steps, 3)
	assert.Equal(t, "outline", got.Steps[0].Prompt)
	assert.Equal(t, "polish", got.Steps[2].Prompt)
	assert.Less(t, got.Steps[0].ID, got.Steps[1].ID)

	rec = doJSON(t, e, http.MethodGet, base+"/steps", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.Step](t, rec), 3)

	rec = doJSON(t, e, http.MethodGet, "/api/workflows", "")
	require.Equal(t, http.StatusOK, rec.Code)
	all := decode[[]models.Workflow](t, rec)
	require.Len(t, all, 1)
	assert.Len(t, all[0].Steps, 3)
}

func TestCreateStepWithPresetResult(t *testing.T) {
	e := newTestRouter(t, services.NewAdapter(nil, 0, nil), time.Hour)
	created := decode[models.Workflow](t, doJSON(t, e, http.MethodPost, "/api/workflows", `{"name":"w","description":null}`))
	assert.Nil(t, created.Description)

	rec := doJSON(t, e, http.MethodPost, "/api/workflows/"+itoa(created.ID)+"/steps",
		`{"prompt":"p","result":"cached","progress":100}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	step := decode[models.Step](t, rec)
	require.NotNil(t, step.Result)
	require.NotNil(t, step.Progress)
	assert.Equal(t, "cached", *step.Result)
	assert.Equal(t, 100, *step.Progress)
}

func TestListWorkflowsEmpty(t *testing.T) {
	e := newTestRouter(t, services.NewAdapter(nil, 0, nil), time.Hour)
	rec := doJSON(t, e, http.MethodGet, "/api/workflows", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestUnknownWorkflow(t *testing.T) {
	e := newTestRouter(t, services.NewAdapter(nil, 0, nil), time.Hour)

	rec := doJSON(t, e, http.MethodGet, "/api/workflows/999", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get(echo.HeaderContentType))
	problem := decode[models.ProblemDetails](t, rec)
	assert.Equal(t, "Workflow not found", problem.Detail)
	assert.Equal(t, http.StatusNotFound, problem.Status)

	rec = doJSON(t, e, http.MethodPost, "/api/workflows/999/steps", `{"prompt":"p"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Workflow not found", decode[models.ProblemDetails](t, rec).Detail)

	rec = doJSON(t, e, http.MethodGet, "/api/workflows/999/steps", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestValidationErrors(t *testing.T) {
	e := newTestRouter(t, services.NewAdapter(nil, 0, nil), time.Hour)
	created := decode[models.Workflow](t, doJSON(t, e, http.MethodPost, "/api/workflows", `{"name":"w"}`))
	steps := "/api/workflows/" + itoa(created.ID) + "/steps"

	tests := []struct {
		name string
		path string
		body string
	}{
		{name: "malformed json", path: "/api/workflows", body: `{"name":`},
		{name: "missing name", path: "/api/workflows", body: `{"description":"x"}`},
		{name: "name wrong type", path: "/api/workflows", body: `{"name":42}`},
		{name: "missing prompt", path: steps, body: `{"result":"x"}`},
		{name: "progress above range", path: steps, body: `{"prompt":"p","progress":101}`},
		{name: "progress below range", path: steps, body: `{"prompt":"p","progress":-1}`},
		{name: "progress not integer", path: steps, body: `{"prompt":"p","progress":1.5}`},
		{name: "non-integer id", path: "/api/workflows/abc/steps", body: `{"prompt":"p"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, e, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
			assert.Equal(t, "application/problem+json", rec.Header().Get(echo.HeaderContentType))
		})
	}

	rec := doJSON(t, e, http.MethodGet, "/api/workflows/abc", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestNoDeleteOrUpdateRoutes(t *testing.T) {
	e := newTestRouter(t, services.NewAdapter(nil, 0, nil), time.Hour)
	created := decode[models.Workflow](t, doJSON(t, e, http.MethodPost, "/api/workflows", `{"name":"w"}`))
	path := "/api/workflows/" + itoa(created.ID)

	for _, method := range []string{http.MethodDelete, http.MethodPut, http.MethodPatch} {
		rec := doJSON(t, e, method, path, "")
		assert.Contains(t, []int{http.StatusNotFound, http.StatusMethodNotAllowed}, rec.Code, method)
	}

	rec := doJSON(t, e, http.MethodGet, path, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDocsRoutes(t *testing.T) {
	e := newTestRouter(t, services.NewAdapter(nil, 0, nil), time.Hour)

	rec := doJSON(t, e, http.MethodGet, "/openapi.yaml", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/api/workflows/{id}/steps")

	rec = doJSON(t, e, http.MethodGet, "/docs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `url: "/openapi.yaml"`)
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
