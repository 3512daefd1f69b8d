package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"promptflow/backend/internal/services"
	"promptflow/backend/pkg/models"
)

// readAll collects JSON messages until the server closes the socket.
func readAll(t *testing.T, ctx context.Context, conn *websocket.Conn) ([]map[string]any, websocket.StatusCode) {
	t.Helper()
	var msgs []map[string]any
	for {
		var m map[string]any
		err := wsjson.Read(ctx, conn, &m)
		if err != nil {
			var ce websocket.CloseError
			if errors.As(err, &ce) {
				return msgs, ce.Code
			}
			require.NoError(t, err)
		}
		msgs = append(msgs, m)
	}
}

func dialRun(t *testing.T, ctx context.Context, srv *httptest.Server, id string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/workflows/" + id + "/run"
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.CloseNow() })
	return conn
}

func TestRunWorkflowOverWebSocket(t *testing.T) {
	e := newTestRouter(t, services.NewAdapter(nil, 0, nil), time.Hour)
	srv := httptest.NewServer(e)
	defer srv.Close()

	created := decode[models.Workflow](t, doJSON(t, e, http.MethodPost, "/api/workflows", `{"name":"offline"}`))
	id := itoa(created.ID)
	for _, p := range []string{"first", "second"} {
		require.Equal(t, http.StatusOK, doJSON(t, e, http.MethodPost, "/api/workflows/"+id+"/steps", `{"prompt":"`+p+`"}`).Code)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	msgs, code := readAll(t, ctx, dialRun(t, ctx, srv, id))

	assert.Equal(t, websocket.StatusNormalClosure, code)
	require.Len(t, msgs, 6)
	assert.Equal(t, map[string]any{"type": "status", "message": "Started workflow 'offline' with 2 steps"}, msgs[0])
	assert.Equal(t, map[string]any{"type": "status", "message": "Generating step 1..."}, msgs[1])
	assert.Equal(t, "result", msgs[2]["type"])
	assert.Equal(t, float64(1), msgs[2]["step"])
	assert.Equal(t, "first", msgs[2]["prompt"])
	assert.Equal(t, "[AI disabled] No AI credentials configured. Prompt: first", msgs[2]["result"])
	assert.Equal(t, "[AI disabled] No AI credentials configured. Prompt: second", msgs[4]["result"])
	assert.Equal(t, map[string]any{"type": "status", "message": "Workflow complete"}, msgs[5])

	rec := doJSON(t, e, http.MethodGet, "/api/workflows/"+id+"/steps", "")
	var steps []models.Step
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &steps))
	require.Len(t, steps, 2)
	for _, s := range steps {
		require.NotNil(t, s.Progress)
		assert.Equal(t, models.ProgressComplete, *s.Progress)
	}
}

func TestRunUnknownWorkflowOverWebSocket(t *testing.T) {
	e := newTestRouter(t, services.NewAdapter(nil, 0, nil), time.Hour)
	srv := httptest.NewServer(e)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	msgs, code := readAll(t, ctx, dialRun(t, ctx, srv, "777"))

	assert.Equal(t, websocket.StatusNormalClosure, code)
	require.Len(t, msgs, 1)
	assert.Equal(t, map[string]any{"type": "error", "message": "Workflow not found", "status": float64(404)}, msgs[0])
}

type slowGenerator struct{ delay time.Duration }

func (g slowGenerator) Generate(ctx context.Context, prompt string, _ *string) services.Result {
	select {
	case <-time.After(g.delay):
	case <-ctx.Done():
	}
	return services.Result{Kind: services.ResultOK, Text: "done: " + prompt}
}

func TestRunSendsHeartbeats(t *testing.T) {
	e := newTestRouter(t, slowGenerator{delay: 200 * time.Millisecond}, 30*time.Millisecond)
	srv := httptest.NewServer(e)
	defer srv.Close()

	created := decode[models.Workflow](t, doJSON(t, e, http.MethodPost, "/api/workflows", `{"name":"slow"}`))
	id := itoa(created.ID)
	require.Equal(t, http.StatusOK, doJSON(t, e, http.MethodPost, "/api/workflows/"+id+"/steps", `{"prompt":"p"}`).Code)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	msgs, _ := readAll(t, ctx, dialRun(t, ctx, srv, id))

	pings := 0
	for _, m := range msgs {
		if m["type"] == "ping" {
			pings++
		}
	}
	assert.GreaterOrEqual(t, pings, 2)
	assert.Equal(t, "Workflow complete", msgs[len(msgs)-1]["message"])
}
