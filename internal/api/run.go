package api

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const writeTimeout = 10 * time.Second

// RunWorkflow upgrades to a WebSocket and streams a run of the workflow's
// steps. Nothing sent by the client is consumed.
// (GET /ws/workflows/{id}/run)
func (s *Server) RunWorkflow(c echo.Context) error {
	id, err := workflowID(c)
	if err != nil {
		return err
	}

	ws, err := websocket.Accept(c.Response(), c.Request(), &websocket.AcceptOptions{
		InsecureSkipVerify: slices.Contains(s.Origins, "*"),
		OriginPatterns:     s.Origins,
	})
	if err != nil {
		s.Logger.Warn("websocket accept failed", "error", err)
		return nil
	}

	// CloseRead cancels ctx once the client goes away.
	ctx := ws.CloseRead(c.Request().Context())

	if err := s.Runner.Run(ctx, id, &wsEmitter{conn: ws}); err != nil {
		s.Logger.Error("workflow run failed", "workflow_id", id, "error", err)
	}
	return nil
}

// wsEmitter serialises JSON messages onto one WebSocket. Writes use their
// own deadline so a cancelled run context never tears the socket down
// mid-frame.
type wsEmitter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (e *wsEmitter) Send(ctx context.Context, msg any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}

	wctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	return wsjson.Write(wctx, e.conn, msg)
}

func (e *wsEmitter) Close() error {
	return e.conn.Close(websocket.StatusNormalClosure, "")
}
