// Package websocket streams live project stats to connected clients.
package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/girderhq/api/internal/app"
	"github.com/girderhq/api/pkg/domain/authz"
	"github.com/girderhq/api/pkg/logger"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// How often a stats snapshot is pushed.
	snapshotPeriod = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin filtering happens at the edge; the gate has already run by
		// the time the upgrade is attempted.
		return true
	},
}

// StatsSnapshot is one pushed stats frame.
type StatsSnapshot struct {
	ProjectID string    `json:"project_id"`
	OpenTasks int       `json:"open_tasks"`
	Total     int       `json:"total_tasks"`
	At        time.Time `json:"at"`
}

// StatsHandler upgrades gate-cleared requests and pushes periodic task-count
// snapshots for one project. The auth, tenant, and permission middleware run
// before the upgrade, so a connection only exists for a principal that could
// also GET the project.
type StatsHandler struct {
	projects *app.ProjectService
	logger   *logger.Logger
}

// NewStatsHandler creates a new StatsHandler.
func NewStatsHandler(projects *app.ProjectService, log *logger.Logger) *StatsHandler {
	return &StatsHandler{
		projects: projects,
		logger:   log.With("component", "ws_stats"),
	}
}

// ServeProjectStats handles GET /ws/projects/{id}/stats.
func (h *StatsHandler) ServeProjectStats(w http.ResponseWriter, r *http.Request, projectID string) {
	ctx := r.Context()
	rc := authz.FromContext(ctx)
	if rc == nil {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	// Verify visibility before the upgrade; a cross-tenant project id gets a
	// plain 404 response, never a websocket.
	if _, err := h.projects.Get(ctx, rc, projectID); err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "project_id", projectID, "error", err)
		return
	}

	h.logger.Info("stats stream opened",
		"project_id", projectID,
		"user_id", rc.Principal().ID().String(),
		"tenant_id", rc.TenantID().String(),
	)

	go h.readPump(conn)
	h.writePump(ctx, conn, rc, projectID)
}

// readPump drains client frames and keeps the pong deadline fresh. Clients
// never send meaningful data on this stream.
func (h *StatsHandler) readPump(conn *websocket.Conn) {
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump pushes snapshots until the client goes away or the request
// context is canceled.
func (h *StatsHandler) writePump(ctx context.Context, conn *websocket.Conn, rc *authz.RequestContext, projectID string) {
	snapshots := time.NewTicker(snapshotPeriod)
	pings := time.NewTicker(pingPeriod)
	defer func() {
		snapshots.Stop()
		pings.Stop()
		_ = conn.Close()
		h.logger.Debug("stats stream closed", "project_id", projectID)
	}()

	// Push the first frame immediately.
	if err := h.pushSnapshot(ctx, conn, rc, projectID); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-snapshots.C:
			if err := h.pushSnapshot(ctx, conn, rc, projectID); err != nil {
				return
			}
		case <-pings.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *StatsHandler) pushSnapshot(ctx context.Context, conn *websocket.Conn, rc *authz.RequestContext, projectID string) error {
	open, total, err := h.projects.TaskCounts(ctx, rc, projectID)
	if err != nil {
		// The project may have been deleted mid-stream.
		return err
	}

	data, err := json.Marshal(StatsSnapshot{
		ProjectID: projectID,
		OpenTasks: open,
		Total:     total,
		At:        time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, data)
}
