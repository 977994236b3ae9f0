package websocket

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	gorillaws "github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/interactive-quiz/session-engine/modules/interactive/domain/interactive"
	"github.com/interactive-quiz/session-engine/modules/interactive/domain/session"
	"github.com/interactive-quiz/session-engine/modules/interactive/infrastructure/persistence"
)

// SessionHandle is the narrow slice of the Session Manager (C6) a
// Transport Adapter needs: the running Session's Registry, its WAITING
// check, and the write paths an inbound frame or a disconnect can
// trigger. Kept local (rather than importing the manager package) to
// avoid a cycle, since manager imports this package to build each
// Session's Registry.
type SessionHandle interface {
	Registry() *Registry
	IsWaiting() bool
	ApplyLeaderCommand(cmd session.Command)
	SubmitAnswer(ctx context.Context, userID uuid.UUID, raw json.RawMessage)
	Detach(ctx context.Context, userID uuid.UUID, role Role)
}

// Manager is the narrow slice of the Session Manager (C6) the Handler
// needs to obtain a running Session for an interactive id.
type Manager interface {
	GetOrCreate(ctx context.Context, id interactive.ID) (SessionHandle, error)
}

// Handler implements the upgrade endpoint of spec.md §6.1, grounded on
// the teacher's Hub.ServeHTTP/readPump (modules/core/infrastructure/
// websocket/hub.go), narrowed to the spec's two inbound frame shapes.
type Handler struct {
	repo     persistence.Repository
	manager  Manager
	upgrader gorillaws.Upgrader
	log      *logrus.Logger
}

// NewHandler constructs a Handler. A permissive CheckOrigin mirrors the
// teacher's hub.go ("Consider implementing proper origin checking" is
// left to the edge proxy, same as upstream).
func NewHandler(repo persistence.Repository, manager Manager, log *logrus.Logger) *Handler {
	return &Handler{
		repo:    repo,
		manager: manager,
		upgrader: gorillaws.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log: log,
	}
}

// ServeHTTP applies spec.md §6.1's upgrade-rejection rules before
// upgrading: interactive not found; interactive already conducted; user
// not found; role=LEADER but user is not the interactive's creator.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	rawID := mux.Vars(r)["id"]
	id, err := uuid.Parse(rawID)
	if err != nil {
		http.Error(w, "malformed interactive id", http.StatusBadRequest)
		return
	}
	interactiveID := interactive.ID(id)

	rawUser := r.URL.Query().Get("user_id")
	userID, err := uuid.Parse(rawUser)
	if err != nil {
		http.Error(w, "malformed user id", http.StatusBadRequest)
		return
	}

	role := Role(r.URL.Query().Get("role"))
	if role == "" {
		role = RoleParticipant
	}
	username := r.URL.Query().Get("username")

	exists, err := h.repo.ExistsInteractive(ctx, interactiveID)
	if err != nil {
		http.Error(w, "storage error", http.StatusInternalServerError)
		return
	}
	if !exists {
		http.Error(w, "interactive not found", http.StatusNotFound)
		return
	}

	conducted, err := h.repo.IsConducted(ctx, interactiveID)
	if err != nil {
		http.Error(w, "storage error", http.StatusInternalServerError)
		return
	}
	if conducted {
		http.Error(w, "interactive already conducted", http.StatusGone)
		return
	}

	if role == RoleLeader {
		isCreator, err := h.repo.IsCreator(ctx, interactiveID, userID)
		if err != nil {
			http.Error(w, "storage error", http.StatusInternalServerError)
			return
		}
		if !isCreator {
			http.Error(w, "only the creator may attach as LEADER", http.StatusForbidden)
			return
		}
	}

	handle, err := h.manager.GetOrCreate(ctx, interactiveID)
	if err != nil {
		http.Error(w, "interactive not found", http.StatusNotFound)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	transport := NewConnTransport(conn)

	if err := handle.Registry().Attach(ctx, handle.IsWaiting(), transport, userID, role, username); err != nil {
		h.log.WithError(err).Warn("registry attach rejected")
		_ = conn.Close()
		return
	}

	go h.readPump(handle, conn, userID, role)
}

// readPump mirrors the teacher's hub.go readPump: a blocking read loop
// that dispatches each inbound frame by role and detaches on read error,
// treating any close as a disconnect (spec.md §4.2).
func (h *Handler) readPump(handle SessionHandle, conn *gorillaws.Conn, userID uuid.UUID, role Role) {
	defer func() {
		handle.Detach(context.Background(), userID, role)
		_ = conn.Close()
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return
		}

		switch role {
		case RoleLeader:
			var frame LeaderFrame
			if err := json.Unmarshal(message, &frame); err != nil {
				continue
			}
			cmd, ok := frame.Command()
			if !ok {
				continue
			}
			handle.ApplyLeaderCommand(cmd)
		case RoleParticipant:
			handle.SubmitAnswer(context.Background(), userID, json.RawMessage(message))
		default:
			// ADMIN/ORGANIZER connections are read-only observers.
		}
	}
}
