package websocket_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	gorillaws "github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/interactive-quiz/session-engine/modules/interactive/domain/interactive"
	"github.com/interactive-quiz/session-engine/modules/interactive/domain/session"
	"github.com/interactive-quiz/session-engine/modules/interactive/infrastructure/persistence/memory"
	ws "github.com/interactive-quiz/session-engine/modules/interactive/infrastructure/websocket"
)

const handlerTestInteractiveID = "11111111-1111-1111-1111-111111111111"

// fakeHandle is a minimal stand-in for the Session Manager's handle,
// enough to exercise Handler's upgrade path without building a real
// Session.
type fakeHandle struct {
	registry *ws.Registry
	waiting  bool
}

func (h *fakeHandle) Registry() *ws.Registry                        { return h.registry }
func (h *fakeHandle) IsWaiting() bool                                { return h.waiting }
func (h *fakeHandle) ApplyLeaderCommand(cmd session.Command)         {}
func (h *fakeHandle) SubmitAnswer(context.Context, uuid.UUID, json.RawMessage) {}
func (h *fakeHandle) Detach(ctx context.Context, userID uuid.UUID, role ws.Role) {
	h.registry.Detach(ctx, userID, role)
}

type fakeManager struct {
	handle *fakeHandle
}

func (m *fakeManager) GetOrCreate(context.Context, interactive.ID) (ws.SessionHandle, error) {
	return m.handle, nil
}

func newHandlerTestRepo(t *testing.T) *memory.Repository {
	t.Helper()
	repo := memory.New()
	require.NoError(t, repo.LoadSeed(seedYAML()))
	return repo
}

func TestHandler_RejectsMalformedInteractiveID(t *testing.T) {
	repo := newHandlerTestRepo(t)
	h := ws.NewHandler(repo, &fakeManager{}, logrus.New())

	srv := newMuxServer(h)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/ws/not-a-uuid")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandler_RejectsUnknownInteractive(t *testing.T) {
	repo := newHandlerTestRepo(t)
	h := ws.NewHandler(repo, &fakeManager{}, logrus.New())

	srv := newMuxServer(h)
	defer srv.Close()

	url := srv.URL + "/ws/" + uuid.New().String() + "?user_id=" + uuid.New().String()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandler_RejectsConductedInteractive(t *testing.T) {
	repo := newHandlerTestRepo(t)
	id := interactive.ID(uuid.MustParse(handlerTestInteractiveID))
	require.NoError(t, repo.MarkConducted(context.Background(), id, time.Now()))

	h := ws.NewHandler(repo, &fakeManager{}, logrus.New())
	srv := newMuxServer(h)
	defer srv.Close()

	url := srv.URL + "/ws/" + handlerTestInteractiveID + "?user_id=" + uuid.New().String()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusGone, resp.StatusCode)
}

func TestHandler_RejectsNonCreatorLeader(t *testing.T) {
	repo := newHandlerTestRepo(t)
	h := ws.NewHandler(repo, &fakeManager{}, logrus.New())
	srv := newMuxServer(h)
	defer srv.Close()

	url := srv.URL + "/ws/" + handlerTestInteractiveID + "?user_id=" + uuid.New().String() + "&role=LEADER"
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestHandler_UpgradesAndAttachesAParticipant(t *testing.T) {
	repo := newHandlerTestRepo(t)
	id := interactive.ID(uuid.MustParse(handlerTestInteractiveID))
	registry := ws.NewRegistry(repo, id)
	handle := &fakeHandle{registry: registry, waiting: true}

	h := ws.NewHandler(repo, &fakeManager{handle: handle}, logrus.New())
	srv := newMuxServer(h)
	defer srv.Close()

	userID := uuid.New()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/" + handlerTestInteractiveID +
		"?user_id=" + userID.String() + "&username=alice"

	conn, resp, err := gorillaws.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	defer resp.Body.Close()

	require.Eventually(t, func() bool {
		_, ok := registry.ParticipantIDFor(userID)
		return ok
	}, time.Second, 5*time.Millisecond, "participant should be attached to the registry")
}

func newMuxServer(h http.Handler) *httptest.Server {
	router := mux.NewRouter()
	router.Handle("/ws/{id}", h)
	return httptest.NewServer(router)
}
