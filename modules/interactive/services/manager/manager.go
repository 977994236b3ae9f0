// Package manager implements the Session Manager (C6) of spec.md §4.6:
// a concurrency-safe registry of running Sessions keyed by interactive
// id, responsible for constructing a Session's full component graph on
// first connect, running its Engine, and tearing it down on END or
// force_delete. Grounded on the teacher's concurrent keyed-registry
// pattern (modules/core/infrastructure/websocket/hub.go's
// connections map guarded by a mutex) plus the periodic-reconciliation
// idea of modules/bichat/services/title_job_worker.go's reconcileEvery,
// realized here with the teacher's declared robfig/cron/v3 dependency
// instead of a hand-rolled ticker.
package manager

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/interactive-quiz/session-engine/modules/interactive/domain/interactive"
	"github.com/interactive-quiz/session-engine/modules/interactive/domain/session"
	"github.com/interactive-quiz/session-engine/modules/interactive/infrastructure/persistence"
	"github.com/interactive-quiz/session-engine/modules/interactive/infrastructure/websocket"
	"github.com/interactive-quiz/session-engine/modules/interactive/services/broadcast"
	"github.com/interactive-quiz/session-engine/modules/interactive/services/ingest"
	"github.com/interactive-quiz/session-engine/pkg/apperr"
)

// Manager is the C6 component. One Manager serves every interactive on
// the process; it satisfies websocket.Manager so a Handler can obtain a
// running Session's handle on demand.
type Manager struct {
	mu      sync.Mutex
	handles map[interactive.ID]*handle

	repo    persistence.Repository
	log     *logrus.Logger
	idleCfg session.IdleConfig
	clock   session.Clock
}

// Option configures a Manager at construction.
type Option func(*Manager)

// WithClock overrides the Clock every Session's Engine is built with.
// Test-only: production callers use the session.RealClock{} default.
func WithClock(clock session.Clock) Option {
	return func(m *Manager) { m.clock = clock }
}

// New constructs an empty Manager.
func New(repo persistence.Repository, log *logrus.Logger, idleCfg session.IdleConfig, opts ...Option) *Manager {
	m := &Manager{
		handles: make(map[interactive.ID]*handle),
		repo:    repo,
		log:     log,
		idleCfg: idleCfg,
		clock:   session.RealClock{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// GetOrCreate implements websocket.Manager: it returns the already
// running Session for id, or loads the Interactive definition via C1 and
// starts a fresh one. Concurrent callers racing to create the same id's
// Session are resolved to a single winner; the loser's half-built handle
// is discarded.
func (m *Manager) GetOrCreate(ctx context.Context, id interactive.ID) (websocket.SessionHandle, error) {
	const op apperr.Op = "manager.Manager.GetOrCreate"

	if h, ok := m.Get(id); ok {
		return h, nil
	}

	meta, err := m.repo.LoadInteractiveMeta(ctx, id)
	if err != nil {
		return nil, apperr.E(op, apperr.KindTransientStorage, err)
	}
	questions, err := m.repo.LoadQuestions(ctx, id)
	if err != nil {
		return nil, apperr.E(op, apperr.KindTransientStorage, err)
	}

	def := interactive.New(
		id, meta.Code, meta.Title, meta.Description,
		meta.CountdownSeconds, meta.AnswerSeconds, meta.DiscussionSeconds,
		meta.CreatedByUserID,
		interactive.WithQuestions(questions),
	)

	sess := session.New(def, m.idleCfg)
	registry := websocket.NewRegistry(m.repo, id)
	h := &handle{
		mgr:      m,
		id:       id,
		sess:     sess,
		engine:   session.NewEngine(sess, m.clock),
		registry: registry,
		proj:     broadcast.New(m.repo, registry, m.log),
		ingester: ingest.New(m.repo, m.log),
	}
	h.runCtx, h.cancel = context.WithCancel(context.Background())

	m.mu.Lock()
	if existing, ok := m.handles[id]; ok {
		m.mu.Unlock()
		h.cancel()
		return existing, nil
	}
	m.handles[id] = h
	m.mu.Unlock()

	go h.engine.Run(h.runCtx, h.onTick)

	return h, nil
}

// Get returns the handle already running for id, if any, without
// constructing one.
func (m *Manager) Get(id interactive.ID) (websocket.SessionHandle, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.handles[id]
	return h, ok
}

// remove drops id's handle from the map, but only if it is still exactly
// the handle the caller expects. This is the mechanism by which a
// Session's own END completion and a concurrent ForceDelete never
// double-act on the same handle, per DESIGN.md's Open Question #4
// decision: whichever caller wins the race to delete the map entry is
// the only one whose subsequent cleanup (registry teardown, engine stop)
// has any effect, since the other's target handle is by then already
// cancelled and empty.
func (m *Manager) remove(id interactive.ID, expect *handle) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.handles[id]; ok && cur == expect {
		delete(m.handles, id)
		return true
	}
	return false
}

// ForceDelete implements spec.md §4.6's force_delete(): detach every
// connection (dropping Participant rows, since the whole record is being
// discarded), stop the Engine, and forget the handle. A no-op if no
// Session is currently running for id.
func (m *Manager) ForceDelete(ctx context.Context, id interactive.ID) {
	m.mu.Lock()
	h, ok := m.handles[id]
	if ok {
		delete(m.handles, id)
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	h.registry.DetachAll(ctx)
	h.engine.Stop()
	h.cancel()
}

// handle is the concrete websocket.SessionHandle for one running Session.
type handle struct {
	mgr      *Manager
	id       interactive.ID
	sess     *session.Session
	engine   *session.Engine
	registry *websocket.Registry
	proj     *broadcast.Projector
	ingester *ingest.Ingester

	runCtx context.Context
	cancel context.CancelFunc
}

func (h *handle) Registry() *websocket.Registry { return h.registry }

func (h *handle) IsWaiting() bool {
	return h.sess.Snapshot().Phase == session.PhaseWaiting
}

// ApplyLeaderCommand implements spec.md §5's ordering guarantee that a
// leader command takes effect no later than the broadcast of tick n+1:
// it broadcasts immediately after applying the command rather than
// waiting for the Engine's next natural tick.
func (h *handle) ApplyLeaderCommand(cmd session.Command) {
	ev := h.sess.ApplyCommand(cmd)
	h.proj.Broadcast(context.Background(), h.sess)
	if ev.Ended {
		h.onEnded(context.Background(), ev)
	}
}

// Detach removes userID's connection from the Registry, then applies
// spec.md §8 scenario S6: a LEADER who disconnects while the Session is
// still WAITING destroys the whole Session rather than leaving it
// dangling for the idle timer to eventually reap.
func (h *handle) Detach(ctx context.Context, userID uuid.UUID, role websocket.Role) {
	h.registry.Detach(ctx, userID, role)
	if role == websocket.RoleLeader && h.IsWaiting() {
		h.mgr.ForceDelete(ctx, h.id)
	}
}

// SubmitAnswer resolves userID to its C1 participant id via the
// Registry's own attached entry (set at Attach time) before handing the
// frame to Answer Ingest (C5).
func (h *handle) SubmitAnswer(ctx context.Context, userID uuid.UUID, raw json.RawMessage) {
	pID, ok := h.registry.ParticipantIDFor(userID)
	if !ok {
		h.mgr.log.WithField("user_id", userID).Warn("submit_answer: no attached participant entry")
		return
	}
	h.ingester.Ingest(ctx, h.sess, pID, raw)
}

// onTick is the Engine's per-second callback: persist any completed
// question's time, broadcast the resulting state, and run end-of-life
// cleanup if this tick ended the Session.
func (h *handle) onTick(ev session.TickEvent) {
	if ev.RecordQuestionTime != nil {
		if err := h.mgr.repo.RecordQuestionTime(h.runCtx, h.id, ev.RecordQuestionTime.QuestionID, ev.RecordQuestionTime.Seconds); err != nil {
			h.mgr.log.WithError(err).Warn("record_question_time failed")
		}
	}
	h.proj.Broadcast(h.runCtx, h.sess)
	if ev.Ended {
		h.onEnded(context.Background(), ev)
	}
}

// onEnded performs the storage write and connection teardown common to
// both an Engine-driven END and a leader-issued END command, then
// removes this handle from the Manager.
func (h *handle) onEnded(ctx context.Context, ev session.TickEvent) {
	if ev.EndedCompleted {
		if err := h.mgr.repo.MarkConducted(ctx, h.id, time.Now()); err != nil {
			h.mgr.log.WithError(err).Warn("mark_conducted failed")
		}
	}
	h.registry.CloseAll(ctx)
	h.engine.Stop()
	h.cancel()
	h.mgr.remove(h.id, h)
}
