package manager

import (
	"context"

	"github.com/robfig/cron/v3"

	"github.com/interactive-quiz/session-engine/modules/interactive/domain/interactive"
)

// StartReconciler schedules a periodic sweep of every running Session,
// force-deleting any whose interactive was marked conducted through a
// path outside this Manager (an administrative tool editing storage
// directly). This is an addition beyond spec.md's core state machine: a
// safety net against the core's view of "running" drifting from C1's
// view of "conducted" when nothing but an external write caused the
// drift. Grounded on the reconcileEvery-gated sweep shape of
// modules/bichat/services/title_job_worker.go's Start(ctx) loop, realized
// with a cron schedule rather than a ticker since robfig/cron/v3 is a
// dependency the teacher's own go.mod already declares.
func (m *Manager) StartReconciler(spec string) (*cron.Cron, error) {
	c := cron.New()
	if _, err := c.AddFunc(spec, func() { m.reconcile(context.Background()) }); err != nil {
		return nil, err
	}
	c.Start()
	return c, nil
}

func (m *Manager) reconcile(ctx context.Context) {
	m.mu.Lock()
	ids := make([]interactive.ID, 0, len(m.handles))
	for id := range m.handles {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		conducted, err := m.repo.IsConducted(ctx, id)
		if err != nil {
			m.log.WithError(err).Warn("reconcile: is_conducted failed")
			continue
		}
		if conducted {
			m.log.WithField("interactive_id", id).Info("reconcile: force-deleting externally conducted session")
			m.ForceDelete(ctx, id)
		}
	}
}
