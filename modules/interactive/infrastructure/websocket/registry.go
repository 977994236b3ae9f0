// Package websocket implements the Connection Registry (C3) and Transport
// Adapter (C7) of spec.md §4.2/§6.1, grounded on the teacher's
// modules/core/infrastructure/websocket/hub.go: the same map-of-entries,
// mutex-guarded fan-out shape, narrowed from a cross-session global Hub
// down to the per-Session registry spec.md §4.2 requires.
package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/interactive-quiz/session-engine/modules/interactive/domain/interactive"
	"github.com/interactive-quiz/session-engine/modules/interactive/domain/participant"
	"github.com/interactive-quiz/session-engine/modules/interactive/infrastructure/persistence"
	"github.com/interactive-quiz/session-engine/pkg/apperr"
)

// Role is one of the four roles spec.md §4.2 names for a registry entry.
type Role string

const (
	RoleLeader      Role = "LEADER"
	RoleParticipant Role = "PARTICIPANT"
	RoleAdmin       Role = "ADMIN"
	RoleOrganizer   Role = "ORGANIZER"
)

// Entry is one {transport, user_id, role} row of spec.md §4.2. A
// PARTICIPANT entry additionally carries its C1 participant id and the
// time of its current attach, so Detach/DetachAll can accrue connected
// time per DESIGN.md's Open Question #2 decision.
type Entry struct {
	Transport     Transport
	UserID        uuid.UUID
	Role          Role
	ParticipantID participant.ID
	ConnectedAt   time.Time
}

// Registry is the per-Session Connection Registry of spec.md §4.2. It is
// owned by exactly one Session; there is no cross-Session sharing
// (spec.md §5's "Shared resources").
type Registry struct {
	mu            sync.Mutex
	entries       []*Entry
	repo          persistence.Repository
	interactiveID interactive.ID
}

// NewRegistry constructs an empty Registry for one interactive's Session.
func NewRegistry(repo persistence.Repository, interactiveID interactive.ID) *Registry {
	return &Registry{repo: repo, interactiveID: interactiveID}
}

// Attach implements spec.md §4.2's attach(transport, user, role): replace
// the transport of an existing (user, role) entry on reconnect, otherwise
// append; reject a second distinct user attaching as LEADER, and reject a
// PARTICIPANT attach outside WAITING unless already registered via C1.
// username is only consulted the first time a given user registers as a
// PARTICIPANT; RegisterParticipant ignores it on subsequent calls.
func (r *Registry) Attach(ctx context.Context, waiting bool, transport Transport, userID uuid.UUID, role Role, username string) error {
	const op apperr.Op = "websocket.Registry.Attach"

	r.mu.Lock()
	defer r.mu.Unlock()

	if role == RoleLeader {
		for _, e := range r.entries {
			if e.Role == RoleLeader && e.UserID != userID {
				return apperr.E(op, apperr.KindAuthorization, "a LEADER is already attached for a different user")
			}
		}
	}

	var participantID participant.ID
	if role == RoleParticipant {
		if !waiting {
			registered, err := r.repo.IsParticipantRegistered(ctx, r.interactiveID, userID)
			if err != nil {
				return apperr.E(op, apperr.KindTransientStorage, err)
			}
			if !registered {
				return apperr.E(op, apperr.KindAuthorization, "participant is not pre-registered outside WAITING")
			}
		}
		// RegisterParticipant is idempotent: it returns the existing id for
		// an already-registered user without overwriting their username.
		id, err := r.repo.RegisterParticipant(ctx, r.interactiveID, userID, username)
		if err != nil {
			return apperr.E(op, apperr.KindTransientStorage, err)
		}
		participantID = id
	}

	for _, e := range r.entries {
		if e.UserID == userID && e.Role == role {
			e.Transport = transport
			e.ConnectedAt = time.Now()
			return nil
		}
	}

	r.entries = append(r.entries, &Entry{
		Transport:     transport,
		UserID:        userID,
		Role:          role,
		ParticipantID: participantID,
		ConnectedAt:   time.Now(),
	})
	return nil
}

// Detach implements spec.md §4.2's detach(user, role): remove the matching
// entry if present, accruing its connected time via C1 before it's gone
// (DESIGN.md's Open Question #2 decision).
func (r *Registry) Detach(ctx context.Context, userID uuid.UUID, role Role) *Entry {
	r.mu.Lock()
	var removed *Entry
	for i, e := range r.entries {
		if e.UserID == userID && e.Role == role {
			removed = e
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			break
		}
	}
	r.mu.Unlock()

	if removed != nil && removed.Role == RoleParticipant {
		r.accrueTime(ctx, removed)
	}
	return removed
}

// DetachAll implements spec.md §4.2's detach_all(): close every transport
// and drop the entry; PARTICIPANT entries accrue their remaining connected
// time and then have their Participant row and UserAnswers removed via C1.
// Used when the interactive is deleted mid-run (spec.md §4.6's
// force_delete) — the whole record is being discarded, so dropping the
// Participant rows alongside it is correct.
func (r *Registry) DetachAll(ctx context.Context) {
	r.closeAll(ctx, true)
}

// CloseAll closes every transport and accrues final connected time for
// PARTICIPANT entries, without dropping their Participant rows. Used at a
// Session's natural END, once the final broadcast has gone out, so the
// leaderboard persisted via C1 remains queryable afterward.
func (r *Registry) CloseAll(ctx context.Context) {
	r.closeAll(ctx, false)
}

func (r *Registry) closeAll(ctx context.Context, drop bool) {
	r.mu.Lock()
	entries := r.entries
	r.entries = nil
	r.mu.Unlock()

	for _, e := range entries {
		_ = e.Transport.Close()
		if e.Role == RoleParticipant {
			r.accrueTime(ctx, e)
			if drop {
				_ = r.repo.DropParticipant(ctx, r.interactiveID, e.UserID)
			}
		}
	}
}

func (r *Registry) accrueTime(ctx context.Context, e *Entry) {
	seconds := int(time.Since(e.ConnectedAt).Seconds())
	if seconds <= 0 {
		return
	}
	_ = r.repo.AccumulateParticipantTime(ctx, e.ParticipantID, seconds)
}

// IterForBroadcast returns a snapshot of entries safe to range over while
// sending, per spec.md §4.2's iter_for_broadcast().
func (r *Registry) IterForBroadcast() []*Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// ParticipantIDFor returns the C1 participant id of an attached
// PARTICIPANT entry for userID, so a caller handling an inbound answer
// frame can resolve it without a second round trip through C1.
func (r *Registry) ParticipantIDFor(userID uuid.UUID) (participant.ID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.UserID == userID && e.Role == RoleParticipant {
			return e.ParticipantID, true
		}
	}
	return participant.ID{}, false
}

// Leader returns the current singleton LEADER entry, if attached.
func (r *Registry) Leader() (*Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.Role == RoleLeader {
			return e, true
		}
	}
	return nil, false
}
