package participant

import (
	"time"

	"github.com/google/uuid"

	"github.com/interactive-quiz/session-engine/modules/interactive/domain/interactive"
)

// ID identifies a Participant record.
type ID uuid.UUID

func (id ID) String() string {
	return uuid.UUID(id).String()
}

// Participant is spec.md §3's Participant record: registered on first
// connect during WAITING, reconnects in later phases only succeed for
// already-registered users (see registry attach rules, §4.2).
type Participant struct {
	ID              ID
	InteractiveID   interactive.ID
	UserID          uuid.UUID
	Username        string // display name, pass-through from C1
	TotalTime       int    // seconds connected, accrued from attach to detach or Session end in every phase (not only QUESTION), see DESIGN.md Open Question #2
	JoinedAt        time.Time
}

func New(id ID, interactiveID interactive.ID, userID uuid.UUID, username string, joinedAt time.Time) Participant {
	return Participant{
		ID:            id,
		InteractiveID: interactiveID,
		UserID:        userID,
		Username:      username,
		JoinedAt:      joinedAt,
	}
}

// AccumulateTime adds seconds to the participant's running total. Called
// at registry detach (time accrued since last attach) and once more at
// END for still-connected participants, per DESIGN.md Open Question #2 —
// this is the single write site for TotalTime the spec's §9 open
// question demands.
func (p *Participant) AccumulateTime(seconds int) {
	if seconds <= 0 {
		return
	}
	p.TotalTime += seconds
}
