// Package broadcast implements the Broadcast Projector (C4) of spec.md
// §4.3: one Session tick or command produces a single logical phase
// event, which this package turns into a distinct outbound payload per
// registry entry, stripping or including fields by role. New code — no
// single teacher file does per-role payload projection — grounded on the
// fan-out-then-send shape of modules/core/infrastructure/websocket/
// hub.go's BroadcastToChannel (snapshot the recipient set, release the
// lock, send), generalized to build a different body per recipient.
package broadcast

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/interactive-quiz/session-engine/modules/interactive/domain/interactive"
	"github.com/interactive-quiz/session-engine/modules/interactive/domain/participant"
	"github.com/interactive-quiz/session-engine/modules/interactive/domain/session"
	"github.com/interactive-quiz/session-engine/modules/interactive/infrastructure/persistence"
	"github.com/interactive-quiz/session-engine/modules/interactive/infrastructure/websocket"
)

// Projector is the C4 component, one per Session.
type Projector struct {
	repo     persistence.Repository
	registry *websocket.Registry
	log      *logrus.Logger
}

// New constructs a Projector bound to one Session's Registry.
func New(repo persistence.Repository, registry *websocket.Registry, log *logrus.Logger) *Projector {
	return &Projector{repo: repo, registry: registry, log: log}
}

// winEntry is the position/score/total_time tuple spec.md §4.5 attaches
// to a participant's own outbound payload.
type winEntry struct {
	Position  int    `json:"position"`
	Score     int    `json:"score"`
	TotalTime int    `json:"total_time"`
	Username  string `json:"username,omitempty"`
}

// aggregates holds the data C4 is required to fetch at most once per
// broadcast, per spec.md §4.3's "MUST fetch aggregates at most once per
// broadcast (not once per recipient)".
type aggregates struct {
	participantCount int
	dataAnswers      interface{}
	correctAnswers   interface{}
	textMatches      map[participant.ID]*interactive.AnswerID
	winners          []winEntry
	byUser           map[uuid.UUID]winEntry
}

// Broadcast projects the Session's current Snapshot into a payload per
// registry entry and sends it, detaching any entry whose send fails
// (spec.md §4.3's best-effort send policy).
func (p *Projector) Broadcast(ctx context.Context, sess *session.Session) {
	snap := sess.Snapshot()
	agg := p.loadAggregates(ctx, snap, sess.InteractiveID())

	for _, entry := range p.registry.IterForBroadcast() {
		frame := p.project(snap, agg, entry)
		if err := entry.Transport.Send(frame); err != nil {
			p.log.WithError(err).WithField("user_id", entry.UserID).Info("broadcast send failed, detaching")
			p.registry.Detach(ctx, entry.UserID, entry.Role)
			_ = entry.Transport.Close()
		}
	}
}

// loadAggregates fetches DISCUSSION/END aggregates exactly once,
// regardless of how many entries are about to be sent to.
func (p *Projector) loadAggregates(ctx context.Context, snap session.Snapshot, id interactive.ID) aggregates {
	switch snap.Phase {
	case session.PhaseWaiting:
		count, err := p.repo.ParticipantCount(ctx, id)
		if err != nil {
			p.log.WithError(err).Warn("participant_count failed")
		}
		return aggregates{participantCount: count}
	case session.PhaseDiscussion:
		return p.discussionAggregates(ctx, snap, id)
	case session.PhaseEnd:
		return p.endAggregates(ctx, id)
	default:
		return aggregates{}
	}
}

func (p *Projector) discussionAggregates(ctx context.Context, snap session.Snapshot, id interactive.ID) aggregates {
	var agg aggregates
	if snap.HasQuestion {
		switch snap.Question.Type {
		case interactive.TypeText:
			pcts, err := p.repo.TextMatchPercentages(ctx, snap.Question.ID)
			if err != nil {
				p.log.WithError(err).Warn("text_match_percentages failed")
			} else {
				agg.dataAnswers = pcts
			}
			matches, err := p.repo.ParticipantTextMatches(ctx, snap.Question.ID)
			if err != nil {
				p.log.WithError(err).Warn("participant_text_matches failed")
			} else {
				agg.textMatches = matches
			}
		default:
			pcts, err := p.repo.SelectionPercentages(ctx, snap.Question.ID)
			if err != nil {
				p.log.WithError(err).Warn("selection_percentages failed")
			} else {
				agg.dataAnswers = pcts
			}
			agg.correctAnswers = correctAnswersPayload(snap.Question)
		}
	}
	agg.winners, agg.byUser = p.leaderboardView(ctx, id)
	return agg
}

// correctAnswersPayload implements spec.md §4.1's DISCUSSION correctness
// field: a single id for SINGLE, the full set for MULTI.
func correctAnswersPayload(q interactive.Question) interface{} {
	ids := q.CorrectAnswerIDs()
	switch q.Type {
	case interactive.TypeSingle:
		if len(ids) == 0 {
			return nil
		}
		return ids[0]
	case interactive.TypeMulti:
		return ids
	default:
		return nil
	}
}

// participantTextPayload implements spec.md §4.1's TEXT participant
// personalization: their own matched variant and its percentage if they
// matched, else the full accepted-variant list plus is_correct=false.
func participantTextPayload(pcts []persistence.TextMatchPercentage, matched *interactive.AnswerID) (interface{}, bool) {
	if matched == nil {
		return pcts, false
	}
	for _, pct := range pcts {
		if pct.AnswerID == *matched {
			return []persistence.TextMatchPercentage{pct}, true
		}
	}
	return pcts, false
}

func (p *Projector) endAggregates(ctx context.Context, id interactive.ID) aggregates {
	var agg aggregates
	agg.winners, agg.byUser = p.leaderboardView(ctx, id)
	return agg
}

// leaderboardView fetches the full leaderboard once (already ordered
// score desc, total_time asc per the C1 contract) and builds the top-3
// "winners" slice plus a per-user lookup for personalization, per
// spec.md §4.5.
func (p *Projector) leaderboardView(ctx context.Context, id interactive.ID) ([]winEntry, map[uuid.UUID]winEntry) {
	entries, err := p.repo.Leaderboard(ctx, id)
	if err != nil {
		p.log.WithError(err).Warn("leaderboard failed")
		return nil, nil
	}

	byUser := make(map[uuid.UUID]winEntry, len(entries))
	for i, e := range entries {
		byUser[e.UserID] = winEntry{Position: i + 1, Score: e.Score, TotalTime: e.TotalTime, Username: e.Username}
	}

	top := entries
	if len(top) > 3 {
		top = top[:3]
	}
	winners := make([]winEntry, 0, len(top))
	for i, e := range top {
		winners = append(winners, winEntry{Position: i + 1, Score: e.Score, TotalTime: e.TotalTime, Username: e.Username})
	}
	return winners, byUser
}

// project builds the outbound frame for one registry entry, stripping
// answer correctness from a PARTICIPANT's QUESTION view per spec.md §4.3.
func (p *Projector) project(snap session.Snapshot, agg aggregates, entry *websocket.Entry) websocket.OutboundFrame {
	frame := websocket.OutboundFrame{Stage: websocket.StageFor(snap.Phase)}

	switch snap.Phase {
	case session.PhaseWaiting:
		frame.Data = map[string]interface{}{
			"participant_count": agg.participantCount,
			"idle_state":        snap.IdleState,
			"idle_seconds_left": snap.IdleSecondsLeft,
		}

	case session.PhaseCountdown:
		frame.Data = map[string]interface{}{"remaining": snap.Remaining}

	case session.PhaseQuestion:
		frame.Data = questionPayload(snap.Question, entry.Role)

	case session.PhaseDiscussion:
		data := map[string]interface{}{"question_id": snap.Question.ID}
		frame.DataAnswers = agg.dataAnswers
		frame.CorrectAnswers = agg.correctAnswers

		if snap.HasQuestion && snap.Question.Type == interactive.TypeText && entry.Role == websocket.RoleParticipant {
			pcts, _ := agg.dataAnswers.([]persistence.TextMatchPercentage)
			personalized, isCorrect := participantTextPayload(pcts, agg.textMatches[entry.ParticipantID])
			frame.DataAnswers = personalized
			if !isCorrect {
				data["is_correct"] = false
			}
		}

		frame.Data = data
		frame.Winners = agg.winners
		if w, ok := agg.byUser[entry.UserID]; ok {
			frame.Score = w
		}

	case session.PhaseEnd:
		frame.Data = map[string]interface{}{"conducted": snap.Conducted}
		frame.Winners = agg.winners
		if w, ok := agg.byUser[entry.UserID]; ok {
			frame.Score = w
		}
	}

	if snap.TickStep == 0 {
		frame.Pause = &websocket.PauseState{State: "yes"}
	} else if snap.IdleState == session.IdleWarning {
		frame.Pause = &websocket.PauseState{State: "timer_n", TimerN: snap.IdleSecondsLeft}
	} else {
		frame.Pause = &websocket.PauseState{State: "no"}
	}

	return frame
}

// questionPayload strips correctness for anyone but the LEADER or
// ORGANIZER, per
// spec.md §8 invariant 5.
func questionPayload(q interactive.Question, role websocket.Role) map[string]interface{} {
	payload := map[string]interface{}{
		"question_id": q.ID,
		"text":        q.Text,
		"type":        q.Type,
		"score":       q.Score,
		"image_url":   q.ImageURL,
	}
	if role == websocket.RoleLeader || role == websocket.RoleOrganizer {
		payload["answers"] = q.Answers
	} else {
		payload["answers"] = q.Choices()
	}
	return payload
}
