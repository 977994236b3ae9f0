// Package ingest implements the Answer Ingest (C5) of spec.md §4.4:
// schema validation by question type, phase-gating against the owning
// Session, and a best-effort upsert through the Storage Repository (C1).
// Grounded on the teacher's DTO+validator pattern
// (modules/crm/domain/aggregates/client/client_dto.go's Ok(ctx) using
// go-playground/validator/v10), adapted from a localized form-errors map
// into a tagged-union decoder for the three question types.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"

	"github.com/interactive-quiz/session-engine/modules/interactive/domain/interactive"
	"github.com/interactive-quiz/session-engine/modules/interactive/domain/participant"
	"github.com/interactive-quiz/session-engine/modules/interactive/domain/session"
	"github.com/interactive-quiz/session-engine/modules/interactive/infrastructure/persistence"
	wswire "github.com/interactive-quiz/session-engine/modules/interactive/infrastructure/websocket"
)

var validate = validator.New()

var errMissingField = errors.New("ingest: required field absent for question type")

// invalidFramesTotal counts malformed or out-of-phase answer frames
// silently dropped per spec.md §4.4/§7's ValidationError policy
// ("Response: silently ignored (no outbound frame), counter incremented
// for observability").
var invalidFramesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "answer_ingest_invalid_frames_total",
	Help: "Answer frames dropped by Answer Ingest, labeled by reason.",
}, []string{"reason"})

// Ingester is the C5 component. The Manager builds one per Session; it
// is stateless beyond the injected Repository.
type Ingester struct {
	repo persistence.Repository
	log  *logrus.Logger
}

// New constructs an Ingester.
func New(repo persistence.Repository, log *logrus.Logger) *Ingester {
	return &Ingester{repo: repo, log: log}
}

// Ingest implements spec.md §4.4 end to end: it accepts raw frame bytes
// from a PARTICIPANT entry, validates the frame against the Session's
// current question type, computes correctness, and upserts a UserAnswer.
// It never returns an error to the caller — every failure mode is a
// silent drop, per spec.md §4.4's "Malformed or out-of-phase submissions
// are silently dropped (no error frame)."
func (ig *Ingester) Ingest(ctx context.Context, sess *session.Session, participantID participant.ID, raw json.RawMessage) {
	if !sess.IsAcceptingAnswers() {
		invalidFramesTotal.WithLabelValues("out_of_phase").Inc()
		return
	}

	q, ok := sess.CurrentQuestion()
	if !ok {
		invalidFramesTotal.WithLabelValues("no_current_question").Inc()
		return
	}

	var frame wswire.ParticipantFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		invalidFramesTotal.WithLabelValues("malformed_json").Inc()
		return
	}
	if err := validate.Struct(frame); err != nil {
		invalidFramesTotal.WithLabelValues("malformed_shape").Inc()
		return
	}

	data, err := decode(frame, q)
	if err != nil {
		invalidFramesTotal.WithLabelValues("invalid_answer").Inc()
		return
	}

	elapsed := sess.ElapsedOnQuestion()
	userAnswer := participant.NewUserAnswer(participantID, q, data, elapsed, time.Now())

	if err := ig.repo.UpsertUserAnswer(ctx, userAnswer); err != nil {
		// TransientStorageError on an ingest write: log and drop per
		// spec.md §7 ("a best-effort UserAnswer loss is acceptable; the
		// session must not stall").
		ig.log.WithError(err).Warn("dropping UserAnswer after storage write failure")
		invalidFramesTotal.WithLabelValues("storage_error").Inc()
	}
}

// decode maps an inbound frame to a validated participant.AnswerData
// per question type, per spec.md §4.4's schema table.
func decode(frame wswire.ParticipantFrame, q interactive.Question) (participant.AnswerData, error) {
	switch q.Type {
	case interactive.TypeSingle:
		if frame.AnswerID == nil {
			return participant.AnswerData{}, errMissingField
		}
		id, err := uuid.Parse(*frame.AnswerID)
		if err != nil {
			return participant.AnswerData{}, err
		}
		return participant.NewSingleAnswer(q, interactive.AnswerID(id))

	case interactive.TypeMulti:
		if len(frame.AnswerIDs) == 0 {
			return participant.AnswerData{}, errMissingField
		}
		ids := make([]interactive.AnswerID, 0, len(frame.AnswerIDs))
		for _, raw := range frame.AnswerIDs {
			id, err := uuid.Parse(raw)
			if err != nil {
				return participant.AnswerData{}, err
			}
			ids = append(ids, interactive.AnswerID(id))
		}
		return participant.NewMultiAnswer(q, ids)

	case interactive.TypeText:
		if frame.AnswerText == nil {
			return participant.AnswerData{}, errMissingField
		}
		return participant.NewTextAnswer(q, *frame.AnswerText)

	default:
		return participant.AnswerData{}, errMissingField
	}
}
