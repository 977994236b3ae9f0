package ingest_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/interactive-quiz/session-engine/modules/interactive/domain/interactive"
	"github.com/interactive-quiz/session-engine/modules/interactive/domain/session"
	"github.com/interactive-quiz/session-engine/modules/interactive/infrastructure/persistence/memory"
	"github.com/interactive-quiz/session-engine/modules/interactive/services/ingest"
)

const (
	interactiveIDStr = "11111111-1111-1111-1111-111111111111"
	questionIDStr    = "33333333-3333-3333-3333-333333333333"
	correctIDStr     = "44444444-4444-4444-4444-444444444444"
	wrongIDStr       = "55555555-5555-5555-5555-555555555555"
	creatorIDStr     = "22222222-2222-2222-2222-222222222222"
)

func seedYAML() []byte {
	return []byte(`
interactives:
  - id: "` + interactiveIDStr + `"
    code: "ABC123"
    title: "Quiz"
    description: "desc"
    countdown_seconds: 1
    answer_seconds: 5
    discussion_seconds: 1
    created_by_user_id: "` + creatorIDStr + `"
    questions:
      - id: "` + questionIDStr + `"
        text: "2+2?"
        score: 2
        type: "SINGLE"
        answers:
          - id: "` + correctIDStr + `"
            text: "4"
            is_correct: true
          - id: "` + wrongIDStr + `"
            text: "5"
            is_correct: false
`)
}

// newRunningSession loads the shared fixture into a fresh memory
// repository and drives a freshly built Session over the same
// definition into QUESTION, so both share the same ids.
func newRunningSession(t *testing.T) (*memory.Repository, *session.Session) {
	t.Helper()
	repo := memory.New()
	require.NoError(t, repo.LoadSeed(seedYAML()))

	id := interactive.ID(uuid.MustParse(interactiveIDStr))
	questions, err := repo.LoadQuestions(context.Background(), id)
	require.NoError(t, err)

	def := interactive.New(id, "ABC123", "Quiz", "desc", 1, 5, 1, uuid.MustParse(creatorIDStr), interactive.WithQuestions(questions))
	sess := session.New(def, session.DefaultIdleConfig())

	sess.ApplyCommand(session.CommandGoing)
	sess.Tick() // countdown 1 -> 0, still COUNTDOWN
	sess.Tick() // countdown 0 -> -1, enters QUESTION
	require.True(t, sess.IsAcceptingAnswers())

	return repo, sess
}

func TestIngester_ValidSingleAnswerIsUpserted(t *testing.T) {
	repo, sess := newRunningSession(t)
	q, ok := sess.CurrentQuestion()
	require.True(t, ok)

	pID, err := repo.RegisterParticipant(context.Background(), sess.InteractiveID(), uuid.New(), "alice")
	require.NoError(t, err)

	ig := ingest.New(repo, logrus.New())
	raw, err := json.Marshal(map[string]string{"answer_id": correctIDStr})
	require.NoError(t, err)

	ig.Ingest(context.Background(), sess, pID, raw)

	pcts, err := repo.SelectionPercentages(context.Background(), q.ID)
	require.NoError(t, err)
	var sawCorrect bool
	for _, p := range pcts {
		if p.AnswerID.String() == correctIDStr {
			sawCorrect = true
			assert.Equal(t, 100.0, p.Percentage)
		}
	}
	assert.True(t, sawCorrect)
}

func TestIngester_OutOfPhaseSubmissionIsSilentlyDropped(t *testing.T) {
	repo := memory.New()
	require.NoError(t, repo.LoadSeed(seedYAML()))
	id := interactive.ID(uuid.MustParse(interactiveIDStr))
	questions, err := repo.LoadQuestions(context.Background(), id)
	require.NoError(t, err)
	def := interactive.New(id, "ABC123", "Quiz", "desc", 1, 5, 1, uuid.MustParse(creatorIDStr), interactive.WithQuestions(questions))
	sess := session.New(def, session.DefaultIdleConfig()) // still WAITING

	pID, err := repo.RegisterParticipant(context.Background(), id, uuid.New(), "alice")
	require.NoError(t, err)

	ig := ingest.New(repo, logrus.New())
	raw, err := json.Marshal(map[string]string{"answer_id": correctIDStr})
	require.NoError(t, err)

	ig.Ingest(context.Background(), sess, pID, raw)

	pcts, err := repo.SelectionPercentages(context.Background(), questions[0].ID)
	require.NoError(t, err)
	for _, p := range pcts {
		assert.Zero(t, p.Percentage, "a submission outside QUESTION must never reach storage")
	}
}

func TestIngester_MalformedFrameIsSilentlyDropped(t *testing.T) {
	repo, sess := newRunningSession(t)
	q, ok := sess.CurrentQuestion()
	require.True(t, ok)
	pID, err := repo.RegisterParticipant(context.Background(), sess.InteractiveID(), uuid.New(), "alice")
	require.NoError(t, err)

	ig := ingest.New(repo, logrus.New())
	ig.Ingest(context.Background(), sess, pID, json.RawMessage(`{"answer_id": "not-a-uuid"}`))
	ig.Ingest(context.Background(), sess, pID, json.RawMessage(`not json`))

	pcts, err := repo.SelectionPercentages(context.Background(), q.ID)
	require.NoError(t, err)
	for _, p := range pcts {
		assert.Zero(t, p.Percentage)
	}
}

func TestIngester_UnknownAnswerIDIsSilentlyDropped(t *testing.T) {
	repo, sess := newRunningSession(t)
	q, ok := sess.CurrentQuestion()
	require.True(t, ok)
	pID, err := repo.RegisterParticipant(context.Background(), sess.InteractiveID(), uuid.New(), "alice")
	require.NoError(t, err)

	ig := ingest.New(repo, logrus.New())
	raw, err := json.Marshal(map[string]string{"answer_id": uuid.New().String()})
	require.NoError(t, err)
	ig.Ingest(context.Background(), sess, pID, raw)

	pcts, err := repo.SelectionPercentages(context.Background(), q.ID)
	require.NoError(t, err)
	for _, p := range pcts {
		assert.Zero(t, p.Percentage)
	}
}
