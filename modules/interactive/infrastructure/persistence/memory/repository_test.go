package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/interactive-quiz/session-engine/modules/interactive/domain/interactive"
	"github.com/interactive-quiz/session-engine/modules/interactive/domain/participant"
	"github.com/interactive-quiz/session-engine/modules/interactive/infrastructure/persistence/memory"
)

func timeZero() time.Time { return time.Unix(0, 0) }

func seedYAML() []byte {
	return []byte(`
interactives:
  - id: "11111111-1111-1111-1111-111111111111"
    code: "ABC123"
    title: "Quiz"
    description: "desc"
    countdown_seconds: 3
    answer_seconds: 5
    discussion_seconds: 3
    created_by_user_id: "22222222-2222-2222-2222-222222222222"
    questions:
      - id: "33333333-3333-3333-3333-333333333333"
        text: "2+2?"
        score: 2
        type: "SINGLE"
        answers:
          - id: "44444444-4444-4444-4444-444444444444"
            text: "4"
            is_correct: true
          - id: "55555555-5555-5555-5555-555555555555"
            text: "5"
            is_correct: false
`)
}

func TestRepository_LoadSeedAndRead(t *testing.T) {
	repo := memory.New()
	require.NoError(t, repo.LoadSeed(seedYAML()))

	id := interactive.ID(uuid.MustParse("11111111-1111-1111-1111-111111111111"))
	ctx := context.Background()

	meta, err := repo.LoadInteractiveMeta(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "ABC123", meta.Code)
	assert.False(t, meta.Conducted)

	questions, err := repo.LoadQuestions(ctx, id)
	require.NoError(t, err)
	require.Len(t, questions, 1)
	assert.Equal(t, interactive.TypeSingle, questions[0].Type)

	gotID, ok, err := repo.InteractiveIDByCode(ctx, "ABC123")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, id, gotID)
}

func TestRepository_RegisterParticipantIsIdempotent(t *testing.T) {
	repo := memory.New()
	require.NoError(t, repo.LoadSeed(seedYAML()))
	ctx := context.Background()
	id := interactive.ID(uuid.MustParse("11111111-1111-1111-1111-111111111111"))
	userID := uuid.New()

	p1, err := repo.RegisterParticipant(ctx, id, userID, "alice")
	require.NoError(t, err)

	p2, err := repo.RegisterParticipant(ctx, id, userID, "alice")
	require.NoError(t, err)

	assert.Equal(t, p1, p2, "reconnecting must not duplicate the Participant row (spec.md §8 invariant 7)")

	count, err := repo.ParticipantCount(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRepository_UpsertUserAnswerOverwritesPriorRow(t *testing.T) {
	repo := memory.New()
	require.NoError(t, repo.LoadSeed(seedYAML()))
	ctx := context.Background()
	id := interactive.ID(uuid.MustParse("11111111-1111-1111-1111-111111111111"))
	qID := interactive.QuestionID(uuid.MustParse("33333333-3333-3333-3333-333333333333"))
	correctID := interactive.AnswerID(uuid.MustParse("44444444-4444-4444-4444-444444444444"))
	wrongID := interactive.AnswerID(uuid.MustParse("55555555-5555-5555-5555-555555555555"))

	pID, err := repo.RegisterParticipant(ctx, id, uuid.New(), "alice")
	require.NoError(t, err)

	questions, err := repo.LoadQuestions(ctx, id)
	require.NoError(t, err)
	q := questions[0]

	wrongData, err := participant.NewSingleAnswer(q, wrongID)
	require.NoError(t, err)
	require.NoError(t, repo.UpsertUserAnswer(ctx, participant.NewUserAnswer(pID, q, wrongData, 2, timeZero())))

	correctData, err := participant.NewSingleAnswer(q, correctID)
	require.NoError(t, err)
	require.NoError(t, repo.UpsertUserAnswer(ctx, participant.NewUserAnswer(pID, q, correctData, 3, timeZero())))

	pcts, err := repo.SelectionPercentages(ctx, qID)
	require.NoError(t, err)
	for _, p := range pcts {
		if p.AnswerID == correctID {
			assert.Equal(t, 100.0, p.Percentage)
		}
		if p.AnswerID == wrongID {
			assert.Equal(t, 0.0, p.Percentage)
		}
	}
}

func TestRepository_DropParticipantRemovesAnswers(t *testing.T) {
	repo := memory.New()
	require.NoError(t, repo.LoadSeed(seedYAML()))
	ctx := context.Background()
	id := interactive.ID(uuid.MustParse("11111111-1111-1111-1111-111111111111"))
	userID := uuid.New()

	_, err := repo.RegisterParticipant(ctx, id, userID, "alice")
	require.NoError(t, err)
	require.NoError(t, repo.DropParticipant(ctx, id, userID))

	registered, err := repo.IsParticipantRegistered(ctx, id, userID)
	require.NoError(t, err)
	assert.False(t, registered)
}

func TestRepository_LeaderboardOrdering(t *testing.T) {
	repo := memory.New()
	require.NoError(t, repo.LoadSeed(seedYAML()))
	ctx := context.Background()
	id := interactive.ID(uuid.MustParse("11111111-1111-1111-1111-111111111111"))
	correctID := interactive.AnswerID(uuid.MustParse("44444444-4444-4444-4444-444444444444"))

	questions, err := repo.LoadQuestions(ctx, id)
	require.NoError(t, err)
	q := questions[0]

	aliceID, err := repo.RegisterParticipant(ctx, id, uuid.New(), "alice")
	require.NoError(t, err)
	bobID, err := repo.RegisterParticipant(ctx, id, uuid.New(), "bob")
	require.NoError(t, err)

	data, err := participant.NewSingleAnswer(q, correctID)
	require.NoError(t, err)
	require.NoError(t, repo.UpsertUserAnswer(ctx, participant.NewUserAnswer(aliceID, q, data, 2, timeZero())))
	require.NoError(t, repo.UpsertUserAnswer(ctx, participant.NewUserAnswer(bobID, q, data, 2, timeZero())))

	require.NoError(t, repo.AccumulateParticipantTime(ctx, aliceID, 10))
	require.NoError(t, repo.AccumulateParticipantTime(ctx, bobID, 5))

	board, err := repo.Leaderboard(ctx, id)
	require.NoError(t, err)
	require.Len(t, board, 2)
	assert.Equal(t, "bob", board[0].Username, "tie broken by total_time ascending (spec.md §4.5)")
	assert.Equal(t, "alice", board[1].Username)
}
