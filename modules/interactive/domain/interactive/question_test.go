package interactive_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/interactive-quiz/session-engine/modules/interactive/domain/interactive"
	"github.com/interactive-quiz/session-engine/pkg/apperr"
)

func answerID() interactive.AnswerID {
	return interactive.AnswerID(uuid.New())
}

func TestNewQuestion_Single(t *testing.T) {
	t.Run("ValidSingleChoice", func(t *testing.T) {
		correct := answerID()
		q, err := interactive.NewQuestion(interactive.QuestionID(uuid.New()), 1, "2+2?", 2, interactive.TypeSingle, "", []interactive.Answer{
			{ID: correct, Text: "4", IsCorrect: true},
			{ID: answerID(), Text: "5", IsCorrect: false},
		})
		require.NoError(t, err)
		assert.Equal(t, []interactive.AnswerID{correct}, q.CorrectAnswerIDs())
		assert.Len(t, q.Choices(), 2)
	})

	t.Run("RejectsZeroCorrect", func(t *testing.T) {
		_, err := interactive.NewQuestion(interactive.QuestionID(uuid.New()), 1, "q", 1, interactive.TypeSingle, "", []interactive.Answer{
			{ID: answerID(), Text: "a", IsCorrect: false},
		})
		require.Error(t, err)
		assert.True(t, apperr.Is(err, apperr.KindValidation))
	})

	t.Run("RejectsTwoCorrect", func(t *testing.T) {
		_, err := interactive.NewQuestion(interactive.QuestionID(uuid.New()), 1, "q", 1, interactive.TypeSingle, "", []interactive.Answer{
			{ID: answerID(), Text: "a", IsCorrect: true},
			{ID: answerID(), Text: "b", IsCorrect: true},
		})
		require.Error(t, err)
	})

	t.Run("RejectsMoreThanFiveAnswers", func(t *testing.T) {
		answers := make([]interactive.Answer, 6)
		for i := range answers {
			answers[i] = interactive.Answer{ID: answerID(), Text: "x", IsCorrect: i == 0}
		}
		_, err := interactive.NewQuestion(interactive.QuestionID(uuid.New()), 1, "q", 1, interactive.TypeSingle, "", answers)
		require.Error(t, err)
	})
}

func TestNewQuestion_Multi(t *testing.T) {
	t.Run("RejectsFewerThanTwoCorrect", func(t *testing.T) {
		_, err := interactive.NewQuestion(interactive.QuestionID(uuid.New()), 1, "q", 3, interactive.TypeMulti, "", []interactive.Answer{
			{ID: answerID(), Text: "a", IsCorrect: true},
			{ID: answerID(), Text: "b", IsCorrect: false},
		})
		require.Error(t, err)
	})

	t.Run("AcceptsTwoCorrect", func(t *testing.T) {
		q, err := interactive.NewQuestion(interactive.QuestionID(uuid.New()), 1, "q", 3, interactive.TypeMulti, "", []interactive.Answer{
			{ID: answerID(), Text: "a", IsCorrect: true},
			{ID: answerID(), Text: "b", IsCorrect: true},
			{ID: answerID(), Text: "c", IsCorrect: false},
		})
		require.NoError(t, err)
		assert.Len(t, q.CorrectAnswerIDs(), 2)
	})
}

func TestNewQuestion_Text(t *testing.T) {
	t.Run("AllAnswersMustBeCorrect", func(t *testing.T) {
		_, err := interactive.NewQuestion(interactive.QuestionID(uuid.New()), 1, "q", 1, interactive.TypeText, "", []interactive.Answer{
			{ID: answerID(), Text: "Jupiter", IsCorrect: true},
			{ID: answerID(), Text: "typo", IsCorrect: false},
		})
		require.Error(t, err)
	})

	t.Run("NoChoicesExposed", func(t *testing.T) {
		q, err := interactive.NewQuestion(interactive.QuestionID(uuid.New()), 1, "q", 1, interactive.TypeText, "", []interactive.Answer{
			{ID: answerID(), Text: "Jupiter", IsCorrect: true},
		})
		require.NoError(t, err)
		assert.Nil(t, q.Choices())
	})

	t.Run("RejectsMoreThanThreeVariants", func(t *testing.T) {
		answers := make([]interactive.Answer, 4)
		for i := range answers {
			answers[i] = interactive.Answer{ID: answerID(), Text: "x", IsCorrect: true}
		}
		_, err := interactive.NewQuestion(interactive.QuestionID(uuid.New()), 1, "q", 1, interactive.TypeText, "", answers)
		require.Error(t, err)
	})
}

func TestNewQuestion_RejectsBadScoreAndPosition(t *testing.T) {
	_, err := interactive.NewQuestion(interactive.QuestionID(uuid.New()), 0, "q", 1, interactive.TypeSingle, "", nil)
	assert.Error(t, err)

	_, err = interactive.NewQuestion(interactive.QuestionID(uuid.New()), 1, "q", 6, interactive.TypeSingle, "", nil)
	assert.Error(t, err)
}

func TestQuestion_AnswerByID(t *testing.T) {
	id := answerID()
	q, err := interactive.NewQuestion(interactive.QuestionID(uuid.New()), 1, "q", 1, interactive.TypeSingle, "", []interactive.Answer{
		{ID: id, Text: "a", IsCorrect: true},
	})
	require.NoError(t, err)

	found, ok := q.AnswerByID(id)
	require.True(t, ok)
	assert.Equal(t, "a", found.Text)

	_, ok = q.AnswerByID(answerID())
	assert.False(t, ok)
}
