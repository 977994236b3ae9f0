package interactive

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/interactive-quiz/session-engine/pkg/apperr"
)

// QuestionID identifies a Question within an Interactive.
type QuestionID uuid.UUID

func (id QuestionID) String() string {
	return uuid.UUID(id).String()
}

// Type is one of the three question shapes spec.md §3 defines.
type Type string

const (
	TypeSingle Type = "SINGLE"
	TypeMulti  Type = "MULTI"
	TypeText   Type = "TEXT"
)

func (t Type) Valid() bool {
	switch t {
	case TypeSingle, TypeMulti, TypeText:
		return true
	default:
		return false
	}
}

// Question is one item of an Interactive's ordered question list.
type Question struct {
	ID       QuestionID
	Position int // 1-based, strictly sequential within the interactive
	Text     string
	Score    int // 1..5
	Type     Type
	ImageURL string // optional
	Answers  []Answer
}

// NewQuestion constructs a Question and enforces spec.md §3's per-type
// invariants: SINGLE needs 1-5 answers with exactly one correct, MULTI
// needs 1-5 answers with at least two correct, TEXT needs 1-3 answers
// that are all correct variants.
func NewQuestion(id QuestionID, position int, text string, score int, qType Type, imageURL string, answers []Answer) (Question, error) {
	const op apperr.Op = "interactive.NewQuestion"

	if position < 1 {
		return Question{}, apperr.E(op, apperr.KindValidation, "position must be >= 1")
	}
	if score < 1 || score > 5 {
		return Question{}, apperr.E(op, apperr.KindValidation, "score must be in [1,5]")
	}
	if !qType.Valid() {
		return Question{}, apperr.E(op, apperr.KindValidation, fmt.Sprintf("unknown question type %q", qType))
	}

	q := Question{
		ID:       id,
		Position: position,
		Text:     text,
		Score:    score,
		Type:     qType,
		ImageURL: imageURL,
		Answers:  answers,
	}
	if err := q.validateAnswers(); err != nil {
		return Question{}, err
	}
	return q, nil
}

func (q Question) validateAnswers() error {
	const op apperr.Op = "interactive.Question.validateAnswers"

	n := len(q.Answers)
	correct := 0
	for _, a := range q.Answers {
		if a.IsCorrect {
			correct++
		}
	}

	switch q.Type {
	case TypeSingle:
		if n < 1 || n > 5 {
			return apperr.E(op, apperr.KindValidation, "SINGLE question needs 1-5 answers")
		}
		if correct != 1 {
			return apperr.E(op, apperr.KindValidation, "SINGLE question needs exactly one correct answer")
		}
	case TypeMulti:
		if n < 1 || n > 5 {
			return apperr.E(op, apperr.KindValidation, "MULTI question needs 1-5 answers")
		}
		if correct < 2 {
			return apperr.E(op, apperr.KindValidation, "MULTI question needs at least two correct answers")
		}
	case TypeText:
		if n < 1 || n > 3 {
			return apperr.E(op, apperr.KindValidation, "TEXT question needs 1-3 answers")
		}
		if correct != n {
			return apperr.E(op, apperr.KindValidation, "TEXT question answers must all be correct variants")
		}
	}
	return nil
}

// Choices projects the Question's answers for client consumption,
// stripping correctness. TEXT questions have no choices to show.
func (q Question) Choices() []Choice {
	if q.Type == TypeText {
		return nil
	}
	choices := make([]Choice, 0, len(q.Answers))
	for _, a := range q.Answers {
		choices = append(choices, NewChoice(a))
	}
	return choices
}

// CorrectAnswerIDs returns every Answer marked correct, in Answers order.
func (q Question) CorrectAnswerIDs() []AnswerID {
	ids := make([]AnswerID, 0, len(q.Answers))
	for _, a := range q.Answers {
		if a.IsCorrect {
			ids = append(ids, a.ID)
		}
	}
	return ids
}

// AnswerByID looks up one of the question's answers.
func (q Question) AnswerByID(id AnswerID) (Answer, bool) {
	for _, a := range q.Answers {
		if a.ID == id {
			return a, true
		}
	}
	return Answer{}, false
}
