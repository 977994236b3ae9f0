package interactive

import "github.com/google/uuid"

// AnswerID identifies an Answer within a Question.
type AnswerID uuid.UUID

func (id AnswerID) String() string {
	return uuid.UUID(id).String()
}

// Answer is one offered choice for a Question. Correctness is only ever
// read by the engine's own scoring code (ingest, broadcast); it must
// never be serialized to a PARTICIPANT during QUESTION (spec.md §8
// invariant 5).
type Answer struct {
	ID        AnswerID
	QuestionID QuestionID
	Text      string
	IsCorrect bool
}

// Choice is the client-facing projection of an Answer with correctness
// stripped, used for SINGLE/MULTI question payloads during QUESTION.
type Choice struct {
	ID   AnswerID `json:"id"`
	Text string   `json:"text"`
}

func NewChoice(a Answer) Choice {
	return Choice{ID: a.ID, Text: a.Text}
}
