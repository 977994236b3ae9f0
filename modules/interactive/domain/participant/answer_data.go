package participant

import (
	"strings"

	"github.com/interactive-quiz/session-engine/modules/interactive/domain/interactive"
	"github.com/interactive-quiz/session-engine/pkg/apperr"
)

// AnswerData is the tagged union spec.md §9 calls for: a sum type over
// the three submission shapes, validated at construction so nothing
// downstream has to re-check which variant it received.
//
//	{SINGLE: answer_id} | {MULTI: []answer_ids} | {TEXT: raw_text, matched_answer_id?}
type AnswerData struct {
	kind            interactive.Type
	singleAnswerID  interactive.AnswerID
	multiAnswerIDs  []interactive.AnswerID
	text            string
	matchedAnswerID *interactive.AnswerID
}

func (a AnswerData) Kind() interactive.Type { return a.kind }

// SingleAnswerID is valid only when Kind() == TypeSingle.
func (a AnswerData) SingleAnswerID() interactive.AnswerID { return a.singleAnswerID }

// MultiAnswerIDs is valid only when Kind() == TypeMulti.
func (a AnswerData) MultiAnswerIDs() []interactive.AnswerID { return a.multiAnswerIDs }

// Text is valid only when Kind() == TypeText; it holds the raw
// (un-normalized) submission.
func (a AnswerData) Text() string { return a.text }

// MatchedAnswerID is valid only when Kind() == TypeText; nil if no
// accepted variant matched.
func (a AnswerData) MatchedAnswerID() *interactive.AnswerID { return a.matchedAnswerID }

// NewSingleAnswer validates a SINGLE submission against the active
// question's answers (spec.md §4.4): rejected if answerID is not one of
// the question's listed answers.
func NewSingleAnswer(q interactive.Question, answerID interactive.AnswerID) (AnswerData, error) {
	const op apperr.Op = "participant.NewSingleAnswer"
	if q.Type != interactive.TypeSingle {
		return AnswerData{}, apperr.E(op, apperr.KindValidation, "question is not SINGLE")
	}
	if _, ok := q.AnswerByID(answerID); !ok {
		return AnswerData{}, apperr.E(op, apperr.KindValidation, "answer_id not among question answers")
	}
	return AnswerData{kind: interactive.TypeSingle, singleAnswerID: answerID}, nil
}

// NewMultiAnswer validates a MULTI submission: rejected if the set is
// empty or any element is not a listed answer.
func NewMultiAnswer(q interactive.Question, answerIDs []interactive.AnswerID) (AnswerData, error) {
	const op apperr.Op = "participant.NewMultiAnswer"
	if q.Type != interactive.TypeMulti {
		return AnswerData{}, apperr.E(op, apperr.KindValidation, "question is not MULTI")
	}
	if len(answerIDs) == 0 {
		return AnswerData{}, apperr.E(op, apperr.KindValidation, "answer_ids must not be empty")
	}
	seen := make(map[interactive.AnswerID]bool, len(answerIDs))
	for _, id := range answerIDs {
		if _, ok := q.AnswerByID(id); !ok {
			return AnswerData{}, apperr.E(op, apperr.KindValidation, "answer_ids contains an unknown answer")
		}
		seen[id] = true
	}
	deduped := make([]interactive.AnswerID, 0, len(seen))
	for id := range seen {
		deduped = append(deduped, id)
	}
	return AnswerData{kind: interactive.TypeMulti, multiAnswerIDs: deduped}, nil
}

// NewTextAnswer normalizes and matches a TEXT submission against the
// question's accepted variants (spec.md §4.4 and §8 invariant 11):
// normalize = casefold+trim; matched_answer_id = first answer whose
// normalized text equals the normalized submission, else nil.
func NewTextAnswer(q interactive.Question, raw string) (AnswerData, error) {
	const op apperr.Op = "participant.NewTextAnswer"
	if q.Type != interactive.TypeText {
		return AnswerData{}, apperr.E(op, apperr.KindValidation, "question is not TEXT")
	}
	normalized := normalizeText(raw)
	var matched *interactive.AnswerID
	for _, a := range q.Answers {
		if normalizeText(a.Text) == normalized {
			id := a.ID
			matched = &id
			break
		}
	}
	return AnswerData{kind: interactive.TypeText, text: raw, matchedAnswerID: matched}, nil
}

func normalizeText(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// IsCorrect implements spec.md §4.4's correctness rules per variant.
func (a AnswerData) IsCorrect(q interactive.Question) bool {
	switch a.kind {
	case interactive.TypeSingle:
		correct := q.CorrectAnswerIDs()
		return len(correct) == 1 && correct[0] == a.singleAnswerID
	case interactive.TypeMulti:
		correct := q.CorrectAnswerIDs()
		if len(correct) != len(a.multiAnswerIDs) {
			return false
		}
		correctSet := make(map[interactive.AnswerID]bool, len(correct))
		for _, id := range correct {
			correctSet[id] = true
		}
		for _, id := range a.multiAnswerIDs {
			if !correctSet[id] {
				return false
			}
		}
		return true
	case interactive.TypeText:
		return a.matchedAnswerID != nil
	default:
		return false
	}
}
