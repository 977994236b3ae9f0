package postgres

import (
	"encoding/json"

	"github.com/interactive-quiz/session-engine/modules/interactive/domain/interactive"
	"github.com/interactive-quiz/session-engine/modules/interactive/domain/participant"
)

// answerPayload is the JSON shape persisted in user_answers.payload,
// matching the tagged-union wire shape of spec.md §6.1's inbound frames
// plus the matched_answer_id TEXT enriches at ingest time.
type answerPayload struct {
	AnswerID        *string  `json:"answer_id,omitempty"`
	AnswerIDs       []string `json:"answer_ids,omitempty"`
	AnswerText      *string  `json:"answer_text,omitempty"`
	MatchedAnswerID *string  `json:"matched_answer_id,omitempty"`
}

func encodeAnswerData(data participant.AnswerData) ([]byte, error) {
	var p answerPayload
	switch data.Kind() {
	case interactive.TypeSingle:
		id := data.SingleAnswerID().String()
		p.AnswerID = &id
	case interactive.TypeMulti:
		for _, id := range data.MultiAnswerIDs() {
			p.AnswerIDs = append(p.AnswerIDs, id.String())
		}
	case interactive.TypeText:
		text := data.Text()
		p.AnswerText = &text
		if data.MatchedAnswerID() != nil {
			matched := data.MatchedAnswerID().String()
			p.MatchedAnswerID = &matched
		}
	}
	return json.Marshal(p)
}
