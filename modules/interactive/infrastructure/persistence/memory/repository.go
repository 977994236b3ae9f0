// Package memory implements persistence.Repository entirely in process
// memory, for engine tests and local development seeding, swapping out
// the real PostgreSQL-backed implementation behind the same interface
// the way the teacher's testkit substitutes fakes for production
// services in integration tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/interactive-quiz/session-engine/modules/interactive/domain/interactive"
	"github.com/interactive-quiz/session-engine/modules/interactive/domain/participant"
	"github.com/interactive-quiz/session-engine/modules/interactive/infrastructure/persistence"
	"github.com/interactive-quiz/session-engine/pkg/apperr"
)

type interactiveRecord struct {
	meta      persistence.InteractiveMeta
	questions []interactive.Question
}

type participantRecord struct {
	rec participant.Participant
}

type Repository struct {
	mu sync.Mutex

	interactives map[interactive.ID]*interactiveRecord
	codeIndex    map[string]interactive.ID
	users        map[string]uuid.UUID // telegram id -> user id

	participants map[interactive.ID]map[uuid.UUID]*participantRecord
	answers      map[participant.ID]map[interactive.QuestionID]participant.UserAnswer
}

func New() *Repository {
	return &Repository{
		interactives: make(map[interactive.ID]*interactiveRecord),
		codeIndex:    make(map[string]interactive.ID),
		users:        make(map[string]uuid.UUID),
		participants: make(map[interactive.ID]map[uuid.UUID]*participantRecord),
		answers:      make(map[participant.ID]map[interactive.QuestionID]participant.UserAnswer),
	}
}

// Seed fixture format for local dev / tests, loaded with gopkg.in/yaml.v3
// as the teacher's fixture files do.
type SeedFixture struct {
	Interactives []struct {
		ID                string `yaml:"id"`
		Code              string `yaml:"code"`
		Title             string `yaml:"title"`
		Description       string `yaml:"description"`
		CountdownSeconds  int    `yaml:"countdown_seconds"`
		AnswerSeconds     int    `yaml:"answer_seconds"`
		DiscussionSeconds int    `yaml:"discussion_seconds"`
		CreatedByUserID   string `yaml:"created_by_user_id"`
		Questions         []struct {
			ID       string `yaml:"id"`
			Text     string `yaml:"text"`
			Score    int    `yaml:"score"`
			Type     string `yaml:"type"`
			ImageURL string `yaml:"image_url"`
			Answers  []struct {
				ID        string `yaml:"id"`
				Text      string `yaml:"text"`
				IsCorrect bool   `yaml:"is_correct"`
			} `yaml:"answers"`
		} `yaml:"questions"`
	} `yaml:"interactives"`
}

// LoadSeed parses and installs fixture data, for local-dev bootstrapping.
func (r *Repository) LoadSeed(raw []byte) error {
	const op apperr.Op = "memory.Repository.LoadSeed"
	var fixture SeedFixture
	if err := yaml.Unmarshal(raw, &fixture); err != nil {
		return apperr.E(op, apperr.KindInternal, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, fi := range fixture.Interactives {
		id := interactive.ID(uuid.MustParse(fi.ID))
		var questions []interactive.Question
		for _, fq := range fi.Questions {
			var answers []interactive.Answer
			for _, fa := range fq.Answers {
				answers = append(answers, interactive.Answer{
					ID: interactive.AnswerID(uuid.MustParse(fa.ID)), Text: fa.Text, IsCorrect: fa.IsCorrect,
				})
			}
			q, err := interactive.NewQuestion(interactive.QuestionID(uuid.MustParse(fq.ID)), len(questions)+1, fq.Text, fq.Score, interactive.Type(fq.Type), fq.ImageURL, answers)
			if err != nil {
				return apperr.E(op, apperr.KindInternal, err)
			}
			questions = append(questions, q)
		}
		r.interactives[id] = &interactiveRecord{
			meta: persistence.InteractiveMeta{
				ID: id, Code: fi.Code, Title: fi.Title, Description: fi.Description,
				CountdownSeconds: fi.CountdownSeconds, AnswerSeconds: fi.AnswerSeconds,
				DiscussionSeconds: fi.DiscussionSeconds, CreatedByUserID: uuid.MustParse(fi.CreatedByUserID),
			},
			questions: questions,
		}
		r.codeIndex[fi.Code] = id
	}
	return nil
}

func (r *Repository) LoadInteractiveMeta(_ context.Context, id interactive.ID) (persistence.InteractiveMeta, error) {
	const op apperr.Op = "memory.Repository.LoadInteractiveMeta"
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.interactives[id]
	if !ok {
		return persistence.InteractiveMeta{}, apperr.E(op, apperr.KindNotFound, "interactive not found")
	}
	return rec.meta, nil
}

func (r *Repository) LoadQuestions(_ context.Context, id interactive.ID) ([]interactive.Question, error) {
	const op apperr.Op = "memory.Repository.LoadQuestions"
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.interactives[id]
	if !ok {
		return nil, apperr.E(op, apperr.KindNotFound, "interactive not found")
	}
	return rec.questions, nil
}

func (r *Repository) LoadAnswers(_ context.Context, questionID interactive.QuestionID) ([]interactive.Answer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.interactives {
		for _, q := range rec.questions {
			if q.ID == questionID {
				return q.Answers, nil
			}
		}
	}
	return nil, apperr.E("memory.Repository.LoadAnswers", apperr.KindNotFound, "question not found")
}

func (r *Repository) ExistsInteractive(_ context.Context, id interactive.ID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.interactives[id]
	return ok, nil
}

func (r *Repository) IsConducted(_ context.Context, id interactive.ID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.interactives[id]
	if !ok {
		return false, apperr.E("memory.Repository.IsConducted", apperr.KindNotFound, "interactive not found")
	}
	return rec.meta.Conducted, nil
}

func (r *Repository) InteractiveIDByCode(_ context.Context, code string) (interactive.ID, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.codeIndex[code]
	return id, ok, nil
}

func (r *Repository) UserIDByExternal(_ context.Context, telegramID string) (uuid.UUID, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.users[telegramID]
	return id, ok, nil
}

func (r *Repository) IsCreator(_ context.Context, interactiveID interactive.ID, userID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.interactives[interactiveID]
	if !ok {
		return false, apperr.E("memory.Repository.IsCreator", apperr.KindNotFound, "interactive not found")
	}
	return rec.meta.CreatedByUserID == userID, nil
}

func (r *Repository) RegisterParticipant(_ context.Context, interactiveID interactive.ID, userID uuid.UUID, username string) (participant.ID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.participants[interactiveID] == nil {
		r.participants[interactiveID] = make(map[uuid.UUID]*participantRecord)
	}
	if existing, ok := r.participants[interactiveID][userID]; ok {
		return existing.rec.ID, nil
	}
	p := participant.New(participant.ID(uuid.New()), interactiveID, userID, username, time.Now())
	r.participants[interactiveID][userID] = &participantRecord{rec: p}
	return p.ID, nil
}

func (r *Repository) IsParticipantRegistered(_ context.Context, interactiveID interactive.ID, userID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.participants[interactiveID][userID]
	return ok, nil
}

func (r *Repository) DropParticipant(_ context.Context, interactiveID interactive.ID, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.participants[interactiveID][userID]
	if !ok {
		return nil
	}
	delete(r.answers, rec.rec.ID)
	delete(r.participants[interactiveID], userID)
	return nil
}

func (r *Repository) AccumulateParticipantTime(_ context.Context, participantID participant.ID, seconds int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, byUser := range r.participants {
		for _, rec := range byUser {
			if rec.rec.ID == participantID {
				rec.rec.AccumulateTime(seconds)
				return nil
			}
		}
	}
	return apperr.E("memory.Repository.AccumulateParticipantTime", apperr.KindNotFound, "participant not found")
}

func (r *Repository) UpsertUserAnswer(_ context.Context, answer participant.UserAnswer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.answers[answer.ParticipantID] == nil {
		r.answers[answer.ParticipantID] = make(map[interactive.QuestionID]participant.UserAnswer)
	}
	r.answers[answer.ParticipantID][answer.QuestionID] = answer
	return nil
}

func (r *Repository) SelectionPercentages(_ context.Context, questionID interactive.QuestionID) ([]persistence.SelectionPercentage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	q, ok := r.findQuestion(questionID)
	if !ok {
		return nil, nil
	}
	counts := make(map[interactive.AnswerID]int)
	total := 0
	for _, byQuestion := range r.answers {
		ua, ok := byQuestion[questionID]
		if !ok {
			continue
		}
		total++
		switch ua.Data.Kind() {
		case interactive.TypeSingle:
			counts[ua.Data.SingleAnswerID()]++
		case interactive.TypeMulti:
			for _, id := range ua.Data.MultiAnswerIDs() {
				counts[id]++
			}
		}
	}
	out := make([]persistence.SelectionPercentage, 0, len(q.Answers))
	for _, a := range q.Answers {
		pct := 0.0
		if total > 0 {
			pct = 100.0 * float64(counts[a.ID]) / float64(total)
		}
		out = append(out, persistence.SelectionPercentage{AnswerID: a.ID, Percentage: pct})
	}
	return out, nil
}

func (r *Repository) TextMatchPercentages(_ context.Context, questionID interactive.QuestionID) ([]persistence.TextMatchPercentage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	q, ok := r.findQuestion(questionID)
	if !ok {
		return nil, nil
	}
	counts := make(map[interactive.AnswerID]int)
	total := 0
	for _, byQuestion := range r.answers {
		ua, ok := byQuestion[questionID]
		if !ok || ua.Data.Kind() != interactive.TypeText {
			continue
		}
		total++
		if ua.Data.MatchedAnswerID() != nil {
			counts[*ua.Data.MatchedAnswerID()]++
		}
	}
	out := make([]persistence.TextMatchPercentage, 0, len(q.Answers))
	for _, a := range q.Answers {
		pct := 0.0
		if total > 0 {
			pct = 100.0 * float64(counts[a.ID]) / float64(total)
		}
		out = append(out, persistence.TextMatchPercentage{AnswerID: a.ID, Text: a.Text, Percentage: pct})
	}
	return out, nil
}

func (r *Repository) ParticipantTextMatches(_ context.Context, questionID interactive.QuestionID) (map[participant.ID]*interactive.AnswerID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[participant.ID]*interactive.AnswerID)
	for pID, byQuestion := range r.answers {
		ua, ok := byQuestion[questionID]
		if !ok || ua.Data.Kind() != interactive.TypeText {
			continue
		}
		out[pID] = ua.Data.MatchedAnswerID()
	}
	return out, nil
}

func (r *Repository) findQuestion(questionID interactive.QuestionID) (interactive.Question, bool) {
	for _, rec := range r.interactives {
		for _, q := range rec.questions {
			if q.ID == questionID {
				return q, true
			}
		}
	}
	return interactive.Question{}, false
}

func (r *Repository) UserScore(_ context.Context, userID uuid.UUID, interactiveID interactive.ID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.participants[interactiveID][userID]
	if !ok {
		return 0, nil
	}
	return r.scoreForParticipant(interactiveID, rec.rec.ID), nil
}

func (r *Repository) scoreForParticipant(interactiveID interactive.ID, participantID participant.ID) int {
	irec := r.interactives[interactiveID]
	if irec == nil {
		return 0
	}
	scoreByQuestion := make(map[interactive.QuestionID]int)
	for _, q := range irec.questions {
		scoreByQuestion[q.ID] = q.Score
	}
	score := 0
	for qID, ua := range r.answers[participantID] {
		if ua.IsCorrect {
			score += scoreByQuestion[qID]
		}
	}
	return score
}

func (r *Repository) Leaderboard(_ context.Context, interactiveID interactive.ID) ([]persistence.LeaderboardEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := make([]persistence.LeaderboardEntry, 0)
	for _, rec := range r.participants[interactiveID] {
		entries = append(entries, persistence.LeaderboardEntry{
			UserID:    rec.rec.UserID,
			Username:  rec.rec.Username,
			Score:     r.scoreForParticipant(interactiveID, rec.rec.ID),
			TotalTime: rec.rec.TotalTime,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].TotalTime < entries[j].TotalTime
	})
	return entries, nil
}

func (r *Repository) ParticipantCount(_ context.Context, interactiveID interactive.ID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.participants[interactiveID]), nil
}

func (r *Repository) MarkConducted(_ context.Context, interactiveID interactive.ID, completedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.interactives[interactiveID]
	if !ok {
		return apperr.E("memory.Repository.MarkConducted", apperr.KindNotFound, "interactive not found")
	}
	rec.meta.Conducted = true
	_ = completedAt
	return nil
}

func (r *Repository) RecordQuestionTime(_ context.Context, _ interactive.ID, _ interactive.QuestionID, _ int) error {
	// Aggregate question timing is not queried back by the memory fake;
	// accepted and dropped, mirroring the "best effort" storage policy
	// spec.md §7 assigns to this write.
	return nil
}
