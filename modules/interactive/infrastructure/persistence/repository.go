// Package persistence declares the Storage Repository contract (C1) of
// spec.md §6.2, transcribed directly into Go method signatures. It is
// grounded on the teacher's interface-first repository pattern
// (modules/core/domain/entities/session/session_repository.go): callers
// depend on this interface only, never on a concrete implementation.
package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/interactive-quiz/session-engine/modules/interactive/domain/interactive"
	"github.com/interactive-quiz/session-engine/modules/interactive/domain/participant"
)

// InteractiveMeta is the projection load_interactive_meta(id) returns.
type InteractiveMeta struct {
	ID                   interactive.ID
	Code                 string
	Title                string
	Description          string
	CountdownSeconds     int
	AnswerSeconds        int
	DiscussionSeconds    int
	Conducted            bool
	CreatedByUserID      uuid.UUID
	CreatedByDisplayName string
}

// SelectionPercentage is one row of selection_percentages(question_id).
type SelectionPercentage struct {
	AnswerID   interactive.AnswerID
	Percentage float64
}

// TextMatchPercentage is one row of text_match_percentages(question_id).
type TextMatchPercentage struct {
	AnswerID   interactive.AnswerID
	Text       string
	Percentage float64
}

// LeaderboardEntry is one row of leaderboard(interactive_id), already
// ordered score desc, total_time asc, per spec.md §4.5.
type LeaderboardEntry struct {
	UserID    uuid.UUID
	Username  string
	Score     int
	TotalTime int
}

// Repository is the full C1 contract of spec.md §6.2, plus the
// supplemented operations of SPEC_FULL.md §5 (join-by-code lookup,
// per-participant time accrual as the single write site for
// Participant.TotalTime per DESIGN.md's Open Question #2 decision).
type Repository interface {
	LoadInteractiveMeta(ctx context.Context, id interactive.ID) (InteractiveMeta, error)
	LoadQuestions(ctx context.Context, id interactive.ID) ([]interactive.Question, error)
	LoadAnswers(ctx context.Context, questionID interactive.QuestionID) ([]interactive.Answer, error)
	ExistsInteractive(ctx context.Context, id interactive.ID) (bool, error)
	IsConducted(ctx context.Context, id interactive.ID) (bool, error)
	InteractiveIDByCode(ctx context.Context, code string) (interactive.ID, bool, error)

	UserIDByExternal(ctx context.Context, telegramID string) (uuid.UUID, bool, error)
	IsCreator(ctx context.Context, interactiveID interactive.ID, userID uuid.UUID) (bool, error)

	RegisterParticipant(ctx context.Context, interactiveID interactive.ID, userID uuid.UUID, username string) (participant.ID, error)
	IsParticipantRegistered(ctx context.Context, interactiveID interactive.ID, userID uuid.UUID) (bool, error)
	DropParticipant(ctx context.Context, interactiveID interactive.ID, userID uuid.UUID) error
	AccumulateParticipantTime(ctx context.Context, participantID participant.ID, seconds int) error

	UpsertUserAnswer(ctx context.Context, answer participant.UserAnswer) error
	SelectionPercentages(ctx context.Context, questionID interactive.QuestionID) ([]SelectionPercentage, error)
	TextMatchPercentages(ctx context.Context, questionID interactive.QuestionID) ([]TextMatchPercentage, error)
	ParticipantTextMatches(ctx context.Context, questionID interactive.QuestionID) (map[participant.ID]*interactive.AnswerID, error)
	UserScore(ctx context.Context, userID uuid.UUID, interactiveID interactive.ID) (int, error)
	Leaderboard(ctx context.Context, interactiveID interactive.ID) ([]LeaderboardEntry, error)
	ParticipantCount(ctx context.Context, interactiveID interactive.ID) (int, error)

	MarkConducted(ctx context.Context, interactiveID interactive.ID, completedAt time.Time) error
	RecordQuestionTime(ctx context.Context, interactiveID interactive.ID, questionID interactive.QuestionID, seconds int) error
}
