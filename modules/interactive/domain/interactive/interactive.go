package interactive

import (
	"time"

	"github.com/google/uuid"
)

// ID identifies an Interactive.
type ID uuid.UUID

func (id ID) String() string {
	return uuid.UUID(id).String()
}

// Phase mirrors the subset of session.Phase an Interactive needs to know
// to answer IsJoinable without importing the session package (which in
// turn depends on this one for its Question/Answer snapshot).
type Phase string

const PhaseWaiting Phase = "WAITING"

// Option configures an Interactive at construction.
type Option func(*Interactive)

func WithDateCompleted(t time.Time) Option {
	return func(i *Interactive) { i.DateCompleted = &t }
}

func WithQuestions(qs []Question) Option {
	return func(i *Interactive) { i.Questions = qs }
}

// Interactive is the immutable-during-a-session quiz definition of
// spec.md §3.
type Interactive struct {
	ID                   ID
	Code                 string // short alphanumeric join code
	Title                string
	Description          string
	CountdownSeconds     int
	AnswerSeconds        int
	DiscussionSeconds    int
	Questions            []Question
	Conducted            bool
	DateCompleted        *time.Time
	CreatedByUserID      uuid.UUID
	CreatedByDisplayName string // opaque pass-through, see DESIGN.md Open Question #3
}

// New constructs an Interactive definition.
func New(id ID, code, title, description string, countdown, answer, discussion int, createdBy uuid.UUID, opts ...Option) Interactive {
	i := Interactive{
		ID:               id,
		Code:             code,
		Title:            title,
		Description:      description,
		CountdownSeconds: countdown,
		AnswerSeconds:    answer,
		DiscussionSeconds: discussion,
		CreatedByUserID:  createdBy,
	}
	for _, opt := range opts {
		opt(&i)
	}
	return i
}

// IsJoinable implements spec.md §3's joinability rule: conducted=false and
// either no Session exists yet or its Session is in WAITING. The caller
// passes the current phase of an already-running session, if any.
func (i Interactive) IsJoinable(runningPhase Phase, hasSession bool) bool {
	if i.Conducted {
		return false
	}
	if !hasSession {
		return true
	}
	return runningPhase == PhaseWaiting
}

// QuestionAt returns the question at the given zero-based index.
func (i Interactive) QuestionAt(index int) (Question, bool) {
	if index < 0 || index >= len(i.Questions) {
		return Question{}, false
	}
	return i.Questions[index], true
}
