// Package postgres implements the C1 Storage Repository against
// PostgreSQL via a pool-holding struct, hand-written SQL, and pgx row
// scanning. Grounded on modules/bichat/infrastructure/persistence/learning_repository.go's
// "constructor takes *pgxpool.Pool, op-scoped apperr on every failure"
// shape.
package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/interactive-quiz/session-engine/modules/interactive/domain/interactive"
	"github.com/interactive-quiz/session-engine/modules/interactive/domain/participant"
	"github.com/interactive-quiz/session-engine/modules/interactive/infrastructure/persistence"
	"github.com/interactive-quiz/session-engine/pkg/apperr"
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) persistence.Repository {
	return &Repository{pool: pool}
}

func (r *Repository) LoadInteractiveMeta(ctx context.Context, id interactive.ID) (persistence.InteractiveMeta, error) {
	const op apperr.Op = "postgres.Repository.LoadInteractiveMeta"

	const query = `
		SELECT id, code, title, description, countdown_seconds, answer_seconds,
		       discussion_seconds, conducted, created_by_user_id,
		       COALESCE(created_by_display_name, '')
		FROM interactives WHERE id = $1
	`
	var m persistence.InteractiveMeta
	var rawID uuid.UUID
	err := r.pool.QueryRow(ctx, query, uuid.UUID(id)).Scan(
		&rawID, &m.Code, &m.Title, &m.Description,
		&m.CountdownSeconds, &m.AnswerSeconds, &m.DiscussionSeconds,
		&m.Conducted, &m.CreatedByUserID, &m.CreatedByDisplayName,
	)
	if err == pgx.ErrNoRows {
		return persistence.InteractiveMeta{}, apperr.E(op, apperr.KindNotFound, "interactive not found")
	}
	if err != nil {
		return persistence.InteractiveMeta{}, apperr.E(op, apperr.KindTransientStorage, err)
	}
	m.ID = interactive.ID(rawID)
	return m, nil
}

func (r *Repository) LoadQuestions(ctx context.Context, id interactive.ID) ([]interactive.Question, error) {
	const op apperr.Op = "postgres.Repository.LoadQuestions"

	const query = `
		SELECT id, position, text, score, type, COALESCE(image_url, '')
		FROM questions WHERE interactive_id = $1 ORDER BY position ASC
	`
	rows, err := r.pool.Query(ctx, query, uuid.UUID(id))
	if err != nil {
		return nil, apperr.E(op, apperr.KindTransientStorage, err)
	}
	defer rows.Close()

	var questions []interactive.Question
	for rows.Next() {
		var qID uuid.UUID
		var position, score int
		var text, qType, imageURL string
		if err := rows.Scan(&qID, &position, &text, &score, &qType, &imageURL); err != nil {
			return nil, apperr.E(op, apperr.KindTransientStorage, err)
		}
		answers, err := r.LoadAnswers(ctx, interactive.QuestionID(qID))
		if err != nil {
			return nil, err
		}
		q, err := interactive.NewQuestion(interactive.QuestionID(qID), position, text, score, interactive.Type(qType), imageURL, answers)
		if err != nil {
			return nil, apperr.E(op, apperr.KindFatalInvariant, err)
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.E(op, apperr.KindTransientStorage, err)
	}
	return questions, nil
}

func (r *Repository) LoadAnswers(ctx context.Context, questionID interactive.QuestionID) ([]interactive.Answer, error) {
	const op apperr.Op = "postgres.Repository.LoadAnswers"

	const query = `SELECT id, text, is_correct FROM answers WHERE question_id = $1 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, uuid.UUID(questionID))
	if err != nil {
		return nil, apperr.E(op, apperr.KindTransientStorage, err)
	}
	defer rows.Close()

	var answers []interactive.Answer
	for rows.Next() {
		var aID uuid.UUID
		var text string
		var isCorrect bool
		if err := rows.Scan(&aID, &text, &isCorrect); err != nil {
			return nil, apperr.E(op, apperr.KindTransientStorage, err)
		}
		answers = append(answers, interactive.Answer{
			ID: interactive.AnswerID(aID), QuestionID: questionID, Text: text, IsCorrect: isCorrect,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.E(op, apperr.KindTransientStorage, err)
	}
	return answers, nil
}

func (r *Repository) ExistsInteractive(ctx context.Context, id interactive.ID) (bool, error) {
	const op apperr.Op = "postgres.Repository.ExistsInteractive"
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM interactives WHERE id = $1)`, uuid.UUID(id)).Scan(&exists)
	if err != nil {
		return false, apperr.E(op, apperr.KindTransientStorage, err)
	}
	return exists, nil
}

func (r *Repository) IsConducted(ctx context.Context, id interactive.ID) (bool, error) {
	const op apperr.Op = "postgres.Repository.IsConducted"
	var conducted bool
	err := r.pool.QueryRow(ctx, `SELECT conducted FROM interactives WHERE id = $1`, uuid.UUID(id)).Scan(&conducted)
	if err == pgx.ErrNoRows {
		return false, apperr.E(op, apperr.KindNotFound, "interactive not found")
	}
	if err != nil {
		return false, apperr.E(op, apperr.KindTransientStorage, err)
	}
	return conducted, nil
}

func (r *Repository) InteractiveIDByCode(ctx context.Context, code string) (interactive.ID, bool, error) {
	const op apperr.Op = "postgres.Repository.InteractiveIDByCode"
	var id uuid.UUID
	err := r.pool.QueryRow(ctx, `SELECT id FROM interactives WHERE code = $1`, code).Scan(&id)
	if err == pgx.ErrNoRows {
		return interactive.ID{}, false, nil
	}
	if err != nil {
		return interactive.ID{}, false, apperr.E(op, apperr.KindTransientStorage, err)
	}
	return interactive.ID(id), true, nil
}

func (r *Repository) UserIDByExternal(ctx context.Context, telegramID string) (uuid.UUID, bool, error) {
	const op apperr.Op = "postgres.Repository.UserIDByExternal"
	var id uuid.UUID
	err := r.pool.QueryRow(ctx, `SELECT id FROM users WHERE telegram_id = $1`, telegramID).Scan(&id)
	if err == pgx.ErrNoRows {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, apperr.E(op, apperr.KindTransientStorage, err)
	}
	return id, true, nil
}

func (r *Repository) IsCreator(ctx context.Context, interactiveID interactive.ID, userID uuid.UUID) (bool, error) {
	const op apperr.Op = "postgres.Repository.IsCreator"
	var isCreator bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM interactives WHERE id = $1 AND created_by_user_id = $2)
	`, uuid.UUID(interactiveID), userID).Scan(&isCreator)
	if err != nil {
		return false, apperr.E(op, apperr.KindTransientStorage, err)
	}
	return isCreator, nil
}

func (r *Repository) RegisterParticipant(ctx context.Context, interactiveID interactive.ID, userID uuid.UUID, username string) (participant.ID, error) {
	const op apperr.Op = "postgres.Repository.RegisterParticipant"

	var id uuid.UUID
	err := r.pool.QueryRow(ctx, `
		INSERT INTO participants (id, interactive_id, user_id, username, joined_at)
		VALUES (gen_random_uuid(), $1, $2, $3, now())
		ON CONFLICT (interactive_id, user_id) DO UPDATE SET username = participants.username
		RETURNING id
	`, uuid.UUID(interactiveID), userID, username).Scan(&id)
	if err != nil {
		return participant.ID{}, apperr.E(op, apperr.KindTransientStorage, err)
	}
	return participant.ID(id), nil
}

func (r *Repository) IsParticipantRegistered(ctx context.Context, interactiveID interactive.ID, userID uuid.UUID) (bool, error) {
	const op apperr.Op = "postgres.Repository.IsParticipantRegistered"
	var registered bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM participants WHERE interactive_id = $1 AND user_id = $2)
	`, uuid.UUID(interactiveID), userID).Scan(&registered)
	if err != nil {
		return false, apperr.E(op, apperr.KindTransientStorage, err)
	}
	return registered, nil
}

func (r *Repository) DropParticipant(ctx context.Context, interactiveID interactive.ID, userID uuid.UUID) error {
	const op apperr.Op = "postgres.Repository.DropParticipant"

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return apperr.E(op, apperr.KindTransientStorage, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		DELETE FROM user_answers WHERE participant_id = (
			SELECT id FROM participants WHERE interactive_id = $1 AND user_id = $2
		)
	`, uuid.UUID(interactiveID), userID); err != nil {
		return apperr.E(op, apperr.KindTransientStorage, err)
	}
	if _, err := tx.Exec(ctx, `
		DELETE FROM participants WHERE interactive_id = $1 AND user_id = $2
	`, uuid.UUID(interactiveID), userID); err != nil {
		return apperr.E(op, apperr.KindTransientStorage, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return apperr.E(op, apperr.KindTransientStorage, err)
	}
	return nil
}

func (r *Repository) AccumulateParticipantTime(ctx context.Context, participantID participant.ID, seconds int) error {
	const op apperr.Op = "postgres.Repository.AccumulateParticipantTime"
	if seconds <= 0 {
		return nil
	}
	_, err := r.pool.Exec(ctx, `
		UPDATE participants SET total_time = total_time + $1 WHERE id = $2
	`, seconds, uuid.UUID(participantID))
	if err != nil {
		return apperr.E(op, apperr.KindTransientStorage, err)
	}
	return nil
}

func (r *Repository) UpsertUserAnswer(ctx context.Context, answer participant.UserAnswer) error {
	const op apperr.Op = "postgres.Repository.UpsertUserAnswer"

	payload, err := encodeAnswerData(answer.Data)
	if err != nil {
		return apperr.E(op, apperr.KindInternal, err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO user_answers (participant_id, question_id, payload, is_correct, time_seconds, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (participant_id, question_id) DO UPDATE SET
			payload = EXCLUDED.payload,
			is_correct = EXCLUDED.is_correct,
			time_seconds = EXCLUDED.time_seconds,
			created_at = EXCLUDED.created_at
	`, uuid.UUID(answer.ParticipantID), uuid.UUID(answer.QuestionID), payload, answer.IsCorrect, answer.TimeSeconds, answer.CreatedAt)
	if err != nil {
		return apperr.E(op, apperr.KindTransientStorage, err)
	}
	return nil
}

func (r *Repository) SelectionPercentages(ctx context.Context, questionID interactive.QuestionID) ([]persistence.SelectionPercentage, error) {
	const op apperr.Op = "postgres.Repository.SelectionPercentages"

	const query = `
		SELECT a.id,
		       COALESCE(100.0 * COUNT(ua.id) FILTER (WHERE ua.payload->>'answer_id' = a.id::text
		             OR ua.payload->'answer_ids' ? a.id::text) / NULLIF(total.n, 0), 0.0)
		FROM answers a
		CROSS JOIN (SELECT COUNT(*) n FROM user_answers WHERE question_id = $1) total
		LEFT JOIN user_answers ua ON ua.question_id = $1
		WHERE a.question_id = $1
		GROUP BY a.id, total.n
	`
	rows, err := r.pool.Query(ctx, query, uuid.UUID(questionID))
	if err != nil {
		return nil, apperr.E(op, apperr.KindTransientStorage, err)
	}
	defer rows.Close()

	var out []persistence.SelectionPercentage
	for rows.Next() {
		var id uuid.UUID
		var pct float64
		if err := rows.Scan(&id, &pct); err != nil {
			return nil, apperr.E(op, apperr.KindTransientStorage, err)
		}
		out = append(out, persistence.SelectionPercentage{AnswerID: interactive.AnswerID(id), Percentage: pct})
	}
	return out, rows.Err()
}

func (r *Repository) TextMatchPercentages(ctx context.Context, questionID interactive.QuestionID) ([]persistence.TextMatchPercentage, error) {
	const op apperr.Op = "postgres.Repository.TextMatchPercentages"

	const query = `
		SELECT a.id, a.text,
		       COALESCE(100.0 * COUNT(ua.id) FILTER (WHERE ua.payload->>'matched_answer_id' = a.id::text)
		             / NULLIF(total.n, 0), 0.0)
		FROM answers a
		CROSS JOIN (SELECT COUNT(*) n FROM user_answers WHERE question_id = $1) total
		LEFT JOIN user_answers ua ON ua.question_id = $1
		WHERE a.question_id = $1
		GROUP BY a.id, a.text, total.n
	`
	rows, err := r.pool.Query(ctx, query, uuid.UUID(questionID))
	if err != nil {
		return nil, apperr.E(op, apperr.KindTransientStorage, err)
	}
	defer rows.Close()

	var out []persistence.TextMatchPercentage
	for rows.Next() {
		var id uuid.UUID
		var text string
		var pct float64
		if err := rows.Scan(&id, &text, &pct); err != nil {
			return nil, apperr.E(op, apperr.KindTransientStorage, err)
		}
		out = append(out, persistence.TextMatchPercentage{AnswerID: interactive.AnswerID(id), Text: text, Percentage: pct})
	}
	return out, rows.Err()
}

func (r *Repository) ParticipantTextMatches(ctx context.Context, questionID interactive.QuestionID) (map[participant.ID]*interactive.AnswerID, error) {
	const op apperr.Op = "postgres.Repository.ParticipantTextMatches"

	const query = `
		SELECT participant_id, payload->>'matched_answer_id'
		FROM user_answers WHERE question_id = $1
	`
	rows, err := r.pool.Query(ctx, query, uuid.UUID(questionID))
	if err != nil {
		return nil, apperr.E(op, apperr.KindTransientStorage, err)
	}
	defer rows.Close()

	out := make(map[participant.ID]*interactive.AnswerID)
	for rows.Next() {
		var pID uuid.UUID
		var matched *string
		if err := rows.Scan(&pID, &matched); err != nil {
			return nil, apperr.E(op, apperr.KindTransientStorage, err)
		}
		if matched == nil {
			out[participant.ID(pID)] = nil
			continue
		}
		aID, err := uuid.Parse(*matched)
		if err != nil {
			return nil, apperr.E(op, apperr.KindInternal, err)
		}
		answerID := interactive.AnswerID(aID)
		out[participant.ID(pID)] = &answerID
	}
	return out, rows.Err()
}

func (r *Repository) UserScore(ctx context.Context, userID uuid.UUID, interactiveID interactive.ID) (int, error) {
	const op apperr.Op = "postgres.Repository.UserScore"
	var score int
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(q.score), 0)
		FROM user_answers ua
		JOIN participants p ON p.id = ua.participant_id
		JOIN questions q ON q.id = ua.question_id
		WHERE p.user_id = $1 AND p.interactive_id = $2 AND ua.is_correct = true
	`, userID, uuid.UUID(interactiveID)).Scan(&score)
	if err != nil {
		return 0, apperr.E(op, apperr.KindTransientStorage, err)
	}
	return score, nil
}

func (r *Repository) Leaderboard(ctx context.Context, interactiveID interactive.ID) ([]persistence.LeaderboardEntry, error) {
	const op apperr.Op = "postgres.Repository.Leaderboard"

	const query = `
		SELECT p.user_id, p.username,
		       COALESCE(SUM(q.score) FILTER (WHERE ua.is_correct), 0) AS score,
		       p.total_time
		FROM participants p
		LEFT JOIN user_answers ua ON ua.participant_id = p.id
		LEFT JOIN questions q ON q.id = ua.question_id
		WHERE p.interactive_id = $1
		GROUP BY p.id, p.user_id, p.username, p.total_time
		ORDER BY score DESC, p.total_time ASC
	`
	rows, err := r.pool.Query(ctx, query, uuid.UUID(interactiveID))
	if err != nil {
		return nil, apperr.E(op, apperr.KindTransientStorage, err)
	}
	defer rows.Close()

	var out []persistence.LeaderboardEntry
	for rows.Next() {
		var e persistence.LeaderboardEntry
		if err := rows.Scan(&e.UserID, &e.Username, &e.Score, &e.TotalTime); err != nil {
			return nil, apperr.E(op, apperr.KindTransientStorage, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *Repository) ParticipantCount(ctx context.Context, interactiveID interactive.ID) (int, error) {
	const op apperr.Op = "postgres.Repository.ParticipantCount"
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM participants WHERE interactive_id = $1`, uuid.UUID(interactiveID)).Scan(&count)
	if err != nil {
		return 0, apperr.E(op, apperr.KindTransientStorage, err)
	}
	return count, nil
}

func (r *Repository) MarkConducted(ctx context.Context, interactiveID interactive.ID, completedAt time.Time) error {
	const op apperr.Op = "postgres.Repository.MarkConducted"
	_, err := r.pool.Exec(ctx, `
		UPDATE interactives SET conducted = true, date_completed = $1 WHERE id = $2
	`, completedAt, uuid.UUID(interactiveID))
	if err != nil {
		return apperr.E(op, apperr.KindTransientStorage, err)
	}
	return nil
}

func (r *Repository) RecordQuestionTime(ctx context.Context, interactiveID interactive.ID, questionID interactive.QuestionID, seconds int) error {
	const op apperr.Op = "postgres.Repository.RecordQuestionTime"
	_, err := r.pool.Exec(ctx, `
		INSERT INTO question_times (interactive_id, question_id, seconds)
		VALUES ($1, $2, $3)
		ON CONFLICT (interactive_id, question_id) DO UPDATE SET seconds = EXCLUDED.seconds
	`, uuid.UUID(interactiveID), uuid.UUID(questionID), seconds)
	if err != nil {
		return apperr.E(op, apperr.KindTransientStorage, err)
	}
	return nil
}
