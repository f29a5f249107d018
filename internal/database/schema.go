package database

import (
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

var schema = []struct {
	name string
	ddl  string
}{
	{"users", `
		CREATE TABLE IF NOT EXISTS users (
			id {{serial}},
			telegram_id BIGINT UNIQUE NOT NULL,
			username TEXT NOT NULL DEFAULT '',
			first_name TEXT NOT NULL DEFAULT '',
			last_name TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL,
			last_active TIMESTAMP NOT NULL
		)`},
	{"grades", `
		CREATE TABLE IF NOT EXISTS grades (
			id {{serial}},
			name TEXT UNIQUE NOT NULL
		)`},
	{"chapters", `
		CREATE TABLE IF NOT EXISTS chapters (
			id {{serial}},
			grade_id BIGINT NOT NULL REFERENCES grades(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			UNIQUE (grade_id, name)
		)`},
	{"lessons", `
		CREATE TABLE IF NOT EXISTS lessons (
			id {{serial}},
			chapter_id BIGINT NOT NULL REFERENCES chapters(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			UNIQUE (chapter_id, name)
		)`},
	{"questions", `
		CREATE TABLE IF NOT EXISTS questions (
			id {{serial}},
			lesson_id BIGINT REFERENCES lessons(id) ON DELETE SET NULL,
			question_text TEXT NOT NULL,
			options TEXT NOT NULL,
			correct_index INTEGER NOT NULL,
			explanation TEXT NOT NULL DEFAULT '',
			image_url TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL
		)`},
	{"quiz_sessions", `
		CREATE TABLE IF NOT EXISTS quiz_sessions (
			id {{serial}},
			quiz_uid TEXT NOT NULL,
			user_id BIGINT NOT NULL,
			quiz_type TEXT NOT NULL,
			scope_id BIGINT NOT NULL DEFAULT 0,
			title TEXT NOT NULL DEFAULT '',
			duration_minutes INTEGER NOT NULL DEFAULT 0,
			total_questions INTEGER NOT NULL DEFAULT 0,
			correct_count INTEGER NOT NULL DEFAULT 0,
			percentage DOUBLE PRECISION NOT NULL DEFAULT 0,
			time_taken_seconds INTEGER NOT NULL DEFAULT 0,
			start_time TIMESTAMP NOT NULL,
			end_time TIMESTAMP,
			abandoned BOOLEAN NOT NULL DEFAULT FALSE
		)`},
	{"quiz_answers", `
		CREATE TABLE IF NOT EXISTS quiz_answers (
			id {{serial}},
			session_id BIGINT NOT NULL REFERENCES quiz_sessions(id) ON DELETE CASCADE,
			user_id BIGINT NOT NULL,
			question_id BIGINT NOT NULL,
			selected_option INTEGER,
			is_correct BOOLEAN NOT NULL DEFAULT FALSE,
			status TEXT NOT NULL,
			answered_at TIMESTAMP NOT NULL,
			UNIQUE (session_id, question_id)
		)`},
	{"blocked_users", `
		CREATE TABLE IF NOT EXISTS blocked_users (
			id {{serial}},
			user_id BIGINT UNIQUE NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			blocked_by BIGINT NOT NULL,
			blocked_at TIMESTAMP NOT NULL
		)`},
	{"idx_quiz_sessions_user", `CREATE INDEX IF NOT EXISTS idx_quiz_sessions_user ON quiz_sessions(user_id, start_time)`},
	{"idx_quiz_answers_user", `CREATE INDEX IF NOT EXISTS idx_quiz_answers_user ON quiz_answers(user_id, question_id)`},
	{"idx_questions_lesson", `CREATE INDEX IF NOT EXISTS idx_questions_lesson ON questions(lesson_id)`},
}

// InitializeSchema creates the tables if they don't exist
func InitializeSchema(db *sqlx.DB) error {
	serial := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if isPostgres(db) {
		serial = "BIGSERIAL PRIMARY KEY"
	}
	for _, stmt := range schema {
		if _, err := db.Exec(strings.ReplaceAll(stmt.ddl, "{{serial}}", serial)); err != nil {
			return fmt.Errorf("failed to create %s: %w", stmt.name, err)
		}
	}
	return nil
}
