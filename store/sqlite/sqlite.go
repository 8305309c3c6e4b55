/*
Package sqlite provides a SQLite-backed forum.Store.

PURPOSE:
  Production persistence for users, questions, and answers. Embedded
  aggregates (voter sets, badge awards, tags) are stored as JSON columns
  so each entity stays a single row and every load/save is one atomic
  document operation, matching the persistence contract the services
  rely on.

KEY TABLES:
  users:     Totals, counters, badge awards (JSON)
  questions: Content, vote record (JSON voters + cached counters),
             acceptance state
  answers:   Content, vote record, accepted flag

TRANSACTIONS:
  WithTx wraps a database transaction; the vote/accept/delete services
  use it to commit target state and user totals together. Combined with
  the per-target advisory lock this closes the read-modify-write race
  on vote counters.

WAL MODE:
  Opened with WAL so concurrent readers don't block the single writer.

SEE ALSO:
  - store/memory: In-memory implementation with the same semantics
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/signalpost/reputation-engine/forum"
	"github.com/signalpost/reputation-engine/gamify"
)

// Store implements forum.Store on SQLite.
type Store struct {
	db *sql.DB
	mu sync.Mutex // serializes writers; SQLite allows one at a time
}

var _ forum.Store = (*Store)(nil)

// New opens (or creates) the database at path and migrates the schema.
// Use ":memory:" for an in-memory database.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id              TEXT PRIMARY KEY,
		handle          TEXT NOT NULL UNIQUE,
		points          INTEGER NOT NULL DEFAULT 0,
		reputation      INTEGER NOT NULL DEFAULT 0,
		questions_asked INTEGER NOT NULL DEFAULT 0,
		answers_given   INTEGER NOT NULL DEFAULT 0,
		badges          TEXT NOT NULL DEFAULT '[]',
		created_at      TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS questions (
		id              TEXT PRIMARY KEY,
		author          TEXT NOT NULL,
		title           TEXT NOT NULL,
		body            TEXT NOT NULL,
		tags            TEXT NOT NULL DEFAULT '[]',
		upvotes         INTEGER NOT NULL DEFAULT 0,
		downvotes       INTEGER NOT NULL DEFAULT 0,
		voters          TEXT NOT NULL DEFAULT '[]',
		accepted_answer TEXT NOT NULL DEFAULT '',
		solved          INTEGER NOT NULL DEFAULT 0,
		created_at      TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_questions_author ON questions(author);

	CREATE TABLE IF NOT EXISTS answers (
		id          TEXT PRIMARY KEY,
		question_id TEXT NOT NULL,
		author      TEXT NOT NULL,
		body        TEXT NOT NULL,
		upvotes     INTEGER NOT NULL DEFAULT 0,
		downvotes   INTEGER NOT NULL DEFAULT 0,
		voters      TEXT NOT NULL DEFAULT '[]',
		accepted    INTEGER NOT NULL DEFAULT 0,
		created_at  TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_answers_question ON answers(question_id);
	CREATE INDEX IF NOT EXISTS idx_answers_author ON answers(author);
	`
	_, err := s.db.Exec(schema)
	return err
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func ioErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", gamify.ErrIO, op, err)
}

// =============================================================================
// USERS
// =============================================================================

const userCols = "id, handle, points, reputation, questions_asked, answers_given, badges, created_at"

func (s *Store) GetUser(ctx context.Context, id gamify.UserID) (*gamify.User, error) {
	return getUser(ctx, s.db, id)
}

func getUser(ctx context.Context, q querier, id gamify.UserID) (*gamify.User, error) {
	row := q.QueryRowContext(ctx, "SELECT "+userCols+" FROM users WHERE id = ?", string(id))
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &gamify.NotFoundError{Kind: "user", ID: string(id)}
	}
	if err != nil {
		return nil, ioErr("get user", err)
	}
	return u, nil
}

func (s *Store) UserByHandle(ctx context.Context, handle string) (*gamify.User, error) {
	return userByHandle(ctx, s.db, handle)
}

func userByHandle(ctx context.Context, q querier, handle string) (*gamify.User, error) {
	row := q.QueryRowContext(ctx, "SELECT "+userCols+" FROM users WHERE handle = ?", handle)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &gamify.NotFoundError{Kind: "user", ID: handle}
	}
	if err != nil {
		return nil, ioErr("get user by handle", err)
	}
	return u, nil
}

func (s *Store) SaveUser(ctx context.Context, u *gamify.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveUser(ctx, s.db, u)
}

func saveUser(ctx context.Context, q querier, u *gamify.User) error {
	badges, err := json.Marshal(u.Badges)
	if err != nil {
		return ioErr("encode badges", err)
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO users (`+userCols+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			handle = excluded.handle,
			points = excluded.points,
			reputation = excluded.reputation,
			questions_asked = excluded.questions_asked,
			answers_given = excluded.answers_given,
			badges = excluded.badges`,
		string(u.ID), u.Handle, u.Points, u.Reputation,
		u.QuestionsAsked, u.AnswersGiven, string(badges),
		u.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		// Concurrent registrations race past any pre-check; the UNIQUE
		// index on handle is authoritative, so surface the loser as a
		// client error rather than an IO failure.
		var serr sqlite3.Error
		if errors.As(err, &serr) && serr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return fmt.Errorf("%w: handle %q already taken", gamify.ErrInvalidArgument, u.Handle)
		}
		return ioErr("save user", err)
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]*gamify.User, error) {
	return listUsers(ctx, s.db)
}

func listUsers(ctx context.Context, q querier) ([]*gamify.User, error) {
	rows, err := q.QueryContext(ctx, "SELECT "+userCols+" FROM users ORDER BY id")
	if err != nil {
		return nil, ioErr("list users", err)
	}
	defer rows.Close()

	var out []*gamify.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, ioErr("scan user", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, ioErr("list users", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(r rowScanner) (*gamify.User, error) {
	var (
		u         gamify.User
		id        string
		badges    string
		createdAt string
	)
	if err := r.Scan(&id, &u.Handle, &u.Points, &u.Reputation,
		&u.QuestionsAsked, &u.AnswersGiven, &badges, &createdAt); err != nil {
		return nil, err
	}
	u.ID = gamify.UserID(id)
	if err := json.Unmarshal([]byte(badges), &u.Badges); err != nil {
		return nil, err
	}
	u.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return &u, nil
}

// =============================================================================
// QUESTIONS
// =============================================================================

const questionCols = "id, author, title, body, tags, upvotes, downvotes, voters, accepted_answer, solved, created_at"

func (s *Store) GetQuestion(ctx context.Context, id forum.QuestionID) (*forum.Question, error) {
	return getQuestion(ctx, s.db, id)
}

func getQuestion(ctx context.Context, q querier, id forum.QuestionID) (*forum.Question, error) {
	row := q.QueryRowContext(ctx, "SELECT "+questionCols+" FROM questions WHERE id = ?", string(id))
	question, err := scanQuestion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &gamify.NotFoundError{Kind: "question", ID: string(id)}
	}
	if err != nil {
		return nil, ioErr("get question", err)
	}
	return question, nil
}

func (s *Store) SaveQuestion(ctx context.Context, q *forum.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveQuestion(ctx, s.db, q)
}

func saveQuestion(ctx context.Context, db querier, q *forum.Question) error {
	tags, err := json.Marshal(q.Tags)
	if err != nil {
		return ioErr("encode tags", err)
	}
	voters, err := json.Marshal(q.Votes.Voters)
	if err != nil {
		return ioErr("encode voters", err)
	}
	solved := 0
	if q.Solved {
		solved = 1
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO questions (`+questionCols+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			body = excluded.body,
			tags = excluded.tags,
			upvotes = excluded.upvotes,
			downvotes = excluded.downvotes,
			voters = excluded.voters,
			accepted_answer = excluded.accepted_answer,
			solved = excluded.solved`,
		string(q.ID), string(q.Author), q.Title, q.Body, string(tags),
		q.Votes.Upvotes, q.Votes.Downvotes, string(voters),
		string(q.AcceptedAnswer), solved,
		q.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return ioErr("save question", err)
	}
	return nil
}

func (s *Store) DeleteQuestion(ctx context.Context, id forum.QuestionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteQuestion(ctx, s.db, id)
}

func deleteQuestion(ctx context.Context, q querier, id forum.QuestionID) error {
	res, err := q.ExecContext(ctx, "DELETE FROM questions WHERE id = ?", string(id))
	if err != nil {
		return ioErr("delete question", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &gamify.NotFoundError{Kind: "question", ID: string(id)}
	}
	return nil
}

func (s *Store) ListQuestions(ctx context.Context) ([]*forum.Question, error) {
	return queryQuestions(ctx, s.db, "SELECT "+questionCols+" FROM questions ORDER BY created_at, id")
}

func (s *Store) QuestionsByAuthor(ctx context.Context, author gamify.UserID) ([]*forum.Question, error) {
	return queryQuestions(ctx, s.db,
		"SELECT "+questionCols+" FROM questions WHERE author = ? ORDER BY created_at, id", string(author))
}

func queryQuestions(ctx context.Context, q querier, query string, args ...any) ([]*forum.Question, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, ioErr("query questions", err)
	}
	defer rows.Close()

	var out []*forum.Question
	for rows.Next() {
		question, err := scanQuestion(rows)
		if err != nil {
			return nil, ioErr("scan question", err)
		}
		out = append(out, question)
	}
	if err := rows.Err(); err != nil {
		return nil, ioErr("query questions", err)
	}
	return out, nil
}

func scanQuestion(r rowScanner) (*forum.Question, error) {
	var (
		q              forum.Question
		id, author     string
		tags, voters   string
		acceptedAnswer string
		solved         int
		createdAt      string
	)
	if err := r.Scan(&id, &author, &q.Title, &q.Body, &tags,
		&q.Votes.Upvotes, &q.Votes.Downvotes, &voters,
		&acceptedAnswer, &solved, &createdAt); err != nil {
		return nil, err
	}
	q.ID = forum.QuestionID(id)
	q.Author = gamify.UserID(author)
	if err := json.Unmarshal([]byte(tags), &q.Tags); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(voters), &q.Votes.Voters); err != nil {
		return nil, err
	}
	q.AcceptedAnswer = forum.AnswerID(acceptedAnswer)
	q.Solved = solved != 0
	q.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return &q, nil
}

// =============================================================================
// ANSWERS
// =============================================================================

const answerCols = "id, question_id, author, body, upvotes, downvotes, voters, accepted, created_at"

func (s *Store) GetAnswer(ctx context.Context, id forum.AnswerID) (*forum.Answer, error) {
	return getAnswer(ctx, s.db, id)
}

func getAnswer(ctx context.Context, q querier, id forum.AnswerID) (*forum.Answer, error) {
	row := q.QueryRowContext(ctx, "SELECT "+answerCols+" FROM answers WHERE id = ?", string(id))
	a, err := scanAnswer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &gamify.NotFoundError{Kind: "answer", ID: string(id)}
	}
	if err != nil {
		return nil, ioErr("get answer", err)
	}
	return a, nil
}

func (s *Store) SaveAnswer(ctx context.Context, a *forum.Answer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveAnswer(ctx, s.db, a)
}

func saveAnswer(ctx context.Context, q querier, a *forum.Answer) error {
	voters, err := json.Marshal(a.Votes.Voters)
	if err != nil {
		return ioErr("encode voters", err)
	}
	accepted := 0
	if a.Accepted {
		accepted = 1
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO answers (`+answerCols+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			body = excluded.body,
			upvotes = excluded.upvotes,
			downvotes = excluded.downvotes,
			voters = excluded.voters,
			accepted = excluded.accepted`,
		string(a.ID), string(a.QuestionID), string(a.Author), a.Body,
		a.Votes.Upvotes, a.Votes.Downvotes, string(voters), accepted,
		a.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return ioErr("save answer", err)
	}
	return nil
}

func (s *Store) DeleteAnswer(ctx context.Context, id forum.AnswerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteAnswer(ctx, s.db, id)
}

func deleteAnswer(ctx context.Context, q querier, id forum.AnswerID) error {
	res, err := q.ExecContext(ctx, "DELETE FROM answers WHERE id = ?", string(id))
	if err != nil {
		return ioErr("delete answer", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &gamify.NotFoundError{Kind: "answer", ID: string(id)}
	}
	return nil
}

func (s *Store) AnswersByQuestion(ctx context.Context, qid forum.QuestionID) ([]*forum.Answer, error) {
	return queryAnswers(ctx, s.db,
		"SELECT "+answerCols+" FROM answers WHERE question_id = ? ORDER BY created_at, id", string(qid))
}

func (s *Store) AnswersByAuthor(ctx context.Context, author gamify.UserID) ([]*forum.Answer, error) {
	return queryAnswers(ctx, s.db,
		"SELECT "+answerCols+" FROM answers WHERE author = ? ORDER BY created_at, id", string(author))
}

func queryAnswers(ctx context.Context, q querier, query string, args ...any) ([]*forum.Answer, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, ioErr("query answers", err)
	}
	defer rows.Close()

	var out []*forum.Answer
	for rows.Next() {
		a, err := scanAnswer(rows)
		if err != nil {
			return nil, ioErr("scan answer", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, ioErr("query answers", err)
	}
	return out, nil
}

func scanAnswer(r rowScanner) (*forum.Answer, error) {
	var (
		a         forum.Answer
		id, qid   string
		author    string
		voters    string
		accepted  int
		createdAt string
	)
	if err := r.Scan(&id, &qid, &author, &a.Body,
		&a.Votes.Upvotes, &a.Votes.Downvotes, &voters, &accepted, &createdAt); err != nil {
		return nil, err
	}
	a.ID = forum.AnswerID(id)
	a.QuestionID = forum.QuestionID(qid)
	a.Author = gamify.UserID(author)
	if err := json.Unmarshal([]byte(voters), &a.Votes.Voters); err != nil {
		return nil, err
	}
	a.Accepted = accepted != 0
	a.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return &a, nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn inside a database transaction. If fn returns an
// error the transaction is rolled back and the error returned.
func (s *Store) WithTx(ctx context.Context, fn func(forum.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ioErr("begin transaction", err)
	}

	if err := fn(&txStore{tx: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return ioErr("commit transaction", err)
	}
	return nil
}

// txStore runs all operations on a single *sql.Tx.
type txStore struct {
	tx *sql.Tx
}

var _ forum.Store = (*txStore)(nil)

func (t *txStore) GetUser(ctx context.Context, id gamify.UserID) (*gamify.User, error) {
	return getUser(ctx, t.tx, id)
}

func (t *txStore) SaveUser(ctx context.Context, u *gamify.User) error {
	return saveUser(ctx, t.tx, u)
}

func (t *txStore) ListUsers(ctx context.Context) ([]*gamify.User, error) {
	return listUsers(ctx, t.tx)
}

func (t *txStore) UserByHandle(ctx context.Context, handle string) (*gamify.User, error) {
	return userByHandle(ctx, t.tx, handle)
}

func (t *txStore) GetQuestion(ctx context.Context, id forum.QuestionID) (*forum.Question, error) {
	return getQuestion(ctx, t.tx, id)
}

func (t *txStore) SaveQuestion(ctx context.Context, q *forum.Question) error {
	return saveQuestion(ctx, t.tx, q)
}

func (t *txStore) DeleteQuestion(ctx context.Context, id forum.QuestionID) error {
	return deleteQuestion(ctx, t.tx, id)
}

func (t *txStore) ListQuestions(ctx context.Context) ([]*forum.Question, error) {
	return queryQuestions(ctx, t.tx, "SELECT "+questionCols+" FROM questions ORDER BY created_at, id")
}

func (t *txStore) QuestionsByAuthor(ctx context.Context, author gamify.UserID) ([]*forum.Question, error) {
	return queryQuestions(ctx, t.tx,
		"SELECT "+questionCols+" FROM questions WHERE author = ? ORDER BY created_at, id", string(author))
}

func (t *txStore) GetAnswer(ctx context.Context, id forum.AnswerID) (*forum.Answer, error) {
	return getAnswer(ctx, t.tx, id)
}

func (t *txStore) SaveAnswer(ctx context.Context, a *forum.Answer) error {
	return saveAnswer(ctx, t.tx, a)
}

func (t *txStore) DeleteAnswer(ctx context.Context, id forum.AnswerID) error {
	return deleteAnswer(ctx, t.tx, id)
}

func (t *txStore) AnswersByQuestion(ctx context.Context, qid forum.QuestionID) ([]*forum.Answer, error) {
	return queryAnswers(ctx, t.tx,
		"SELECT "+answerCols+" FROM answers WHERE question_id = ? ORDER BY created_at, id", string(qid))
}

func (t *txStore) AnswersByAuthor(ctx context.Context, author gamify.UserID) ([]*forum.Answer, error) {
	return queryAnswers(ctx, t.tx,
		"SELECT "+answerCols+" FROM answers WHERE author = ? ORDER BY created_at, id", string(author))
}

// Nested transactions reuse the already-open one.
func (t *txStore) WithTx(ctx context.Context, fn func(forum.Store) error) error {
	return fn(t)
}
