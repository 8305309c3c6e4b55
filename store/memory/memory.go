// Package memory provides an in-memory forum.Store for tests and dev.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/signalpost/reputation-engine/forum"
	"github.com/signalpost/reputation-engine/gamify"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

// Store keeps all records in maps guarded by one RWMutex. Reads and
// writes copy records at the boundary so callers can only change stored
// state through Save*.
type Store struct {
	mu        sync.RWMutex
	users     map[gamify.UserID]*gamify.User
	questions map[forum.QuestionID]*forum.Question
	answers   map[forum.AnswerID]*forum.Answer
}

func New() *Store {
	return &Store{
		users:     make(map[gamify.UserID]*gamify.User),
		questions: make(map[forum.QuestionID]*forum.Question),
		answers:   make(map[forum.AnswerID]*forum.Answer),
	}
}

var _ forum.Store = (*Store)(nil)

// =============================================================================
// USERS
// =============================================================================

func (s *Store) GetUser(_ context.Context, id gamify.UserID) (*gamify.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getUserLocked(id)
}

func (s *Store) getUserLocked(id gamify.UserID) (*gamify.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, &gamify.NotFoundError{Kind: "user", ID: string(id)}
	}
	return cloneUser(u), nil
}

func (s *Store) SaveUser(_ context.Context, u *gamify.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveUserLocked(u)
}

// saveUserLocked enforces handle uniqueness, the same constraint the
// SQL implementation gets from its UNIQUE index.
func (s *Store) saveUserLocked(u *gamify.User) error {
	for _, other := range s.users {
		if other.Handle == u.Handle && other.ID != u.ID {
			return fmt.Errorf("%w: handle %q already taken", gamify.ErrInvalidArgument, u.Handle)
		}
	}
	s.users[u.ID] = cloneUser(u)
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]*gamify.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*gamify.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, cloneUser(u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) UserByHandle(_ context.Context, handle string) (*gamify.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Handle == handle {
			return cloneUser(u), nil
		}
	}
	return nil, &gamify.NotFoundError{Kind: "user", ID: handle}
}

// =============================================================================
// QUESTIONS
// =============================================================================

func (s *Store) GetQuestion(_ context.Context, id forum.QuestionID) (*forum.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q, ok := s.questions[id]
	if !ok {
		return nil, &gamify.NotFoundError{Kind: "question", ID: string(id)}
	}
	return cloneQuestion(q), nil
}

func (s *Store) SaveQuestion(_ context.Context, q *forum.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.questions[q.ID] = cloneQuestion(q)
	return nil
}

func (s *Store) DeleteQuestion(_ context.Context, id forum.QuestionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.questions[id]; !ok {
		return &gamify.NotFoundError{Kind: "question", ID: string(id)}
	}
	delete(s.questions, id)
	return nil
}

func (s *Store) ListQuestions(_ context.Context) ([]*forum.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*forum.Question, 0, len(s.questions))
	for _, q := range s.questions {
		out = append(out, cloneQuestion(q))
	}
	sortQuestions(out)
	return out, nil
}

func (s *Store) QuestionsByAuthor(_ context.Context, author gamify.UserID) ([]*forum.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*forum.Question
	for _, q := range s.questions {
		if q.Author == author {
			out = append(out, cloneQuestion(q))
		}
	}
	sortQuestions(out)
	return out, nil
}

// =============================================================================
// ANSWERS
// =============================================================================

func (s *Store) GetAnswer(_ context.Context, id forum.AnswerID) (*forum.Answer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.answers[id]
	if !ok {
		return nil, &gamify.NotFoundError{Kind: "answer", ID: string(id)}
	}
	return cloneAnswer(a), nil
}

func (s *Store) SaveAnswer(_ context.Context, a *forum.Answer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answers[a.ID] = cloneAnswer(a)
	return nil
}

func (s *Store) DeleteAnswer(_ context.Context, id forum.AnswerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.answers[id]; !ok {
		return &gamify.NotFoundError{Kind: "answer", ID: string(id)}
	}
	delete(s.answers, id)
	return nil
}

func (s *Store) AnswersByQuestion(_ context.Context, qid forum.QuestionID) ([]*forum.Answer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*forum.Answer
	for _, a := range s.answers {
		if a.QuestionID == qid {
			out = append(out, cloneAnswer(a))
		}
	}
	sortAnswers(out)
	return out, nil
}

func (s *Store) AnswersByAuthor(_ context.Context, author gamify.UserID) ([]*forum.Answer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*forum.Answer
	for _, a := range s.answers {
		if a.Author == author {
			out = append(out, cloneAnswer(a))
		}
	}
	sortAnswers(out)
	return out, nil
}

// =============================================================================
// TRANSACTIONS - Snapshot and restore
// =============================================================================

// WithTx runs fn under the write lock against an unlocked view of the
// store. On error every map is restored from a snapshot, giving the
// same all-or-nothing behavior as the SQL implementation.
func (s *Store) WithTx(ctx context.Context, fn func(forum.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	backupUsers := make(map[gamify.UserID]*gamify.User, len(s.users))
	for k, v := range s.users {
		backupUsers[k] = cloneUser(v)
	}
	backupQuestions := make(map[forum.QuestionID]*forum.Question, len(s.questions))
	for k, v := range s.questions {
		backupQuestions[k] = cloneQuestion(v)
	}
	backupAnswers := make(map[forum.AnswerID]*forum.Answer, len(s.answers))
	for k, v := range s.answers {
		backupAnswers[k] = cloneAnswer(v)
	}

	if err := fn(&txStore{s}); err != nil {
		s.users = backupUsers
		s.questions = backupQuestions
		s.answers = backupAnswers
		return err
	}
	return nil
}

// txStore mirrors Store without locking; the outer WithTx already holds
// the write lock.
type txStore struct {
	s *Store
}

var _ forum.Store = (*txStore)(nil)

func (t *txStore) GetUser(_ context.Context, id gamify.UserID) (*gamify.User, error) {
	return t.s.getUserLocked(id)
}

func (t *txStore) SaveUser(_ context.Context, u *gamify.User) error {
	return t.s.saveUserLocked(u)
}

func (t *txStore) ListUsers(_ context.Context) ([]*gamify.User, error) {
	out := make([]*gamify.User, 0, len(t.s.users))
	for _, u := range t.s.users {
		out = append(out, cloneUser(u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *txStore) UserByHandle(_ context.Context, handle string) (*gamify.User, error) {
	for _, u := range t.s.users {
		if u.Handle == handle {
			return cloneUser(u), nil
		}
	}
	return nil, &gamify.NotFoundError{Kind: "user", ID: handle}
}

func (t *txStore) GetQuestion(_ context.Context, id forum.QuestionID) (*forum.Question, error) {
	q, ok := t.s.questions[id]
	if !ok {
		return nil, &gamify.NotFoundError{Kind: "question", ID: string(id)}
	}
	return cloneQuestion(q), nil
}

func (t *txStore) SaveQuestion(_ context.Context, q *forum.Question) error {
	t.s.questions[q.ID] = cloneQuestion(q)
	return nil
}

func (t *txStore) DeleteQuestion(_ context.Context, id forum.QuestionID) error {
	if _, ok := t.s.questions[id]; !ok {
		return &gamify.NotFoundError{Kind: "question", ID: string(id)}
	}
	delete(t.s.questions, id)
	return nil
}

func (t *txStore) ListQuestions(_ context.Context) ([]*forum.Question, error) {
	out := make([]*forum.Question, 0, len(t.s.questions))
	for _, q := range t.s.questions {
		out = append(out, cloneQuestion(q))
	}
	sortQuestions(out)
	return out, nil
}

func (t *txStore) QuestionsByAuthor(_ context.Context, author gamify.UserID) ([]*forum.Question, error) {
	var out []*forum.Question
	for _, q := range t.s.questions {
		if q.Author == author {
			out = append(out, cloneQuestion(q))
		}
	}
	sortQuestions(out)
	return out, nil
}

func (t *txStore) GetAnswer(_ context.Context, id forum.AnswerID) (*forum.Answer, error) {
	a, ok := t.s.answers[id]
	if !ok {
		return nil, &gamify.NotFoundError{Kind: "answer", ID: string(id)}
	}
	return cloneAnswer(a), nil
}

func (t *txStore) SaveAnswer(_ context.Context, a *forum.Answer) error {
	t.s.answers[a.ID] = cloneAnswer(a)
	return nil
}

func (t *txStore) DeleteAnswer(_ context.Context, id forum.AnswerID) error {
	if _, ok := t.s.answers[id]; !ok {
		return &gamify.NotFoundError{Kind: "answer", ID: string(id)}
	}
	delete(t.s.answers, id)
	return nil
}

func (t *txStore) AnswersByQuestion(_ context.Context, qid forum.QuestionID) ([]*forum.Answer, error) {
	var out []*forum.Answer
	for _, a := range t.s.answers {
		if a.QuestionID == qid {
			out = append(out, cloneAnswer(a))
		}
	}
	sortAnswers(out)
	return out, nil
}

func (t *txStore) AnswersByAuthor(_ context.Context, author gamify.UserID) ([]*forum.Answer, error) {
	var out []*forum.Answer
	for _, a := range t.s.answers {
		if a.Author == author {
			out = append(out, cloneAnswer(a))
		}
	}
	sortAnswers(out)
	return out, nil
}

// Nested transactions reuse the already-held lock.
func (t *txStore) WithTx(ctx context.Context, fn func(forum.Store) error) error {
	return fn(t)
}

// =============================================================================
// HELPERS
// =============================================================================

func cloneUser(u *gamify.User) *gamify.User {
	c := *u
	c.Badges = append([]gamify.BadgeAward(nil), u.Badges...)
	return &c
}

func cloneQuestion(q *forum.Question) *forum.Question {
	c := *q
	c.Tags = append([]string(nil), q.Tags...)
	c.Votes.Voters = append([]forum.VoterEntry(nil), q.Votes.Voters...)
	return &c
}

func cloneAnswer(a *forum.Answer) *forum.Answer {
	c := *a
	c.Votes.Voters = append([]forum.VoterEntry(nil), a.Votes.Voters...)
	return &c
}

func sortQuestions(qs []*forum.Question) {
	sort.Slice(qs, func(i, j int) bool {
		if qs[i].CreatedAt.Equal(qs[j].CreatedAt) {
			return qs[i].ID < qs[j].ID
		}
		return qs[i].CreatedAt.Before(qs[j].CreatedAt)
	})
}

func sortAnswers(as []*forum.Answer) {
	sort.Slice(as, func(i, j int) bool {
		if as[i].CreatedAt.Equal(as[j].CreatedAt) {
			return as[i].ID < as[j].ID
		}
		return as[i].CreatedAt.Before(as[j].CreatedAt)
	})
}
