/*
Package forum provides the question/answer domain over the gamify core.

PURPOSE:
  Questions and answers own their vote state; this package enforces the
  per-target invariants (at most one active vote per voter, a single
  accepted answer per question, counters equal to voter-set cardinality)
  and drives the accounting service when transitions award or reverse
  points.

KEY CONCEPTS IN THIS FILE (types.go):
  - Question / Answer: Content entities with embedded vote records
  - VoteRecord: Voter set plus derived up/down counters
  - Store: Persistence boundary for all forum records

INVARIANTS:
  - VoteRecord: at most one entry per voter; Upvotes/Downvotes always
    equal the cardinality of matching entries (counters are derived,
    never independently authoritative)
  - Question: AcceptedAnswer != "" iff Solved; the referenced answer
    belongs to this question and is the only one with Accepted = true
*/
package forum

import (
	"context"
	"time"

	"github.com/signalpost/reputation-engine/gamify"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type QuestionID string
type AnswerID string

// =============================================================================
// VOTE RECORD - Voter set with derived counters
// =============================================================================

type VoteType string

const (
	VoteUp   VoteType = "upvote"
	VoteDown VoteType = "downvote"
)

// VoterEntry records one user's active vote on a target.
type VoterEntry struct {
	Voter gamify.UserID `json:"voter"`
	Type  VoteType      `json:"type"`
}

// VoteRecord is the per-target vote aggregate. All mutation goes through
// set/clear so the counters can never drift from the voter set.
type VoteRecord struct {
	Upvotes   int          `json:"upvotes"`
	Downvotes int          `json:"downvotes"`
	Voters    []VoterEntry `json:"voters,omitempty"`
}

// Get returns the voter's active vote, if any.
func (v *VoteRecord) Get(voter gamify.UserID) (VoteType, bool) {
	for _, e := range v.Voters {
		if e.Voter == voter {
			return e.Type, true
		}
	}
	return "", false
}

// set inserts or retypes the voter's entry and fixes the counters.
func (v *VoteRecord) set(voter gamify.UserID, t VoteType) {
	for i, e := range v.Voters {
		if e.Voter == voter {
			if e.Type == t {
				return
			}
			v.Voters[i].Type = t
			v.bump(e.Type, -1)
			v.bump(t, +1)
			return
		}
	}
	v.Voters = append(v.Voters, VoterEntry{Voter: voter, Type: t})
	v.bump(t, +1)
}

// clear removes the voter's entry and fixes the counters. No-op when
// the voter has no active vote.
func (v *VoteRecord) clear(voter gamify.UserID) {
	for i, e := range v.Voters {
		if e.Voter == voter {
			v.Voters = append(v.Voters[:i], v.Voters[i+1:]...)
			v.bump(e.Type, -1)
			return
		}
	}
}

func (v *VoteRecord) bump(t VoteType, by int) {
	switch t {
	case VoteUp:
		v.Upvotes += by
	case VoteDown:
		v.Downvotes += by
	}
}

// =============================================================================
// CONTENT ENTITIES
// =============================================================================

// Question owns its vote record and acceptance state.
type Question struct {
	ID     QuestionID
	Author gamify.UserID
	Title  string
	Body   string
	Tags   []string

	Votes VoteRecord

	// AcceptedAnswer is empty iff Solved is false.
	AcceptedAnswer AnswerID
	Solved         bool

	CreatedAt time.Time
}

// Answer owns its vote record and its side of the acceptance invariant.
type Answer struct {
	ID         AnswerID
	QuestionID QuestionID
	Author     gamify.UserID
	Body       string

	Votes    VoteRecord
	Accepted bool

	CreatedAt time.Time
}

// =============================================================================
// STORE - Persistence boundary for forum records
// =============================================================================

// Store is the persistence collaborator. Each operation is an atomic
// single-record read or write; WithTx groups writes so a vote or accept
// mutation commits target state and user totals together.
type Store interface {
	gamify.UserStore

	// UserByHandle resolves an @mention. NotFound if no such handle.
	UserByHandle(ctx context.Context, handle string) (*gamify.User, error)

	GetQuestion(ctx context.Context, id QuestionID) (*Question, error)
	SaveQuestion(ctx context.Context, q *Question) error
	DeleteQuestion(ctx context.Context, id QuestionID) error
	ListQuestions(ctx context.Context) ([]*Question, error)
	QuestionsByAuthor(ctx context.Context, author gamify.UserID) ([]*Question, error)

	GetAnswer(ctx context.Context, id AnswerID) (*Answer, error)
	SaveAnswer(ctx context.Context, a *Answer) error
	DeleteAnswer(ctx context.Context, id AnswerID) error
	AnswersByQuestion(ctx context.Context, qid QuestionID) ([]*Answer, error)
	AnswersByAuthor(ctx context.Context, author gamify.UserID) ([]*Answer, error)

	// WithTx executes fn against a transaction-scoped store. If fn
	// returns an error the transaction is rolled back.
	WithTx(ctx context.Context, fn func(Store) error) error
}
