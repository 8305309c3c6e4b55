/*
Package gamify provides the points and badge accounting core.

PURPOSE:
  This package contains the scoring rules of the community platform:
  how many points and how much reputation each activity is worth, which
  badges a point total unlocks, and the accounting service that applies
  activity deltas to a user's running totals.

KEY CONCEPTS IN THIS FILE (types.go):
  - Delta: A signed (points, reputation) pair attributed to one activity
  - Activity: What happened (ask, answer, vote received, accept, delete)
  - User: The participant whose totals and badges are being tracked
  - BadgeAward: An earned badge with its earn timestamp

DESIGN PRINCIPLES:
  1. Purity: DeltaFor and Evaluate are pure functions; all mutation goes
     through the Accounting service
  2. Additivity: Deltas form a commutative group - applying a history
     incrementally or from scratch yields identical totals
  3. Monotonic badges: A badge, once earned, is never removed, even when
     a later negative delta drops the total below its threshold

SEE ALSO:
  - ledger.go: The activity -> delta table
  - badges.go: Threshold catalog and evaluator
  - accounting.go: Applies deltas and awards badges
*/
package gamify

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// DELTA - Signed (points, reputation) pair for one activity
// =============================================================================

// Delta is the ledger value of a single activity. Deltas compose by
// addition; the inverse of a delta reverses the activity exactly.
type Delta struct {
	Points     int
	Reputation int
}

func (d Delta) Add(o Delta) Delta { return Delta{d.Points + o.Points, d.Reputation + o.Reputation} }
func (d Delta) Neg() Delta        { return Delta{-d.Points, -d.Reputation} }
func (d Delta) IsZero() bool      { return d.Points == 0 && d.Reputation == 0 }

// =============================================================================
// ACTIVITY - What happened, from the scored user's perspective
// =============================================================================

type ActivityKind string

const (
	ActivityAskQuestion       ActivityKind = "ask_question"
	ActivityPostAnswer        ActivityKind = "post_answer"
	ActivityQuestionUpvoted   ActivityKind = "question_upvoted"
	ActivityQuestionDownvoted ActivityKind = "question_downvoted"
	ActivityAnswerUpvoted     ActivityKind = "answer_upvoted"
	ActivityAnswerDownvoted   ActivityKind = "answer_downvoted"
	ActivityAnswerAccepted    ActivityKind = "answer_accepted"
	ActivityQuestionDeleted   ActivityKind = "question_deleted"
	ActivityAnswerDeleted     ActivityKind = "answer_deleted"
)

// Activity describes one scored event. Upvotes is only meaningful for
// ActivityAnswerDeleted: the upvote count on the answer at deletion time,
// which determines how much of the earlier vote income is clawed back.
type Activity struct {
	Kind    ActivityKind
	Upvotes int
}

// =============================================================================
// USER - Owner of point/reputation/badge state
// =============================================================================

type UserID string

// User is a platform participant. Points, Reputation, and the counters
// are denormalized running totals maintained by the Accounting service;
// the reconcile package can rebuild them from authored content.
type User struct {
	ID         UserID
	Handle     string
	Points     int
	Reputation int

	QuestionsAsked int
	AnswersGiven   int

	// Badges in earn order. No duplicates by name.
	Badges []BadgeAward

	CreatedAt time.Time
}

// NewUser creates a user with a fresh ID and zero totals.
func NewUser(handle string) *User {
	return &User{
		ID:        UserID(uuid.NewString()),
		Handle:    handle,
		CreatedAt: time.Now(),
	}
}

// BadgeAward is one earned badge. EarnedAt records when the accounting
// service (or a reconciliation run) appended it.
type BadgeAward struct {
	Name        string
	Description string
	EarnedAt    time.Time
}

// HasBadge reports whether the user already holds a badge by name.
func (u *User) HasBadge(name string) bool {
	for _, b := range u.Badges {
		if b.Name == name {
			return true
		}
	}
	return false
}

// AwardBadge appends a badge if not already held. Returns true if added.
func (u *User) AwardBadge(b Badge, at time.Time) bool {
	if u.HasBadge(b.Name) {
		return false
	}
	u.Badges = append(u.Badges, BadgeAward{Name: b.Name, Description: b.Description, EarnedAt: at})
	return true
}

// =============================================================================
// USER STORE - Persistence boundary for user totals
// =============================================================================

// UserStore is the persistence collaborator for user records. Each call
// is a single atomic document operation; failures surface as IOError
// unless the record is missing (NotFound).
type UserStore interface {
	GetUser(ctx context.Context, id UserID) (*User, error)
	SaveUser(ctx context.Context, u *User) error
	ListUsers(ctx context.Context) ([]*User, error)
}
