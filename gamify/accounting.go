/*
accounting.go - Activity accounting service

PURPOSE:
  The sole writer of point/reputation deltas. Given an activity event it
  computes the ledger delta, adds it to the actor's stored totals,
  maintains the authored-content counters, evaluates badges on the new
  total, and emits a BadgeEarned notification for every badge appended.

ATOMICITY:
  Apply performs one GetUser + one SaveUser against the store it is
  handed. Callers that must mutate a target entity and the user's totals
  together (vote, accept, delete) pass a transaction-scoped store so the
  whole sequence commits or rolls back as a unit. If SaveUser fails the
  activity has no visible effect.

BADGES:
  The live path only ever appends badges. A later negative delta can
  drop the total below an earned badge's threshold; the badge stays
  (badges are achievements - see badges.go).

NOTIFICATIONS:
  BadgeEarned events are emitted after the user record is saved and are
  fire-and-forget; an emit failure does not undo the accounting.
*/
package gamify

import (
	"context"
	"fmt"
	"time"

	"github.com/signalpost/reputation-engine/notify"
)

// =============================================================================
// ACCOUNTING SERVICE
// =============================================================================

// Accounting applies activity deltas to user totals and awards badges.
type Accounting struct {
	Notifier notify.Notifier

	// Now is overridable for deterministic tests. Defaults to time.Now.
	Now func() time.Time
}

func NewAccounting(notifier notify.Notifier) *Accounting {
	return &Accounting{Notifier: notifier, Now: time.Now}
}

// Applied reports what one accounting call did.
type Applied struct {
	Delta      Delta
	Points     int // new total
	Reputation int // new total
	NewBadges  []Badge
}

// Apply computes the delta for the activity, adds it to the user's
// stored totals, maintains the authored-content counters, and appends
// any newly unlocked badges.
func (a *Accounting) Apply(ctx context.Context, users UserStore, id UserID, act Activity) (Applied, error) {
	return a.apply(ctx, users, id, DeltaFor(act), act.Kind)
}

// ApplyDelta adds a pre-composed delta (vote removal, vote switch) with
// the same badge and notification behavior as Apply. Used by the vote
// state machine, which composes primitives itself.
func (a *Accounting) ApplyDelta(ctx context.Context, users UserStore, id UserID, delta Delta) (Applied, error) {
	return a.apply(ctx, users, id, delta, "")
}

func (a *Accounting) apply(ctx context.Context, users UserStore, id UserID, delta Delta, kind ActivityKind) (Applied, error) {
	user, err := users.GetUser(ctx, id)
	if err != nil {
		return Applied{}, fmt.Errorf("load user for accounting: %w", err)
	}

	user.Points += delta.Points
	user.Reputation += delta.Reputation

	switch kind {
	case ActivityAskQuestion:
		user.QuestionsAsked++
	case ActivityQuestionDeleted:
		user.QuestionsAsked--
	case ActivityPostAnswer:
		user.AnswersGiven++
	case ActivityAnswerDeleted:
		user.AnswersGiven--
	}

	now := a.now()
	var newBadges []Badge
	for _, b := range Evaluate(user.Points) {
		if user.AwardBadge(b, now) {
			newBadges = append(newBadges, b)
		}
	}

	if err := users.SaveUser(ctx, user); err != nil {
		return Applied{}, fmt.Errorf("save user totals: %w", err)
	}

	// Badge notifications are best-effort; the totals are committed.
	for _, b := range newBadges {
		_ = a.Notifier.Emit(ctx, notify.Event{
			Type:      notify.EventBadgeEarned,
			Recipient: string(user.ID),
			Title:     "Badge earned: " + b.Name,
			Message:   b.Description,
			Link:      "/users/" + string(user.ID),
			At:        now,
		})
	}

	return Applied{
		Delta:      delta,
		Points:     user.Points,
		Reputation: user.Reputation,
		NewBadges:  newBadges,
	}, nil
}

func (a *Accounting) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}
