/*
vote.go - Per (voter, target) vote state machine

PURPOSE:
  Enforces at most one active vote per voter per target with the
  transition rules: NoVote --up/down--> voted, voted --remove--> NoVote,
  voted --other type--> switched. Every transition that changes state
  applies the matching ledger delta to the content OWNER's totals in the
  same store transaction as the target write.

IDEMPOTENCE:
  Repeating the current state is a no-op: upvoting an already-upvoted
  target, or removing when no vote exists, changes nothing, applies no
  delta, and returns no error.

SWITCH DELTAS:
  A switch is composed from the two primitives (remove-old + apply-new),
  not a bespoke combined row - see gamify.SwitchVoteDelta.

CONCURRENCY:
  The whole read-decide-write sequence runs under an advisory lock keyed
  by the OWNING QUESTION, for answers as well as questions. Acceptance
  and deletion take the same key, so a vote can never read an answer,
  lose the CPU to a concurrent accept or delete, and write the stale
  copy back over the new acceptance state.

SELF-VOTES:
  Rejected with Forbidden. Authors cannot vote on their own content.
*/
package forum

import (
	"context"
	"fmt"
	"time"

	"github.com/signalpost/reputation-engine/gamify"
	"github.com/signalpost/reputation-engine/lock"
	"github.com/signalpost/reputation-engine/notify"
)

// voteLockTTL bounds how long a crashed holder can block a target.
const voteLockTTL = 5 * time.Second

// =============================================================================
// VOTE ACTIONS
// =============================================================================

// VoteAction is the client-requested transition.
type VoteAction string

const (
	ActionUpvote   VoteAction = "upvote"
	ActionDownvote VoteAction = "downvote"
	ActionRemove   VoteAction = "remove"
)

// ParseVoteAction validates a client-supplied action string.
func ParseVoteAction(s string) (VoteAction, error) {
	switch VoteAction(s) {
	case ActionUpvote, ActionDownvote, ActionRemove:
		return VoteAction(s), nil
	}
	return "", fmt.Errorf("%w: vote action %q", gamify.ErrInvalidArgument, s)
}

// =============================================================================
// VOTE SERVICE
// =============================================================================

// VoteService runs vote transitions on questions and answers.
type VoteService struct {
	Store      Store
	Accounting *gamify.Accounting
	Locker     lock.Locker
	Notifier   notify.Notifier
}

func NewVoteService(store Store, acct *gamify.Accounting, locker lock.Locker, notifier notify.Notifier) *VoteService {
	return &VoteService{Store: store, Accounting: acct, Locker: locker, Notifier: notifier}
}

// VoteQuestion applies one vote action by actor on a question.
func (s *VoteService) VoteQuestion(ctx context.Context, actor gamify.UserID, id QuestionID, action VoteAction) (*Question, error) {
	release, err := s.Locker.Acquire(ctx, "question:"+string(id), voteLockTTL)
	if err != nil {
		return nil, err
	}
	defer release()

	q, err := s.Store.GetQuestion(ctx, id)
	if err != nil {
		return nil, err
	}
	if q.Author == actor {
		return nil, &gamify.ForbiddenError{Actor: actor, Action: "vote on their own question"}
	}

	delta, changed, upvoted := transition(&q.Votes, actor, action,
		gamify.ActivityQuestionUpvoted, gamify.ActivityQuestionDownvoted)
	if !changed {
		return q, nil
	}

	err = s.Store.WithTx(ctx, func(tx Store) error {
		if err := tx.SaveQuestion(ctx, q); err != nil {
			return err
		}
		if delta.IsZero() {
			return nil
		}
		_, err := s.Accounting.ApplyDelta(ctx, tx, q.Author, delta)
		return err
	})
	if err != nil {
		return nil, err
	}

	if upvoted {
		_ = s.Notifier.Emit(ctx, notify.Event{
			Type:        notify.EventUpvoted,
			Recipient:   string(q.Author),
			Title:       "Your question was upvoted",
			Message:     q.Title,
			Link:        "/questions/" + string(q.ID),
			ContentType: "question",
			At:          time.Now(),
		})
	}
	return q, nil
}

// VoteAnswer applies one vote action by actor on an answer.
func (s *VoteService) VoteAnswer(ctx context.Context, actor gamify.UserID, id AnswerID, action VoteAction) (*Answer, error) {
	// The first read only resolves the owning question, whose lock
	// guards every mutation of its answers (votes, acceptance,
	// deletion). The answer is read again once the lock is held.
	ref, err := s.Store.GetAnswer(ctx, id)
	if err != nil {
		return nil, err
	}

	release, err := s.Locker.Acquire(ctx, "question:"+string(ref.QuestionID), voteLockTTL)
	if err != nil {
		return nil, err
	}
	defer release()

	a, err := s.Store.GetAnswer(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Author == actor {
		return nil, &gamify.ForbiddenError{Actor: actor, Action: "vote on their own answer"}
	}

	delta, changed, upvoted := transition(&a.Votes, actor, action,
		gamify.ActivityAnswerUpvoted, gamify.ActivityAnswerDownvoted)
	if !changed {
		return a, nil
	}

	err = s.Store.WithTx(ctx, func(tx Store) error {
		if err := tx.SaveAnswer(ctx, a); err != nil {
			return err
		}
		if delta.IsZero() {
			return nil
		}
		_, err := s.Accounting.ApplyDelta(ctx, tx, a.Author, delta)
		return err
	})
	if err != nil {
		return nil, err
	}

	if upvoted {
		_ = s.Notifier.Emit(ctx, notify.Event{
			Type:        notify.EventUpvoted,
			Recipient:   string(a.Author),
			Title:       "Your answer was upvoted",
			Link:        "/questions/" + string(a.QuestionID),
			ContentType: "answer",
			At:          time.Now(),
		})
	}
	return a, nil
}

// =============================================================================
// TRANSITION TABLE
// =============================================================================

// transition mutates the vote record for one action and returns the
// delta owed to the content owner. changed is false for the no-op
// transitions (repeat vote, remove without a vote); upvoted reports
// whether a fresh upvote landed (drives the notification).
func transition(rec *VoteRecord, voter gamify.UserID, action VoteAction,
	upKind, downKind gamify.ActivityKind) (delta gamify.Delta, changed, upvoted bool) {

	up := gamify.Activity{Kind: upKind}
	down := gamify.Activity{Kind: downKind}
	current, hasVote := rec.Get(voter)

	switch action {
	case ActionUpvote:
		switch {
		case !hasVote: // NoVote -> Upvoted
			rec.set(voter, VoteUp)
			return gamify.DeltaFor(up), true, true
		case current == VoteDown: // Downvoted -> Upvoted
			rec.set(voter, VoteUp)
			return gamify.SwitchVoteDelta(down, up), true, true
		}
	case ActionDownvote:
		switch {
		case !hasVote: // NoVote -> Downvoted
			rec.set(voter, VoteDown)
			return gamify.DeltaFor(down), true, false
		case current == VoteUp: // Upvoted -> Downvoted
			rec.set(voter, VoteDown)
			return gamify.SwitchVoteDelta(up, down), true, false
		}
	case ActionRemove:
		if hasVote {
			rec.clear(voter)
			if current == VoteUp {
				return gamify.RemoveVoteDelta(up), true, false
			}
			return gamify.RemoveVoteDelta(down), true, false
		}
	}
	return gamify.Delta{}, false, false
}
