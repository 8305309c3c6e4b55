/*
accept.go - Single-accepted-answer state machine

PURPOSE:
  A question is Unsolved or Solved(answer). Only the question's author
  may accept. Accepting while another answer is accepted first clears
  the old answer's flag - WITHOUT reversing its author's +50 award (the
  documented asymmetry; reconciliation recomputes from current state, so
  a swap eventually costs the displaced author the bonus there).

TRANSITIONS:
  Unsolved  --accept(a)-->          Solved(a)   +50/+50 to a's author
  Solved(b) --accept(a), a != b --> Solved(a)   b unflagged, no reversal
  Solved(a) --accept(a)-->          Solved(a)   no-op, no second award

  Deletion of the accepted answer forces Solved -> Unsolved from the
  outside; that lives in content.go, not in this transition table.
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

// AcceptService enforces the one-accepted-answer invariant.
type AcceptService struct {
	Store      Store
	Accounting *gamify.Accounting
	Locker     lock.Locker
	Notifier   notify.Notifier
}

func NewAcceptService(store Store, acct *gamify.Accounting, locker lock.Locker, notifier notify.Notifier) *AcceptService {
	return &AcceptService{Store: store, Accounting: acct, Locker: locker, Notifier: notifier}
}

// Accept marks answerID as the accepted answer of questionID.
func (s *AcceptService) Accept(ctx context.Context, actor gamify.UserID, questionID QuestionID, answerID AnswerID) (*Question, error) {
	release, err := s.Locker.Acquire(ctx, "question:"+string(questionID), voteLockTTL)
	if err != nil {
		return nil, err
	}
	defer release()

	q, err := s.Store.GetQuestion(ctx, questionID)
	if err != nil {
		return nil, err
	}
	if q.Author != actor {
		return nil, &gamify.ForbiddenError{Actor: actor, Action: "accept answers on this question"}
	}

	ans, err := s.Store.GetAnswer(ctx, answerID)
	if err != nil {
		return nil, err
	}
	if ans.QuestionID != questionID {
		return nil, fmt.Errorf("%w: answer %s does not belong to question %s",
			gamify.ErrInvalidArgument, answerID, questionID)
	}

	// Re-accepting the accepted answer is a no-op; no second award.
	if q.AcceptedAnswer == answerID {
		return q, nil
	}

	err = s.Store.WithTx(ctx, func(tx Store) error {
		if q.AcceptedAnswer != "" {
			prev, err := tx.GetAnswer(ctx, q.AcceptedAnswer)
			if err != nil {
				return err
			}
			prev.Accepted = false
			if err := tx.SaveAnswer(ctx, prev); err != nil {
				return err
			}
		}

		ans.Accepted = true
		if err := tx.SaveAnswer(ctx, ans); err != nil {
			return err
		}

		q.AcceptedAnswer = answerID
		q.Solved = true
		if err := tx.SaveQuestion(ctx, q); err != nil {
			return err
		}

		_, err := s.Accounting.Apply(ctx, tx, ans.Author, gamify.Activity{Kind: gamify.ActivityAnswerAccepted})
		return err
	})
	if err != nil {
		return nil, err
	}

	_ = s.Notifier.Emit(ctx, notify.Event{
		Type:      notify.EventAnswerAccepted,
		Recipient: string(ans.Author),
		Title:     "Your answer was accepted",
		Message:   q.Title,
		Link:      "/questions/" + string(q.ID),
		At:        time.Now(),
	})
	return q, nil
}
