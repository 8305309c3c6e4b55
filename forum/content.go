/*
content.go - Question/answer lifecycle

PURPOSE:
  Creates and deletes content and drives the accounting side effects:
  ask (+5/+1), answer (+10/+2), delete-own-question (-5/-1), and
  delete-own-answer (-(10+3u)/-(2+u) for u upvotes at deletion time).
  Deleting the currently accepted answer also forces the question back
  to Unsolved - an external forcing of the acceptance state machine.

MENTIONS:
  Bodies are scanned for @handle tokens; each resolvable handle other
  than the author gets a Mentioned notification.
*/
package forum

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/signalpost/reputation-engine/gamify"
	"github.com/signalpost/reputation-engine/lock"
	"github.com/signalpost/reputation-engine/notify"
)

var mentionPattern = regexp.MustCompile(`@([A-Za-z0-9_.-]+)`)

// ContentService owns the ask/answer/delete operations.
type ContentService struct {
	Store      Store
	Accounting *gamify.Accounting
	Locker     lock.Locker
	Notifier   notify.Notifier

	// Overridable for deterministic tests.
	Now   func() time.Time
	NewID func() string
}

func NewContentService(store Store, acct *gamify.Accounting, locker lock.Locker, notifier notify.Notifier) *ContentService {
	return &ContentService{
		Store:      store,
		Accounting: acct,
		Locker:     locker,
		Notifier:   notifier,
		Now:        time.Now,
		NewID:      uuid.NewString,
	}
}

// =============================================================================
// CREATION
// =============================================================================

// AskQuestion creates a question and awards the ask bonus to the actor.
func (s *ContentService) AskQuestion(ctx context.Context, actor gamify.UserID, title, body string, tags []string) (*Question, error) {
	if strings.TrimSpace(title) == "" || strings.TrimSpace(body) == "" {
		return nil, fmt.Errorf("%w: question title and body are required", gamify.ErrInvalidArgument)
	}
	if _, err := s.Store.GetUser(ctx, actor); err != nil {
		return nil, err
	}

	q := &Question{
		ID:        QuestionID(s.NewID()),
		Author:    actor,
		Title:     title,
		Body:      body,
		Tags:      tags,
		CreatedAt: s.Now(),
	}

	err := s.Store.WithTx(ctx, func(tx Store) error {
		if err := tx.SaveQuestion(ctx, q); err != nil {
			return err
		}
		_, err := s.Accounting.Apply(ctx, tx, actor, gamify.Activity{Kind: gamify.ActivityAskQuestion})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.notifyMentions(ctx, actor, body, q.Title, "/questions/"+string(q.ID))
	return q, nil
}

// PostAnswer creates an answer, awards the answer bonus to the actor,
// and notifies the question author.
func (s *ContentService) PostAnswer(ctx context.Context, actor gamify.UserID, questionID QuestionID, body string) (*Answer, error) {
	if strings.TrimSpace(body) == "" {
		return nil, fmt.Errorf("%w: answer body is required", gamify.ErrInvalidArgument)
	}
	if _, err := s.Store.GetUser(ctx, actor); err != nil {
		return nil, err
	}
	q, err := s.Store.GetQuestion(ctx, questionID)
	if err != nil {
		return nil, err
	}

	a := &Answer{
		ID:         AnswerID(s.NewID()),
		QuestionID: questionID,
		Author:     actor,
		Body:       body,
		CreatedAt:  s.Now(),
	}

	err = s.Store.WithTx(ctx, func(tx Store) error {
		if err := tx.SaveAnswer(ctx, a); err != nil {
			return err
		}
		_, err := s.Accounting.Apply(ctx, tx, actor, gamify.Activity{Kind: gamify.ActivityPostAnswer})
		return err
	})
	if err != nil {
		return nil, err
	}

	if q.Author != actor {
		_ = s.Notifier.Emit(ctx, notify.Event{
			Type:      notify.EventNewAnswer,
			Recipient: string(q.Author),
			Title:     "New answer on your question",
			Message:   q.Title,
			Link:      "/questions/" + string(q.ID),
			At:        s.Now(),
		})
	}
	s.notifyMentions(ctx, actor, body, q.Title, "/questions/"+string(q.ID))
	return a, nil
}

// =============================================================================
// DELETION
// =============================================================================

// DeleteQuestion removes the author's question and its answers, and
// reverses the ask bonus. Vote income the question collected is not
// reversed here; reconciliation recomputes from surviving content.
func (s *ContentService) DeleteQuestion(ctx context.Context, actor gamify.UserID, id QuestionID) error {
	release, err := s.Locker.Acquire(ctx, "question:"+string(id), voteLockTTL)
	if err != nil {
		return err
	}
	defer release()

	q, err := s.Store.GetQuestion(ctx, id)
	if err != nil {
		return err
	}
	if q.Author != actor {
		return &gamify.ForbiddenError{Actor: actor, Action: "delete this question"}
	}

	return s.Store.WithTx(ctx, func(tx Store) error {
		answers, err := tx.AnswersByQuestion(ctx, id)
		if err != nil {
			return err
		}
		for _, a := range answers {
			if err := tx.DeleteAnswer(ctx, a.ID); err != nil {
				return err
			}
		}
		if err := tx.DeleteQuestion(ctx, id); err != nil {
			return err
		}
		_, err = s.Accounting.Apply(ctx, tx, actor, gamify.Activity{Kind: gamify.ActivityQuestionDeleted})
		return err
	})
}

// DeleteAnswer removes the author's answer and reverses its post bonus
// plus the upvote income it had collected. Deleting the accepted answer
// reverts the question to Unsolved.
func (s *ContentService) DeleteAnswer(ctx context.Context, actor gamify.UserID, id AnswerID) error {
	ref, err := s.Store.GetAnswer(ctx, id)
	if err != nil {
		return err
	}
	if ref.Author != actor {
		return &gamify.ForbiddenError{Actor: actor, Action: "delete this answer"}
	}

	// The question lock guards all mutations of this answer. Re-read
	// under it so the vote count and acceptance flag are current.
	release, err := s.Locker.Acquire(ctx, "question:"+string(ref.QuestionID), voteLockTTL)
	if err != nil {
		return err
	}
	defer release()

	a, err := s.Store.GetAnswer(ctx, id)
	if err != nil {
		return err
	}

	return s.Store.WithTx(ctx, func(tx Store) error {
		if a.Accepted {
			q, err := tx.GetQuestion(ctx, a.QuestionID)
			if err != nil {
				return err
			}
			q.AcceptedAnswer = ""
			q.Solved = false
			if err := tx.SaveQuestion(ctx, q); err != nil {
				return err
			}
		}
		if err := tx.DeleteAnswer(ctx, id); err != nil {
			return err
		}
		_, err = s.Accounting.Apply(ctx, tx, actor, gamify.Activity{
			Kind:    gamify.ActivityAnswerDeleted,
			Upvotes: a.Votes.Upvotes,
		})
		return err
	})
}

// =============================================================================
// MENTIONS
// =============================================================================

// notifyMentions emits one Mentioned event per distinct resolvable
// @handle in the body, skipping the author. Best-effort.
func (s *ContentService) notifyMentions(ctx context.Context, author gamify.UserID, body, title, link string) {
	seen := make(map[string]bool)
	for _, m := range mentionPattern.FindAllStringSubmatch(body, -1) {
		handle := m[1]
		if seen[handle] {
			continue
		}
		seen[handle] = true

		user, err := s.Store.UserByHandle(ctx, handle)
		if err != nil || user.ID == author {
			continue
		}
		_ = s.Notifier.Emit(ctx, notify.Event{
			Type:      notify.EventMentioned,
			Recipient: string(user.ID),
			Title:     "You were mentioned",
			Message:   title,
			Link:      link,
			At:        s.Now(),
		})
	}
}
