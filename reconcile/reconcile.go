/*
Package reconcile recomputes user totals from surviving content.

PURPOSE:
  The live accounting path is incremental and intentionally lossy in two
  places: deleting a question does not reverse the vote income it had
  collected, and swapping the accepted answer does not reverse the
  displaced author's award. This job is the system's source of truth
  repair: it folds every surviving question and answer back through the
  ledger primitives and overwrites each user's totals and counters with
  the recomputed values.

GROUND TRUTH FORMULA (per user, derived from the ledger table):
  For each authored question: ask delta + per-upvote and per-downvote
  question deltas. For each authored answer: post delta + per-vote
  answer deltas + the acceptance delta when currently accepted.
  Negative recomputed totals clamp to zero.

BADGES:
  Recomputation may unlock badges the live path missed; those are
  appended. Badges already held are never removed, whatever the new
  total says (achievements, not ranks).

IDEMPOTENCE:
  Running the job twice against unchanged content is a no-op the second
  time; every pass converges to the same totals.
*/
package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/signalpost/reputation-engine/forum"
	"github.com/signalpost/reputation-engine/gamify"
)

const defaultWorkers = 4

// Job walks all users and rewrites their totals from stored content.
type Job struct {
	Store   forum.Store
	Log     *zap.Logger
	Workers int

	// Now is overridable for deterministic tests. Defaults to time.Now.
	Now func() time.Time
}

func NewJob(store forum.Store, log *zap.Logger) *Job {
	return &Job{Store: store, Log: log, Workers: defaultWorkers, Now: time.Now}
}

// Report summarizes one reconciliation pass.
type Report struct {
	Users     int           `json:"users"`
	Adjusted  int           `json:"adjusted"`
	BadgesNew int           `json:"badges_awarded"`
	Took      time.Duration `json:"took"`
}

// Run reconciles every user. Users are processed concurrently; each
// user's recompute-and-save runs in its own store transaction so a
// failure on one user does not poison the others.
func (j *Job) Run(ctx context.Context) (Report, error) {
	start := j.now()

	users, err := j.Store.ListUsers(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("list users for reconciliation: %w", err)
	}

	results := make([]userResult, len(users))
	workers := j.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}

	p := pool.New().WithErrors().WithMaxGoroutines(workers).WithContext(ctx)
	for i, u := range users {
		p.Go(func(ctx context.Context) error {
			res, err := j.reconcileUser(ctx, u.ID)
			if err != nil {
				return fmt.Errorf("reconcile user %s: %w", u.ID, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return Report{}, err
	}

	report := Report{Users: len(users), Took: j.now().Sub(start)}
	for _, r := range results {
		if r.adjusted {
			report.Adjusted++
		}
		report.BadgesNew += r.badgesAdded
	}

	j.Log.Info("reconciliation complete",
		zap.Int("users", report.Users),
		zap.Int("adjusted", report.Adjusted),
		zap.Int("badges_awarded", report.BadgesNew),
		zap.Duration("took", report.Took),
	)
	return report, nil
}

type userResult struct {
	adjusted    bool
	badgesAdded int
}

func (j *Job) reconcileUser(ctx context.Context, id gamify.UserID) (userResult, error) {
	var res userResult
	err := j.Store.WithTx(ctx, func(tx forum.Store) error {
		user, err := tx.GetUser(ctx, id)
		if err != nil {
			return err
		}

		questions, err := tx.QuestionsByAuthor(ctx, id)
		if err != nil {
			return err
		}
		answers, err := tx.AnswersByAuthor(ctx, id)
		if err != nil {
			return err
		}

		total := recompute(questions, answers)
		points := clamp(total.Points)
		reputation := clamp(total.Reputation)

		changed := points != user.Points ||
			reputation != user.Reputation ||
			len(questions) != user.QuestionsAsked ||
			len(answers) != user.AnswersGiven

		if changed {
			j.Log.Debug("totals drifted",
				zap.String("user", string(id)),
				zap.Int("points_stored", user.Points),
				zap.Int("points_actual", points),
				zap.Int("reputation_stored", user.Reputation),
				zap.Int("reputation_actual", reputation),
			)
		}

		user.Points = points
		user.Reputation = reputation
		user.QuestionsAsked = len(questions)
		user.AnswersGiven = len(answers)

		now := j.now()
		for _, b := range gamify.Evaluate(user.Points) {
			if user.AwardBadge(b, now) {
				res.badgesAdded++
			}
		}
		res.adjusted = changed || res.badgesAdded > 0
		if !res.adjusted {
			return nil
		}
		return tx.SaveUser(ctx, user)
	})
	return res, err
}

// recompute folds the user's surviving content through the ledger.
func recompute(questions []*forum.Question, answers []*forum.Answer) gamify.Delta {
	var total gamify.Delta
	for _, q := range questions {
		total = total.Add(gamify.DeltaFor(gamify.Activity{Kind: gamify.ActivityAskQuestion}))
		total = total.Add(scale(gamify.DeltaFor(gamify.Activity{Kind: gamify.ActivityQuestionUpvoted}), q.Votes.Upvotes))
		total = total.Add(scale(gamify.DeltaFor(gamify.Activity{Kind: gamify.ActivityQuestionDownvoted}), q.Votes.Downvotes))
	}
	for _, a := range answers {
		total = total.Add(gamify.DeltaFor(gamify.Activity{Kind: gamify.ActivityPostAnswer}))
		total = total.Add(scale(gamify.DeltaFor(gamify.Activity{Kind: gamify.ActivityAnswerUpvoted}), a.Votes.Upvotes))
		total = total.Add(scale(gamify.DeltaFor(gamify.Activity{Kind: gamify.ActivityAnswerDownvoted}), a.Votes.Downvotes))
		if a.Accepted {
			total = total.Add(gamify.DeltaFor(gamify.Activity{Kind: gamify.ActivityAnswerAccepted}))
		}
	}
	return total
}

func scale(d gamify.Delta, n int) gamify.Delta {
	return gamify.Delta{Points: d.Points * n, Reputation: d.Reputation * n}
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	return v
}

func (j *Job) now() time.Time {
	if j.Now != nil {
		return j.Now()
	}
	return time.Now()
}
