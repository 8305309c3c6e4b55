package reconcile_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/signalpost/reputation-engine/forum"
	"github.com/signalpost/reputation-engine/gamify"
	"github.com/signalpost/reputation-engine/reconcile"
	"github.com/signalpost/reputation-engine/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestJob(t *testing.T) (*reconcile.Job, *memory.Store) {
	t.Helper()
	store := memory.New()
	return reconcile.NewJob(store, zap.NewNop()), store
}

func addUser(t *testing.T, store *memory.Store, id gamify.UserID, points, reputation int) {
	t.Helper()
	u := &gamify.User{
		ID: id, Handle: string(id),
		Points: points, Reputation: reputation,
		CreatedAt: time.Now(),
	}
	require.NoError(t, store.SaveUser(context.Background(), u))
}

func addQuestion(t *testing.T, store *memory.Store, id forum.QuestionID, author gamify.UserID, up, down int) {
	t.Helper()
	q := &forum.Question{ID: id, Author: author, Title: "t", Body: "b", CreatedAt: time.Now()}
	q.Votes.Upvotes = up
	q.Votes.Downvotes = down
	require.NoError(t, store.SaveQuestion(context.Background(), q))
}

func addAnswer(t *testing.T, store *memory.Store, id forum.AnswerID, qid forum.QuestionID, author gamify.UserID, up, down int, accepted bool) {
	t.Helper()
	a := &forum.Answer{ID: id, QuestionID: qid, Author: author, Body: "b", Accepted: accepted, CreatedAt: time.Now()}
	a.Votes.Upvotes = up
	a.Votes.Downvotes = down
	require.NoError(t, store.SaveAnswer(context.Background(), a))
}

// =============================================================================
// RECOMPUTATION TESTS
// =============================================================================

func TestRun_RecomputesFromContent(t *testing.T) {
	// GIVEN: A user whose stored totals have drifted far from what their
	//        3 questions (no votes) and 2 answers (one accepted, one with
	//        2 upvotes) are worth
	// WHEN: Reconciliation runs
	// THEN: Points become 3*5 + 2*10 + 2*3 + 50 = 91 and reputation
	//       3*1 + 2*2 + 2*3 + 50 = 63, with counters overwritten

	job, store := newTestJob(t)
	ctx := context.Background()

	addUser(t, store, "alice", 9999, -17)
	addQuestion(t, store, "q1", "alice", 0, 0)
	addQuestion(t, store, "q2", "alice", 0, 0)
	addQuestion(t, store, "q3", "alice", 0, 0)
	addAnswer(t, store, "a1", "q9", "alice", 0, 0, true)
	addAnswer(t, store, "a2", "q9", "alice", 2, 0, false)

	report, err := job.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Users)
	assert.Equal(t, 1, report.Adjusted)

	u, err := store.GetUser(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 91, u.Points)
	assert.Equal(t, 63, u.Reputation)
	assert.Equal(t, 3, u.QuestionsAsked)
	assert.Equal(t, 2, u.AnswersGiven)
}

func TestRun_NegativeTotalsClampToZero(t *testing.T) {
	// GIVEN: A user whose only surviving content is a heavily downvoted
	//        question: 5 - 8 = -3 points, 1 - 8 = -7 reputation
	// WHEN: Reconciliation runs
	// THEN: Both totals clamp to zero

	job, store := newTestJob(t)
	ctx := context.Background()

	addUser(t, store, "bob", 40, 12)
	addQuestion(t, store, "q1", "bob", 0, 8)

	_, err := job.Run(ctx)
	require.NoError(t, err)

	u, _ := store.GetUser(ctx, "bob")
	assert.Equal(t, 0, u.Points)
	assert.Equal(t, 0, u.Reputation)
}

func TestRun_NoContent_ZeroTotals(t *testing.T) {
	job, store := newTestJob(t)
	ctx := context.Background()

	addUser(t, store, "carol", 123, 45)

	_, err := job.Run(ctx)
	require.NoError(t, err)

	u, _ := store.GetUser(ctx, "carol")
	assert.Zero(t, u.Points)
	assert.Zero(t, u.Reputation)
	assert.Zero(t, u.QuestionsAsked)
	assert.Zero(t, u.AnswersGiven)
}

// =============================================================================
// BADGE TESTS
// =============================================================================

func TestRun_AwardsMissedBadges_NeverRemoves(t *testing.T) {
	// GIVEN: dave holds Master (from an earlier high) but his stored
	//        totals missed the badges his current content earns
	// WHEN: Reconciliation runs
	// THEN: Missing badges are appended; Master stays even though the
	//       recomputed total is far below 1000

	job, store := newTestJob(t)
	ctx := context.Background()

	u := &gamify.User{ID: "dave", Handle: "dave", CreatedAt: time.Now()}
	u.AwardBadge(gamify.Catalog()[4], time.Now()) // Master, threshold 1000
	require.NoError(t, store.SaveUser(ctx, u))

	// 11 answers with one upvote each: 11*(10+3) = 143 points.
	for i := 0; i < 11; i++ {
		addAnswer(t, store, forum.AnswerID(rune('a'+i)), "q1", "dave", 1, 0, false)
	}

	report, err := job.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.BadgesNew, "Beginner and Contributor")

	got, _ := store.GetUser(ctx, "dave")
	assert.Equal(t, 143, got.Points)
	assert.True(t, got.HasBadge("Master"), "badges are never removed")
	assert.True(t, got.HasBadge("Beginner"))
	assert.True(t, got.HasBadge("Contributor"))
}

// =============================================================================
// IDEMPOTENCE TESTS
// =============================================================================

func TestRun_Idempotent(t *testing.T) {
	// GIVEN: A reconciled store
	// WHEN: The job runs again with no intervening activity
	// THEN: The second pass adjusts nobody and totals are unchanged

	job, store := newTestJob(t)
	ctx := context.Background()

	addUser(t, store, "alice", 0, 0)
	addUser(t, store, "bob", 500, 500)
	addQuestion(t, store, "q1", "alice", 3, 1)
	addAnswer(t, store, "a1", "q1", "bob", 2, 0, true)

	first, err := job.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, first.Users)

	aliceAfterFirst, _ := store.GetUser(ctx, "alice")
	bobAfterFirst, _ := store.GetUser(ctx, "bob")

	second, err := job.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Adjusted)
	assert.Equal(t, 0, second.BadgesNew)

	aliceAfterSecond, _ := store.GetUser(ctx, "alice")
	bobAfterSecond, _ := store.GetUser(ctx, "bob")
	assert.Equal(t, aliceAfterFirst, aliceAfterSecond)
	assert.Equal(t, bobAfterFirst, bobAfterSecond)
}

func TestRun_ManyUsersConcurrently(t *testing.T) {
	// GIVEN: More users than worker slots
	// WHEN: The job runs with 2 workers
	// THEN: Every user lands on the recomputed value

	job, store := newTestJob(t)
	job.Workers = 2
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		id := gamify.UserID(rune('a' + i))
		addUser(t, store, id, 777, 777)
		addQuestion(t, store, forum.QuestionID(id)+"-q", id, 1, 0)
	}

	report, err := job.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 20, report.Users)
	assert.Equal(t, 20, report.Adjusted)

	users, _ := store.ListUsers(ctx)
	for _, u := range users {
		assert.Equal(t, 7, u.Points, "ask(5) + upvote(2)")
		assert.Equal(t, 3, u.Reputation, "ask(1) + upvote(2)")
	}
}
