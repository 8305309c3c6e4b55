package gamify_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalpost/reputation-engine/gamify"
	"github.com/signalpost/reputation-engine/notify"
	"github.com/signalpost/reputation-engine/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestAccounting(t *testing.T) (*gamify.Accounting, *memory.Store, *notify.Capture) {
	t.Helper()
	store := memory.New()
	capture := notify.NewCapture()
	acct := gamify.NewAccounting(capture)
	acct.Now = func() time.Time { return time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC) }
	return acct, store, capture
}

func seedUser(t *testing.T, store *memory.Store, id gamify.UserID, points int) {
	t.Helper()
	u := &gamify.User{ID: id, Handle: string(id), Points: points, CreatedAt: time.Now()}
	require.NoError(t, store.SaveUser(context.Background(), u))
}

// =============================================================================
// APPLY TESTS
// =============================================================================

func TestAccounting_Apply_UpdatesTotalsAndCounters(t *testing.T) {
	// GIVEN: A user with zero totals
	// WHEN: They ask a question
	// THEN: Totals gain +5/+1 and the question counter increments

	acct, store, _ := newTestAccounting(t)
	ctx := context.Background()
	seedUser(t, store, "alice", 0)

	applied, err := acct.Apply(ctx, store, "alice", gamify.Activity{Kind: gamify.ActivityAskQuestion})
	require.NoError(t, err)
	assert.Equal(t, 5, applied.Points)
	assert.Equal(t, 1, applied.Reputation)

	u, err := store.GetUser(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 5, u.Points)
	assert.Equal(t, 1, u.Reputation)
	assert.Equal(t, 1, u.QuestionsAsked)
	assert.Equal(t, 0, u.AnswersGiven)
}

func TestAccounting_Apply_UnknownUser_NotFound(t *testing.T) {
	acct, store, _ := newTestAccounting(t)

	_, err := acct.Apply(context.Background(), store, "ghost", gamify.Activity{Kind: gamify.ActivityAskQuestion})
	assert.True(t, gamify.IsNotFound(err))
}

func TestAccounting_Apply_CrossesThreshold_AwardsBadge(t *testing.T) {
	// GIVEN: A user at 95 points
	// WHEN: Their answer is accepted (+50)
	// THEN: Contributor (100) unlocks once and a notification is emitted

	acct, store, capture := newTestAccounting(t)
	ctx := context.Background()
	seedUser(t, store, "bob", 95)

	applied, err := acct.Apply(ctx, store, "bob", gamify.Activity{Kind: gamify.ActivityAnswerAccepted})
	require.NoError(t, err)
	assert.Equal(t, 145, applied.Points)

	// Beginner (0) and Contributor (100) are both new for this user.
	require.Len(t, applied.NewBadges, 2)
	assert.Equal(t, "Contributor", applied.NewBadges[1].Name)

	events := capture.ByType(notify.EventBadgeEarned)
	require.Len(t, events, 2)
	assert.Equal(t, "bob", events[0].Recipient)
}

func TestAccounting_Apply_NegativeDelta_KeepsBadges(t *testing.T) {
	// GIVEN: A user who earned Contributor at 100 points
	// WHEN: A deletion drops them back below the threshold
	// THEN: The badge stays (achievements are permanent)

	acct, store, _ := newTestAccounting(t)
	ctx := context.Background()
	seedUser(t, store, "carol", 100)

	_, err := acct.Apply(ctx, store, "carol", gamify.Activity{Kind: gamify.ActivityPostAnswer})
	require.NoError(t, err)

	u, _ := store.GetUser(ctx, "carol")
	require.True(t, u.HasBadge("Contributor"))

	// Delete an answer with 20 upvotes: -(10+60) = -70 points.
	_, err = acct.Apply(ctx, store, "carol", gamify.Activity{Kind: gamify.ActivityAnswerDeleted, Upvotes: 20})
	require.NoError(t, err)

	u, _ = store.GetUser(ctx, "carol")
	assert.Equal(t, 40, u.Points)
	assert.True(t, u.HasBadge("Contributor"), "badge must survive the drop below 100")
}

func TestAccounting_Apply_SameBadgeNeverAwardedTwice(t *testing.T) {
	// GIVEN: A user oscillating across the Contributor threshold
	// WHEN: They cross it a second time
	// THEN: No duplicate badge is appended

	acct, store, _ := newTestAccounting(t)
	ctx := context.Background()
	seedUser(t, store, "dave", 95)

	_, err := acct.Apply(ctx, store, "dave", gamify.Activity{Kind: gamify.ActivityPostAnswer}) // 105
	require.NoError(t, err)
	_, err = acct.Apply(ctx, store, "dave", gamify.Activity{Kind: gamify.ActivityAnswerDeleted}) // 95
	require.NoError(t, err)
	applied, err := acct.Apply(ctx, store, "dave", gamify.Activity{Kind: gamify.ActivityPostAnswer}) // 105 again
	require.NoError(t, err)

	assert.Empty(t, applied.NewBadges)
	u, _ := store.GetUser(ctx, "dave")
	count := 0
	for _, b := range u.Badges {
		if b.Name == "Contributor" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestAccounting_ApplyDelta_SkipsCounters(t *testing.T) {
	// GIVEN: A pre-composed vote-switch delta
	// WHEN: Applied directly
	// THEN: Totals move but authored-content counters do not

	acct, store, _ := newTestAccounting(t)
	ctx := context.Background()
	seedUser(t, store, "erin", 10)

	_, err := acct.ApplyDelta(ctx, store, "erin", gamify.Delta{Points: -5, Reputation: -5})
	require.NoError(t, err)

	u, _ := store.GetUser(ctx, "erin")
	assert.Equal(t, 5, u.Points)
	assert.Equal(t, -5, u.Reputation)
	assert.Equal(t, 0, u.QuestionsAsked)
	assert.Equal(t, 0, u.AnswersGiven)
}
