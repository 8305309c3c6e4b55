package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalpost/reputation-engine/forum"
	"github.com/signalpost/reputation-engine/gamify"
	"github.com/signalpost/reputation-engine/store/memory"
)

func TestMemory_CopiesAtBoundary(t *testing.T) {
	// GIVEN: A stored question
	// WHEN: The caller mutates the returned copy
	// THEN: Stored state is untouched until SaveQuestion

	store := memory.New()
	ctx := context.Background()

	q := &forum.Question{ID: "q1", Author: "u1", Title: "t", Body: "b", CreatedAt: time.Now()}
	require.NoError(t, store.SaveQuestion(ctx, q))

	got, err := store.GetQuestion(ctx, "q1")
	require.NoError(t, err)
	got.Votes.Upvotes = 99
	got.Votes.Voters = append(got.Votes.Voters, forum.VoterEntry{Voter: "v1", Type: forum.VoteUp})

	again, err := store.GetQuestion(ctx, "q1")
	require.NoError(t, err)
	assert.Zero(t, again.Votes.Upvotes)
	assert.Empty(t, again.Votes.Voters)
}

func TestMemory_SaveUser_DuplicateHandle(t *testing.T) {
	// GIVEN: alice is registered
	// WHEN: A different user ID claims the same handle
	// THEN: The save is rejected as InvalidArgument; updating alice's own
	//       row keeps working

	store := memory.New()
	ctx := context.Background()

	require.NoError(t, store.SaveUser(ctx, &gamify.User{ID: "u1", Handle: "alice", CreatedAt: time.Now()}))

	err := store.SaveUser(ctx, &gamify.User{ID: "u2", Handle: "alice", CreatedAt: time.Now()})
	assert.True(t, gamify.IsInvalidArgument(err))

	require.NoError(t, store.SaveUser(ctx, &gamify.User{ID: "u1", Handle: "alice", Points: 5, CreatedAt: time.Now()}))

	// The constraint holds inside transactions too.
	err = store.WithTx(ctx, func(tx forum.Store) error {
		return tx.SaveUser(ctx, &gamify.User{ID: "u3", Handle: "alice", CreatedAt: time.Now()})
	})
	assert.True(t, gamify.IsInvalidArgument(err))
}

func TestMemory_WithTx_RollsBackAllMaps(t *testing.T) {
	// GIVEN: Existing user, question, and answer state
	// WHEN: A transaction mutates and deletes across all three, then fails
	// THEN: Every map is restored to its pre-transaction contents

	store := memory.New()
	ctx := context.Background()

	u := &gamify.User{ID: "u1", Handle: "alice", Points: 7, CreatedAt: time.Now()}
	require.NoError(t, store.SaveUser(ctx, u))
	require.NoError(t, store.SaveQuestion(ctx, &forum.Question{ID: "q1", Author: "u1", Title: "t", Body: "b", CreatedAt: time.Now()}))
	require.NoError(t, store.SaveAnswer(ctx, &forum.Answer{ID: "a1", QuestionID: "q1", Author: "u1", Body: "b", CreatedAt: time.Now()}))

	boom := errors.New("boom")
	err := store.WithTx(ctx, func(tx forum.Store) error {
		u.Points = 1000
		if err := tx.SaveUser(ctx, u); err != nil {
			return err
		}
		if err := tx.DeleteAnswer(ctx, "a1"); err != nil {
			return err
		}
		if err := tx.DeleteQuestion(ctx, "q1"); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := store.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 7, got.Points)
	_, err = store.GetQuestion(ctx, "q1")
	assert.NoError(t, err)
	_, err = store.GetAnswer(ctx, "a1")
	assert.NoError(t, err)
}
