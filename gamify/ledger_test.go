package gamify_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/signalpost/reputation-engine/gamify"
)

// =============================================================================
// DELTA TABLE TESTS
// =============================================================================

func TestDeltaFor_Table(t *testing.T) {
	// GIVEN: The fixed activity value table
	// WHEN: Looking up each activity kind
	// THEN: The (points, reputation) pair matches the documented value

	cases := []struct {
		name string
		act  gamify.Activity
		want gamify.Delta
	}{
		{"ask question", gamify.Activity{Kind: gamify.ActivityAskQuestion}, gamify.Delta{Points: 5, Reputation: 1}},
		{"post answer", gamify.Activity{Kind: gamify.ActivityPostAnswer}, gamify.Delta{Points: 10, Reputation: 2}},
		{"question upvoted", gamify.Activity{Kind: gamify.ActivityQuestionUpvoted}, gamify.Delta{Points: 2, Reputation: 2}},
		{"question downvoted", gamify.Activity{Kind: gamify.ActivityQuestionDownvoted}, gamify.Delta{Points: -1, Reputation: -1}},
		{"answer upvoted", gamify.Activity{Kind: gamify.ActivityAnswerUpvoted}, gamify.Delta{Points: 3, Reputation: 3}},
		{"answer downvoted", gamify.Activity{Kind: gamify.ActivityAnswerDownvoted}, gamify.Delta{Points: -2, Reputation: -2}},
		{"answer accepted", gamify.Activity{Kind: gamify.ActivityAnswerAccepted}, gamify.Delta{Points: 50, Reputation: 50}},
		{"question deleted", gamify.Activity{Kind: gamify.ActivityQuestionDeleted}, gamify.Delta{Points: -5, Reputation: -1}},
		{"answer deleted, no upvotes", gamify.Activity{Kind: gamify.ActivityAnswerDeleted}, gamify.Delta{Points: -10, Reputation: -2}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, gamify.DeltaFor(tc.act))
		})
	}
}

func TestDeltaFor_AnswerDeleted_ScalesWithUpvotes(t *testing.T) {
	// GIVEN: An answer that collected 4 upvotes
	// WHEN: It is deleted
	// THEN: The claw-back is -(10 + 3*4) points and -(2 + 4) reputation

	got := gamify.DeltaFor(gamify.Activity{Kind: gamify.ActivityAnswerDeleted, Upvotes: 4})
	assert.Equal(t, gamify.Delta{Points: -22, Reputation: -6}, got)
}

func TestDeltaFor_UnknownKind_IsZero(t *testing.T) {
	got := gamify.DeltaFor(gamify.Activity{Kind: "no_such_activity"})
	assert.True(t, got.IsZero())
}

// =============================================================================
// COMPOSITION TESTS
// =============================================================================

func TestRemoveVoteDelta_IsExactInverse(t *testing.T) {
	// GIVEN: Any vote activity
	// WHEN: The vote is removed
	// THEN: Applying the award then the removal nets to zero

	votes := []gamify.ActivityKind{
		gamify.ActivityQuestionUpvoted,
		gamify.ActivityQuestionDownvoted,
		gamify.ActivityAnswerUpvoted,
		gamify.ActivityAnswerDownvoted,
	}
	for _, kind := range votes {
		act := gamify.Activity{Kind: kind}
		net := gamify.DeltaFor(act).Add(gamify.RemoveVoteDelta(act))
		assert.True(t, net.IsZero(), "award + removal must cancel for %s", kind)
	}
}

func TestSwitchVoteDelta_ComposedFromPrimitives(t *testing.T) {
	// GIVEN: An existing answer upvote
	// WHEN: The voter switches it to a downvote
	// THEN: The combined delta is remove(+3/+3) then apply(-2/-2) = -5/-5

	up := gamify.Activity{Kind: gamify.ActivityAnswerUpvoted}
	down := gamify.Activity{Kind: gamify.ActivityAnswerDownvoted}

	got := gamify.SwitchVoteDelta(up, down)
	assert.Equal(t, gamify.Delta{Points: -5, Reputation: -5}, got)

	// Switching back is the mirror image.
	assert.Equal(t, gamify.Delta{Points: 5, Reputation: 5}, gamify.SwitchVoteDelta(down, up))
}

func TestDelta_Additivity(t *testing.T) {
	// GIVEN: A history of activities
	// WHEN: Folding the deltas in any grouping
	// THEN: The total is the same as applying them one by one

	history := []gamify.Activity{
		{Kind: gamify.ActivityAskQuestion},
		{Kind: gamify.ActivityPostAnswer},
		{Kind: gamify.ActivityAnswerUpvoted},
		{Kind: gamify.ActivityAnswerUpvoted},
		{Kind: gamify.ActivityQuestionDownvoted},
		{Kind: gamify.ActivityAnswerAccepted},
	}

	var total gamify.Delta
	for _, act := range history {
		total = total.Add(gamify.DeltaFor(act))
	}

	// 5+10+3+3-1+50 / 1+2+3+3-1+50
	assert.Equal(t, gamify.Delta{Points: 70, Reputation: 58}, total)
}
