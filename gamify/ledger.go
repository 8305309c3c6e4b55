/*
ledger.go - Pure activity -> delta primitives

PURPOSE:
  The single source of truth for what each activity is worth. Every code
  path that changes a user's totals goes through DeltaFor, so incremental
  accounting and full recomputation can never disagree about values.

COMPOSITION:
  There is deliberately NO "switch vote" or "remove vote" row in the
  table. Removal is the inverse of the original vote delta, and a switch
  is remove-old + apply-new composed with Delta.Add. Keeping the
  primitives minimal keeps them composable.

SEE ALSO:
  - accounting.go: Applies these deltas to stored totals
  - forum/vote.go: Composes removal/switch deltas
*/
package gamify

// =============================================================================
// DELTA TABLE
// =============================================================================

// DeltaFor returns the (points, reputation) value of one activity.
// Pure and stateless; callers apply the result to the scored user.
func DeltaFor(a Activity) Delta {
	switch a.Kind {
	case ActivityAskQuestion:
		return Delta{Points: 5, Reputation: 1}
	case ActivityPostAnswer:
		return Delta{Points: 10, Reputation: 2}
	case ActivityQuestionUpvoted:
		return Delta{Points: 2, Reputation: 2}
	case ActivityQuestionDownvoted:
		return Delta{Points: -1, Reputation: -1}
	case ActivityAnswerUpvoted:
		return Delta{Points: 3, Reputation: 3}
	case ActivityAnswerDownvoted:
		return Delta{Points: -2, Reputation: -2}
	case ActivityAnswerAccepted:
		return Delta{Points: 50, Reputation: 50}
	case ActivityQuestionDeleted:
		// Reverses the ask bonus. Vote income on the question is NOT
		// reversed here; reconciliation recomputes from surviving content.
		return Delta{Points: -5, Reputation: -1}
	case ActivityAnswerDeleted:
		// Reverses the post bonus plus the upvote income the answer had
		// collected: points -(10 + 3u), reputation -(2 + u).
		return Delta{Points: -(10 + 3*a.Upvotes), Reputation: -(2 + a.Upvotes)}
	}
	return Delta{}
}

// RemoveVoteDelta returns the delta for withdrawing a previously applied
// vote activity: the exact inverse of the original award.
func RemoveVoteDelta(original Activity) Delta {
	return DeltaFor(original).Neg()
}

// SwitchVoteDelta returns the combined delta for switching a vote from
// one type to another on the same target: remove-old + apply-new.
func SwitchVoteDelta(old, new Activity) Delta {
	return RemoveVoteDelta(old).Add(DeltaFor(new))
}
