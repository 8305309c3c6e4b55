/*
badges.go - Milestone badge catalog and evaluator

PURPOSE:
  Maps a cumulative point total to the set of milestone badges it
  unlocks. The catalog is fixed configuration, ordered by ascending
  threshold, so the evaluator output is always a prefix of the catalog.

BADGE SEMANTICS:
  Badges are permanent achievements: they mark a point total the user
  has reached at some time, and are never removed when deletions later
  drop the total below the threshold. Both the live accounting path and
  the reconciliation job are additive-only for badges.
*/
package gamify

// Badge is an immutable catalog entry.
type Badge struct {
	Name        string
	Description string
	Threshold   int
}

// catalog is ordered by ascending threshold. Evaluate depends on that.
var catalog = []Badge{
	{Name: "Beginner", Description: "Joined the community", Threshold: 0},
	{Name: "Contributor", Description: "Earned 100 points", Threshold: 100},
	{Name: "Scholar", Description: "Earned 250 points", Threshold: 250},
	{Name: "Expert", Description: "Earned 500 points", Threshold: 500},
	{Name: "Master", Description: "Earned 1000 points", Threshold: 1000},
	{Name: "Legend", Description: "Earned 2000 points", Threshold: 2000},
	{Name: "Elite", Description: "Earned 3000 points", Threshold: 3000},
	{Name: "Guru", Description: "Earned 5000 points", Threshold: 5000},
}

// Catalog returns the full badge list in ascending threshold order.
func Catalog() []Badge {
	out := make([]Badge, len(catalog))
	copy(out, catalog)
	return out
}

// Evaluate returns the badges unlocked by the given point total: the
// prefix of the catalog whose thresholds are <= points. Deterministic
// and total; a negative total unlocks nothing.
func Evaluate(points int) []Badge {
	var earned []Badge
	for _, b := range catalog {
		if points < b.Threshold {
			break
		}
		earned = append(earned, b)
	}
	return earned
}
