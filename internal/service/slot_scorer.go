package service

import "github.com/noah-isme/block-scheduler-api/internal/models"

// Score weights. One priority step outweighs the whole load range, and one
// load percentage point outweighs both bonuses combined.
const (
	scorePriorityWeight  int64 = 100_000
	scoreLoadWeight      int64 = 100
	scorePreferredBonus  int64 = 50
	scoreContiguityBonus int64 = 25
	scorePriorityCeiling       = 1000
)

// SlotCandidate is the input to SlotScorer for one (teacher, room, slot).
type SlotCandidate struct {
	Priority      int
	CapMinutes    int
	UsedMinutes   int
	PreferredRoom bool
	Adjacent      bool
}

// SlotScorer ranks feasible candidates. It is stateless and deterministic.
type SlotScorer struct{}

// NewSlotScorer returns a scorer.
func NewSlotScorer() *SlotScorer {
	return &SlotScorer{}
}

// Score returns a positive score for a usable candidate and 0 when the
// candidate must be rejected.
func (s *SlotScorer) Score(c SlotCandidate) int64 {
	if c.CapMinutes <= 0 {
		return 0
	}
	remaining := c.CapMinutes - c.UsedMinutes - models.BlockMinutes
	if remaining < 0 {
		return 0
	}

	priority := c.Priority
	if priority < 0 {
		priority = 0
	}
	if priority >= scorePriorityCeiling {
		priority = scorePriorityCeiling - 1
	}

	score := int64(scorePriorityCeiling-priority) * scorePriorityWeight
	score += int64(remaining*100/c.CapMinutes) * scoreLoadWeight
	if c.PreferredRoom {
		score += scorePreferredBonus
	}
	if c.Adjacent {
		score += scoreContiguityBonus
	}
	return score
}
