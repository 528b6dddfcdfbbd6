package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/block-scheduler-api/internal/models"
)

func TestAvailabilityCheckerOverlap(t *testing.T) {
	store := newMemStore()
	store.seed(blockEvent("MAT101", "t1", "r1", "", monday, 2))
	checker := NewAvailabilityChecker(store, store)
	ctx := context.Background()

	at := func(block int) (time.Time, time.Time) {
		start := models.BlockStart(monday, block, time.UTC)
		return start, start.Add(models.BlockDuration)
	}

	for block, wantFree := range map[int]bool{1: true, 2: false, 3: true} {
		start, end := at(block)
		free, err := checker.IsTeacherFree(ctx, "t1", start, end)
		require.NoError(t, err)
		assert.Equal(t, wantFree, free, "teacher block %d", block)

		free, err = checker.IsRoomFree(ctx, "r1", start, end)
		require.NoError(t, err)
		assert.Equal(t, wantFree, free, "room block %d", block)
	}

	start, _ := at(2)
	free, err := checker.IsTeacherFree(ctx, "t1", start.Add(10*time.Minute), start.Add(20*time.Minute))
	require.NoError(t, err)
	assert.False(t, free, "contained interval overlaps")

	free, err = checker.IsTeacherFree(ctx, "t2", start, start.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, free)
}

func TestAvailabilityPolicy(t *testing.T) {
	jan10 := time.Date(2025, time.January, 10, 0, 0, 0, 0, time.UTC)
	policy := NewAvailabilityPolicy([]models.AvailabilityRule{
		{TeacherID: "allow-only", Weekday: 2, BlockFrom: 3, BlockTo: 5, Effect: models.RuleAllow},
		{TeacherID: "mixed", Weekday: 1, BlockFrom: 1, BlockTo: 11, Effect: models.RuleAllow},
		{TeacherID: "mixed", Weekday: 1, BlockFrom: 4, BlockTo: 4, Effect: models.RuleDeny},
		{TeacherID: "expired", Weekday: 1, BlockFrom: 1, BlockTo: 11, Effect: models.RuleDeny, ValidUntil: &jan10},
	})
	day := monday

	assert.True(t, policy.Allows("no-rules", 1, 1, day))
	assert.True(t, policy.Allows("allow-only", 2, 4, day))
	assert.False(t, policy.Allows("allow-only", 2, 6, day))
	assert.False(t, policy.Allows("allow-only", 1, 4, day))
	assert.True(t, policy.Allows("mixed", 1, 3, day))
	assert.False(t, policy.Allows("mixed", 1, 4, day), "deny wins over allow")
	assert.False(t, policy.Allows("expired", 1, 1, day))
	assert.True(t, policy.Allows("expired", 1, 1, day.AddDate(0, 0, 7)), "rule lapsed after valid_until")
}

func TestAvailabilityCheckerPolicyLookup(t *testing.T) {
	store := newMemStore()
	store.rules = []models.AvailabilityRule{{TeacherID: "t1", Weekday: 5, BlockFrom: 1, BlockTo: 11, Effect: models.RuleDeny}}
	checker := NewAvailabilityChecker(store, store)
	friday := monday.AddDate(0, 0, 4)

	ok, err := checker.IsTeacherAvailableByPolicy(context.Background(), "t1", 5, 3, friday)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = checker.IsTeacherAvailableByPolicy(context.Background(), "t1", 4, 3, friday.AddDate(0, 0, -1))
	require.NoError(t, err)
	assert.True(t, ok)
}
