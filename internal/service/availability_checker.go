package service

import (
	"context"
	"time"

	"github.com/noah-isme/block-scheduler-api/internal/models"
)

type eventOverlapReader interface {
	HasTeacherOverlap(ctx context.Context, teacherID string, start, end time.Time) (bool, error)
	HasRoomOverlap(ctx context.Context, roomID string, start, end time.Time) (bool, error)
}

type availabilityRuleReader interface {
	ListAvailabilityRules(ctx context.Context, teacherIDs []string) ([]models.AvailabilityRule, error)
}

// AvailabilityChecker answers overlap and policy questions. Overlap checks
// always read committed storage so a block committed a moment ago is visible
// to the next check.
type AvailabilityChecker struct {
	events eventOverlapReader
	rules  availabilityRuleReader
}

// NewAvailabilityChecker wires the checker to its readers.
func NewAvailabilityChecker(events eventOverlapReader, rules availabilityRuleReader) *AvailabilityChecker {
	return &AvailabilityChecker{events: events, rules: rules}
}

// IsTeacherFree reports whether no committed event of the teacher intersects [start, end).
func (c *AvailabilityChecker) IsTeacherFree(ctx context.Context, teacherID string, start, end time.Time) (bool, error) {
	busy, err := c.events.HasTeacherOverlap(ctx, teacherID, start, end)
	if err != nil {
		return false, err
	}
	return !busy, nil
}

// IsRoomFree reports whether no committed event in the room intersects [start, end).
func (c *AvailabilityChecker) IsRoomFree(ctx context.Context, roomID string, start, end time.Time) (bool, error) {
	busy, err := c.events.HasRoomOverlap(ctx, roomID, start, end)
	if err != nil {
		return false, err
	}
	return !busy, nil
}

// IsTeacherAvailableByPolicy evaluates the teacher's explicit rules for one slot.
func (c *AvailabilityChecker) IsTeacherAvailableByPolicy(ctx context.Context, teacherID string, weekday, block int, date time.Time) (bool, error) {
	policy, err := c.LoadPolicy(ctx, []string{teacherID})
	if err != nil {
		return false, err
	}
	return policy.Allows(teacherID, weekday, block, date), nil
}

// LoadPolicy snapshots the rules of several teachers for repeated evaluation.
func (c *AvailabilityChecker) LoadPolicy(ctx context.Context, teacherIDs []string) (AvailabilityPolicy, error) {
	policy := AvailabilityPolicy{rules: make(map[string][]models.AvailabilityRule)}
	if c.rules == nil || len(teacherIDs) == 0 {
		return policy, nil
	}
	rules, err := c.rules.ListAvailabilityRules(ctx, teacherIDs)
	if err != nil {
		return policy, err
	}
	for _, rule := range rules {
		policy.rules[rule.TeacherID] = append(policy.rules[rule.TeacherID], rule)
	}
	return policy, nil
}

// AvailabilityPolicy holds explicit allow/deny rules per teacher.
type AvailabilityPolicy struct {
	rules map[string][]models.AvailabilityRule
}

// NewAvailabilityPolicy builds a policy from a flat rule list.
func NewAvailabilityPolicy(rules []models.AvailabilityRule) AvailabilityPolicy {
	policy := AvailabilityPolicy{rules: make(map[string][]models.AvailabilityRule)}
	for _, rule := range rules {
		policy.rules[rule.TeacherID] = append(policy.rules[rule.TeacherID], rule)
	}
	return policy
}

// Allows applies the rules valid on date: any matching DENY forbids the slot;
// when ALLOW rules exist one of them must match; with no rules the slot is
// allowed.
func (p AvailabilityPolicy) Allows(teacherID string, weekday, block int, date time.Time) bool {
	hasAllow := false
	allowed := false
	for _, rule := range p.rules[teacherID] {
		if !rule.ActiveOn(date) {
			continue
		}
		switch rule.Effect {
		case models.RuleDeny:
			if rule.Matches(weekday, block) {
				return false
			}
		case models.RuleAllow:
			hasAllow = true
			if rule.Matches(weekday, block) {
				allowed = true
			}
		}
	}
	return !hasAllow || allowed
}
