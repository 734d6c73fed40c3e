package service

import (
	"testing"
	"time"

	"ans-review/internal/models"
)

func TestPlanThreshold(t *testing.T) {
	tests := []struct {
		days      int
		threshold string
		fires     bool
	}{
		{-10, models.ThresholdOverdue, true},
		{-1, models.ThresholdOverdue, true},
		{0, models.ThresholdDueToday, true},
		{1, models.ThresholdOneDayBefore, true},
		{2, "", false},
		{6, "", false},
		{7, models.ThresholdSevenDaysBefore, true},
		{8, "", false},
		{30, "", false},
	}

	for _, tt := range tests {
		threshold, fires := planThreshold(tt.days)
		if fires != tt.fires || threshold != tt.threshold {
			t.Errorf("planThreshold(%d) = (%q, %v), want (%q, %v)", tt.days, threshold, fires, tt.threshold, tt.fires)
		}
	}
}

func trackedPlan(planID uint, due time.Time) models.TrackedPlan {
	return models.TrackedPlan{
		Plan: models.CorrectiveActionPlan{
			ID:        planID,
			FindingID: planID + 100,
			Status:    models.CAPStatusInProgress,
			DueDate:   due,
		},
		FindingTitle:     "Obstacle data outdated",
		FindingSeverity:  models.FindingMajor,
		OrganizationID:   9,
		OrganizationName: "Testland ANSP",
	}
}

func TestBuildEscalationEvents(t *testing.T) {
	now := time.Date(2026, 3, 10, 7, 0, 0, 0, time.UTC)

	tracked := []models.TrackedPlan{
		trackedPlan(1, now.AddDate(0, 0, -3)), // overdue
		trackedPlan(2, now),                   // due today
		trackedPlan(3, now.AddDate(0, 0, 7)),  // seven-day warning
		trackedPlan(4, now.AddDate(0, 0, 30)), // quiet
	}

	events := BuildEscalationEvents(tracked, nil, now)
	if len(events) != 3 {
		t.Fatalf("Expected 3 events, got %d", len(events))
	}

	byPlan := map[uint]models.EscalationEvent{}
	for _, e := range events {
		byPlan[e.PlanID] = e
		if e.EventID == "" {
			t.Error("Every event needs an event ID")
		}
		if !e.DetectedAt.Equal(now) {
			t.Errorf("DetectedAt = %v, want %v", e.DetectedAt, now)
		}
	}

	if byPlan[1].Threshold != models.ThresholdOverdue {
		t.Errorf("Plan 1 threshold = %s, want %s", byPlan[1].Threshold, models.ThresholdOverdue)
	}
	if byPlan[2].Threshold != models.ThresholdDueToday {
		t.Errorf("Plan 2 threshold = %s, want %s", byPlan[2].Threshold, models.ThresholdDueToday)
	}
	if byPlan[3].Threshold != models.ThresholdSevenDaysBefore {
		t.Errorf("Plan 3 threshold = %s, want %s", byPlan[3].Threshold, models.ThresholdSevenDaysBefore)
	}
	if _, ok := byPlan[4]; ok {
		t.Error("Plan 4 should stay quiet")
	}
}

func TestBuildEscalationEventsMilestones(t *testing.T) {
	now := time.Date(2026, 3, 10, 7, 0, 0, 0, time.UTC)

	tracked := []models.TrackedPlan{
		trackedPlan(1, now.AddDate(0, 0, 30)),
	}
	milestones := []models.Milestone{
		{ID: 11, PlanID: 1, Title: "Interim fix", TargetDate: now.AddDate(0, 0, -2)},
		{ID: 12, PlanID: 99, Title: "Orphan", TargetDate: now.AddDate(0, 0, -2)},
	}

	events := BuildEscalationEvents(tracked, milestones, now)
	if len(events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(events))
	}
	e := events[0]
	if e.Threshold != models.ThresholdMilestoneLate {
		t.Errorf("Threshold = %s, want %s", e.Threshold, models.ThresholdMilestoneLate)
	}
	if e.MilestoneID == nil || *e.MilestoneID != 11 {
		t.Error("Expected milestone 11 on the event")
	}
	if e.DedupeKey() != "milestone:11:MILESTONE_OVERDUE" {
		t.Errorf("Unexpected dedupe key: %s", e.DedupeKey())
	}
}

func TestBuildEscalationEventsAtMostOnePerPlan(t *testing.T) {
	now := time.Date(2026, 3, 10, 7, 0, 0, 0, time.UTC)
	tracked := []models.TrackedPlan{trackedPlan(1, now.AddDate(0, 0, -1))}

	events := BuildEscalationEvents(tracked, nil, now)
	if len(events) != 1 {
		t.Fatalf("Expected exactly one event per plan, got %d", len(events))
	}
}
