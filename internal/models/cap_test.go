package models

import (
	"testing"
	"time"
)

func TestIsValidCAPTransition(t *testing.T) {
	tests := []struct {
		from  string
		to    string
		valid bool
	}{
		{CAPStatusDraft, CAPStatusSubmitted, true},
		{CAPStatusDraft, CAPStatusAccepted, false},
		{CAPStatusSubmitted, CAPStatusUnderReview, true},
		{CAPStatusSubmitted, CAPStatusDraft, true},
		{CAPStatusUnderReview, CAPStatusAccepted, true},
		{CAPStatusUnderReview, CAPStatusRejected, true},
		{CAPStatusUnderReview, CAPStatusClosed, false},
		{CAPStatusRejected, CAPStatusDraft, true},
		{CAPStatusRejected, CAPStatusSubmitted, false},
		{CAPStatusAccepted, CAPStatusInProgress, true},
		{CAPStatusInProgress, CAPStatusCompleted, true},
		{CAPStatusCompleted, CAPStatusVerified, true},
		{CAPStatusCompleted, CAPStatusInProgress, true},
		{CAPStatusVerified, CAPStatusClosed, true},
		{CAPStatusClosed, CAPStatusDraft, false},
		{CAPStatusClosed, CAPStatusVerified, false},
		{"BOGUS", CAPStatusDraft, false},
	}

	for _, tt := range tests {
		if got := IsValidCAPTransition(tt.from, tt.to); got != tt.valid {
			t.Errorf("IsValidCAPTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.valid)
		}
	}
}

func TestCAPStatusClosedIsTerminal(t *testing.T) {
	for _, targets := range capStatusTransitions {
		for _, to := range targets {
			if to == CAPStatusClosed && !IsValidCAPTransition(CAPStatusVerified, CAPStatusClosed) {
				t.Error("CLOSED must be reachable from VERIFIED")
			}
		}
	}
	if len(capStatusTransitions[CAPStatusClosed]) != 0 {
		t.Error("CLOSED must have no outgoing transitions")
	}
}

func TestSuggestedCAPDueDate(t *testing.T) {
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		severity string
		days     int
	}{
		{FindingCritical, 30},
		{FindingMajor, 60},
		{FindingMinor, 90},
		{FindingObservation, 180},
		{"UNKNOWN", 180},
	}

	for _, tt := range tests {
		want := from.AddDate(0, 0, tt.days)
		if got := SuggestedCAPDueDate(tt.severity, from); !got.Equal(want) {
			t.Errorf("SuggestedCAPDueDate(%s) = %v, want %v", tt.severity, got, want)
		}
	}
}

func TestCAPProgressEstimate(t *testing.T) {
	if got := CAPProgressEstimate(CAPStatusDraft); got != 0 {
		t.Errorf("Expected 0 for draft, got %d", got)
	}
	if got := CAPProgressEstimate(CAPStatusInProgress); got != 50 {
		t.Errorf("Expected 50 for in progress, got %d", got)
	}
	if got := CAPProgressEstimate(CAPStatusClosed); got != 100 {
		t.Errorf("Expected 100 for closed, got %d", got)
	}
}

func TestEscalationEventDedupeKey(t *testing.T) {
	event := EscalationEvent{PlanID: 12, Threshold: ThresholdOverdue}
	if got := event.DedupeKey(); got != "plan:12:OVERDUE" {
		t.Errorf("Unexpected plan dedupe key: %s", got)
	}

	milestoneID := uint(5)
	event.MilestoneID = &milestoneID
	event.Threshold = ThresholdMilestoneLate
	if got := event.DedupeKey(); got != "milestone:5:MILESTONE_OVERDUE" {
		t.Errorf("Unexpected milestone dedupe key: %s", got)
	}
}
