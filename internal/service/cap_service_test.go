package service

import (
	"testing"
	"time"

	"ans-review/internal/models"
)

func TestCalculateDeadlineInfo(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)

	tests := []struct {
		name     string
		due      time.Time
		days     int
		overdue  bool
		dueToday bool
		dueSoon  bool
		urgency  string
	}{
		{"yesterday", now.AddDate(0, 0, -1), -1, true, false, false, models.UrgencyOverdue},
		{"earlier today", time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC), 0, false, true, false, models.UrgencyCritical},
		{"later today", time.Date(2026, 3, 10, 23, 0, 0, 0, time.UTC), 0, false, true, false, models.UrgencyCritical},
		{"tomorrow", now.AddDate(0, 0, 1), 1, false, false, true, models.UrgencyCritical},
		{"in two days", now.AddDate(0, 0, 2), 2, false, false, true, models.UrgencyWarning},
		{"in seven days", now.AddDate(0, 0, 7), 7, false, false, true, models.UrgencyWarning},
		{"in eight days", now.AddDate(0, 0, 8), 8, false, false, false, models.UrgencyNormal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := CalculateDeadlineInfo(tt.due, models.CAPStatusInProgress, 0, 0, now)
			if info.DaysRemaining != tt.days {
				t.Errorf("DaysRemaining = %d, want %d", info.DaysRemaining, tt.days)
			}
			if info.IsOverdue != tt.overdue {
				t.Errorf("IsOverdue = %v, want %v", info.IsOverdue, tt.overdue)
			}
			if info.IsDueToday != tt.dueToday {
				t.Errorf("IsDueToday = %v, want %v", info.IsDueToday, tt.dueToday)
			}
			if info.IsDueSoon != tt.dueSoon {
				t.Errorf("IsDueSoon = %v, want %v", info.IsDueSoon, tt.dueSoon)
			}
			if info.UrgencyLevel != tt.urgency {
				t.Errorf("UrgencyLevel = %s, want %s", info.UrgencyLevel, tt.urgency)
			}
		})
	}
}

func TestCalculateDeadlineInfoProgress(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	due := now.AddDate(0, 0, 30)

	// No milestones: status estimate
	info := CalculateDeadlineInfo(due, models.CAPStatusInProgress, 0, 0, now)
	if info.PercentComplete != 50 {
		t.Errorf("Expected status estimate 50, got %d", info.PercentComplete)
	}

	// Milestones win over the estimate
	info = CalculateDeadlineInfo(due, models.CAPStatusInProgress, 4, 3, now)
	if info.PercentComplete != 75 {
		t.Errorf("Expected 75 from milestones, got %d", info.PercentComplete)
	}

	info = CalculateDeadlineInfo(due, models.CAPStatusDraft, 3, 0, now)
	if info.PercentComplete != 0 {
		t.Errorf("Expected 0 with no milestones done, got %d", info.PercentComplete)
	}
}
