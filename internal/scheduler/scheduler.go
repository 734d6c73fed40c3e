package scheduler

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"ans-review/internal/config"
	"ans-review/internal/notification"
	"ans-review/internal/repository"
	"ans-review/internal/service"
)

// Scheduler runs the periodic engine tasks: the daily deadline escalation
// scan and the nightly reconciliation of auto-detected conflicts.
type Scheduler struct {
	escalationService   *service.EscalationService
	eligibilityService  *service.EligibilityService
	notificationService *notification.Service
	escalationLogRepo   *repository.EscalationLogRepository
	reviewerRepo        *repository.ReviewerRepository
	config              *config.SchedulerConfig
	stopChan            chan bool
}

// NewScheduler creates a new scheduler
func NewScheduler(
	escalationService *service.EscalationService,
	eligibilityService *service.EligibilityService,
	notificationService *notification.Service,
	escalationLogRepo *repository.EscalationLogRepository,
	reviewerRepo *repository.ReviewerRepository,
	cfg *config.SchedulerConfig,
) *Scheduler {
	return &Scheduler{
		escalationService:   escalationService,
		eligibilityService:  eligibilityService,
		notificationService: notificationService,
		escalationLogRepo:   escalationLogRepo,
		reviewerRepo:        reviewerRepo,
		config:              cfg,
		stopChan:            make(chan bool),
	}
}

// Start starts all scheduled tasks
func (s *Scheduler) Start() {
	slog.Info("Starting scheduler",
		"escalation_scan_enabled", s.config.EnableEscalationScan,
		"coi_sync_enabled", s.config.EnableCOISync)

	if s.config.EnableEscalationScan {
		if err := s.startCronTask(s.config.EscalationScanCron, "escalation_scan", s.runEscalationScan); err != nil {
			slog.Error("Failed to start escalation scan", "error", err)
		}
	}

	if s.config.EnableCOISync {
		if err := s.startCronTask(s.config.COISyncCron, "coi_sync", s.runConflictSync); err != nil {
			slog.Error("Failed to start conflict sync", "error", err)
		}
	}

	slog.Info("Scheduler started")
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	slog.Info("Stopping scheduler")
	close(s.stopChan)
}

// startCronTask parses a cron expression and starts the task.
// Supports simple cron format: "minute hour day month weekday"
// Examples: "0 7 * * *" = Daily 7 AM, "0 9 * * 1" = Monday 9 AM,
// "*/5 * * * *" = Every 5 minutes
func (s *Scheduler) startCronTask(cronExpr, taskName string, task func()) error {
	parts := strings.Fields(cronExpr)
	if len(parts) != 5 {
		return fmt.Errorf("invalid cron expression: %s (expected 5 fields)", cronExpr)
	}

	if strings.HasPrefix(parts[0], "*/") {
		interval, err := strconv.Atoi(parts[0][2:])
		if err != nil || interval < 1 || interval > 59 {
			return fmt.Errorf("invalid minute interval in cron: %s", parts[0])
		}
		go s.scheduleIntervalTask(time.Duration(interval)*time.Minute, taskName, task)
		return nil
	}

	minute, err := strconv.Atoi(parts[0])
	if err != nil || minute < 0 || minute > 59 {
		return fmt.Errorf("invalid minute in cron: %s", parts[0])
	}

	hour, err := strconv.Atoi(parts[1])
	if err != nil || hour < 0 || hour > 23 {
		return fmt.Errorf("invalid hour in cron: %s", parts[1])
	}

	if parts[4] == "*" {
		go s.scheduleDailyTask(hour, minute, taskName, task)
	} else {
		weekday, err := strconv.Atoi(parts[4])
		if err != nil || weekday < 0 || weekday > 6 {
			return fmt.Errorf("invalid weekday in cron: %s (0-6, 0=Sunday)", parts[4])
		}
		go s.scheduleWeeklyTask(time.Weekday(weekday), hour, minute, taskName, task)
	}

	return nil
}

// scheduleIntervalTask runs a task at regular intervals, starting now
func (s *Scheduler) scheduleIntervalTask(interval time.Duration, taskName string, task func()) {
	slog.Info("Starting interval task", "task", taskName, "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	task()

	for {
		select {
		case <-ticker.C:
			slog.Info("Running interval task", "task", taskName)
			task()
		case <-s.stopChan:
			return
		}
	}
}

// scheduleDailyTask runs a task daily at a specific time
func (s *Scheduler) scheduleDailyTask(hour, minute int, taskName string, task func()) {
	for {
		now := time.Now()
		next := nextDailyRun(now, hour, minute)

		slog.Info("Next daily task scheduled", "task", taskName, "next_run", next.Format("2006-01-02 15:04:05"))

		select {
		case <-time.After(next.Sub(now)):
			slog.Info("Running daily task", "task", taskName)
			task()
		case <-s.stopChan:
			return
		}
	}
}

// scheduleWeeklyTask runs a task weekly on a specific weekday and time
func (s *Scheduler) scheduleWeeklyTask(weekday time.Weekday, hour, minute int, taskName string, task func()) {
	for {
		now := time.Now()
		next := nextWeekday(now, weekday, hour, minute)

		slog.Info("Next weekly task scheduled", "task", taskName, "next_run", next.Format("2006-01-02 15:04:05"))

		select {
		case <-time.After(next.Sub(now)):
			slog.Info("Running weekly task", "task", taskName)
			task()
		case <-s.stopChan:
			return
		}
	}
}

// nextDailyRun calculates the next daily run time
func nextDailyRun(from time.Time, hour, minute int) time.Time {
	next := time.Date(from.Year(), from.Month(), from.Day(), hour, minute, 0, 0, from.Location())
	if !next.After(from) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// nextWeekday calculates the next occurrence of a specific weekday and time
func nextWeekday(from time.Time, weekday time.Weekday, hour, minute int) time.Time {
	next := time.Date(from.Year(), from.Month(), from.Day(), hour, minute, 0, 0, from.Location())

	daysUntil := int(weekday - from.Weekday())
	if daysUntil < 0 {
		daysUntil += 7
	}
	next = next.AddDate(0, 0, daysUntil)

	if !next.After(from) {
		next = next.AddDate(0, 0, 7)
	}

	return next
}

// runEscalationScan detects deadline threshold crossings and dispatches
// notifications. The escalation log suppresses duplicates, so re-running
// the scan on the same day sends nothing twice.
func (s *Scheduler) runEscalationScan() {
	slog.Info("Running escalation scan")

	events, err := s.escalationService.DetectEscalationEvents()
	if err != nil {
		slog.Error("Escalation scan failed", "error", err)
		return
	}

	today := time.Now()
	dispatched := 0
	suppressed := 0

	for i := range events {
		event := &events[i]
		key := event.DedupeKey()

		sent, err := s.escalationLogRepo.WasDispatched(key, today)
		if err != nil {
			slog.Error("Failed to check escalation log", "dedupe_key", key, "error", err)
			continue
		}
		if sent {
			suppressed++
			continue
		}

		emails, err := s.escalationService.ResolveRecipientEmails(event.Recipients)
		if err != nil {
			slog.Error("Failed to resolve recipients", "plan_id", event.PlanID, "error", err)
			continue
		}

		if err := s.notificationService.SendEscalationNotice(emails, event); err != nil {
			slog.Error("Failed to send escalation notice",
				"plan_id", event.PlanID,
				"threshold", event.Threshold,
				"error", err)
			continue
		}

		if err := s.escalationLogRepo.MarkDispatched(key, event.EventID, today); err != nil {
			slog.Error("Failed to mark escalation dispatched", "dedupe_key", key, "error", err)
			continue
		}

		s.escalationService.RecordDispatch(event)
		dispatched++
	}

	slog.Info("Escalation scan completed",
		"events", len(events),
		"dispatched", dispatched,
		"suppressed", suppressed)
}

// runConflictSync reconciles auto-detected conflict records for every
// reviewer on the roster.
func (s *Scheduler) runConflictSync() {
	slog.Info("Running conflict sync")

	reviewerIDs, err := s.reviewerRepo.ListProfileUserIDs()
	if err != nil {
		slog.Error("Conflict sync failed", "error", err)
		return
	}

	created, retired := 0, 0
	for _, reviewerID := range reviewerIDs {
		result, err := s.eligibilityService.SyncAutoDetectedConflicts(reviewerID)
		if err != nil {
			slog.Error("Failed to sync conflicts", "reviewer_id", reviewerID, "error", err)
			continue
		}
		created += result.Created
		retired += result.Retired
	}

	slog.Info("Conflict sync completed",
		"reviewers", len(reviewerIDs),
		"created", created,
		"retired", retired)
}
