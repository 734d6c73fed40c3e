package service

import "time"

// containsString checks whether a string slice contains a value
func containsString(slice []string, value string) bool {
	for _, s := range slice {
		if s == value {
			return true
		}
	}
	return false
}

// hasAnyRole reports whether the actor's roles intersect the wanted set
func hasAnyRole(actorRoles, wanted []string) bool {
	for _, role := range wanted {
		if containsString(actorRoles, role) {
			return true
		}
	}
	return false
}

// startOfDay truncates a timestamp to local midnight. Deadline arithmetic
// works in calendar days, not 24h windows.
func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// calendarDaysUntil returns the number of calendar days from now until the
// target date. Negative when the target is in the past.
func calendarDaysUntil(now, target time.Time) int {
	return int(startOfDay(target).Sub(startOfDay(now)).Hours() / 24)
}
