package service

import (
	"time"

	"github.com/accountops/account-deletion/internal/domain"
)

// NextRemindTime returns when the reminder should fire. There is none once the
// request left pending, the reminder went out, reminders are disabled, or the
// reminder instant already passed.
func NextRemindTime(req *domain.DeletionRequest, policy domain.DeletionPolicy, now time.Time) (time.Time, bool) {
	if !req.IsPending() || req.ReminderSent || policy.ReminderLead <= 0 {
		return time.Time{}, false
	}
	at := req.EndDate.Add(-policy.ReminderLead)
	if at.Before(now) {
		return time.Time{}, false
	}
	return at, true
}

// NextDeletionTime returns when the execution should fire. An overdue end date
// resolves to now; a request that is no longer pending has none.
func NextDeletionTime(req *domain.DeletionRequest, now time.Time) (time.Time, bool) {
	if !req.IsPending() {
		return time.Time{}, false
	}
	if req.EndDate.Before(now) {
		return now, true
	}
	return req.EndDate, true
}
