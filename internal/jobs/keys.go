package jobs

// Per-user job keys. Every schedule or cancel for the same user addresses the
// same key, so later registrations replace earlier ones.

func ReminderKey(userID string) string { return "account_delete_reminder:" + userID }

func RunnerKey(userID string) string { return "account_delete_runner:" + userID }

// ImmediateKey holds an execution enqueued without a cooling-off period.
func ImmediateKey(userID string) string { return "account_delete_immediate:" + userID }

// CleanupKey guards the post-deletion cleanup batch against double enqueue.
func CleanupKey(userID string) string { return "account_delete_cleanup:" + userID }

func ReminderMailKey(userID string) string { return "account_delete_reminder_mail:" + userID }
