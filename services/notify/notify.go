package notify

import "log"

// Notifier is the delivery contract consumed by the alert evaluator. The
// actual email/push plumbing lives outside this service; implementations only
// promise to report success or failure for one message.
type Notifier interface {
	Send(recipient, subject, message string) error
}

// LogNotifier writes notifications to the application log. It stands in for
// the real dispatcher in development and tests.
type LogNotifier struct{}

// Send logs the notification and always succeeds
func (LogNotifier) Send(recipient, subject, message string) error {
	log.Printf("Notification to %s: %s - %s", recipient, subject, message)
	return nil
}
