package chattypes

// Notifier surfaces user-visible outcomes of session operations. The CLI
// prints notifications to the terminal; tests capture them. Components never
// swallow an error silently: anything a user should know about goes through
// a Notifier in addition to the returned error.
type Notifier interface {
	Success(msg string)
	Error(msg string)
}

// NopNotifier discards all notifications.
type NopNotifier struct{}

// Success implements Notifier.
func (NopNotifier) Success(string) {}

// Error implements Notifier.
func (NopNotifier) Error(string) {}
