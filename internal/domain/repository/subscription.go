package repository

// Subscription is the handle returned by every live-query registration.
// Cancel is idempotent and stops all future event delivery; no handle may
// outlive the session that opened it.
type Subscription interface {
	Cancel()
}
