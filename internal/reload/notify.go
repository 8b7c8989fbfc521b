// Package reload implements config reload request notification:
// a SIGUSR2 subscription (notify_sigusr2.go) and an HTTP-triggered
// equivalent (Notify, used by internal/manage's /reload endpoint) feed
// the same channel, so a caller only ever has to watch one place for
// "reload now", spec.md Section 12's "Prometheus management endpoint +
// SIGUSR2 reload" supplemented feature.
package reload

// Notifier implements config reload request notification.
type Notifier struct {
	C chan struct{}
}

// NewNotifier initializes and returns new notifier subscribed to
// SIGUSR2.
func NewNotifier() Notifier {
	n := Notifier{C: make(chan struct{}, 1)}
	n.subscribe()
	return n
}

// Notify implements internal/manage's Notifier interface: an HTTP
// caller can request the same reload a SIGUSR2 signal delivers.
// Non-blocking — a reload already pending is not queued twice.
func (n Notifier) Notify() {
	select {
	case n.C <- struct{}{}:
	default:
	}
}
