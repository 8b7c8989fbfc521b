package reload

import "testing"

func TestNotifierNotifyIsNonBlocking(t *testing.T) {
	n := Notifier{C: make(chan struct{}, 1)}
	n.Notify()
	n.Notify() // must not block even though the buffer is already full
	select {
	case <-n.C:
	default:
		t.Fatal("expected a pending notification")
	}
}

func TestNotifierSatisfiesManageNotifier(t *testing.T) {
	var _ interface{ Notify() } = Notifier{}
}
