package transaction

import (
	"context"
	"testing"
	"time"

	"github.com/netice/ice/stun"
	"github.com/netice/ice/transport"
)

type fakeSender struct {
	sent [][]byte
	fail bool
}

func (f *fakeSender) SendTo(b []byte, dst transport.Address) error {
	if f.fail {
		return context.DeadlineExceeded
	}
	f.sent = append(f.sent, append([]byte(nil), b...))
	return nil
}

func newBindingRequest() *stun.Message {
	m := stun.New()
	m.Type = stun.NewType(stun.MethodBinding, stun.ClassRequest)
	m.WriteHeader()
	return m
}

func TestClientTransactionRetransmitsUDP(t *testing.T) {
	sender := &fakeSender{}
	cfg := ClientConfig{RTO: 5 * time.Millisecond, Rc: 3, RTOCap: 20 * time.Millisecond, TCPTimeout: time.Second}
	req := newBindingRequest()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	tx := NewClientTransaction(ctx, sender, transport.Address{}, req, true, cfg, nil)
	resp := newBindingRequest()
	resp.Type = stun.NewType(stun.MethodBinding, stun.ClassSuccessResponse)
	resp.WriteHeader()
	time.Sleep(15 * time.Millisecond)
	tx.HandleResponse(resp)
	select {
	case r := <-tx.Done():
		if r.Err != nil {
			t.Fatalf("unexpected error: %v", r.Err)
		}
		if r.Message == nil {
			t.Fatal("expected message")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for result")
	}
	if len(sender.sent) < 2 {
		t.Fatalf("expected at least one retransmit, sent %d times", len(sender.sent))
	}
}

func TestClientTransactionTimesOut(t *testing.T) {
	sender := &fakeSender{}
	cfg := ClientConfig{RTO: 2 * time.Millisecond, Rc: 2, RTOCap: 4 * time.Millisecond, TCPTimeout: time.Second}
	req := newBindingRequest()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	tx := NewClientTransaction(ctx, sender, transport.Address{}, req, true, cfg, nil)
	select {
	case r := <-tx.Done():
		if r.Err == nil {
			t.Fatal("expected timeout error")
		}
		if err, ok := r.Err.(*Error); !ok || err.Kind != Timeout {
			t.Fatalf("expected Timeout failure, got %v", r.Err)
		}
	case <-time.After(time.Second):
		t.Fatal("test itself timed out")
	}
}

func TestClientTransactionTCPNoRetransmit(t *testing.T) {
	sender := &fakeSender{}
	cfg := ClientConfig{RTO: time.Millisecond, Rc: 7, RTOCap: time.Millisecond, TCPTimeout: 20 * time.Millisecond}
	req := newBindingRequest()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	tx := NewClientTransaction(ctx, sender, transport.Address{}, req, false, cfg, nil)
	time.Sleep(30 * time.Millisecond)
	if len(sender.sent) != 1 {
		t.Fatalf("TCP transaction must send exactly once, sent %d", len(sender.sent))
	}
	select {
	case r := <-tx.Done():
		if err, ok := r.Err.(*Error); !ok || err.Kind != Timeout {
			t.Fatalf("expected timeout, got %v", r.Err)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for result")
	}
}

func TestServerTableDeduplicates(t *testing.T) {
	st := NewServerTable()
	id := stun.NewTransactionID()
	if _, ok := st.Lookup(id); ok {
		t.Fatal("expected no cached response yet")
	}
	st.Store(id, []byte{1, 2, 3})
	raw, ok := st.Lookup(id)
	if !ok {
		t.Fatal("expected cached response")
	}
	if len(raw) != 3 {
		t.Fatalf("unexpected cached payload: %v", raw)
	}
}

func TestAgentRoutesResponseAndFree(t *testing.T) {
	sender := &fakeSender{}
	cfg := DefaultClientConfig()
	cfg.RTO = 50 * time.Millisecond
	agent := NewAgent()
	req := newBindingRequest()
	ctx := context.Background()
	tx := NewClientTransaction(ctx, sender, transport.Address{}, req, true, cfg, nil)
	if err := agent.Start(req.TransactionID, tx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	resp := newBindingRequest()
	resp.TransactionID = req.TransactionID
	resp.Type = stun.NewType(stun.MethodBinding, stun.ClassSuccessResponse)
	resp.WriteHeader()
	if !agent.HandleResponse(req.TransactionID, resp) {
		t.Fatal("expected a match")
	}
	select {
	case r := <-tx.Done():
		if r.Err != nil {
			t.Fatalf("unexpected error: %v", r.Err)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out")
	}
	agent.Free()
	if err := agent.Start(stun.NewTransactionID(), tx); err != errClosed {
		t.Fatalf("expected errClosed after Free, got %v", err)
	}
}
