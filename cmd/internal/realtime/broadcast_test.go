package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	v1 "parley/shared/contracts/realtime/v1"
)

func authedConn(t *testing.T, id string, pid int64) *Conn {
	t.Helper()
	c := newTestConn(t, id, pid, newFakeTransport())
	c.markAuthenticated(pid)
	return c
}

func drain(c *Conn) []v1.Envelope {
	var out []v1.Envelope
	for {
		select {
		case env := <-c.send:
			out = append(out, env)
		default:
			return out
		}
	}
}

func TestBroadcaster_DeliversToMembersAndEchoes(t *testing.T) {
	members := NewInMemoryMembershipStore()
	members.SetMembers(7, 1, 2, 4)

	conns := NewRegistry[*Conn]()
	sender := authedConn(t, "s", 1)
	peer := authedConn(t, "p", 2)
	outsider := authedConn(t, "o", 3)
	sameUserOtherTab := authedConn(t, "s2", 1)
	pending := newTestConn(t, "u", 4, newFakeTransport())
	for _, c := range []*Conn{sender, peer, outsider, sameUserOtherTab, pending} {
		conns.Add(c.ID, c)
	}

	b := NewBroadcaster(members, conns, discardLogger(), NewMetrics(nil))
	body := json.RawMessage(`"hello"`)
	n, err := b.Deliver(context.Background(), sender, 7, body)
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if n != 2 {
		t.Fatalf("delivered=%d want 2 (peer + sender's other connection)", n)
	}

	for _, tc := range []struct {
		c    *Conn
		want int
	}{
		{sender, 1}, {peer, 1}, {sameUserOtherTab, 1}, {outsider, 0}, {pending, 0},
	} {
		got := drain(tc.c)
		if len(got) != tc.want {
			t.Fatalf("conn %s got %d frames want %d", tc.c.ID, len(got), tc.want)
		}
		if tc.want == 1 {
			if got[0].Type != v1.TypeMessage || !got[0].IsValid || string(got[0].Content) != `"hello"` {
				t.Fatalf("conn %s frame=%+v", tc.c.ID, got[0])
			}
		}
	}
}

func TestBroadcaster_Errors(t *testing.T) {
	members := NewInMemoryMembershipStore()
	members.SetMembers(7, 2)
	b := NewBroadcaster(members, NewRegistry[*Conn](), discardLogger(), nil)
	sender := authedConn(t, "s", 1)

	if _, err := b.Deliver(context.Background(), sender, 7, json.RawMessage(`"x"`)); !errors.Is(err, ErrForbidden) {
		t.Fatalf("non-member err=%v want ErrForbidden", err)
	}
	if _, err := b.Deliver(context.Background(), sender, 8, json.RawMessage(`"x"`)); !errors.Is(err, ErrConversationNotFound) {
		t.Fatalf("missing conversation err=%v", err)
	}
	if got := drain(sender); len(got) != 0 {
		t.Fatalf("failed delivery must not echo, got %d frames", len(got))
	}
}

func TestBroadcaster_FullQueueDropsWithoutBlocking(t *testing.T) {
	members := NewInMemoryMembershipStore()
	members.SetMembers(7, 1, 2)
	conns := NewRegistry[*Conn]()
	sender := authedConn(t, "s", 1)
	slow := authedConn(t, "slow", 2)
	conns.Add(sender.ID, sender)
	conns.Add(slow.ID, slow)

	for slow.Enqueue(v1.Info("filler")) {
	}

	b := NewBroadcaster(members, conns, discardLogger(), nil)
	done := make(chan int, 1)
	go func() {
		n, _ := b.Deliver(context.Background(), sender, 7, json.RawMessage(`"x"`))
		done <- n
	}()
	select {
	case n := <-done:
		if n != 0 {
			t.Fatalf("delivered=%d want 0", n)
		}
	case <-time.After(time.Second):
		t.Fatalf("Deliver blocked on a full queue")
	}
}
