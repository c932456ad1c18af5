package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	v1 "parley/shared/contracts/realtime/v1"
)

// Broadcaster fans a message out to the authenticated connections of one
// handler whose principals belong to the target conversation.
type Broadcaster struct {
	members MembershipStore
	conns   *Registry[*Conn]
	log     *slog.Logger
	metrics *Metrics
}

func NewBroadcaster(members MembershipStore, conns *Registry[*Conn], log *slog.Logger, metrics *Metrics) *Broadcaster {
	if log == nil {
		log = slog.Default()
	}
	return &Broadcaster{members: members, conns: conns, log: log, metrics: metrics}
}

// Deliver queues content to every other member connection and echoes it to
// the sender. It returns the number of recipients the frame was queued for,
// excluding the echo. Full queues drop the frame for that recipient.
func (b *Broadcaster) Deliver(ctx context.Context, sender *Conn, conversationID int64, content json.RawMessage) (int, error) {
	members, err := b.members.MembersOf(ctx, conversationID)
	if err != nil {
		return 0, fmt.Errorf("members of %d: %w", conversationID, err)
	}
	if _, ok := members[sender.Principal()]; !ok {
		return 0, ErrForbidden
	}

	env := v1.Message(content)
	delivered := 0
	b.conns.Each(func(c *Conn) bool {
		if c.ID == sender.ID || !c.Authenticated() {
			return true
		}
		if _, ok := members[c.Principal()]; !ok {
			return true
		}
		if c.Enqueue(env) {
			delivered++
		} else {
			b.metrics.droppedOne()
			b.log.Info("ws.broadcast.drop", "conn_id", c.ID, "conversation_id", conversationID)
		}
		return true
	})

	if !sender.Enqueue(env) {
		b.metrics.droppedOne()
	}
	b.metrics.deliveredN(delivered)
	return delivered, nil
}
