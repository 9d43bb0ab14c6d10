package rediscache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Hint says "order changed, re-read it". Delivery is at-least-once and
// unordered relative to reads.
type Hint struct {
	OrderID string    `json:"orderId"`
	Kind    string    `json:"kind"`
	At      time.Time `json:"at"`
}

type Notifier struct {
	c   *redis.Client
	now func() time.Time
}

func NewNotifier(c *redis.Client) *Notifier {
	return &Notifier{c: c, now: time.Now}
}

func ChangesChannel(orderID string) string {
	return fmt.Sprintf("orders:%s:changes", orderID)
}

func (n *Notifier) Notify(ctx context.Context, orderID, kind string) error {
	b, err := json.Marshal(Hint{OrderID: orderID, Kind: kind, At: n.now().UTC()})
	if err != nil {
		return errors.Wrap(err, "marshal hint")
	}
	if err := n.c.Publish(ctx, ChangesChannel(orderID), b).Err(); err != nil {
		return errors.Wrap(err, "redis publish")
	}
	return nil
}

// Subscribe streams hints for one order until ctx is done or stop is called.
func (n *Notifier) Subscribe(ctx context.Context, orderID string) (<-chan Hint, func(), error) {
	sub := n.c.Subscribe(ctx, ChangesChannel(orderID))
	// ждём подтверждения подписки, иначе первые публикации теряются
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, errors.Wrap(err, "redis subscribe")
	}

	out := make(chan Hint, 16)
	done := make(chan struct{})
	go func() {
		defer close(out)
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case m, ok := <-msgs:
				if !ok {
					return
				}
				var h Hint
				if err := json.Unmarshal([]byte(m.Payload), &h); err != nil {
					slog.Warn("bad change hint", "channel", m.Channel, "error", err.Error())
					continue
				}
				select {
				case out <- h:
				default:
					// подписчик не успевает: подсказки идемпотентны, лишние можно выбросить
				}
			}
		}
	}()

	stopped := false
	stop := func() {
		if stopped {
			return
		}
		stopped = true
		close(done)
		_ = sub.Close()
	}
	return out, stop, nil
}
