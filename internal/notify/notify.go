package notify

import (
	"context"
	"fmt"
	"log"

	"github.com/valkey-io/valkey-go"
)

// ValkeyDispatcher delivers new-message notifications for one user and
// keeps the per-conversation unread counters in valkey. The enablement
// flag is user-toggleable and lives in valkey too, outside the chat core.
type ValkeyDispatcher struct {
	client valkey.Client
	userID string
}

// NewValkeyDispatcher connects to valkey at addr.
func NewValkeyDispatcher(addr, userID string) (*ValkeyDispatcher, error) {
	client, err := valkey.NewClient(valkey.ClientOption{InitAddress: []string{addr}})
	if err != nil {
		return nil, fmt.Errorf("notify: connecting to valkey at %s: %w", addr, err)
	}
	return &ValkeyDispatcher{client: client, userID: userID}, nil
}

func (d *ValkeyDispatcher) enabledKey() string {
	return "notify:enabled:" + d.userID
}

func (d *ValkeyDispatcher) unreadKey(conversationID string) string {
	return "notify:unread:" + d.userID + ":" + conversationID
}

// Notify bumps the conversation's unread counter and, when notifications
// are enabled for the user, emits the notification. The chat core never
// calls this for self-originated echoes.
func (d *ValkeyDispatcher) Notify(title, preview, conversationID string) {
	ctx := context.Background()
	if err := d.client.Do(ctx, d.client.B().Incr().Key(d.unreadKey(conversationID)).Build()).Error(); err != nil {
		log.Printf("[notify] bumping unread counter for %s: %v", conversationID, err)
	}
	if !d.Enabled() {
		return
	}
	// Delivery transport (APNs, web push) hangs off here; the dev build
	// logs instead.
	log.Printf("[notify] %s: %s (conversation %s)", title, preview, conversationID)
}

// ClearUnread resets the conversation's unread counter to zero.
func (d *ValkeyDispatcher) ClearUnread(conversationID string) {
	ctx := context.Background()
	if err := d.client.Do(ctx, d.client.B().Del().Key(d.unreadKey(conversationID)).Build()).Error(); err != nil {
		log.Printf("[notify] clearing unread counter for %s: %v", conversationID, err)
	}
}

// Unread returns the conversation's unread counter.
func (d *ValkeyDispatcher) Unread(conversationID string) (int64, error) {
	ctx := context.Background()
	n, err := d.client.Do(ctx, d.client.B().Get().Key(d.unreadKey(conversationID)).Build()).AsInt64()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("notify: reading unread counter: %w", err)
	}
	return n, nil
}

// Enabled reports the user's notification toggle. Missing key means
// enabled: users opt out, not in.
func (d *ValkeyDispatcher) Enabled() bool {
	ctx := context.Background()
	v, err := d.client.Do(ctx, d.client.B().Get().Key(d.enabledKey()).Build()).ToString()
	if err != nil {
		return true
	}
	return v != "0"
}

// SetEnabled stores the user's notification toggle.
func (d *ValkeyDispatcher) SetEnabled(enabled bool) error {
	ctx := context.Background()
	v := "1"
	if !enabled {
		v = "0"
	}
	if err := d.client.Do(ctx, d.client.B().Set().Key(d.enabledKey()).Value(v).Build()).Error(); err != nil {
		return fmt.Errorf("notify: storing toggle: %w", err)
	}
	return nil
}

// Close releases the valkey connection.
func (d *ValkeyDispatcher) Close() {
	d.client.Close()
}
