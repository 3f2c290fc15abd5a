// Package queue defines message payloads exchanged over the message broker.
package queue

// Event kinds carried in PushEvent.Kind.
const (
	KindBookReminder = "book.reminder"
	KindMemberJoined = "garden.member.joined"
)

// PushEvent is published whenever a push notification should be delivered
// to a device.  Delivery itself (FCM) happens downstream of the broker;
// the event carries everything a forwarder needs without querying the
// primary database.
type PushEvent struct {
	UserID   uint64 `json:"user_id"`
	FCMToken string `json:"fcm_token"`
	Kind     string `json:"kind"`
	Title    string `json:"title"`
	Body     string `json:"body"`
	QueuedAt string `json:"queued_at"`
}
