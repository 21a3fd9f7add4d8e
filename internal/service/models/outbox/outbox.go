package outbox

import (
	"time"
)

// Message is a notification effect waiting to be published to RabbitMQ. It is
// inserted in the same transaction as the state change it announces, so a
// committed command always has its notifications on disk even if the broker
// is down.
type Message struct {
	ID           int64
	ExchangeName string
	RoutingKey   string
	Payload      []byte
	ContentType  string
	RetryCount   int
	MaxRetries   int
	LastError    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	NextRetryAt  time.Time
}
