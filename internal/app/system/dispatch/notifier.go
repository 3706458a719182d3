package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Notification tells one driver about a broadcast order.
type Notification struct {
	OrderID       string    `json:"orderId"`
	OrderRef      string    `json:"orderRef"`
	DriverID      string    `json:"driverId"`
	Distance      float64   `json:"distance"`
	PriorityScore float64   `json:"priorityScore"`
	PickupAddress string    `json:"pickupAddress,omitempty"`
	ExpiresAt     time.Time `json:"expiresAt"`
}

// Notifier delivers broadcast notifications to drivers.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
	Kind() string
}

// LogNotifier writes notifications to the log. It is the default when no
// Redis URL is configured.
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Kind() string { return "log" }

func (n *LogNotifier) Notify(_ context.Context, msg Notification) error {
	n.log.Info("driver notified",
		zap.String("order_id", msg.OrderID),
		zap.String("order_ref", msg.OrderRef),
		zap.String("driver_id", msg.DriverID),
		zap.Float64("distance_m", msg.Distance),
		zap.Float64("priority_score", msg.PriorityScore))
	return nil
}

// Publisher is the subset of the go-redis client used for notifications.
type Publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// RedisNotifier publishes each notification as JSON on
// "<prefix>:driver:<driverId>".
type RedisNotifier struct {
	pub    Publisher
	raw    *redis.Client
	prefix string
}

// DefaultChannelPrefix is used when no prefix is configured.
const DefaultChannelPrefix = "fleetdesk"

// NewRedisNotifier connects to url and verifies the connection.
func NewRedisNotifier(ctx context.Context, url, prefix string) (*RedisNotifier, error) {
	if url == "" {
		return nil, errors.New("redis url is required")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	raw := redis.NewClient(opts)
	if err := raw.Ping(ctx).Err(); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisNotifier{pub: raw, raw: raw, prefix: normalizePrefix(prefix)}, nil
}

// NewRedisNotifierWith builds a notifier over an existing publisher such as
// a *redis.Client or *redis.ClusterClient.
func NewRedisNotifierWith(pub Publisher, prefix string) *RedisNotifier {
	n := &RedisNotifier{pub: pub, prefix: normalizePrefix(prefix)}
	if c, ok := pub.(*redis.Client); ok {
		n.raw = c
	}
	return n
}

func normalizePrefix(p string) string {
	p = strings.TrimRight(strings.TrimSpace(p), ":")
	if p == "" {
		return DefaultChannelPrefix
	}
	return p
}

func (n *RedisNotifier) Kind() string { return "redis" }

// Channel returns the channel a driver's notifications go to.
func (n *RedisNotifier) Channel(driverID string) string {
	return n.prefix + ":driver:" + driverID
}

func (n *RedisNotifier) Notify(ctx context.Context, msg Notification) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return n.pub.Publish(ctx, n.Channel(msg.DriverID), payload).Err()
}

// Ping checks the Redis connection.
func (n *RedisNotifier) Ping(ctx context.Context) error {
	if n.raw == nil {
		return nil
	}
	return n.raw.Ping(ctx).Err()
}

// Close releases the connection pool.
func (n *RedisNotifier) Close() error {
	if n.raw == nil {
		return nil
	}
	return n.raw.Close()
}
