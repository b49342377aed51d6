package coupon

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/opulence/opulence-api/internal/pkg/logger"
)

const (
	minBroadcastLockTTL = 30 * time.Minute
	broadcastReportTTL  = 24 * time.Hour
)

// releaseScript deletes the lock only while it still holds the caller's token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// BroadcastStatus is the lifecycle of a promotional send
type BroadcastStatus string

const (
	BroadcastRunning   BroadcastStatus = "running"
	BroadcastCompleted BroadcastStatus = "completed"
	BroadcastFailed    BroadcastStatus = "failed"
)

// Tracker serializes broadcasts per coupon and keeps their last report
type Tracker interface {
	// Acquire returns ok=false when a broadcast for couponID is already running.
	// The token identifies the holder and must be passed to Release.
	Acquire(ctx context.Context, couponID uuid.UUID) (token string, ok bool, err error)
	// Release is a no-op unless token still holds the lock
	Release(ctx context.Context, couponID uuid.UUID, token string)
	SaveReport(ctx context.Context, report *SendReport) error
	// LastReport returns nil, nil when no broadcast has been recorded
	LastReport(ctx context.Context, couponID uuid.UUID) (*SendReport, error)
}

// NewTracker returns a Redis-backed tracker, or a process-local one when client is nil.
// lockTTL must cover the longest broadcast; values below 30m are raised to 30m.
func NewTracker(client *redis.Client, lockTTL time.Duration) Tracker {
	if client == nil {
		return NewMemoryTracker()
	}
	if lockTTL < minBroadcastLockTTL {
		lockTTL = minBroadcastLockTTL
	}
	return &RedisTracker{client: client, lockTTL: lockTTL}
}

// RedisTracker shares locks and reports across API instances
type RedisTracker struct {
	client  *redis.Client
	lockTTL time.Duration
}

func lockKey(id uuid.UUID) string   { return "coupon:broadcast:lock:" + id.String() }
func reportKey(id uuid.UUID) string { return "coupon:broadcast:report:" + id.String() }

func (t *RedisTracker) Acquire(ctx context.Context, couponID uuid.UUID) (string, bool, error) {
	token := uuid.NewString()
	ok, err := t.client.SetNX(ctx, lockKey(couponID), token, t.lockTTL).Result()
	if err != nil || !ok {
		return "", false, err
	}
	return token, true, nil
}

func (t *RedisTracker) Release(ctx context.Context, couponID uuid.UUID, token string) {
	if err := releaseScript.Run(ctx, t.client, []string{lockKey(couponID)}, token).Err(); err != nil {
		logger.FromContext(ctx).Warn().Err(err).Str("coupon_id", couponID.String()).Msg("failed to release broadcast lock")
	}
}

func (t *RedisTracker) SaveReport(ctx context.Context, report *SendReport) error {
	raw, err := json.Marshal(report)
	if err != nil {
		return err
	}
	return t.client.Set(ctx, reportKey(report.CouponID), raw, broadcastReportTTL).Err()
}

func (t *RedisTracker) LastReport(ctx context.Context, couponID uuid.UUID) (*SendReport, error) {
	raw, err := t.client.Get(ctx, reportKey(couponID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var report SendReport
	if err := json.Unmarshal(raw, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// MemoryTracker is used when Redis is not configured. State dies with the process.
type MemoryTracker struct {
	mu      sync.Mutex
	running map[uuid.UUID]string
	reports map[uuid.UUID]SendReport
}

func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{
		running: make(map[uuid.UUID]string),
		reports: make(map[uuid.UUID]SendReport),
	}
}

func (t *MemoryTracker) Acquire(_ context.Context, couponID uuid.UUID) (string, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, held := t.running[couponID]; held {
		return "", false, nil
	}
	token := uuid.NewString()
	t.running[couponID] = token
	return token, true, nil
}

func (t *MemoryTracker) Release(_ context.Context, couponID uuid.UUID, token string) {
	t.mu.Lock()
	if t.running[couponID] == token {
		delete(t.running, couponID)
	}
	t.mu.Unlock()
}

func (t *MemoryTracker) SaveReport(_ context.Context, report *SendReport) error {
	t.mu.Lock()
	t.reports[report.CouponID] = *report
	t.mu.Unlock()
	return nil
}

func (t *MemoryTracker) LastReport(_ context.Context, couponID uuid.UUID) (*SendReport, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.reports[couponID]
	if !ok {
		return nil, nil
	}
	return &r, nil
}
