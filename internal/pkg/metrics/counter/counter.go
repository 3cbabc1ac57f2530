package counter

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	webhookCountersKey = "webhook:counters"
	dailyKeyTTL        = 8 * 24 * time.Hour
)

// Webhook outcome events.
const (
	EventReceived  = "received"
	EventProcessed = "processed"
	EventFailed    = "failed"
	EventStale     = "stale"
)

// Snapshot is the current value of every webhook counter.
type Snapshot struct {
	Received  int64 `json:"received"`
	Processed int64 `json:"processed"`
	Failed    int64 `json:"failed"`
	Stale     int64 `json:"stale"`
	Today     Daily `json:"today"`
}

// Daily holds the counters of the current UTC day.
type Daily struct {
	Date      string `json:"date"`
	Received  int64  `json:"received"`
	Processed int64  `json:"processed"`
	Failed    int64  `json:"failed"`
	Stale     int64  `json:"stale"`
}

// WebhookCounter keeps webhook outcome counters in Redis hashes: one running
// total and one per UTC day that expires after a week.
type WebhookCounter struct {
	rdb redis.Cmdable
	now func() time.Time
}

// New creates a counter on the given client.
func New(rdb redis.Cmdable) *WebhookCounter {
	return &WebhookCounter{rdb: rdb, now: time.Now}
}

func dailyKey(day string) string {
	return webhookCountersKey + ":" + day
}

// Add increments the total and today's counter for event
func (c *WebhookCounter) Add(ctx context.Context, event string) error {
	day := c.now().UTC().Format("2006-01-02")

	pipe := c.rdb.TxPipeline()
	pipe.HIncrBy(ctx, webhookCountersKey, event, 1)
	pipe.HIncrBy(ctx, dailyKey(day), event, 1)
	pipe.Expire(ctx, dailyKey(day), dailyKeyTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// Snapshot reads all counters
func (c *WebhookCounter) Snapshot(ctx context.Context) (*Snapshot, error) {
	day := c.now().UTC().Format("2006-01-02")

	totals, err := c.rdb.HGetAll(ctx, webhookCountersKey).Result()
	if err != nil {
		return nil, err
	}
	today, err := c.rdb.HGetAll(ctx, dailyKey(day)).Result()
	if err != nil {
		return nil, err
	}

	return &Snapshot{
		Received:  parse(totals[EventReceived]),
		Processed: parse(totals[EventProcessed]),
		Failed:    parse(totals[EventFailed]),
		Stale:     parse(totals[EventStale]),
		Today: Daily{
			Date:      day,
			Received:  parse(today[EventReceived]),
			Processed: parse(today[EventProcessed]),
			Failed:    parse(today[EventFailed]),
			Stale:     parse(today[EventStale]),
		},
	}, nil
}

func parse(v string) int64 {
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
