package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/lalithlochan/beacon/internal/platform"
)

var ErrNeverFires = errors.New("trigger never fires")

const (
	triggerInterval = "interval"
	triggerCalendar = "calendar"
)

// requestRecord is the stored form of a platform.Request.
type requestRecord struct {
	Identifier string           `json:"identifier"`
	Content    platform.Content `json:"content"`
	Trigger    triggerRecord    `json:"trigger"`
	FireAt     time.Time        `json:"fire_at"`
}

type triggerRecord struct {
	Kind     string        `json:"kind"`
	Interval time.Duration `json:"interval,omitempty"`
	Spec     string        `json:"spec,omitempty"`
	Repeats  bool          `json:"repeats"`
}

// Center is the modern notification center. Requests live in a hash keyed by
// identifier and a sorted set scored by fire time, so adding an identifier
// that already exists replaces it.
type Center struct {
	client *Client
	now    func() time.Time
	logger *zap.Logger
}

var _ platform.NotificationCenter = (*Center)(nil)

func NewCenter(client *Client, logger *zap.Logger) *Center {
	return &Center{client: client, now: time.Now, logger: logger}
}

func (c *Center) requestsKey() string { return c.client.key("center", "requests") }
func (c *Center) dueKey() string      { return c.client.key("center", "due") }

// Add stores req and schedules its next fire date.
func (c *Center) Add(ctx context.Context, req platform.Request) error {
	if req.Trigger == nil {
		return fmt.Errorf("request %q has no trigger", req.Identifier)
	}
	fireAt, ok := req.Trigger.NextFireDate(c.now())
	if !ok {
		return fmt.Errorf("request %q: %w", req.Identifier, ErrNeverFires)
	}

	trigger, err := encodeTrigger(req.Trigger)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(requestRecord{
		Identifier: req.Identifier,
		Content:    req.Content,
		Trigger:    trigger,
		FireAt:     fireAt,
	})
	if err != nil {
		return fmt.Errorf("marshal request %q: %w", req.Identifier, err)
	}

	_, err = c.client.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, c.requestsKey(), req.Identifier, payload)
		p.ZAdd(ctx, c.dueKey(), redis.Z{Score: float64(fireAt.UnixMilli()), Member: req.Identifier})
		return nil
	})
	if err != nil {
		return fmt.Errorf("store request %q: %w", req.Identifier, err)
	}

	c.logger.Debug("request stored",
		zap.String("identifier", req.Identifier),
		zap.Time("fire_at", fireAt),
	)
	return nil
}

// Due claims up to limit requests whose fire date is not after now and
// returns them as delivered notifications. A claimed request is removed;
// repeating ones are expected to be re-added on presentation.
func (c *Center) Due(ctx context.Context, now time.Time, limit int) ([]platform.Notification, error) {
	ids, err := c.client.rdb.ZRangeByScore(ctx, c.dueKey(), &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.UnixMilli(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("query due requests: %w", err)
	}

	var delivered []platform.Notification
	for _, id := range ids {
		n, ok, err := c.claim(ctx, id, now)
		if err != nil {
			return delivered, err
		}
		if ok {
			delivered = append(delivered, n)
		}
	}
	return delivered, nil
}

// claimScript removes a due request in one step: the due-set member only if
// it is still due, then its record. A same-identifier Add cannot land in
// between.
var claimScript = redis.NewScript(`
local score = redis.call('ZSCORE', KEYS[1], ARGV[1])
if not score or tonumber(score) > tonumber(ARGV[2]) then
	return false
end
redis.call('ZREM', KEYS[1], ARGV[1])
local raw = redis.call('HGET', KEYS[2], ARGV[1])
redis.call('HDEL', KEYS[2], ARGV[1])
return raw
`)

// claim takes id if it is still due at now; only one caller wins.
func (c *Center) claim(ctx context.Context, id string, now time.Time) (platform.Notification, bool, error) {
	raw, err := claimScript.Run(ctx, c.client.rdb,
		[]string{c.dueKey(), c.requestsKey()},
		id, strconv.FormatInt(now.UnixMilli(), 10),
	).Text()
	if errors.Is(err, redis.Nil) {
		return platform.Notification{}, false, nil
	}
	if err != nil {
		return platform.Notification{}, false, fmt.Errorf("claim %q: %w", id, err)
	}

	var rec requestRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return platform.Notification{}, false, fmt.Errorf("decode %q: %w", id, err)
	}
	trigger, err := decodeTrigger(rec.Trigger)
	if err != nil {
		return platform.Notification{}, false, fmt.Errorf("decode trigger %q: %w", id, err)
	}

	return platform.Notification{
		Request: platform.Request{
			Identifier: rec.Identifier,
			Content:    rec.Content,
			Trigger:    trigger,
		},
		Date: rec.FireAt,
	}, true, nil
}

// Pending returns the stored request for id, if any.
func (c *Center) Pending(ctx context.Context, id string) (platform.Request, time.Time, bool, error) {
	raw, err := c.client.rdb.HGet(ctx, c.requestsKey(), id).Bytes()
	if errors.Is(err, redis.Nil) {
		return platform.Request{}, time.Time{}, false, nil
	}
	if err != nil {
		return platform.Request{}, time.Time{}, false, fmt.Errorf("load %q: %w", id, err)
	}
	var rec requestRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return platform.Request{}, time.Time{}, false, fmt.Errorf("decode %q: %w", id, err)
	}
	trigger, err := decodeTrigger(rec.Trigger)
	if err != nil {
		return platform.Request{}, time.Time{}, false, err
	}
	return platform.Request{Identifier: rec.Identifier, Content: rec.Content, Trigger: trigger}, rec.FireAt, true, nil
}

// PendingCount is the number of requests waiting to fire.
func (c *Center) PendingCount(ctx context.Context) (int64, error) {
	return c.client.rdb.ZCard(ctx, c.dueKey()).Result()
}

func encodeTrigger(t platform.Trigger) (triggerRecord, error) {
	switch tr := t.(type) {
	case platform.IntervalTrigger:
		return triggerRecord{Kind: triggerInterval, Interval: tr.Interval, Repeats: tr.Repeating}, nil
	case *platform.CalendarTrigger:
		return triggerRecord{Kind: triggerCalendar, Spec: tr.Spec, Repeats: tr.Repeating}, nil
	default:
		return triggerRecord{}, fmt.Errorf("unsupported trigger type %T", t)
	}
}

func decodeTrigger(r triggerRecord) (platform.Trigger, error) {
	switch r.Kind {
	case triggerInterval:
		return platform.IntervalTrigger{Interval: r.Interval, Repeating: r.Repeats}, nil
	case triggerCalendar:
		return platform.NewCalendarTrigger(r.Spec, r.Repeats)
	default:
		return nil, fmt.Errorf("unknown trigger kind %q", r.Kind)
	}
}
