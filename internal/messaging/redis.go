package messaging

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig configures RedisRealtime.
type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	PresenceTTL time.Duration
	KeyPrefix   string
}

// RedisRealtime is a Realtime backed by Redis pub/sub, so several server
// processes can share channels. Presence lives in one hash per channel;
// entries are refreshed while their subscription is open and ignored once
// older than the TTL.
type RedisRealtime struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	log    *slog.Logger
}

// NewRedisRealtime connects to Redis and checks the connection.
func NewRedisRealtime(ctx context.Context, cfg RedisConfig, log *slog.Logger) (*RedisRealtime, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.Addr, err)
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "menjava"
	}
	ttl := cfg.PresenceTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}

	log.Info("redis realtime connected", "addr", cfg.Addr, "db", cfg.DB, "prefix", prefix)
	return &RedisRealtime{client: client, prefix: prefix, ttl: ttl, log: log}, nil
}

// Close releases the Redis connection pool.
func (r *RedisRealtime) Close() error {
	return r.client.Close()
}

func (r *RedisRealtime) channelName(key string) string {
	return r.prefix + ":chan:" + key
}

func (r *RedisRealtime) presenceKey(key string) string {
	return r.prefix + ":presence:" + key
}

func (r *RedisRealtime) Publish(ctx context.Context, key string, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}
	if err := r.client.Publish(ctx, r.channelName(key), data).Err(); err != nil {
		return fmt.Errorf("publishing to %s: %w", key, err)
	}
	return nil
}

func (r *RedisRealtime) Subscribe(ctx context.Context, key string, h Handlers) (Subscription, error) {
	ps := r.client.Subscribe(ctx, r.channelName(key))
	// Wait for the subscription confirmation so nothing published after
	// Subscribe returns is missed.
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("subscribing to %s: %w", key, err)
	}

	present, err := r.presence(ctx, key)
	if err != nil {
		r.log.Warn("reading presence", "channel", key, "error", err)
	}

	s := &redisSub{
		rt:       r,
		key:      key,
		ps:       ps,
		handlers: h,
		initial:  present,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	go s.run()
	return s, nil
}

type presenceEntry struct {
	Presence
	SeenAt time.Time `json:"seen_at"`
}

// presence returns the live entries of key's presence hash, one per user.
func (r *RedisRealtime) presence(ctx context.Context, key string) ([]Presence, error) {
	fields, err := r.client.HGetAll(ctx, r.presenceKey(key)).Result()
	if err != nil {
		return nil, err
	}

	cutoff := time.Now().Add(-r.ttl)
	var out []Presence
	for _, raw := range fields {
		var e presenceEntry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			continue
		}
		if e.SeenAt.Before(cutoff) {
			continue
		}
		out = append(out, e.Presence)
	}
	slices.SortFunc(out, func(a, b Presence) int { return cmp.Compare(a.UserID, b.UserID) })
	return out, nil
}

func (r *RedisRealtime) announce(ctx context.Context, key string) error {
	present, err := r.presence(ctx, key)
	if err != nil {
		return fmt.Errorf("reading presence: %w", err)
	}
	return r.Publish(ctx, key, Event{Kind: EventPresence, Presence: present})
}

func (r *RedisRealtime) writePresence(ctx context.Context, key string, p Presence) error {
	data, err := json.Marshal(presenceEntry{Presence: p, SeenAt: time.Now()})
	if err != nil {
		return err
	}
	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, r.presenceKey(key), p.UserID, data)
	pipe.PExpire(ctx, r.presenceKey(key), 2*r.ttl)
	_, err = pipe.Exec(ctx)
	return err
}

type redisSub struct {
	rt       *RedisRealtime
	key      string
	ps       *redis.PubSub
	handlers Handlers
	initial  []Presence
	done     chan struct{}
	stopped  chan struct{}
	once     sync.Once

	mu       sync.Mutex
	presence *Presence
}

func (s *redisSub) run() {
	defer close(s.stopped)

	refresh := time.NewTicker(s.rt.ttl / 2)
	defer refresh.Stop()

	// A new subscriber learns who is already here.
	if len(s.initial) > 0 {
		s.handlers.dispatch(Event{Kind: EventPresence, Presence: s.initial})
	}

	messages := s.ps.Channel()
	for {
		select {
		case msg, ok := <-messages:
			if !ok {
				return
			}
			var e Event
			if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
				s.rt.log.Warn("decoding realtime event", "channel", s.key, "error", err)
				continue
			}
			s.handlers.dispatch(e)
		case <-refresh.C:
			s.mu.Lock()
			p := s.presence
			s.mu.Unlock()
			if p != nil {
				if err := s.rt.writePresence(context.Background(), s.key, *p); err != nil {
					s.rt.log.Warn("refreshing presence", "channel", s.key, "error", err)
				}
			}
		case <-s.done:
			return
		}
	}
}

func (s *redisSub) Track(ctx context.Context, p Presence) error {
	s.mu.Lock()
	s.presence = &p
	s.mu.Unlock()

	if err := s.rt.writePresence(ctx, s.key, p); err != nil {
		return fmt.Errorf("tracking presence: %w", err)
	}
	return s.rt.announce(ctx, s.key)
}

func (s *redisSub) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		<-s.stopped

		s.mu.Lock()
		p := s.presence
		s.mu.Unlock()
		if p != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if delErr := s.rt.client.HDel(ctx, s.rt.presenceKey(s.key), p.UserID).Err(); delErr != nil {
				s.rt.log.Warn("clearing presence", "channel", s.key, "error", delErr)
			} else if annErr := s.rt.announce(ctx, s.key); annErr != nil {
				s.rt.log.Warn("announcing presence", "channel", s.key, "error", annErr)
			}
		}
		err = s.ps.Close()
	})
	return err
}
