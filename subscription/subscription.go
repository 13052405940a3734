package subscription

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/occurrent-go/occurrent/cloudevent"
	"github.com/occurrent-go/occurrent/eventstore"
	"github.com/occurrent-go/occurrent/eventstore/postgresengine"
	"github.com/occurrent-go/occurrent/eventstore/postgresengine/changefeed"
	"github.com/occurrent-go/occurrent/subscription/position"
)

// ErrAlreadySubscribed is returned by Subscribe when subscriptionID is
// already active on this Engine.
var ErrAlreadySubscribed = errors.New("subscription: subscription id is already active")

// ErrNotSubscribed is returned by Cancel when subscriptionID is not active.
var ErrNotSubscribed = errors.New("subscription: subscription id is not active")

// Action is the user callback invoked, synchronously and serially, for
// every event a subscription delivers. The event is not acknowledged (its
// position is not persisted) until Action returns nil.
type Action func(ctx context.Context, event cloudevent.Event) error

// Engine runs subscriptions (spec §4.6), one worker goroutine per active
// subscription, against a single event store's change feed. The number of
// concurrently active subscriptions is not capped.
type Engine struct {
	store      postgresengine.EventStore
	feedDSN    string
	channel    string
	positions  position.Storage
	backoff    BackoffPolicy
	logger     eventstore.Logger
	shutdownBy time.Duration

	mu   sync.Mutex
	subs map[string]*worker
}

// Option configures an Engine.
type Option func(*Engine)

// WithPositionStorage enables automatic position persistence: after every
// delivered event (or batch, see WithPersistPredicate on Subscribe), the
// engine saves the event's resume token, and resolves a subscription's
// starting position from storage on (re)start unless the caller passed a
// StartAtPosition (StartAtNow and the zero StartAt defer to a persisted
// position).
func WithPositionStorage(storage position.Storage) Option {
	return func(e *Engine) { e.positions = storage }
}

// WithBackoffPolicy overrides the default retry backoff applied to a
// failing subscription callback.
func WithBackoffPolicy(policy BackoffPolicy) Option {
	return func(e *Engine) { e.backoff = policy }
}

// WithLogger overrides the engine's no-op default logger.
func WithLogger(logger eventstore.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithShutdownGrace overrides how long Shutdown waits for in-flight
// callbacks to finish before forcibly closing feeds. Default 30s.
func WithShutdownGrace(d time.Duration) Option {
	return func(e *Engine) { e.shutdownBy = d }
}

// NewEngine creates an Engine that opens change feeds against store's
// events table over feedDSN (a dedicated connection string for the
// LISTEN/NOTIFY connection, see changefeed.Open), using channel as the
// NOTIFY channel name. Callers must have called
// store.EnsureChangeFeedTrigger(ctx, channel) at least once.
func NewEngine(store postgresengine.EventStore, feedDSN string, channel string, opts ...Option) *Engine {
	e := &Engine{
		store:      store,
		feedDSN:    feedDSN,
		channel:    channel,
		backoff:    DefaultBackoffPolicy(),
		logger:     noopLogger{},
		shutdownBy: 30 * time.Second,
		subs:       make(map[string]*worker),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// SubscribeOption configures a single Subscribe call.
type SubscribeOption func(*subscribeConfig)

type subscribeConfig struct {
	persistPredicate PersistPredicate
}

// WithPersistPredicate overrides the default every-event persistence
// cadence for this subscription. Has no effect if the Engine has no
// position.Storage configured.
func WithPersistPredicate(p PersistPredicate) SubscribeOption {
	return func(c *subscribeConfig) { c.persistPredicate = p }
}

// Handle is returned by Subscribe and cancels its subscription.
type Handle struct {
	id     string
	engine *Engine
}

// Cancel stops the subscription this handle refers to. Equivalent to
// calling Engine.Cancel(id).
func (h Handle) Cancel() error { return h.engine.Cancel(h.id) }

// Subscribe starts a new subscription, spawning its own worker goroutine
// that reads the change feed filtered by filter and invokes action for
// every matching event, in order, one at a time.
//
// startAt selects where delivery begins. A StartAtPosition is always used
// as given, even when a position was persisted for subscriptionID. A
// StartAtNow only applies when no position has been persisted for
// subscriptionID (or when the Engine has no position.Storage at all). If
// startAt.IsZero(), the engine behaves as StartAtNow().
func (e *Engine) Subscribe(
	ctx context.Context,
	subscriptionID string,
	filter Filter,
	startAt StartAt,
	action Action,
	opts ...SubscribeOption,
) (Handle, error) {
	cfg := subscribeConfig{persistPredicate: EveryEvent()}

	for _, opt := range opts {
		opt(&cfg)
	}

	e.mu.Lock()
	if _, exists := e.subs[subscriptionID]; exists {
		e.mu.Unlock()
		return Handle{}, ErrAlreadySubscribed
	}
	e.mu.Unlock()

	resolvedStart, err := e.resolveStartAt(ctx, subscriptionID, startAt)
	if err != nil {
		return Handle{}, fmt.Errorf("subscription: resolving start position for %q: %w", subscriptionID, err)
	}

	rawPredicate := ""
	matcher := changefeed.Matcher(filter.Matches)

	if filter.IsRaw() {
		rawPredicate = filter.RawExpression()
		matcher = nil
	}

	feed, err := changefeed.Open(ctx, e.feedDSN, e.store, e.channel, resolvedStart, rawPredicate, matcher)
	if err != nil {
		return Handle{}, fmt.Errorf("subscription: opening change feed for %q: %w", subscriptionID, err)
	}

	w := &worker{
		id:               subscriptionID,
		engine:           e,
		feed:             feed,
		action:           action,
		persistPredicate: cfg.persistPredicate,
		stop:             make(chan struct{}),
		done:             make(chan struct{}),
	}

	e.mu.Lock()
	e.subs[subscriptionID] = w
	e.mu.Unlock()

	go w.run(ctx)

	return Handle{id: subscriptionID, engine: e}, nil
}

// Cancel stops subscriptionID's worker and closes its feed. Interrupts any
// in-progress retry backoff. Returns ErrNotSubscribed if it is not active.
func (e *Engine) Cancel(subscriptionID string) error {
	e.mu.Lock()
	w, exists := e.subs[subscriptionID]
	if exists {
		delete(e.subs, subscriptionID)
	}
	e.mu.Unlock()

	if !exists {
		return ErrNotSubscribed
	}

	w.stopAndWait()

	return nil
}

// Shutdown is idempotent: it cancels every active subscription, waiting up
// to the engine's configured grace period for in-flight callbacks to
// finish, then closes all feeds.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	workers := make([]*worker, 0, len(e.subs))
	for id, w := range e.subs {
		workers = append(workers, w)
		delete(e.subs, id)
	}
	e.mu.Unlock()

	deadline := time.Now().Add(e.shutdownBy)

	for _, w := range workers {
		remaining := time.Until(deadline)
		if remaining < 0 {
			remaining = 0
		}

		w.stopWithTimeout(remaining)
		_ = w.feed.Close()
	}

	return ctx.Err()
}

// resolveStartAt implements the start-position lookup described in spec
// §4.6/§4.7: an explicit StartAtPosition always wins; otherwise, if
// position storage is configured, a previously persisted position wins; an
// unresolved "start now" falls back to the feed's current tail, which is
// persisted immediately so a restart before the first delivery still
// resumes from the same place rather than from the beginning again.
func (e *Engine) resolveStartAt(ctx context.Context, subscriptionID string, startAt StartAt) (string, error) {
	if !startAt.IsZero() && !startAt.IsNow() {
		return startAt.Position(), nil
	}

	if e.positions != nil {
		if pos, found, err := e.positions.Read(ctx, subscriptionID); err != nil {
			return "", err
		} else if found {
			return pos, nil
		}
	}

	now, err := e.store.LatestChangeFeedPosition(ctx)
	if err != nil {
		return "", err
	}

	if e.positions != nil {
		if err := e.positions.Save(ctx, subscriptionID, now); err != nil {
			return "", err
		}
	}

	return now, nil
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
