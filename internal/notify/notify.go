package notify

import (
	"context"
	"sync"
	"time"

	"stars_referral_bot/internal/metrics"
	"stars_referral_bot/internal/model"
	"stars_referral_bot/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Kind string

const (
	KindReferrerNotification Kind = "referrer_notification"
	KindAudit                Kind = "audit"
)

const (
	DefaultQueueSize       = 256
	DefaultWorkers         = 2
	DefaultDeliveryTimeout = 10 * time.Second
)

// Intent is a request to tell the outside world about a handled start event.
type Intent struct {
	ID        uuid.UUID
	Kind      Kind
	Event     model.StartEvent
	Result    model.StartResult
	CreatedAt time.Time
}

type Sink interface {
	Deliver(ctx context.Context, intent Intent) error
}

type SinkFunc func(ctx context.Context, intent Intent) error

func (f SinkFunc) Deliver(ctx context.Context, intent Intent) error {
	return f(ctx, intent)
}

type Config struct {
	QueueSize       int           `mapstructure:"queueSize"`
	Workers         int           `mapstructure:"workers"`
	DeliveryTimeout time.Duration `mapstructure:"deliveryTimeout"`
}

// Dispatcher delivers intents to registered sinks on background workers so
// that callers of Publish never wait on a chat platform. Sinks must be
// registered before Run.
type Dispatcher struct {
	cfg   Config
	queue chan Intent
	sinks map[Kind][]Sink

	mu     sync.RWMutex
	closed bool
}

func NewDispatcher(cfg Config) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.DeliveryTimeout <= 0 {
		cfg.DeliveryTimeout = DefaultDeliveryTimeout
	}

	return &Dispatcher{
		cfg:   cfg,
		queue: make(chan Intent, cfg.QueueSize),
		sinks: make(map[Kind][]Sink),
	}
}

func (d *Dispatcher) Register(kind Kind, sink Sink) {
	d.sinks[kind] = append(d.sinks[kind], sink)
}

// Intents derives the notification intents for a handled start event.
func Intents(event model.StartEvent, result model.StartResult) []Intent {
	now := time.Now().UTC()
	var out []Intent

	if result.IsNewUser {
		out = append(out, Intent{
			ID:        uuid.New(),
			Kind:      KindAudit,
			Event:     event,
			Result:    result,
			CreatedAt: now,
		})
	}

	if result.NotifyReferrer() {
		out = append(out, Intent{
			ID:        uuid.New(),
			Kind:      KindReferrerNotification,
			Event:     event,
			Result:    result,
			CreatedAt: now,
		})
	}

	return out
}

// Publish enqueues the intents for a result without blocking. Intents that do
// not fit in the queue are dropped.
func (d *Dispatcher) Publish(event model.StartEvent, result *model.StartResult) {
	if result == nil {
		return
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	log := logger.Named("notify")
	for _, intent := range Intents(event, *result) {
		if d.closed {
			metrics.Notifications.WithLabelValues(string(intent.Kind), metrics.StatusDropped).Inc()
			continue
		}

		select {
		case d.queue <- intent:
			metrics.NotificationQueueDepth.Inc()
		default:
			metrics.Notifications.WithLabelValues(string(intent.Kind), metrics.StatusDropped).Inc()
			log.Warn("notification queue full, dropping intent",
				zap.String("intent_id", intent.ID.String()),
				zap.String("kind", string(intent.Kind)),
				zap.Int64("telegram_id", intent.Event.UserID))
		}
	}
}

// Run starts the workers and blocks until ctx is cancelled or Close has been
// called and the queue is drained.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < d.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.work(ctx)
		}()
	}
	wg.Wait()
}

func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.closed {
		d.closed = true
		close(d.queue)
	}
}

func (d *Dispatcher) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case intent, ok := <-d.queue:
			if !ok {
				return
			}
			metrics.NotificationQueueDepth.Dec()
			d.deliver(ctx, intent)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, intent Intent) {
	log := logger.Named("notify")

	for _, sink := range d.sinks[intent.Kind] {
		deliverCtx, cancel := context.WithTimeout(ctx, d.cfg.DeliveryTimeout)
		err := sink.Deliver(deliverCtx, intent)
		cancel()

		if err != nil {
			metrics.Notifications.WithLabelValues(string(intent.Kind), metrics.StatusFailed).Inc()
			log.Error("failed to deliver notification",
				zap.String("intent_id", intent.ID.String()),
				zap.String("kind", string(intent.Kind)),
				zap.Int64("telegram_id", intent.Event.UserID),
				zap.Error(err))
			continue
		}
		metrics.Notifications.WithLabelValues(string(intent.Kind), metrics.StatusDelivered).Inc()
	}
}
