package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "referral"

	LabelOutcome = "outcome"
	LabelKind    = "kind"
	LabelStatus  = "status"
	LabelRoute   = "route"
	LabelMethod  = "method"

	OutcomeNewUser           = "new_user"
	OutcomeReturningUser     = "returning_user"
	OutcomeReferralAccepted  = "referral_accepted"
	OutcomeSelfReferral      = "self_referral"
	OutcomeAlreadyAttributed = "already_attributed"
	OutcomeReferrerUnknown   = "referrer_unknown"

	StatusDelivered = "delivered"
	StatusFailed    = "failed"
	StatusDropped   = "dropped"
	StatusHandled   = "handled"
	StatusIgnored   = "ignored"
)

var (
	StartEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "start_events_total",
			Help:      "Start events handled by the referral attributor, by outcome.",
		},
		[]string{LabelOutcome},
	)

	Notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notification intents by kind and delivery status.",
		},
		[]string{LabelKind, LabelStatus},
	)

	NotificationQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "notification_queue_depth",
			Help:      "Notification intents waiting for a worker.",
		},
	)

	BotUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bot_updates_total",
			Help:      "Telegram updates processed by the bot, by kind and status.",
		},
		[]string{LabelKind, LabelStatus},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP API requests by route, method and response status.",
		},
		[]string{LabelRoute, LabelMethod, LabelStatus},
	)

	WebsocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_clients",
			Help:      "Connected referral feed websocket clients.",
		},
	)
)
