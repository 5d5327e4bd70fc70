// Package metrics exports bus activity as Prometheus collectors.
//
// Wire it with:
//
//	m, err := metrics.New(prometheus.DefaultRegisterer)
//	b := servicebus.NewSync(
//		servicebus.WithMiddleware(m.Middleware()),
//		servicebus.WithObserver(m.Observer("orders")),
//		servicebus.WithDeadLetter(m.DeadLetter(nil)),
//	)
package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	cbus "github.com/next-trace/scg-message-bus/contract/bus"
	"github.com/next-trace/scg-message-bus/servicebus"
)

const namespace = "scgbus"

// Outcome label values.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Metrics owns the bus collectors.
type Metrics struct {
	invocations  *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	deadLettered *prometheus.CounterVec
	running      *prometheus.GaugeVec
}

// New creates the collectors and registers them on reg. A nil reg leaves them unregistered.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handler_invocations_total",
			Help:      "Total number of handler invocations by message kind, message type, handler and outcome",
		}, []string{"kind", "message", "handler", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "handler_duration_seconds",
			Help:      "Handler invocation latency by message kind and message type",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind", "message"}),
		deadLettered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dead_lettered_total",
			Help:      "Total number of event/handler pairs dropped after exhausting their attempts",
		}, []string{"message", "handler"}),
		running: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "running",
			Help:      "1 while the bus accepts messages, 0 otherwise",
		}, []string{"bus"}),
	}

	if reg == nil {
		return m, nil
	}

	var errs []error
	for _, c := range []prometheus.Collector{m.invocations, m.duration, m.deadLettered, m.running} {
		if err := reg.Register(c); err != nil {
			errs = append(errs, err)
		}
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	return m, nil
}

// Middleware counts and times every handler invocation, retries included.
func (m *Metrics) Middleware() cbus.Middleware {
	return func(next cbus.Handler) cbus.Handler {
		return func(ctx context.Context, msg cbus.Message, uow cbus.UnitOfWork) (any, error) {
			inv, _ := cbus.InvocationFrom(ctx)
			kind := cbus.KindOf(msg).String()
			message := inv.MessageType
			if message == "" {
				message = "unknown"
			}

			start := time.Now()
			res, err := next(ctx, msg, uow)
			m.duration.WithLabelValues(kind, message).Observe(time.Since(start).Seconds())

			outcome := OutcomeOK
			if err != nil {
				outcome = OutcomeError
			}

			m.invocations.WithLabelValues(kind, message, inv.Handler, outcome).Inc()

			return res, err
		}
	}
}

// Observer tracks the running gauge of the bus named busName.
func (m *Metrics) Observer(busName string) cbus.Observer {
	return func(_ context.Context, _ cbus.Bus, sig cbus.Signal, _ ...any) {
		switch sig {
		case cbus.PostStart:
			m.running.WithLabelValues(busName).Set(1)
		case cbus.PreStop:
			m.running.WithLabelValues(busName).Set(0)
		}
	}
}

// DeadLetter counts dropped event/handler pairs and then calls next, if set.
func (m *Metrics) DeadLetter(next func(context.Context, servicebus.DeadLetter)) func(context.Context, servicebus.DeadLetter) {
	return func(ctx context.Context, dl servicebus.DeadLetter) {
		m.deadLettered.WithLabelValues(servicebus.MessageName(dl.Event), dl.Handler).Inc()

		if next != nil {
			next(ctx, dl)
		}
	}
}

// Invocations exposes scgbus_handler_invocations_total.
func (m *Metrics) Invocations() *prometheus.CounterVec { return m.invocations }

// DeadLettered exposes scgbus_events_dead_lettered_total.
func (m *Metrics) DeadLettered() *prometheus.CounterVec { return m.deadLettered }

// Running exposes scgbus_running.
func (m *Metrics) Running() *prometheus.GaugeVec { return m.running }
