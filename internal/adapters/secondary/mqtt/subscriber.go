package mqtt

import (
	"context"
	"errors"
	"math/rand"
	"sync/atomic"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/pedromedina19/hermes-bridge/internal/core/domain"
	"github.com/pedromedina19/hermes-bridge/internal/core/metrics"
	"github.com/pedromedina19/hermes-bridge/internal/core/ports"
)

const disconnectQuiesce = 250 // ms

// Client is the part of paho.Client the subscriber drives.
type Client interface {
	Connect() paho.Token
	SubscribeMultiple(filters map[string]byte, callback paho.MessageHandler) paho.Token
	Disconnect(quiesce uint)
}

type ClientFactory func(opts *paho.ClientOptions) Client

func NewPahoClient(opts *paho.ClientOptions) Client {
	return paho.NewClient(opts)
}

type Options struct {
	Broker         string // tcp://host:port
	ClientID       string
	Topics         []string
	QoS            byte
	KeepAlive      time.Duration
	ConnectTimeout time.Duration
	BackoffBase    time.Duration
	BackoffMax     time.Duration

	// OnStateChange is called after every state transition.
	OnStateChange func(domain.ConnState)
	NewClient     ClientFactory
}

// Subscriber keeps one broker session alive for the lifetime of Run:
// Disconnected -> Connecting -> Connected -> (lost) -> Disconnected -> Connecting ...
// Every successful connect re-subscribes to all topics.
type Subscriber struct {
	opts   Options
	logger ports.Logger
	state  atomic.Int32
	now    func() time.Time
}

func NewSubscriber(opts Options, logger ports.Logger) *Subscriber {
	if opts.NewClient == nil {
		opts.NewClient = NewPahoClient
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = time.Second
	}
	if opts.BackoffMax < opts.BackoffBase {
		opts.BackoffMax = opts.BackoffBase
	}
	return &Subscriber{
		opts:   opts,
		logger: logger,
		now:    time.Now,
	}
}

func (s *Subscriber) State() domain.ConnState {
	return domain.ConnState(s.state.Load())
}

func (s *Subscriber) setState(st domain.ConnState) {
	if domain.ConnState(s.state.Swap(int32(st))) == st {
		return
	}
	metrics.SetConnectionState(st)
	if s.opts.OnStateChange != nil {
		s.opts.OnStateChange(st)
	}
}

func (s *Subscriber) clientOptions(lost chan<- error) *paho.ClientOptions {
	return paho.NewClientOptions().
		AddBroker(s.opts.Broker).
		SetClientID(s.opts.ClientID).
		SetKeepAlive(s.opts.KeepAlive).
		SetConnectTimeout(s.opts.ConnectTimeout).
		SetCleanSession(true).
		SetAutoReconnect(false).
		SetConnectRetry(false).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			select {
			case lost <- err:
			default:
			}
		})
}

// Run connects, subscribes and feeds arrivals into out until ctx is cancelled.
// Connection failures are never fatal: they are retried with bounded exponential backoff.
func (s *Subscriber) Run(ctx context.Context, out chan<- domain.Arrival) error {
	lost := make(chan error, 1)
	client := s.opts.NewClient(s.clientOptions(lost))
	handler := s.messageHandler(ctx, out)

	backoff := s.opts.BackoffBase
	for {
		if ctx.Err() != nil {
			s.setState(domain.StateDisconnected)
			return nil
		}

		// a drop reported for a previous session must not end the next one
		select {
		case <-lost:
		default:
		}

		s.setState(domain.StateConnecting)
		s.logger.Info("Connecting to broker", "broker", s.opts.Broker, "client_id", s.opts.ClientID)

		err := s.connectAndSubscribe(ctx, client, handler)
		if err != nil {
			s.setState(domain.StateDisconnected)
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			metrics.IncConnectFailures()

			sleep := withJitter(backoff, s.opts.BackoffMax)
			s.logger.Warn("Broker connection failed", "broker", s.opts.Broker, "error", err, "retry_in", sleep)
			if !sleepCtx(ctx, sleep) {
				return nil
			}
			backoff = nextBackoff(backoff, s.opts.BackoffMax)
			continue
		}

		backoff = s.opts.BackoffBase
		s.setState(domain.StateConnected)
		s.logger.Info("MQTT connected", "broker", s.opts.Broker, "topics", s.opts.Topics)

		select {
		case <-ctx.Done():
			client.Disconnect(disconnectQuiesce)
			s.setState(domain.StateDisconnected)
			s.logger.Info("Disconnected from broker")
			return nil
		case err := <-lost:
			metrics.IncReconnects()
			s.setState(domain.StateDisconnected)
			s.logger.Warn("Broker connection lost", "broker", s.opts.Broker, "error", err)
		}
	}
}

func (s *Subscriber) connectAndSubscribe(ctx context.Context, client Client, handler paho.MessageHandler) error {
	if err := waitToken(ctx, client.Connect()); err != nil {
		return err
	}

	filters := make(map[string]byte, len(s.opts.Topics))
	for _, t := range s.opts.Topics {
		filters[t] = s.opts.QoS
	}
	if err := waitToken(ctx, client.SubscribeMultiple(filters, handler)); err != nil {
		client.Disconnect(0)
		return err
	}
	return nil
}

func (s *Subscriber) messageHandler(ctx context.Context, out chan<- domain.Arrival) paho.MessageHandler {
	return func(_ paho.Client, m paho.Message) {
		a := domain.Arrival{
			Topic:      m.Topic(),
			Payload:    append([]byte(nil), m.Payload()...),
			ReceivedAt: s.now(),
		}
		select {
		case out <- a:
		case <-ctx.Done():
		}
	}
}

func waitToken(ctx context.Context, tok paho.Token) error {
	select {
	case <-tok.Done():
		return tok.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func nextBackoff(cur, max time.Duration) time.Duration {
	cur *= 2
	if cur > max {
		cur = max
	}
	return cur
}

// withJitter adds up to 50% on top of d, never exceeding max.
func withJitter(d, max time.Duration) time.Duration {
	sleep := d + time.Duration(rand.Int63n(int64(d/2)+1))
	if sleep > max {
		sleep = max
	}
	return sleep
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
