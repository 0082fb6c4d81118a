// Package nats implements the message queue port using NATS JetStream.
package nats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/Strob0t/circulation/internal/logger"
	"github.com/Strob0t/circulation/internal/middleware"
	"github.com/Strob0t/circulation/internal/port/messagequeue"
)

const (
	headerRequestID  = "X-Request-ID"
	headerTenant     = "X-Okapi-Tenant"
	headerRetryCount = "Retry-Count"

	// maxRetries is how often a failing message is redelivered before it is
	// parked on <subject>.dlq.
	maxRetries = 3
	dlqSuffix  = ".dlq"
)

// Queue implements messagequeue.Queue using NATS JetStream.
type Queue struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	stream string
}

// Connect establishes a connection to NATS and ensures the stream capturing
// circulation.> exists.
func Connect(ctx context.Context, url, stream string) (*Queue, error) {
	nc, err := nats.Connect(url,
		nats.Name("circulation"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			slog.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     stream,
		Subjects: []string{"circulation.>"},
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream stream create: %w", err)
	}

	slog.Info("nats connected", "url", url, "stream", stream)
	return &Queue{nc: nc, js: js, stream: stream}, nil
}

// Publish sends data to subject. The request ID, tenant and trace context of
// ctx travel as message headers.
func (q *Queue) Publish(ctx context.Context, subject string, data []byte) error {
	msg := &nats.Msg{Subject: subject, Data: data, Header: nats.Header{}}
	if id := logger.RequestID(ctx); id != "" {
		msg.Header.Set(headerRequestID, id)
	}
	msg.Header.Set(headerTenant, middleware.TenantFromContext(ctx))
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(http.Header(msg.Header)))

	if _, err := q.js.PublishMsg(ctx, msg); err != nil {
		return fmt.Errorf("nats publish %s: %w", subject, err)
	}
	return nil
}

// Subscribe registers a handler for messages on the given subject. Messages
// that fail schema validation go straight to the DLQ; handler failures are
// retried up to maxRetries times first.
func (q *Queue) Subscribe(ctx context.Context, subject string, handler messagequeue.Handler) (func(), error) {
	consumer, err := q.js.CreateOrUpdateConsumer(ctx, q.stream, jetstream.ConsumerConfig{
		FilterSubject: subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("nats consumer create: %w", err)
	}

	cons, err := consumer.Consume(func(msg jetstream.Msg) {
		q.handle(msg, handler)
	})
	if err != nil {
		return nil, fmt.Errorf("nats consume: %w", err)
	}
	return cons.Stop, nil
}

func (q *Queue) handle(msg jetstream.Msg, handler messagequeue.Handler) {
	hdrs := msg.Headers()
	ctx := messageContext(hdrs)
	subject := msg.Subject()

	if err := messagequeue.Validate(subject, msg.Data()); err != nil {
		slog.ErrorContext(ctx, "invalid message", "subject", subject, "error", err)
		q.moveToDLQ(ctx, msg, err)
		return
	}

	if err := handler(ctx, subject, msg.Data()); err != nil {
		n := retryCount(hdrs)
		if n >= maxRetries {
			slog.ErrorContext(ctx, "message retries exhausted", "subject", subject, "retries", n, "error", err)
			q.moveToDLQ(ctx, msg, err)
			return
		}
		slog.WarnContext(ctx, "message handler failed", "subject", subject, "retry", n+1, "error", err)
		q.retry(ctx, msg, n+1)
		return
	}
	ack(ctx, msg)
}

// retry republishes msg with an incremented retry count and acks the original.
func (q *Queue) retry(ctx context.Context, msg jetstream.Msg, n int) {
	out := copyMsg(msg, msg.Subject())
	out.Header.Set(headerRetryCount, strconv.Itoa(n))
	if _, err := q.js.PublishMsg(ctx, out); err != nil {
		slog.ErrorContext(ctx, "nats retry publish failed", "subject", msg.Subject(), "error", err)
		if nakErr := msg.NakWithDelay(time.Second); nakErr != nil {
			slog.ErrorContext(ctx, "nats nak failed", "error", nakErr)
		}
		return
	}
	ack(ctx, msg)
}

func (q *Queue) moveToDLQ(ctx context.Context, msg jetstream.Msg, cause error) {
	out := copyMsg(msg, msg.Subject()+dlqSuffix)
	out.Header.Set("Error", cause.Error())
	if _, err := q.js.PublishMsg(ctx, out); err != nil {
		slog.ErrorContext(ctx, "nats dlq publish failed", "subject", out.Subject, "error", err)
		if nakErr := msg.Nak(); nakErr != nil {
			slog.ErrorContext(ctx, "nats nak failed", "error", nakErr)
		}
		return
	}
	ack(ctx, msg)
}

// KeyValue returns the JetStream KV bucket, creating it with the given TTL
// when absent.
func (q *Queue) KeyValue(ctx context.Context, bucket string, ttl time.Duration) (jetstream.KeyValue, error) {
	kv, err := q.js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{Bucket: bucket, TTL: ttl})
	if err != nil {
		return nil, fmt.Errorf("nats kv %s: %w", bucket, err)
	}
	return kv, nil
}

// Drain lets in-flight messages finish, then closes the connection.
func (q *Queue) Drain() error {
	if err := q.nc.Drain(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		return fmt.Errorf("nats drain: %w", err)
	}
	return nil
}

// Close shuts down the NATS connection.
func (q *Queue) Close() error {
	q.nc.Close()
	return nil
}

// IsConnected reports whether the connection is up.
func (q *Queue) IsConnected() bool {
	return q.nc.IsConnected()
}

// messageContext restores request ID, tenant and trace context from headers.
func messageContext(h nats.Header) context.Context {
	ctx := context.Background()
	if h == nil {
		return ctx
	}
	ctx = otel.GetTextMapPropagator().Extract(ctx, propagation.HeaderCarrier(http.Header(h)))
	if id := h.Get(headerRequestID); id != "" {
		ctx = logger.WithRequestID(ctx, id)
	}
	if tid := h.Get(headerTenant); tid != "" {
		ctx = middleware.WithTenant(ctx, tid)
	}
	return ctx
}

func retryCount(h nats.Header) int {
	if h == nil {
		return 0
	}
	n, err := strconv.Atoi(h.Get(headerRetryCount))
	if err != nil {
		return 0
	}
	return n
}

func copyMsg(msg jetstream.Msg, subject string) *nats.Msg {
	out := &nats.Msg{Subject: subject, Data: msg.Data(), Header: nats.Header{}}
	for k, v := range msg.Headers() {
		out.Header[k] = append([]string(nil), v...)
	}
	return out
}

func ack(ctx context.Context, msg jetstream.Msg) {
	if err := msg.Ack(); err != nil {
		slog.ErrorContext(ctx, "nats ack failed", "error", err)
	}
}
