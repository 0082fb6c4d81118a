package nats

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/Strob0t/circulation/internal/logger"
	"github.com/Strob0t/circulation/internal/middleware"
	"github.com/Strob0t/circulation/internal/port/messagequeue"
)

// testConnect connects to NATS or skips the test if NATS_URL is not set.
func testConnect(t *testing.T) *Queue {
	t.Helper()

	url := os.Getenv("NATS_URL")
	if url == "" {
		t.Skip("requires NATS_URL")
	}

	q, err := Connect(context.Background(), url, "CIRCULATION_TEST")
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { _ = q.Close() })
	return q
}

// testSubject is captured by the stream but has no schema, so any JSON passes.
func testSubject(t *testing.T) string {
	return "circulation.test." + t.Name()
}

type delivery struct {
	ctx  context.Context
	data []byte
}

// collect subscribes to subject and forwards every delivery.
func collect(t *testing.T, q *Queue, subject string, fail error) <-chan delivery {
	t.Helper()
	ch := make(chan delivery, 8)
	stop, err := q.Subscribe(context.Background(), subject, func(ctx context.Context, _ string, data []byte) error {
		ch <- delivery{ctx: ctx, data: data}
		return fail
	})
	if err != nil {
		t.Fatalf("Subscribe %s: %v", subject, err)
	}
	t.Cleanup(stop)
	return ch
}

// collectRaw reads subject with a plain consumer, bypassing validation.
func collectRaw(t *testing.T, q *Queue, subject string) <-chan []byte {
	t.Helper()
	ctx := context.Background()
	cons, err := q.js.CreateOrUpdateConsumer(ctx, q.stream, jetstream.ConsumerConfig{
		FilterSubject: subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		DeliverPolicy: jetstream.DeliverNewPolicy,
	})
	if err != nil {
		t.Fatalf("create consumer %s: %v", subject, err)
	}
	ch := make(chan []byte, 8)
	cc, err := cons.Consume(func(msg jetstream.Msg) {
		ch <- msg.Data()
		_ = msg.Ack()
	})
	if err != nil {
		t.Fatalf("consume %s: %v", subject, err)
	}
	t.Cleanup(cc.Stop)
	return ch
}

func waitFor[T any](t *testing.T, ch <-chan T, what string) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(10 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
	var zero T
	return zero
}

func TestQueue_PublishCarriesRequestContext(t *testing.T) {
	q := testConnect(t)
	subject := testSubject(t)
	got := collect(t, q, subject, nil)

	want := messagequeue.LoanPayload{LoanID: "l1", ItemID: "i1", UserID: "u1", Action: "checkedout", OperatorID: "staff-1"}
	data, _ := json.Marshal(want)
	ctx := middleware.WithTenant(logger.WithRequestID(context.Background(), "req-abc"), "diku")
	if err := q.Publish(ctx, subject, data); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	d := waitFor(t, got, "delivery")
	var payload messagequeue.LoanPayload
	if err := json.Unmarshal(d.data, &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if payload.LoanID != want.LoanID || payload.OperatorID != want.OperatorID {
		t.Errorf("payload = %+v, want %+v", payload, want)
	}
	if id := logger.RequestID(d.ctx); id != "req-abc" {
		t.Errorf("request ID = %q", id)
	}
	if tid := middleware.TenantFromContext(d.ctx); tid != "diku" {
		t.Errorf("tenant = %q", tid)
	}
}

func TestQueue_InvalidPayloadParkedOnDLQ(t *testing.T) {
	q := testConnect(t)
	subject := messagequeue.SubjectPoliciesImported
	dlq := collectRaw(t, q, subject+dlqSuffix)
	handled := collect(t, q, subject, nil)

	if err := q.Publish(context.Background(), subject, []byte(`{"revision":"seven"}`)); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if data := waitFor(t, dlq, "DLQ message"); string(data) != `{"revision":"seven"}` {
		t.Errorf("DLQ data = %q", data)
	}
	select {
	case d := <-handled:
		t.Errorf("invalid payload reached the handler: %s", d.data)
	default:
	}
}

func TestQueue_RetriesThenDLQ(t *testing.T) {
	q := testConnect(t)
	subject := testSubject(t)
	dlq := collectRaw(t, q, subject+dlqSuffix)
	handled := collect(t, q, subject, errors.New("handler always fails"))

	msg := &nats.Msg{Subject: subject, Data: []byte(`{"attempt":true}`), Header: nats.Header{}}
	msg.Header.Set(headerRetryCount, strconv.Itoa(maxRetries-1))
	if _, err := q.js.PublishMsg(context.Background(), msg); err != nil {
		t.Fatalf("PublishMsg: %v", err)
	}

	// One retry is left: the handler sees the message twice, then it is parked.
	waitFor(t, handled, "first delivery")
	waitFor(t, handled, "retried delivery")
	if data := waitFor(t, dlq, "DLQ message"); string(data) != `{"attempt":true}` {
		t.Errorf("DLQ data = %q", data)
	}
}

func TestQueue_KeyValue(t *testing.T) {
	q := testConnect(t)
	ctx := context.Background()

	kv, err := q.KeyValue(ctx, "test-kv-"+t.Name(), 30*time.Second)
	if err != nil {
		t.Fatalf("KeyValue: %v", err)
	}
	if _, err := kv.Put(ctx, "policy-loan-diku", []byte(`{"id":"short-term"}`)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	entry, err := kv.Get(ctx, "policy-loan-diku")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(entry.Value()) != `{"id":"short-term"}` {
		t.Errorf("value = %q", entry.Value())
	}

	// Reopening an existing bucket succeeds.
	if _, err := q.KeyValue(ctx, "test-kv-"+t.Name(), 30*time.Second); err != nil {
		t.Fatalf("KeyValue reopen: %v", err)
	}
	if !q.IsConnected() {
		t.Error("IsConnected() = false")
	}
}

func TestRetryCount(t *testing.T) {
	tests := []struct {
		name string
		h    nats.Header
		want int
	}{
		{"nil headers", nil, 0},
		{"absent", nats.Header{}, 0},
		{"garbage", nats.Header{headerRetryCount: []string{"x"}}, 0},
		{"set", nats.Header{headerRetryCount: []string{"2"}}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := retryCount(tt.h); got != tt.want {
				t.Errorf("retryCount = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestMessageContext(t *testing.T) {
	h := nats.Header{}
	h.Set(headerRequestID, "req-1")
	h.Set(headerTenant, "diku")

	ctx := messageContext(h)
	if got := logger.RequestID(ctx); got != "req-1" {
		t.Errorf("request ID = %q", got)
	}
	if got := middleware.TenantFromContext(ctx); got != "diku" {
		t.Errorf("tenant = %q", got)
	}
	if got := middleware.TenantFromContext(messageContext(nil)); got != middleware.DefaultTenantID {
		t.Errorf("tenant without headers = %q", got)
	}
}

func TestCopyMsgKeepsHeaders(t *testing.T) {
	h := nats.Header{}
	h.Set(headerTenant, "diku")
	h.Set(headerRetryCount, "1")
	in := stubMsg{subject: "circulation.loan.renewed", data: []byte(`{}`), headers: h}

	out := copyMsg(in, "circulation.loan.renewed.dlq")
	out.Header.Set(headerRetryCount, "2")

	if out.Subject != "circulation.loan.renewed.dlq" || string(out.Data) != `{}` {
		t.Errorf("copy = %+v", out)
	}
	if out.Header.Get(headerTenant) != "diku" {
		t.Error("tenant header lost")
	}
	if h.Get(headerRetryCount) != "1" {
		t.Error("copy shares header storage with the original")
	}
}

// stubMsg satisfies jetstream.Msg for copyMsg.
type stubMsg struct {
	jetstream.Msg
	subject string
	data    []byte
	headers nats.Header
}

func (m stubMsg) Subject() string      { return m.subject }
func (m stubMsg) Data() []byte         { return m.data }
func (m stubMsg) Headers() nats.Header { return m.headers }
