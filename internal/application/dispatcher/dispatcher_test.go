package dispatcher

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/covana/insurance-backoffice/internal/domain/event"
)

// recordingSink captures delivered events
type recordingSink struct {
	mu     sync.Mutex
	events []*event.Event
	err    error
}

func (s *recordingSink) Deliver(ctx context.Context, evt *event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, evt)
	return s.err
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

// ctxSink records the context state each delivery observed
type ctxSink struct {
	mu   sync.Mutex
	errs []error
}

func (s *ctxSink) Deliver(ctx context.Context, evt *event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, ctx.Err())
	return nil
}

type panickingSink struct{}

func (s *panickingSink) Deliver(ctx context.Context, evt *event.Event) error {
	panic("sink exploded")
}

func TestDispatcher_RoutesByAudience(t *testing.T) {
	d := NewDispatcher()
	userSink := &recordingSink{}
	adminSink := &recordingSink{}
	d.Register(event.AudienceUser, "user-channel", userSink)
	d.Register(event.AudienceAdmin, "admin-channel", adminSink)

	evt := event.NewUserEvent(event.TypeRefundUpdated, 1, "u@example.com", "motor", 5, "refund_initiated", nil)
	if err := d.Dispatch(context.Background(), evt); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	if userSink.count() != 1 {
		t.Errorf("user sink got %d events, want 1", userSink.count())
	}
	if adminSink.count() != 0 {
		t.Errorf("admin sink got %d events, want 0", adminSink.count())
	}
}

func TestDispatcher_DispatchAsyncSwallowsErrors(t *testing.T) {
	d := NewDispatcher()
	sink := &recordingSink{err: errors.New("smtp down")}
	d.Register(event.AudienceUser, "flaky", sink)

	evt := event.NewUserEvent(event.TypeClaimCreated, 2, "", "claim", 9, "pending_review", nil)
	d.DispatchAsync(context.Background(), evt)

	// Close waits for in-flight deliveries
	if err := d.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if sink.count() != 1 {
		t.Errorf("sink got %d events, want 1", sink.count())
	}
}

func TestDispatcher_DispatchAsyncOutlivesCallerContext(t *testing.T) {
	d := NewDispatcher()
	sink := &ctxSink{}
	d.Register(event.AudienceUser, "ledger", sink)

	// An HTTP request context is canceled the moment the handler returns
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	evt := event.NewUserEvent(event.TypeRefundUpdated, 6, "u@example.com", "motor", 2, "refund_initiated", nil)
	d.DispatchAsync(ctx, evt)

	if err := d.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.errs) != 1 {
		t.Fatalf("sink got %d deliveries, want 1", len(sink.errs))
	}
	if sink.errs[0] != nil {
		t.Errorf("delivery context error = %v, want live context", sink.errs[0])
	}
}

func TestDispatcher_SurvivesPanickingSink(t *testing.T) {
	d := NewDispatcher()
	d.Register(event.AudienceAdmin, "bad", &panickingSink{})
	good := &recordingSink{}
	d.Register(event.AudienceAdmin, "good", good)

	evt := event.NewAdminEvent(event.TypeClaimReviewed, "claim", 3, "approved", nil)
	d.DispatchAsync(context.Background(), evt)

	if err := d.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if good.count() != 1 {
		t.Errorf("good sink got %d events, want 1", good.count())
	}
}

func TestDispatcher_DispatchReturnsFirstSinkError(t *testing.T) {
	d := NewDispatcher()
	d.Register(event.AudienceUser, "flaky", &recordingSink{err: errors.New("boom")})

	evt := event.NewUserEvent(event.TypeClaimReviewed, 4, "", "claim", 8, "rejected", nil)
	if err := d.Dispatch(context.Background(), evt); err == nil {
		t.Errorf("Dispatch() expected error from failing sink")
	}
}

func TestDispatcher_ClosedDropsEvents(t *testing.T) {
	d := NewDispatcher()
	sink := &recordingSink{}
	d.Register(event.AudienceUser, "late", sink)

	if err := d.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	evt := event.NewUserEvent(event.TypeRefundUpdated, 5, "", "motor", 1, "closed", nil)
	d.DispatchAsync(context.Background(), evt)
	if err := d.Dispatch(context.Background(), evt); err == nil {
		t.Errorf("Dispatch() on closed dispatcher should error")
	}
	if sink.count() != 0 {
		t.Errorf("closed dispatcher delivered %d events, want 0", sink.count())
	}

	if err := d.Close(); err == nil {
		t.Errorf("second Close() should error")
	}
}
