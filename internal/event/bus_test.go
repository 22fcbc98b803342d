package event

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/neilotoole/slogt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/dshills/topicbus/internal/event/topic"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestBus(t *testing.T, opts ...BusOption) *Bus {
	t.Helper()

	opts = append([]BusOption{WithLogger(slogt.New(t))}, opts...)
	b := NewBus(opts...)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		assert.NoError(t, b.Close(ctx))
	})
	return b
}

// payloadLog captures the payloads a handler receives.
type payloadLog struct {
	mu       sync.Mutex
	payloads []any
}

func (r *payloadLog) handler() HandlerFunc {
	return func(_ context.Context, payload any) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.payloads = append(r.payloads, payload)
		return nil
	}
}

func (r *payloadLog) received() []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]any(nil), r.payloads...)
}

type order struct {
	OrderID int
}

func TestBus_OrderCreatedScenario(t *testing.T) {
	b := newTestBus(t)
	ctx := context.Background()

	var h1, h2 payloadLog
	id1, err := b.SubscribeFunc("orderCreated", h1.handler())
	require.NoError(t, err)
	id2, err := b.SubscribeFunc("orderCreated", h2.handler())
	require.NoError(t, err)

	outcome, err := b.PublishSync(ctx, "orderCreated", order{OrderID: 123})
	require.NoError(t, err)
	require.Equal(t, 2, outcome.Len())
	assert.Equal(t, id1, outcome.At(0).SubscriptionID)
	assert.Equal(t, StatusSuccess, outcome.At(0).Status)
	assert.Equal(t, id2, outcome.At(1).SubscriptionID)
	assert.Equal(t, StatusSuccess, outcome.At(1).Status)
	assert.Equal(t, []any{order{OrderID: 123}}, h1.received())
	assert.Equal(t, []any{order{OrderID: 123}}, h2.received())

	removed, err := b.Unsubscribe("orderCreated", id1)
	require.NoError(t, err)
	require.True(t, removed)

	outcome, err = b.PublishSync(ctx, "orderCreated", order{OrderID: 456})
	require.NoError(t, err)
	require.Equal(t, 1, outcome.Len())
	assert.Equal(t, id2, outcome.At(0).SubscriptionID)
	assert.True(t, outcome.AllSucceeded())
	assert.Len(t, h1.received(), 1)
	assert.Equal(t, []any{order{OrderID: 123}, order{OrderID: 456}}, h2.received())
}

func TestBus_OrderCreatedScenario_Async(t *testing.T) {
	b := newTestBus(t)
	ctx := context.Background()

	var h1, h2 payloadLog
	id1, _ := b.SubscribeFunc("orderCreated", h1.handler())
	id2, _ := b.SubscribeFunc("orderCreated", h2.handler())

	future, err := b.PublishAsync(ctx, "orderCreated", order{OrderID: 123})
	require.NoError(t, err)

	outcome, err := future.Wait(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, outcome.Len())
	assert.Equal(t, id1, outcome.At(0).SubscriptionID)
	assert.Equal(t, id2, outcome.At(1).SubscriptionID)
	assert.True(t, outcome.AllSucceeded())
	assert.Equal(t, []any{order{OrderID: 123}}, h1.received())
	assert.Equal(t, []any{order{OrderID: 123}}, h2.received())
}

func TestBus_FanOutCompleteness(t *testing.T) {
	for _, mode := range []DeliveryMode{DeliverySync, DeliveryAsync} {
		t.Run(mode.String(), func(t *testing.T) {
			b := newTestBus(t)

			const n = 10
			ids := make([]SubscriptionID, n)
			for i := range n {
				fail := i%2 == 1
				id, err := b.SubscribeFunc("orderCreated", func(context.Context, any) error {
					if fail {
						return errors.New("boom")
					}
					return nil
				})
				require.NoError(t, err)
				ids[i] = id
			}

			outcome := publish(t, b, mode, "orderCreated", "payload")

			require.Equal(t, n, outcome.Len())
			assert.Equal(t, n/2, outcome.Succeeded())
			assert.Equal(t, n/2, outcome.Failed())
			for i, o := range outcome.Outcomes() {
				assert.Equal(t, ids[i], o.SubscriptionID)
			}
		})
	}
}

func publish(t *testing.T, b *Bus, mode DeliveryMode, tp topic.Topic, payload any) AggregateOutcome {
	t.Helper()

	ctx := context.Background()
	if mode == DeliverySync {
		outcome, err := b.PublishSync(ctx, tp, payload)
		require.NoError(t, err)
		return outcome
	}

	future, err := b.PublishAsync(ctx, tp, payload)
	require.NoError(t, err)
	outcome, err := future.Wait(ctx)
	require.NoError(t, err)
	return outcome
}

func TestBus_Isolation(t *testing.T) {
	tests := []struct {
		name    string
		middle  HandlerFunc
		wantErr error
	}{
		{
			name:    "error",
			middle:  func(context.Context, any) error { return errors.New("inventory down") },
			wantErr: nil,
		},
		{
			name:    "panic",
			middle:  func(context.Context, any) error { panic("boom") },
			wantErr: ErrHandlerPanic,
		},
	}

	for _, tt := range tests {
		for _, mode := range []DeliveryMode{DeliverySync, DeliveryAsync} {
			t.Run(tt.name+"/"+mode.String(), func(t *testing.T) {
				b := newTestBus(t)

				var first, last payloadLog
				_, _ = b.SubscribeFunc("orderCreated", first.handler())
				failing, _ := b.SubscribeFunc("orderCreated", tt.middle)
				_, _ = b.SubscribeFunc("orderCreated", last.handler())

				outcome := publish(t, b, mode, "orderCreated", 1)

				require.Equal(t, 3, outcome.Len())
				assert.True(t, outcome.At(0).OK())
				assert.False(t, outcome.At(1).OK())
				assert.True(t, outcome.At(2).OK())
				assert.Len(t, first.received(), 1)
				assert.Len(t, last.received(), 1)

				failures := outcome.Failures()
				require.Len(t, failures, 1)
				assert.Equal(t, failing, failures[0].SubscriptionID)
				require.Error(t, failures[0].Err)
				if tt.wantErr != nil {
					assert.ErrorIs(t, failures[0].Err, tt.wantErr)
				}
				assert.Error(t, outcome.Err())
			})
		}
	}
}

func TestBus_PanicOutcome(t *testing.T) {
	b := newTestBus(t)

	id, _ := b.SubscribeFunc("orderCreated", func(context.Context, any) error {
		panic("kaboom")
	})

	outcome, err := b.PublishSync(context.Background(), "orderCreated", nil)
	require.NoError(t, err)

	var pe *PanicError
	require.ErrorAs(t, outcome.At(0).Err, &pe)
	assert.Equal(t, id, pe.SubscriptionID)
	assert.Equal(t, "kaboom", pe.Value)
	assert.NotEmpty(t, pe.Stack)
}

func TestBus_DeliveryErrorWrapsHandlerError(t *testing.T) {
	b := newTestBus(t)

	errInventory := errors.New("inventory down")
	id, _ := b.SubscribeFunc("orderCreated", func(context.Context, any) error {
		return errInventory
	})

	outcome, err := b.PublishSync(context.Background(), "orderCreated", nil)
	require.NoError(t, err)

	var de *DeliveryError
	require.ErrorAs(t, outcome.At(0).Err, &de)
	assert.Equal(t, id, de.SubscriptionID)
	assert.Equal(t, topic.Topic("orderCreated"), de.Topic)
	assert.ErrorIs(t, de, errInventory)
}

func TestBus_SnapshotIsolation_Async(t *testing.T) {
	b := newTestBus(t)
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})
	_, _ = b.SubscribeFunc("orderCreated", func(context.Context, any) error {
		close(started)
		<-release
		return nil
	})

	future, err := b.PublishAsync(ctx, "orderCreated", "in-flight")
	require.NoError(t, err)
	<-started

	var late payloadLog
	_, err = b.SubscribeFunc("orderCreated", late.handler())
	require.NoError(t, err)
	close(release)

	outcome, err := future.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, outcome.Len())
	assert.Empty(t, late.received())
}

func TestBus_SelfUnsubscribeDoesNotAffectCurrentPass(t *testing.T) {
	b := newTestBus(t)
	ctx := context.Background()

	var second payloadLog
	var secondID SubscriptionID
	_, _ = b.SubscribeFunc("orderCreated", func(context.Context, any) error {
		_, err := b.Unsubscribe("orderCreated", secondID)
		return err
	})
	secondID, _ = b.SubscribeFunc("orderCreated", second.handler())

	outcome, err := b.PublishSync(ctx, "orderCreated", 1)
	require.NoError(t, err)
	assert.Equal(t, 2, outcome.Len())
	assert.Len(t, second.received(), 1)

	outcome, err = b.PublishSync(ctx, "orderCreated", 2)
	require.NoError(t, err)
	assert.Equal(t, 1, outcome.Len())
	assert.Len(t, second.received(), 1)
}

func TestBus_NoCrossTopicLeakage(t *testing.T) {
	b := newTestBus(t)

	var a, bb, upper payloadLog
	_, _ = b.SubscribeFunc("A", a.handler())
	_, _ = b.SubscribeFunc("B", bb.handler())
	_, _ = b.SubscribeFunc("a", upper.handler())

	outcome := publish(t, b, DeliverySync, "A", 1)
	assert.Equal(t, 1, outcome.Len())
	outcome = publish(t, b, DeliveryAsync, "A", 2)
	assert.Equal(t, 1, outcome.Len())

	assert.Equal(t, []any{1, 2}, a.received())
	assert.Empty(t, bb.received())
	assert.Empty(t, upper.received())
}

func TestBus_EmptyTopicNoOp(t *testing.T) {
	b := newTestBus(t)
	ctx := context.Background()

	outcome, err := b.PublishSync(ctx, "nobody", 1)
	require.NoError(t, err)
	assert.Zero(t, outcome.Len())
	assert.True(t, outcome.AllSucceeded())
	assert.NoError(t, outcome.Err())

	future, err := b.PublishAsync(ctx, "nobody", 1)
	require.NoError(t, err)
	select {
	case <-future.Done():
	default:
		t.Fatal("future for a topic without subscribers should be complete")
	}
	outcome, ok := future.Outcome()
	require.True(t, ok)
	assert.Zero(t, outcome.Len())
}

func TestBus_InvalidTopic(t *testing.T) {
	b := newTestBus(t)
	ctx := context.Background()

	_, err := b.PublishSync(ctx, "", 1)
	assert.ErrorIs(t, err, ErrInvalidTopic)

	_, err = b.PublishAsync(ctx, "", 1)
	assert.ErrorIs(t, err, ErrInvalidTopic)

	_, err = b.Subscribe("", nopHandler())
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = b.SubscribeFunc("orderCreated", nil)
	assert.ErrorIs(t, err, ErrNilHandler)
}

func TestBus_SyncOrdering(t *testing.T) {
	b := newTestBus(t)

	var mu sync.Mutex
	var order []int
	for i := range 5 {
		var opts []SubscriptionOption
		if i == 2 {
			opts = append(opts, WithAsync())
		}
		_, err := b.SubscribeFunc("orderCreated", func(context.Context, any) error {
			if i == 2 {
				time.Sleep(10 * time.Millisecond)
			}
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return nil
		}, opts...)
		require.NoError(t, err)
	}

	outcome := publish(t, b, DeliverySync, "orderCreated", nil)
	assert.True(t, outcome.AllSucceeded())
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestBus_SyncCancelledMidPass(t *testing.T) {
	b := newTestBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	_, _ = b.SubscribeFunc("orderCreated", func(context.Context, any) error {
		calls.Add(1)
		cancel()
		return nil
	})
	for range 2 {
		_, _ = b.SubscribeFunc("orderCreated", func(context.Context, any) error {
			calls.Add(1)
			return nil
		})
	}

	outcome, err := b.PublishSync(ctx, "orderCreated", nil)
	require.NoError(t, err)
	require.Equal(t, 3, outcome.Len())
	assert.True(t, outcome.At(0).OK())
	assert.ErrorIs(t, outcome.At(1).Err, ErrDeliverySkipped)
	assert.ErrorIs(t, outcome.At(2).Err, context.Canceled)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, uint64(2), b.Stats().Skipped)
	assert.Equal(t, uint64(outcome.Failed()), b.Stats().Failed)
}

func TestBus_Timeout(t *testing.T) {
	t.Run("async subscription abandoned", func(t *testing.T) {
		b := newTestBus(t)
		release := make(chan struct{})
		t.Cleanup(func() { close(release) })

		var sibling payloadLog
		slow, _ := b.SubscribeFunc("orderCreated", func(context.Context, any) error {
			<-release
			return nil
		}, WithAsync(), WithTimeout(20*time.Millisecond))
		_, _ = b.SubscribeFunc("orderCreated", sibling.handler())

		for _, mode := range []DeliveryMode{DeliverySync, DeliveryAsync} {
			outcome := publish(t, b, mode, "orderCreated", mode.String())
			require.Equal(t, 2, outcome.Len())

			o, ok := outcome.Get(slow)
			require.True(t, ok)
			assert.ErrorIs(t, o.Err, ErrHandlerTimeout)
			assert.True(t, outcome.At(1).OK())
		}
		assert.Len(t, sibling.received(), 2)
		assert.Equal(t, uint64(2), b.Stats().TimedOut)
	})

	t.Run("sync subscription deadline", func(t *testing.T) {
		b := newTestBus(t, WithDefaultTimeout(20*time.Millisecond))

		_, _ = b.SubscribeFunc("orderCreated", func(ctx context.Context, _ any) error {
			<-ctx.Done()
			return ctx.Err()
		})

		outcome := publish(t, b, DeliverySync, "orderCreated", nil)
		require.Equal(t, 1, outcome.Len())
		assert.ErrorIs(t, outcome.At(0).Err, ErrHandlerTimeout)
	})
}

func TestBus_MaxConcurrency(t *testing.T) {
	b := newTestBus(t, WithMaxConcurrency(2))

	var running, peak atomic.Int32
	for range 8 {
		_, _ = b.SubscribeFunc("orderCreated", func(context.Context, any) error {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			running.Add(-1)
			return nil
		})
	}

	outcome := publish(t, b, DeliveryAsync, "orderCreated", nil)
	assert.Equal(t, 8, outcome.Succeeded())
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestFuture_CancelSkipsPendingDeliveries(t *testing.T) {
	b := newTestBus(t, WithMaxConcurrency(1))
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})
	var handlerCtxErr error
	_, _ = b.SubscribeFunc("orderCreated", func(ctx context.Context, _ any) error {
		close(started)
		<-release
		handlerCtxErr = ctx.Err()
		return nil
	})
	var later payloadLog
	for range 2 {
		_, _ = b.SubscribeFunc("orderCreated", later.handler())
	}

	future, err := b.PublishAsync(ctx, "orderCreated", nil)
	require.NoError(t, err)
	<-started

	future.Cancel()
	future.Cancel()
	close(release)

	outcome, err := future.Wait(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, outcome.Len())
	assert.True(t, outcome.At(0).OK())
	assert.NoError(t, handlerCtxErr)
	assert.ErrorIs(t, outcome.At(1).Err, ErrDeliverySkipped)
	assert.ErrorIs(t, outcome.At(2).Err, ErrDeliverySkipped)
	assert.Empty(t, later.received())
}

func TestFuture_WaitContext(t *testing.T) {
	b := newTestBus(t)

	release := make(chan struct{})
	_, _ = b.SubscribeFunc("orderCreated", func(context.Context, any) error {
		<-release
		return nil
	})

	future, err := b.PublishAsync(context.Background(), "orderCreated", nil)
	require.NoError(t, err)

	_, ok := future.Outcome()
	assert.False(t, ok)

	waitCtx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = future.Wait(waitCtx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	outcome, err := future.Wait(context.Background())
	require.NoError(t, err)
	assert.True(t, outcome.AllSucceeded())
}

func TestBus_Close(t *testing.T) {
	b := NewBus(WithLogger(slogt.New(t)))
	ctx := context.Background()

	release := make(chan struct{})
	var finished atomic.Bool
	id, _ := b.SubscribeFunc("orderCreated", func(context.Context, any) error {
		<-release
		finished.Store(true)
		return nil
	})

	future, err := b.PublishAsync(ctx, "orderCreated", nil)
	require.NoError(t, err)

	closed := make(chan error, 1)
	go func() { closed <- b.Close(ctx) }()

	select {
	case <-closed:
		t.Fatal("Close returned while a publish was in flight")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-closed)
	assert.True(t, finished.Load())
	assert.True(t, b.IsClosed())

	outcome, ok := future.Outcome()
	require.True(t, ok)
	assert.True(t, outcome.AllSucceeded())

	assert.Equal(t, SubscriptionStateRemoved, b.SubscriptionState(id))
	assert.Zero(t, b.Stats().ActiveSubscriptions)

	_, err = b.Subscribe("orderCreated", nopHandler())
	assert.ErrorIs(t, err, ErrBusClosed)
	_, err = b.Unsubscribe("orderCreated", id)
	assert.ErrorIs(t, err, ErrBusClosed)
	_, err = b.PublishSync(ctx, "orderCreated", nil)
	assert.ErrorIs(t, err, ErrBusClosed)
	_, err = b.PublishAsync(ctx, "orderCreated", nil)
	assert.ErrorIs(t, err, ErrBusClosed)

	assert.NoError(t, b.Close(ctx))
}

func TestBus_CloseContextExpires(t *testing.T) {
	b := NewBus(WithLogger(slogt.New(t)))

	release := make(chan struct{})
	_, _ = b.SubscribeFunc("orderCreated", func(context.Context, any) error {
		<-release
		return nil
	})
	_, err := b.PublishAsync(context.Background(), "orderCreated", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, b.Close(ctx), context.DeadlineExceeded)

	close(release)
	assert.NoError(t, b.Close(context.Background()))
}

func TestBus_Stats(t *testing.T) {
	b := newTestBus(t)

	_, _ = b.SubscribeFunc("orderCreated", func(context.Context, any) error { return nil })
	_, _ = b.SubscribeFunc("orderCreated", func(context.Context, any) error { return errors.New("x") })
	_, _ = b.SubscribeFunc("orderCreated", func(context.Context, any) error { panic("p") })

	syncOutcome := publish(t, b, DeliverySync, "orderCreated", nil)
	asyncOutcome := publish(t, b, DeliveryAsync, "orderCreated", nil)

	stats := b.Stats()
	assert.Equal(t, uint64(1), stats.PublishesSync)
	assert.Equal(t, uint64(1), stats.PublishesAsync)
	assert.Equal(t, uint64(2), stats.Delivered)
	assert.Equal(t, uint64(4), stats.Failed)
	assert.Equal(t, uint64(syncOutcome.Failed()+asyncOutcome.Failed()), stats.Failed)
	assert.Equal(t, uint64(2), stats.Panicked)
	assert.Equal(t, 3, stats.ActiveSubscriptions)
	assert.Zero(t, stats.InFlightAsync)
}

func TestBus_Hooks(t *testing.T) {
	var panics, failures atomic.Int32
	b := newTestBus(t,
		WithPanicHandler(func(sub Subscription, payload any, recovered any) {
			panics.Add(1)
			assert.Equal(t, "p", recovered)
			assert.Equal(t, "payload", payload)
			panic("hooks must not escape")
		}),
		WithErrorHandler(func(sub Subscription, payload any, err error) {
			failures.Add(1)
			assert.Error(t, err)
		}),
	)

	_, _ = b.SubscribeFunc("orderCreated", func(context.Context, any) error { return errors.New("x") })
	_, _ = b.SubscribeFunc("orderCreated", func(context.Context, any) error { panic("p") })

	outcome := publish(t, b, DeliverySync, "orderCreated", "payload")
	assert.Equal(t, 2, outcome.Failed())
	assert.Equal(t, int32(1), panics.Load())
	assert.Equal(t, int32(2), failures.Load())
}

func TestBus_PayloadCopy(t *testing.T) {
	tests := []struct {
		name     string
		opts     []BusOption
		wantSeen int
	}{
		{"shared", nil, 0},
		{"copied", []BusOption{WithPayloadCopy()}, 123},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newTestBus(t, tt.opts...)

			_, _ = b.SubscribeFunc("orderCreated", func(_ context.Context, p any) error {
				p.(map[string]int)["orderId"] = 0
				return nil
			})
			var seen int
			_, _ = b.SubscribeFunc("orderCreated", func(_ context.Context, p any) error {
				seen = p.(map[string]int)["orderId"]
				return nil
			})

			payload := map[string]int{"orderId": 123}
			outcome := publish(t, b, DeliverySync, "orderCreated", payload)
			require.True(t, outcome.AllSucceeded())
			assert.Equal(t, tt.wantSeen, seen)
		})
	}
}

func TestBus_ConcurrentPublishAndSubscribe(t *testing.T) {
	b := newTestBus(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for range 50 {
				id, err := b.SubscribeFunc("orderCreated", func(context.Context, any) error { return nil })
				if err != nil {
					t.Error(err)
					return
				}
				_, _ = b.Unsubscribe("orderCreated", id)
			}
		}()
		go func() {
			defer wg.Done()
			for range 50 {
				if i%2 == 0 {
					if _, err := b.PublishSync(ctx, "orderCreated", nil); err != nil {
						t.Error(err)
						return
					}
					continue
				}
				f, err := b.PublishAsync(ctx, "orderCreated", nil)
				if err != nil {
					t.Error(err)
					return
				}
				if _, err := f.Wait(ctx); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()

	assert.Zero(t, b.SubscriberCount("orderCreated"))
}

func TestBus_SubscribeNilFuncHandler(t *testing.T) {
	b := newTestBus(t)

	id, err := b.Subscribe("orderCreated", HandlerFunc(nil))
	require.ErrorIs(t, err, ErrNilHandler)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.Empty(t, id)
	assert.Zero(t, b.SubscriberCount("orderCreated"))
}

func TestBus_SubscribeRacingClose(t *testing.T) {
	b := NewBus(WithLogger(slogt.New(t)))

	var (
		wg      sync.WaitGroup
		started sync.WaitGroup
	)
	for g := range 8 {
		wg.Add(1)
		started.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; ; i++ {
				tp := topic.Topic(fmt.Sprintf("order-%d-%d", g, i))
				_, err := b.SubscribeFunc(tp, func(context.Context, any) error { return nil })
				if i == 0 {
					started.Done()
				}
				if err != nil {
					assert.ErrorIs(t, err, ErrBusClosed)
					return
				}
			}
		}()
	}

	started.Wait()
	require.NoError(t, b.Close(context.Background()))
	wg.Wait()

	assert.Zero(t, b.Stats().ActiveSubscriptions)
	assert.Empty(t, b.Topics())
}
