// ABOUTME: Tests for the audience fan-out broadcaster
// ABOUTME: Covers subscribe, publish, unsubscribe, context cancellation, concurrency

package chat

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeEvent(name string) *Event {
	return &Event{Name: name, Payload: map[string]string{"id": name}}
}

func TestBroadcaster_SingleSubscriberReceivesEvent(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ctx := t.Context()

	ch, _ := b.Subscribe(ctx, AudienceAdmin)

	b.Publish(AudienceAdmin, makeEvent("evt-1"))

	select {
	case received := <-ch:
		assert.Equal(t, "evt-1", received.Name)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestBroadcaster_MultipleSubscribersReceiveSameEvent(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ctx := t.Context()

	ch1, _ := b.Subscribe(ctx, AudienceAdmin)
	ch2, _ := b.Subscribe(ctx, AudienceAdmin)
	ch3, _ := b.Subscribe(ctx, AudienceAdmin)

	b.Publish(AudienceAdmin, makeEvent("evt-2"))

	for i, ch := range []<-chan *Event{ch1, ch2, ch3} {
		select {
		case received := <-ch:
			assert.Equal(t, "evt-2", received.Name, "subscriber %d got wrong event", i)
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d timed out", i)
		}
	}
}

func TestBroadcaster_AudiencesAreIsolated(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ctx := t.Context()

	adminCh, _ := b.Subscribe(ctx, AudienceAdmin)
	userCh, _ := b.Subscribe(ctx, UserAudience("user-1"))

	b.Publish(AudienceAdmin, makeEvent("evt-3"))

	select {
	case received := <-adminCh:
		assert.Equal(t, "evt-3", received.Name)
	case <-time.After(time.Second):
		t.Fatal("admin subscriber timed out")
	}

	select {
	case <-userCh:
		t.Fatal("user subscriber should not receive admin events")
	case <-time.After(100 * time.Millisecond):
		// Expected: no event
	}
}

func TestBroadcaster_PublishAllReachesEveryAudience(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ctx := t.Context()

	adminCh, _ := b.Subscribe(ctx, AudienceAdmin)
	user1Ch, _ := b.Subscribe(ctx, UserAudience("user-1"))
	user2Ch, _ := b.Subscribe(ctx, UserAudience("user-2"))

	b.PublishAll(makeEvent("evt-global"))

	for i, ch := range []<-chan *Event{adminCh, user1Ch, user2Ch} {
		select {
		case received := <-ch:
			assert.Equal(t, "evt-global", received.Name, "subscriber %d got wrong event", i)
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d timed out", i)
		}
	}
}

func TestBroadcaster_SlowConsumerDoesNotBlockPublisher(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ctx := t.Context()

	// Subscribe but never read (slow consumer)
	_, _ = b.Subscribe(ctx, AudienceAdmin)
	ch2, _ := b.Subscribe(ctx, AudienceAdmin)

	// Publish more events than the buffer size to overflow the slow channel
	for range 100 {
		b.Publish(AudienceAdmin, makeEvent("evt-overflow"))
	}

	receivedCount := 0
	for {
		select {
		case <-ch2:
			receivedCount++
		case <-time.After(200 * time.Millisecond):
			goto done
		}
	}
done:
	assert.Greater(t, receivedCount, 0, "fast consumer should receive at least some events")
}

func TestBroadcaster_ContextCancellationCleansUp(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch, subID := b.Subscribe(ctx, AudienceAdmin)

	b.mu.RLock()
	_, exists := b.subscribers[AudienceAdmin][subID]
	b.mu.RUnlock()
	assert.True(t, exists, "subscription should exist before cancel")

	cancel()

	// Give cleanup goroutine time to run
	time.Sleep(50 * time.Millisecond)

	b.mu.RLock()
	subs, audienceExists := b.subscribers[AudienceAdmin]
	if audienceExists {
		_, subExists := subs[subID]
		assert.False(t, subExists, "subscription should be removed after context cancel")
	}
	b.mu.RUnlock()

	select {
	case _, ok := <-ch:
		assert.False(t, ok, "channel should be closed after context cancel")
	case <-time.After(time.Second):
		t.Fatal("channel not closed after context cancel")
	}
}

func TestBroadcaster_ManualUnsubscribe(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ctx := t.Context()

	ch, subID := b.Subscribe(ctx, AudienceAdmin)

	b.Unsubscribe(AudienceAdmin, subID)

	select {
	case _, ok := <-ch:
		assert.False(t, ok, "channel should be closed after unsubscribe")
	case <-time.After(time.Second):
		t.Fatal("channel not closed after unsubscribe")
	}

	// Publishing should not panic
	b.Publish(AudienceAdmin, makeEvent("evt-after-unsub"))
}

func TestBroadcaster_CloseClosesAllSubscriptions(t *testing.T) {
	b := NewBroadcaster(nil)

	ctx := t.Context()

	ch1, _ := b.Subscribe(ctx, AudienceAdmin)
	ch2, _ := b.Subscribe(ctx, UserAudience("user-1"))

	b.Close()

	for i, ch := range []<-chan *Event{ch1, ch2} {
		select {
		case _, ok := <-ch:
			assert.False(t, ok, "channel %d should be closed after Close()", i)
		case <-time.After(time.Second):
			t.Fatalf("channel %d not closed after Close()", i)
		}
	}
}

func TestBroadcaster_ConcurrentPublishSubscribe(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	var wg sync.WaitGroup
	ctx := t.Context()

	for range 10 {
		wg.Go(func() {
			ch, _ := b.Subscribe(ctx, UserAudience("concurrent"))
			for range 5 {
				select {
				case <-ch:
				case <-time.After(500 * time.Millisecond):
					return
				}
			}
		})
	}

	for range 10 {
		wg.Go(func() {
			for range 10 {
				b.Publish(UserAudience("concurrent"), makeEvent("concurrent-evt"))
			}
		})
	}

	wg.Wait()
	// If we get here without deadlock or panic, the test passes
}

func TestBroadcaster_SubscribeReturnsUniqueIDs(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ctx := t.Context()

	_, id1 := b.Subscribe(ctx, AudienceAdmin)
	_, id2 := b.Subscribe(ctx, AudienceAdmin)
	_, id3 := b.Subscribe(ctx, UserAudience("user-1"))

	require.NotEqual(t, id1, id2)
	require.NotEqual(t, id1, id3)
	require.NotEqual(t, id2, id3)
}

func TestBroadcaster_PublishToEmptyAudience(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	// Should not panic
	b.Publish(UserAudience("nobody-listening"), makeEvent("evt-nowhere"))
}
