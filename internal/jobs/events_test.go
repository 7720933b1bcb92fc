package jobs

import "testing"

func TestBusFansOut(t *testing.T) {
	b := NewBus()
	a := b.Subscribe()
	c := b.Subscribe()
	defer b.Unsubscribe(a)
	defer b.Unsubscribe(c)

	b.Publish(Event{JobID: "x", Type: EventProgress})

	for _, ch := range []chan Event{a, c} {
		select {
		case evt := <-ch:
			if evt.JobID != "x" || evt.Type != EventProgress {
				t.Errorf("event = %+v", evt)
			}
		default:
			t.Error("subscriber did not receive the event")
		}
	}
}

func TestBusSlowSubscriberNeverBlocksPublish(t *testing.T) {
	b := NewBus()
	slow := b.Subscribe()
	defer b.Unsubscribe(slow)

	// Overfill the subscriber's buffer; Publish must not block
	for i := 0; i < 250; i++ {
		b.Publish(Event{JobID: "x", Type: EventProgress})
	}
	if len(slow) != cap(slow) {
		t.Errorf("buffer holds %d, want full %d", len(slow), cap(slow))
	}
}

func TestBusUnsubscribeClosesChannel(t *testing.T) {
	b := NewBus()
	ch := b.Subscribe()
	b.Unsubscribe(ch)
	if _, ok := <-ch; ok {
		t.Error("channel still open after unsubscribe")
	}
	// Publishing after unsubscribe must not panic on the closed channel
	b.Publish(Event{JobID: "x"})
}
