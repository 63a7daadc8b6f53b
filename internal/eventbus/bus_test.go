package eventbus

import "testing"

func TestPublishFanOutAndDrop(t *testing.T) {
	t.Parallel()
	b := New()
	a, unsubA := b.Subscribe(4)
	c, unsubC := b.Subscribe(1)
	defer unsubA()

	b.Publish(Event{Type: "one"})
	b.Publish(Event{Type: "two"})

	if got := len(a); got != 2 {
		t.Fatalf("subscriber a buffered %d events, want 2", got)
	}
	if got := len(c); got != 1 {
		t.Fatalf("subscriber c buffered %d events, want 1", got)
	}
	if b.Dropped() != 1 {
		t.Fatalf("Dropped = %d, want 1", b.Dropped())
	}
	if e := <-a; e.Time.IsZero() || e.Type != "one" {
		t.Fatalf("unexpected first event %+v", e)
	}

	unsubC()
	unsubC() // idempotent
	if _, ok := <-c; !ok {
		t.Fatal("expected buffered event before close")
	}
	if _, ok := <-c; ok {
		t.Fatal("expected channel closed after unsubscribe")
	}
	b.Publish(Event{Type: "three"}) // must not panic
}
