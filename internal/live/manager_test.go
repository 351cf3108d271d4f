package live

import "testing"

func TestClientSubscriptionFiltering(t *testing.T) {
	c := &Client{symbols: make(map[string]bool), sendCh: make(chan []byte, 1), done: make(chan struct{})}
	c.Subscribe([]string{"BTC-USD"})

	if !c.IsSubscribed("BTC-USD") {
		t.Fatalf("expected subscribed to BTC-USD")
	}
	if c.IsSubscribed("ETH-USD") {
		t.Fatalf("expected not subscribed to ETH-USD")
	}

	c.SubscribeAll()
	if !c.IsSubscribed("ETH-USD") {
		t.Fatalf("expected SubscribeAll to cover every symbol")
	}
}

func TestClientSendDropsWhenFull(t *testing.T) {
	c := &Client{symbols: make(map[string]bool), sendCh: make(chan []byte, 1), done: make(chan struct{})}

	if !c.Send([]byte("a")) {
		t.Fatalf("first send should succeed")
	}
	if c.Send([]byte("b")) {
		t.Fatalf("second send should be dropped (buffer full)")
	}
	if c.Dropped != 1 {
		t.Fatalf("Dropped = %d, want 1", c.Dropped)
	}
}
