package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// drain collects whatever is buffered on s after a short settle.
func drain(s *Subscription) []string {
	time.Sleep(50 * time.Millisecond)
	var out []string
	for {
		select {
		case msg := <-s.C:
			out = append(out, string(msg))
		default:
			return out
		}
	}
}

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	s := b.Subscribe("")
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(s)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
	if _, ok := <-s.C; ok {
		t.Fatal("channel should be closed after unsubscribe")
	}
}

func TestPublishWikiEvent_Format(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	s := b.Subscribe("")
	defer b.Unsubscribe(s)

	b.PublishWikiEvent("web.created", "wiki1", "")

	select {
	case msg := <-s.C:
		got := string(msg)
		if got != "event: web.created\ndata: {\"web\":\"wiki1\"}\n\n" {
			t.Errorf("message = %q", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestPublishWikiEvent_GraphThrottlePerWeb(t *testing.T) {
	b := NewBroker(500 * time.Millisecond)
	defer b.Close()
	s := b.Subscribe("")
	defer b.Unsubscribe(s)

	b.PublishWikiEvent("page.written", "wiki1", "Pine")
	b.PublishWikiEvent("page.removed", "wiki1", "Oak")
	b.PublishWikiEvent("page.written", "instiki", "Elephant")

	graph := map[string]int{}
	pages := 0
	for _, msg := range drain(s) {
		switch {
		case strings.HasPrefix(msg, "event: "+GraphUpdated):
			switch {
			case strings.Contains(msg, `"web":"wiki1"`):
				graph["wiki1"]++
			case strings.Contains(msg, `"web":"instiki"`):
				graph["instiki"]++
			}
		default:
			pages++
		}
	}
	if pages != 3 {
		t.Errorf("page events = %d, want 3", pages)
	}
	if graph["wiki1"] != 1 || graph["instiki"] != 1 {
		t.Errorf("graph events = %v, want one per web", graph)
	}
}

func TestSubscribe_FiltersByWeb(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	one := b.Subscribe("wiki1")
	all := b.Subscribe("")
	defer b.Unsubscribe(one)
	defer b.Unsubscribe(all)

	b.PublishWikiEvent("web.updated", "instiki", "")
	b.PublishWikiEvent("web.updated", "wiki1", "")
	b.Publish(Event{Type: "notice", Data: map[string]string{"msg": "hello"}})

	got := drain(one)
	if len(got) != 2 || !strings.Contains(got[0], `"web":"wiki1"`) || !strings.Contains(got[1], "event: notice") {
		t.Errorf("wiki1 subscriber got %q", got)
	}
	if n := len(drain(all)); n != 3 {
		t.Errorf("unfiltered subscriber got %d events, want 3", n)
	}
}

func TestPublishWikiEvent_IgnoresUnknownKinds(t *testing.T) {
	b := NewBroker(time.Millisecond)
	defer b.Close()
	s := b.Subscribe("")
	defer b.Unsubscribe(s)

	b.PublishWikiEvent("bogus", "wiki1", "")
	b.PublishWikiEvent("web.updated", "wiki1", "")

	got := drain(s)
	if len(got) != 1 || !strings.HasPrefix(got[0], "event: web.updated") || strings.Contains(got[0], `"page"`) {
		t.Errorf("got %q", got)
	}
}

// flushRecorder guards the recorder body, which the handler writes while
// the test reads.
type flushRecorder struct {
	mu sync.Mutex
	*httptest.ResponseRecorder
}

func (f *flushRecorder) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ResponseRecorder.Write(p)
}

func (f *flushRecorder) body() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Body.String()
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events?web=wiki1", nil).WithContext(ctx)
	w := &flushRecorder{ResponseRecorder: httptest.NewRecorder()}

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client from handler")
	}

	b.PublishWikiEvent("page.written", "instiki", "Elephant")
	b.PublishWikiEvent("page.written", "wiki1", "Oak")
	time.Sleep(50 * time.Millisecond)

	cancel()
	<-done

	body := w.body()
	if !strings.Contains(body, "event: page.written") || !strings.Contains(body, `"page":"Oak"`) {
		t.Errorf("handler output missing event: %q", body)
	}
	if strings.Contains(body, "Elephant") {
		t.Errorf("handler leaked another web's event: %q", body)
	}

	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	s := b.Subscribe("")
	defer b.Unsubscribe(s)

	// Capacity is 64; the rest must be dropped, not block.
	for i := 0; i < 70; i++ {
		b.PublishWikiEvent("web.updated", "wiki1", "")
	}
	if n := len(drain(s)); n != 64 {
		t.Errorf("buffered = %d, want 64", n)
	}
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	s := b.Subscribe("")
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}

	b.Close()

	select {
	case _, ok := <-s.C:
		if ok {
			t.Fatal("expected subscriber channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}

	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after close")
	}

	// No-ops after close.
	b.PublishWikiEvent("page.written", "wiki1", "Oak")
	if _, ok := <-b.Subscribe("wiki1").C; ok {
		t.Fatal("subscribe after close should return a closed channel")
	}
	b.Close()
}
