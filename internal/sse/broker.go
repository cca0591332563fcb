// Package sse streams committed wiki changes to browsers as Server-Sent Events.
//
// Clients may follow a single web (GET /api/events?web=wiki1) or every web.
// Page changes are followed by a graph.updated event for the same web,
// throttled per web so bulk imports and prunes do not flood listeners.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// GraphUpdated is emitted after page changes, at most once per throttle
// interval and web.
const GraphUpdated = "graph.updated"

// Event is one message on the stream. Web scopes delivery to subscribers of
// that web; an empty Web reaches everyone.
type Event struct {
	Type string `json:"type"`
	Web  string `json:"-"`
	Data any    `json:"data"`
}

// Kinds accepted by PublishWikiEvent.
var (
	webKinds  = map[string]bool{"web.created": true, "web.updated": true, "file.uploaded": true}
	pageKinds = map[string]bool{"page.written": true, "page.removed": true}
)

// Subscription is one client's feed.
type Subscription struct {
	C   chan []byte
	web string
}

// Broker manages subscriptions and fans out events.
//
// A single loop goroutine owns the subscriber set and the per-web graph
// throttle; public methods talk to it over channels.
type Broker struct {
	graphMin  time.Duration
	heartbeat time.Duration

	subscribeCh   chan *Subscription
	unsubscribeCh chan *Subscription
	publishCh     chan Event
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a broker that emits graph.updated at most once per
// graphThrottle for each web.
func NewBroker(graphThrottle time.Duration) *Broker {
	if graphThrottle <= 0 {
		graphThrottle = 2 * time.Second
	}
	b := &Broker{
		graphMin:      graphThrottle,
		heartbeat:     30 * time.Second,
		subscribeCh:   make(chan *Subscription),
		unsubscribeCh: make(chan *Subscription),
		publishCh:     make(chan Event, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}
	go b.run()
	return b
}

func encode(e Event) ([]byte, error) {
	payload, err := json.Marshal(e.Data)
	if err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", e.Type, payload)), nil
}

func (b *Broker) run() {
	defer close(b.stopped)

	subs := make(map[*Subscription]struct{})
	lastGraph := make(map[string]time.Time)

	deliver := func(e Event) {
		raw, err := encode(e)
		if err != nil {
			return
		}
		for s := range subs {
			if s.web != "" && e.Web != "" && s.web != e.Web {
				continue
			}
			select {
			case s.C <- raw:
			default:
				// Slow client; drop rather than stall the loop.
			}
		}
	}

	for {
		select {
		case <-b.stopCh:
			for s := range subs {
				close(s.C)
			}
			return

		case s := <-b.subscribeCh:
			subs[s] = struct{}{}

		case s := <-b.unsubscribeCh:
			if _, ok := subs[s]; ok {
				delete(subs, s)
				close(s.C)
			}

		case e := <-b.publishCh:
			deliver(e)
			if !pageKinds[e.Type] {
				continue
			}
			now := time.Now()
			if now.Sub(lastGraph[e.Web]) >= b.graphMin {
				lastGraph[e.Web] = now
				deliver(Event{Type: GraphUpdated, Web: e.Web, Data: map[string]string{"web": e.Web}})
			}

		case resp := <-b.countReqCh:
			resp <- len(subs)
		}
	}
}

// Close stops the loop and closes every subscription. Safe to call twice.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe registers a client for events of web, or of all webs when web
// is empty. The channel is closed by Unsubscribe or Close.
func (b *Broker) Subscribe(web string) *Subscription {
	s := &Subscription{C: make(chan []byte, 64), web: web}
	if b.closed.Load() {
		close(s.C)
		return s
	}
	select {
	case b.subscribeCh <- s:
	case <-b.stopped:
		close(s.C)
	}
	return s
}

// Unsubscribe removes s and closes its channel.
func (b *Broker) Unsubscribe(s *Subscription) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- s:
	case <-b.stopped:
	}
}

// ClientCount returns the number of subscriptions.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}
	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}
	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish queues an event for delivery.
func (b *Broker) Publish(e Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- e:
	case <-b.stopped:
	}
}

// PublishWikiEvent publishes a committed wiki change. Its signature matches
// admin.EventFunc so the broker can be registered directly. Unknown kinds
// are ignored.
func (b *Broker) PublishWikiEvent(kind, web, page string) {
	if !webKinds[kind] && !pageKinds[kind] {
		return
	}
	data := map[string]string{"web": web}
	if page != "" {
		data["page"] = page
	}
	b.Publish(Event{Type: kind, Web: web, Data: data})
}

// ServeHTTP is the SSE endpoint. The optional "web" query parameter limits
// the stream to one web. A comment line is sent every heartbeat interval to
// keep idle proxies from closing the connection.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sub := b.Subscribe(r.URL.Query().Get("web"))
	defer b.Unsubscribe(sub)

	ping := time.NewTicker(b.heartbeat)
	defer ping.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ping.C:
			_, _ = w.Write([]byte(": ping\n\n"))
			flusher.Flush()
		case msg, ok := <-sub.C:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
