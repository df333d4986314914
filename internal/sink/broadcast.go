package sink

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"tailscale.com/tsweb"

	"github.com/banshee-data/ctdlog/internal/ctd"
	"github.com/banshee-data/ctdlog/internal/httputil"
	"github.com/banshee-data/ctdlog/internal/monitoring"
)

// subscriberBuffer is how many samples a slow subscriber may fall behind
// before samples are dropped for it.
const subscriberBuffer = 16

// Broadcast fans samples out to any number of subscribers. Delivery never
// blocks the pipeline: a subscriber whose buffer is full misses the sample.
type Broadcast struct {
	mu          sync.Mutex
	subscribers map[string]chan ctd.CalibratedSample
	latest      *ctd.CalibratedSample
	closing     bool
}

// NewBroadcast returns an empty Broadcast.
func NewBroadcast() *Broadcast {
	return &Broadcast{
		subscribers: make(map[string]chan ctd.CalibratedSample),
	}
}

// Subscribe returns an id and a channel receiving every subsequent sample.
// The channel is closed by Unsubscribe or Close.
func (b *Broadcast) Subscribe() (string, <-chan ctd.CalibratedSample) {
	id := uuid.NewString()
	ch := make(chan ctd.CalibratedSample, subscriberBuffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closing {
		close(ch)
		return id, ch
	}
	b.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broadcast) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subscribers[id]; ok {
		close(ch)
		delete(b.subscribers, id)
	}
}

// Emit implements Sink.
func (b *Broadcast) Emit(s ctd.CalibratedSample) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closing {
		return nil
	}
	latest := s
	b.latest = &latest
	for _, ch := range b.subscribers {
		select {
		case ch <- s:
		default:
		}
	}
	return nil
}

// Latest returns the most recent sample, if any.
func (b *Broadcast) Latest() (ctd.CalibratedSample, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.latest == nil {
		return ctd.CalibratedSample{}, false
	}
	return *b.latest, true
}

// Subscribers returns the number of active subscribers.
func (b *Broadcast) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}

// Close closes every subscriber channel. Later Emits are ignored.
func (b *Broadcast) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closing = true
	for id, ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, id)
	}
	return nil
}

// AttachAdminRoutes mounts the live sample endpoints on the debug handler:
// /debug/ctd-latest returns the latest sample as JSON and /debug/ctd-tail
// streams samples as server-sent events.
func (b *Broadcast) AttachAdminRoutes(debug *tsweb.DebugHandler) {
	debug.HandleFunc("ctd-latest", "latest calibrated CTD sample", func(w http.ResponseWriter, r *http.Request) {
		if !httputil.RequireMethod(w, r, http.MethodGet) {
			return
		}
		s, ok := b.Latest()
		if !ok {
			httputil.Error(w, http.StatusNotFound, "no sample yet")
			return
		}
		httputil.WriteJSON(w, http.StatusOK, s)
	})

	debug.HandleFunc("ctd-tail", "live tail of calibrated CTD samples", func(w http.ResponseWriter, r *http.Request) {
		if !httputil.RequireMethod(w, r, http.MethodGet) {
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			httputil.Error(w, http.StatusInternalServerError, "streaming unsupported")
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no") // Disable buffering for nginx

		id, c := b.Subscribe()
		defer b.Unsubscribe(id)

		w.Write([]byte(": ping\n\n"))
		flusher.Flush()

		for {
			select {
			case s, ok := <-c:
				if !ok {
					return
				}
				payload, err := json.Marshal(s)
				if err != nil {
					monitoring.Logf("ctd-tail: skipping sample: %v", err)
					continue
				}
				if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
					return
				}
				flusher.Flush()
			case <-r.Context().Done():
				return
			}
		}
	})
}
