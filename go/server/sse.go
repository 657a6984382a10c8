package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
)

// heartbeatInterval paces comment frames which keep idle connections
// from being reaped by intermediaries.
const heartbeatInterval = 15 * time.Second

// streamTask adapts a task's event bus onto a server-sent event stream.
// Late subscribers receive the replay burst first; the stream ends after
// the terminal event.
func (s *Server) streamTask(w http.ResponseWriter, r *http.Request) {
	var t, ok = s.ownedTask(w, r)
	if !ok {
		return
	}

	var flusher, canFlush = w.(http.Flusher)
	if !canFlush {
		respondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	var ch, unsubscribe = t.Bus().Subscribe()
	defer unsubscribe()

	sseSubscribers.Inc()
	defer sseSubscribers.Dec()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	var heartbeat = time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case ev, open := <-ch:
			if !open {
				// The bus closed behind the terminal event.
				return
			}
			var encoded, err = json.Marshal(ev)
			if err != nil {
				log.WithFields(log.Fields{"task": t.ID(), "err": err}).Error("encoding stream event")
				return
			}
			if _, err = fmt.Fprintf(w, "data: %s\n\n", encoded); err != nil {
				return
			}
			flusher.Flush()

		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": heartbeat\n\n"); err != nil {
				return
			}
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
