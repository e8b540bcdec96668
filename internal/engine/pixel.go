package engine

import (
	"net/http"
	"time"
)

// ImpressionHandler handles GET /i.gif?e={decision}. Unknown ids are still
// acknowledged, the way a public pixel endpoint behaves.
func (s *Server) ImpressionHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if id := r.URL.Query().Get("e"); id != "" {
		s.mu.Lock()
		s.impressions[id]++
		s.mu.Unlock()
	}
	writePixel(w)
	s.observe("impression", r.Method, http.StatusOK, start)
}

// EventHandler handles GET /e.gif?e={decision}&id={event}.
func (s *Server) EventHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	q := r.URL.Query()
	if id := q.Get("e"); id != "" {
		s.mu.Lock()
		s.events[id+":"+q.Get("id")]++
		s.mu.Unlock()
	}
	writePixel(w)
	s.observe("event", r.Method, http.StatusOK, start)
}
