package engine

import (
	"encoding/json"
	"maps"
	"net/http"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/patrickwarner/decisionsdk/internal/observability"
)

// Profile is the engine's record for one user key.
type Profile struct {
	Key          string           `json:"key"`
	BlockedItems map[string]any   `json:"blockedItems"`
	Interests    []string         `json:"interests"`
	Custom       map[string]any   `json:"custom"`
	OptOut       bool             `json:"optOut"`
	Retargeting  map[string][]int `json:"retargeting,omitempty"`
}

func (p *Profile) clone() Profile {
	out := *p
	out.BlockedItems = maps.Clone(p.BlockedItems)
	out.Interests = slices.Clone(p.Interests)
	out.Custom = maps.Clone(p.Custom)
	out.Retargeting = make(map[string][]int, len(p.Retargeting))
	for k, v := range p.Retargeting {
		out.Retargeting[k] = slices.Clone(v)
	}
	return out
}

// ProfileStore keeps profiles in memory, keyed by user key.
type ProfileStore struct {
	mu       sync.RWMutex
	profiles map[string]*Profile
}

func NewProfileStore() *ProfileStore {
	return &ProfileStore{profiles: make(map[string]*Profile)}
}

// Get returns a copy of the profile for key.
func (s *ProfileStore) Get(key string) (Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[key]
	if !ok {
		return Profile{}, false
	}
	return p.clone(), true
}

// Touch creates an empty profile for key if none exists.
func (s *ProfileStore) Touch(key string) {
	s.update(key, func(*Profile) {})
}

func (s *ProfileStore) OptedOut(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[key]
	return ok && p.OptOut
}

func (s *ProfileStore) AddInterest(key, interest string) {
	s.update(key, func(p *Profile) {
		if interest != "" && !slices.Contains(p.Interests, interest) {
			p.Interests = append(p.Interests, interest)
		}
	})
}

func (s *ProfileStore) OptOut(key string) {
	s.update(key, func(p *Profile) { p.OptOut = true })
}

func (s *ProfileStore) Retarget(key string, brand, segment int) {
	s.update(key, func(p *Profile) {
		b := strconv.Itoa(brand)
		if !slices.Contains(p.Retargeting[b], segment) {
			p.Retargeting[b] = append(p.Retargeting[b], segment)
		}
	})
}

// SetCustom replaces the custom properties of key.
func (s *ProfileStore) SetCustom(key string, props map[string]any) {
	s.update(key, func(p *Profile) { p.Custom = maps.Clone(props) })
}

func (s *ProfileStore) update(key string, fn func(*Profile)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[key]
	if !ok {
		p = &Profile{
			Key:          key,
			BlockedItems: map[string]any{},
			Interests:    []string{},
			Custom:       map[string]any{},
			Retargeting:  map[string][]int{},
		}
		s.profiles[key] = p
	}
	fn(p)
}

// userKey extracts the mandatory userKey query parameter, answering 400
// itself when it is missing.
func (s *Server) userKey(w http.ResponseWriter, r *http.Request, endpoint string, start time.Time) (string, bool) {
	key := r.URL.Query().Get("userKey")
	if key == "" {
		s.observe(endpoint, r.Method, http.StatusBadRequest, start)
		http.Error(w, "userKey required", http.StatusBadRequest)
		return "", false
	}
	return key, true
}

// ReadHandler handles GET /udb/{network}/read. Unknown users get an empty
// object.
func (s *Server) ReadHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	const endpoint = "read"
	key, ok := s.userKey(w, r, endpoint, start)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "application/json")
	var body any = struct{}{}
	if p, found := s.Profiles.Get(key); found {
		body = p
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.Logger.Error("encode profile", zap.Error(err))
	}
	s.observe(endpoint, r.Method, http.StatusOK, start)
}

// CustomHandler handles POST /udb/{network}/custom with a JSON object body.
func (s *Server) CustomHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	const endpoint = "custom"
	key, ok := s.userKey(w, r, endpoint, start)
	if !ok {
		return
	}

	var props map[string]any
	if err := json.NewDecoder(r.Body).Decode(&props); err != nil || props == nil {
		observability.LoggerFromContext(r.Context(), s.Logger).Warn("invalid custom properties", zap.Error(err))
		s.observe(endpoint, r.Method, http.StatusBadRequest, start)
		http.Error(w, "invalid properties", http.StatusBadRequest)
		return
	}
	s.Profiles.SetCustom(key, props)
	w.WriteHeader(http.StatusOK)
	s.observe(endpoint, r.Method, http.StatusOK, start)
}

// RetargetHandler handles GET /udb/{network}/rt/{brand}/{segment}/i.gif.
func (s *Server) RetargetHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	const endpoint = "retarget"
	key, ok := s.userKey(w, r, endpoint, start)
	if !ok {
		return
	}
	vars := mux.Vars(r)
	brand, _ := strconv.Atoi(vars["brand"])
	segment, _ := strconv.Atoi(vars["segment"])
	s.Profiles.Retarget(key, brand, segment)
	writePixel(w)
	s.observe(endpoint, r.Method, http.StatusOK, start)
}

// ActionHandler handles GET /udb/{network}/{action}/i.gif for interest and
// optout. Other actions are rejected with 404.
func (s *Server) ActionHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	action := mux.Vars(r)["action"]
	key, ok := s.userKey(w, r, action, start)
	if !ok {
		return
	}

	switch action {
	case "interest":
		interest := r.URL.Query().Get("interest")
		if interest == "" {
			s.observe(action, r.Method, http.StatusBadRequest, start)
			http.Error(w, "interest required", http.StatusBadRequest)
			return
		}
		s.Profiles.AddInterest(key, interest)
	case "optout":
		s.Profiles.OptOut(key)
	default:
		s.observe("unknown", r.Method, http.StatusNotFound, start)
		http.NotFound(w, r)
		return
	}
	writePixel(w)
	s.observe(action, r.Method, http.StatusOK, start)
}
