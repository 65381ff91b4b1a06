package sandbox

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Step is one scripted answer for a route.
type Step struct {
	// Status is the HTTP status, 200 when zero.
	Status int `json:"status,omitempty"`
	// Envelope is encoded as the body unless Raw is set.
	Envelope *Envelope `json:"envelope,omitempty"`
	// Raw is written verbatim, for malformed or non-envelope bodies.
	Raw string `json:"raw,omitempty"`
	// Headers are set on the response.
	Headers map[string]string `json:"headers,omitempty"`
	// DelayMS holds the response back.
	DelayMS int `json:"delay_ms,omitempty"`
	// Drop closes the connection without answering.
	Drop bool `json:"drop,omitempty"`
}

func (s Step) delay() time.Duration {
	return time.Duration(s.DelayMS) * time.Millisecond
}

func (s Step) status() int {
	if s.Status == 0 {
		return http.StatusOK
	}
	return s.Status
}

// Stub scripts the answers for one "METHOD path" route.
type Stub struct {
	Method string `json:"method"`
	Path   string `json:"path"`
	Steps  []Step `json:"steps"`
}

// Validate reports whether the stub can be served
func (s *Stub) Validate() error {
	if s.Path == "" || !strings.HasPrefix(s.Path, "/") {
		return fmt.Errorf("stub path %q must start with /", s.Path)
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("stub %s %s has no steps", s.Method, s.Path)
	}
	for i, step := range s.Steps {
		if step.Raw == "" && step.Envelope == nil && !step.Drop {
			return fmt.Errorf("step %d of %s %s has neither envelope, raw body nor drop", i, s.Method, s.Path)
		}
	}
	return nil
}

type stubState struct {
	steps  []Step
	served int
}

// Script maps routes to their scripted steps. Steps are served in order
// and the last one repeats once the others are used up.
type Script struct {
	mu    sync.Mutex
	stubs map[string]*stubState
}

// NewScript returns an empty script
func NewScript() *Script {
	return &Script{stubs: make(map[string]*stubState)}
}

func routeKey(method, path string) string {
	return strings.ToUpper(method) + " " + path
}

// Set replaces the steps for method and path
func (s *Script) Set(method, path string, steps ...Step) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stubs[routeKey(method, path)] = &stubState{steps: append([]Step(nil), steps...)}
}

// Add registers stub after validating it
func (s *Script) Add(stub Stub) error {
	if err := stub.Validate(); err != nil {
		return err
	}
	s.Set(stub.Method, stub.Path, stub.Steps...)
	return nil
}

// Next returns the step to serve for method and path
func (s *Script) Next(method, path string) (Step, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.stubs[routeKey(method, path)]
	if !ok || len(state.steps) == 0 {
		return Step{}, false
	}
	i := state.served
	if i >= len(state.steps) {
		i = len(state.steps) - 1
	}
	state.served++
	return state.steps[i], true
}

// Served returns how many times the route has been answered
func (s *Script) Served(method, path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state, ok := s.stubs[routeKey(method, path)]; ok {
		return state.served
	}
	return 0
}

// Reset removes every stub
func (s *Script) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stubs = make(map[string]*stubState)
}

// ReceivedRequest is what the sandbox saw of one incoming call.
type ReceivedRequest struct {
	Method     string    `json:"method"`
	Path       string    `json:"path"`
	Query      string    `json:"query,omitempty"`
	RequestID  string    `json:"request_id"`
	DeviceID   string    `json:"device_id"`
	Timestamp  string    `json:"timestamp"`
	Signature  string    `json:"signature"`
	Body       string    `json:"body,omitempty"`
	Rejection  string    `json:"rejection,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
}

// Journal keeps the requests received by the sandbox, newest last.
type Journal struct {
	mu       sync.RWMutex
	requests []ReceivedRequest
	limit    int
}

// NewJournal keeps at most limit requests; zero means 1000
func NewJournal(limit int) *Journal {
	if limit <= 0 {
		limit = 1000
	}
	return &Journal{limit: limit}
}

func (j *Journal) record(r ReceivedRequest) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.requests = append(j.requests, r)
	if len(j.requests) > j.limit {
		j.requests = j.requests[len(j.requests)-j.limit:]
	}
}

// Requests returns a copy of the recorded requests
func (j *Journal) Requests() []ReceivedRequest {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return append([]ReceivedRequest(nil), j.requests...)
}

// Count returns how many recorded requests hit method and path
func (j *Journal) Count(method, path string) int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	n := 0
	for _, r := range j.requests {
		if r.Method == strings.ToUpper(method) && r.Path == path {
			n++
		}
	}
	return n
}

// Reset clears the journal
func (j *Journal) Reset() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.requests = nil
}
