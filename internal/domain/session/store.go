package session

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrSessionNotFound is returned by Get for an unknown session id.
var ErrSessionNotFound = errors.New("session not found")

const (
	// DefaultError is the session error once any of its tests failed.
	DefaultError = "tests failed"
	// NoTestsError is the session error when a test file registers no tests.
	NoTestsError = "no tests found in test file - your tests must `import {test} from 'ottr'`"
	// UnknownError is used when a failure is reported without a reason.
	UnknownError = "unknown error"
)

const notOK = "not ok"

// Test is the state of one test within a session.
type Test struct {
	Session   string `json:"session"`
	Name      string `json:"name"`
	Path      string `json:"path"`
	Iteration int    `json:"iteration"`
	Running   bool   `json:"running,omitempty"`
	Done      bool   `json:"done"`
	Skipped   bool   `json:"skipped,omitempty"`
	Error     string `json:"error,omitempty"`
	Output    string `json:"output,omitempty"`
}

// Session is a snapshot of a test session with its status computed.
type Session struct {
	ID      string          `json:"id"`
	Names   []string        `json:"names"`
	Tests   map[string]Test `json:"tests"`
	Done    bool            `json:"done"`
	Error   string          `json:"error,omitempty"`
	Created time.Time       `json:"created"`
}

type entry struct {
	id      string
	tests   map[string]*Test
	err     string
	done    bool
	created time.Time
}

// update folds test state into the session status. A session fails as soon
// as any test has an error and is done once every registered test is done.
func (e *entry) update() {
	if e.err != "" && e.done {
		return
	}
	if e.err == "" {
		for _, t := range e.tests {
			if t.Error != "" {
				e.err = DefaultError
				break
			}
		}
	}
	if !e.done && len(e.tests) > 0 {
		done := true
		for _, t := range e.tests {
			done = done && t.Done
		}
		e.done = done
	}
}

func (e *entry) snapshot() Session {
	s := Session{
		ID:      e.id,
		Names:   make([]string, 0, len(e.tests)),
		Tests:   make(map[string]Test, len(e.tests)),
		Done:    e.done,
		Error:   e.err,
		Created: e.created,
	}
	for name, t := range e.tests {
		s.Names = append(s.Names, name)
		s.Tests[name] = *t
	}
	sort.Strings(s.Names)
	return s
}

// Option configures a Store.
type Option func(*Store)

// WithOnCreate calls fn with the id of every session the store creates.
func WithOnCreate(fn func(id string)) Option {
	return func(s *Store) { s.onCreate = fn }
}

// Store holds every test session of the process. It is safe for concurrent
// use. Reads fold test state into the stored status, so every path locks
// exclusively.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*entry
	order    []string
	now      func() time.Time
	onCreate func(id string)
}

// NewStore returns an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		sessions: make(map[string]*entry),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create starts a new session and returns its id.
func (s *Store) Create() string {
	s.mu.Lock()
	id := uuid.NewString()
	for s.sessions[id] != nil {
		id = uuid.NewString()
	}
	s.insert(id)
	s.mu.Unlock()

	s.created(id)
	return id
}

// GetOrCreate returns the session with id, creating it when unknown.
func (s *Store) GetOrCreate(id string) Session {
	s.mu.Lock()
	e, created := s.getOrCreate(id)
	e.update()
	snap := e.snapshot()
	s.mu.Unlock()

	if created {
		s.created(id)
	}
	return snap
}

// GetOrCreateTest returns the named test of a session, creating both when
// unknown.
func (s *Store) GetOrCreateTest(id, name string) Test {
	var t Test
	s.withTest(id, name, func(_ *entry, test *Test) { t = *test })
	return t
}

// AppendOutput adds a line of console output to a test. A line starting with
// "not ok" marks the test as failed.
func (s *Store) AppendOutput(id, name, line string) {
	s.withTest(id, name, func(_ *entry, t *Test) {
		if strings.HasPrefix(line, notOK) {
			t.Error = line
		}
		if t.Output == "" {
			t.Output = line
		} else {
			t.Output += "\n" + line
		}
	})
}

// Done marks a test as finished.
func (s *Store) Done(id, name string) {
	s.withTest(id, name, func(_ *entry, t *Test) { t.Done = true })
}

// Fail records a failure. With a test name the test fails, otherwise the
// whole session does; either way it is done.
func (s *Store) Fail(id, name, reason string) {
	if reason == "" {
		reason = UnknownError
	}
	if name != "" {
		s.withTest(id, name, func(_ *entry, t *Test) {
			t.Error = reason
			t.Done = true
		})
		return
	}

	s.mu.Lock()
	e, created := s.getOrCreate(id)
	e.err = reason
	e.done = true
	s.mu.Unlock()

	if created {
		s.created(id)
	}
}

// SetTests registers the tests a page declared. Known tests are updated in
// place; a session that ends up with no tests fails with NoTestsError.
func (s *Store) SetTests(id string, tests map[string]Test) {
	s.mu.Lock()
	e, created := s.getOrCreate(id)
	for name, in := range tests {
		t := e.test(name)
		if in.Path != "" {
			t.Path = in.Path
		}
		t.Iteration = in.Iteration
		t.Running = in.Running
		t.Skipped = in.Skipped
		t.Done = t.Done || in.Done
		if in.Error != "" {
			t.Error = in.Error
		}
		if in.Output != "" {
			t.Output = in.Output
		}
	}
	if len(e.tests) == 0 {
		e.err = NoTestsError
	}
	e.update()
	s.mu.Unlock()

	if created {
		s.created(id)
	}
}

// Get returns a session snapshot, or ErrSessionNotFound.
func (s *Store) Get(id string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[id]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	e.update()
	return e.snapshot(), nil
}

// List returns every session in creation order.
func (s *Store) List() []Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Session, 0, len(s.order))
	for _, id := range s.order {
		e := s.sessions[id]
		e.update()
		out = append(out, e.snapshot())
	}
	return out
}

// Active returns the number of sessions that are not done.
func (s *Store) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, e := range s.sessions {
		e.update()
		if !e.done {
			n++
		}
	}
	return n
}

func (s *Store) withTest(id, name string, fn func(*entry, *Test)) {
	s.mu.Lock()
	e, created := s.getOrCreate(id)
	fn(e, e.test(name))
	s.mu.Unlock()

	if created {
		s.created(id)
	}
}

func (s *Store) getOrCreate(id string) (*entry, bool) {
	if e, ok := s.sessions[id]; ok {
		return e, false
	}
	return s.insert(id), true
}

func (s *Store) insert(id string) *entry {
	e := &entry{id: id, tests: make(map[string]*Test), created: s.now()}
	s.sessions[id] = e
	s.order = append(s.order, id)
	return e
}

func (e *entry) test(name string) *Test {
	if t, ok := e.tests[name]; ok {
		return t
	}
	t := &Test{Session: e.id, Name: name, Path: "?"}
	e.tests[name] = t
	return t
}

func (s *Store) created(id string) {
	if s.onCreate != nil {
		s.onCreate(id)
	}
}
