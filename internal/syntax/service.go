package syntax

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("morpheus.syntax")

// InitHook runs once during Service initialisation, after the grammar is
// ready. The query layer uses it to compile its embedded patterns.
type InitHook func(ctx context.Context, lang *Language) error

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithInitHook registers a hook to run during initialisation.
func WithInitHook(h InitHook) ServiceOption {
	return func(s *Service) { s.hooks = append(s.hooks, h) }
}

// Service owns the grammar and hands out trees. It is safe for concurrent use.
type Service struct {
	lang  *Language
	hooks []InitHook

	mu       sync.Mutex
	inflight *initCall
	ready    atomic.Bool
	loads    atomic.Int32
}

type initCall struct {
	done chan struct{}
	err  error
}

// NewService creates a Service. Init must complete before Parse succeeds.
func NewService(opts ...ServiceOption) *Service {
	s := &Service{lang: Morpheus()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Init loads the grammar and runs the init hooks. Concurrent callers share a
// single in-flight load. A failed load is retried by the next caller. ctx only
// bounds how long this caller waits.
func (s *Service) Init(ctx context.Context) error {
	if s.ready.Load() {
		return nil
	}
	s.mu.Lock()
	call := s.inflight
	if call == nil {
		call = &initCall{done: make(chan struct{})}
		s.inflight = call
		go s.load(call)
	}
	s.mu.Unlock()

	select {
	case <-call.done:
		return call.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) load(call *initCall) {
	s.loads.Add(1)
	err := s.runHooks()

	s.mu.Lock()
	if err != nil {
		s.inflight = nil
		log.Errorf("grammar initialisation failed: %s", err)
	} else {
		s.ready.Store(true)
		log.Debugf("grammar %s ready", s.lang.Name)
	}
	call.err = err
	s.mu.Unlock()
	close(call.done)
}

func (s *Service) runHooks() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("syntax: init: panic: %v", r)
		}
	}()
	for _, h := range s.hooks {
		if err := h(context.Background(), s.lang); err != nil {
			return fmt.Errorf("syntax: init: %w", err)
		}
	}
	return nil
}

// Ready reports whether Init has completed successfully.
func (s *Service) Ready() bool { return s.ready.Load() }

// Loads reports how many initialisation attempts have run.
func (s *Service) Loads() int { return int(s.loads.Load()) }

func (s *Service) Language() *Language { return s.lang }

// Parse builds a tree for text. It only fails before Init or on an internal
// parser fault; malformed input yields ERROR and MISSING nodes instead.
func (s *Service) Parse(text []byte) (*Tree, error) {
	if !s.Ready() {
		return nil, ErrNotInitialized
	}
	root, err := safeParse(text, nil)
	if err != nil {
		return nil, err
	}
	return newTree(root, text, s.lang), nil
}

// Reparse parses text after old has been brought in line with it through
// Edit calls. Unchanged top-level subtrees are copied from old instead of
// being parsed again. On success old is consumed; on failure it is left as
// it was.
func (s *Service) Reparse(text []byte, old *Tree) (*Tree, error) {
	if !s.Ready() {
		return nil, ErrNotInitialized
	}
	if old == nil || old.released {
		return nil, ErrTreeReleased
	}
	if old.consumed {
		return nil, ErrTreeConsumed
	}
	rs := newReuseSet(old, text)
	root, err := safeParse(text, rs.take)
	if err != nil {
		return nil, err
	}
	old.consumed = true
	log.Debugf("reparse reused %d of %d top-level nodes", rs.reused, len(root.children))
	t := newTree(root, text, s.lang)
	t.reused = rs.reused
	return t, nil
}

func safeParse(text []byte, reuse func(token) *Node) (root *Node, err error) {
	defer func() {
		if r := recover(); r != nil {
			root, err = nil, fmt.Errorf("syntax: parse: panic: %v", r)
		}
	}()
	return parseSource(text, reuse), nil
}
