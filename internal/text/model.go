package text

import (
	"math/rand/v2"
	"strings"
	"sync/atomic"
)

const (
	// DefaultOrder is the number of tokens of state the chain keeps.
	DefaultOrder = 2

	// DefaultMaxAttempts bounds how often generation is retried before giving up.
	DefaultMaxAttempts = 20

	// maxSentenceTokens bounds the length of a generated sentence. A walk that
	// has not reached the end marker by then is discarded and retried.
	maxSentenceTokens = 30
)

// Chain markers. The begin marker pads the initial state; the end marker
// terminates a valid sentence. Both use a separator byte that cannot appear
// in whitespace-split tokens.
const (
	beginToken = "\x02begin"
	endToken   = "\x03end"
	stateSep   = "\x1f"
)

// chain is one immutable build of the transition structure. Generation walks
// a chain; rebuilds produce a fresh chain and swap it in atomically so
// in-flight walks always see a consistent structure.
type chain struct {
	order       int
	transitions map[string][]string
}

// Model is a generative n-gram text model over a corpus of accepted
// sentences. Rebuild replaces the underlying chain atomically; Generate and
// GenerateWithStart are safe to call concurrently with Rebuild.
type Model struct {
	order int
	rng   func(n int) int
	chain atomic.Pointer[chain]
}

// ModelOption customises a [Model].
type ModelOption func(*Model)

// WithOrder sets the number of tokens of chain state. Values below 1 are ignored.
func WithOrder(order int) ModelOption {
	return func(m *Model) {
		if order >= 1 {
			m.order = order
		}
	}
}

// WithRand injects a deterministic random source. Used by tests; production
// models use the process-wide [math/rand/v2] source.
func WithRand(rng func(n int) int) ModelOption {
	return func(m *Model) { m.rng = rng }
}

// NewModel creates an empty model of [DefaultOrder]. Generation on an empty
// model always fails until the first [Model.Rebuild].
func NewModel(opts ...ModelOption) *Model {
	m := &Model{
		order: DefaultOrder,
		rng:   rand.IntN,
	}
	for _, o := range opts {
		o(m)
	}
	m.chain.Store(&chain{order: m.order, transitions: map[string][]string{}})
	return m
}

// Rebuild replaces the transition chain with one derived from corpus. The
// swap is atomic: generation calls already running keep walking the previous
// chain; calls starting after Rebuild returns see the new one.
func (m *Model) Rebuild(corpus []string) {
	c := &chain{
		order:       m.order,
		transitions: make(map[string][]string),
	}
	for _, sentence := range corpus {
		tokens := strings.Fields(sentence)
		if len(tokens) == 0 {
			continue
		}
		state := beginState(m.order)
		for _, tok := range tokens {
			key := stateKey(state)
			c.transitions[key] = append(c.transitions[key], tok)
			state = advance(state, tok)
		}
		key := stateKey(state)
		c.transitions[key] = append(c.transitions[key], endToken)
	}
	m.chain.Store(c)
}

// Generate produces a bounded-length sentence from the model, retrying up to
// maxAttempts times when a walk fails to terminate. It returns "" and false
// when every attempt fails. maxAttempts values below 1 use [DefaultMaxAttempts].
func (m *Model) Generate(maxAttempts int) (string, bool) {
	return m.generate(nil, maxAttempts)
}

// GenerateWithStart produces a sentence whose first tokens equal seed.
// It returns "" and false when the corpus contains no continuation for the
// seed or every attempt fails to terminate.
func (m *Model) GenerateWithStart(seed string, maxAttempts int) (string, bool) {
	return m.generate(strings.Fields(seed), maxAttempts)
}

func (m *Model) generate(seed []string, maxAttempts int) (string, bool) {
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}
	c := m.chain.Load()
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if tokens, ok := m.walk(c, seed); ok {
			return strings.Join(tokens, " "), true
		}
	}
	return "", false
}

// walk performs a single random walk. A walk succeeds when it reaches the end
// marker within the token budget; anything else is a failed attempt.
func (m *Model) walk(c *chain, seed []string) ([]string, bool) {
	state := beginState(c.order)
	var out []string

	// A seeded walk must follow the seed path exactly before the random
	// portion begins. Missing transitions mean no corpus sentence starts
	// with this seed.
	for _, tok := range seed {
		if !contains(c.transitions[stateKey(state)], tok) {
			return nil, false
		}
		out = append(out, tok)
		state = advance(state, tok)
	}

	for len(out) < maxSentenceTokens {
		candidates := c.transitions[stateKey(state)]
		if len(candidates) == 0 {
			return nil, false
		}
		next := candidates[m.rng(len(candidates))]
		if next == endToken {
			if len(out) == 0 {
				return nil, false
			}
			return out, true
		}
		out = append(out, next)
		state = advance(state, next)
	}
	return nil, false
}

// beginState returns the initial all-begin-marker state of the given order.
func beginState(order int) []string {
	state := make([]string, order)
	for i := range state {
		state[i] = beginToken
	}
	return state
}

// advance shifts tok into the state window.
func advance(state []string, tok string) []string {
	next := make([]string, len(state))
	copy(next, state[1:])
	next[len(next)-1] = tok
	return next
}

func stateKey(state []string) string {
	return strings.Join(state, stateSep)
}

func contains(candidates []string, tok string) bool {
	for _, c := range candidates {
		if c == tok {
			return true
		}
	}
	return false
}
