package run

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Script is a Runner scripted with canned responses keyed by the exact
// argument vector. It records every invocation so tests can assert which
// commands ran and which never did.
//
// Responses for the same argument vector form a queue: each call consumes the
// next response, except the last one which keeps answering. That lets a test
// script "rev-parse HEAD" returning one commit before checkout and another
// after.
type Script struct {
	mu        sync.Mutex
	responses map[string][]scriptResponse
	calls     []Invocation
}

type scriptResponse struct {
	outcome Outcome
	err     error
}

// NewScript creates an empty scripted runner.
func NewScript() *Script {
	return &Script{responses: make(map[string][]scriptResponse)}
}

// Stub registers an outcome for the given argument vector.
func (s *Script) Stub(outcome Outcome, args ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.Join(args, " ")
	s.responses[key] = append(s.responses[key], scriptResponse{outcome: outcome})
}

// StubOK registers a zero-exit outcome with the given stdout.
func (s *Script) StubOK(stdout string, args ...string) {
	s.Stub(Outcome{Stdout: stdout}, args...)
}

// StubFail registers a nonzero-exit outcome with the given stderr.
func (s *Script) StubFail(code int, stderr string, args ...string) {
	s.Stub(Outcome{ExitCode: code, Stderr: stderr}, args...)
}

// Restub drops any queued responses for the argument vector and registers
// outcome as the sole response. Fixtures stub the happy path; individual
// tests restub the one command whose behavior they change.
func (s *Script) Restub(outcome Outcome, args ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.Join(args, " ")
	s.responses[key] = []scriptResponse{{outcome: outcome}}
}

// RestubOK replaces the responses for the argument vector with a zero-exit
// outcome carrying the given stdout.
func (s *Script) RestubOK(stdout string, args ...string) {
	s.Restub(Outcome{Stdout: stdout}, args...)
}

// RestubFail replaces the responses for the argument vector with a
// nonzero-exit outcome carrying the given stderr.
func (s *Script) RestubFail(code int, stderr string, args ...string) {
	s.Restub(Outcome{ExitCode: code, Stderr: stderr}, args...)
}

// StubError registers an infrastructure error for the given argument vector.
func (s *Script) StubError(err error, args ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.Join(args, " ")
	s.responses[key] = append(s.responses[key], scriptResponse{err: err})
}

// Run returns the scripted response for inv.Args, or an error for commands
// the test did not script.
func (s *Script) Run(_ context.Context, inv Invocation) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, inv)

	key := strings.Join(inv.Args, " ")
	queue, ok := s.responses[key]
	if !ok || len(queue) == 0 {
		return Outcome{}, fmt.Errorf("command not scripted: %q", key)
	}
	resp := queue[0]
	if len(queue) > 1 {
		s.responses[key] = queue[1:]
	}
	return resp.outcome, resp.err
}

// Calls returns a copy of every invocation in order.
func (s *Script) Calls() []Invocation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Invocation, len(s.calls))
	copy(out, s.calls)
	return out
}

// CallCount returns how many times the exact argument vector ran.
func (s *Script) CallCount(args ...string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.Join(args, " ")
	n := 0
	for _, c := range s.calls {
		if strings.Join(c.Args, " ") == key {
			n++
		}
	}
	return n
}

// CalledMatching reports whether any recorded invocation contains every one
// of the given tokens.
func (s *Script) CalledMatching(tokens ...string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.calls {
		joined := strings.Join(c.Args, " ")
		all := true
		for _, tok := range tokens {
			if !strings.Contains(joined, tok) {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	return false
}
