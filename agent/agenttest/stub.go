// Package agenttest provides a scripted agent.Invoker for tests.
package agenttest

import (
	"context"
	"fmt"
	"sync"

	"github.com/c360studio/semmodel/agent"
)

// Reply is one scripted answer.
type Reply struct {
	Text string
	Err  error
}

// Scripted answers each role from its own reply queue. When a role's queue
// is exhausted the last reply repeats. A role with no replies returns an
// error.
//
//	stub := agenttest.NewScripted(map[agent.Role][]agenttest.Reply{
//	    agent.RoleValidator: {{Text: `{"status": "needs_improvement"}`}, {Text: `{"status": "pass"}`}},
//	})
type Scripted struct {
	mu      sync.Mutex
	replies map[agent.Role][]Reply
	next    map[agent.Role]int
	calls   []agent.Call
}

// NewScripted creates a stub from per-role reply queues.
func NewScripted(replies map[agent.Role][]Reply) *Scripted {
	return &Scripted{
		replies: replies,
		next:    make(map[agent.Role]int),
	}
}

// Text is shorthand for a successful reply.
func Text(s string) Reply {
	return Reply{Text: s}
}

// Invoke implements agent.Invoker.
func (s *Scripted) Invoke(_ context.Context, call agent.Call) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, call)
	queue := s.replies[call.Role]
	if len(queue) == 0 {
		return "", fmt.Errorf("no scripted reply for role %s", call.Role)
	}

	i := s.next[call.Role]
	if i >= len(queue) {
		i = len(queue) - 1
	}
	s.next[call.Role] = i + 1

	r := queue[i]
	return r.Text, r.Err
}

// Count returns how many times role was invoked.
func (s *Scripted) Count(role agent.Role) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, c := range s.calls {
		if c.Role == role {
			n++
		}
	}
	return n
}

// Calls returns a copy of every call in order.
func (s *Scripted) Calls() []agent.Call {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]agent.Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// Reset clears recorded calls and rewinds every queue.
func (s *Scripted) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = nil
	s.next = make(map[agent.Role]int)
}
