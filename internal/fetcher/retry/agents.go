package retry

import (
	"errors"
	"math/rand/v2"
	"strings"
)

// AgentPool hands out client identity strings chosen uniformly at random.
type AgentPool struct {
	agents []string
}

// NewAgentPool builds a pool from non-blank identity strings.
func NewAgentPool(agents []string) (*AgentPool, error) {
	pool := make([]string, 0, len(agents))
	for _, a := range agents {
		if a = strings.TrimSpace(a); a != "" {
			pool = append(pool, a)
		}
	}
	if len(pool) == 0 {
		return nil, errors.New("agent pool requires at least one user agent")
	}
	return &AgentPool{agents: pool}, nil
}

// Pick returns a random identity. Safe for concurrent use.
func (p *AgentPool) Pick() string {
	return p.agents[rand.IntN(len(p.agents))]
}

// Len reports the pool size.
func (p *AgentPool) Len() int {
	return len(p.agents)
}
