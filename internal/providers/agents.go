package providers

import (
	"context"
	"slices"
	"strings"
	"sync"

	"onboard/internal/signature"
)

// Agent is a registered point-of-presence agent who may assist subscribers.
type Agent struct {
	ID             string `json:"agent_id"`
	Name           string `json:"name"`
	Organization   string `json:"organization"`
	Branch         string `json:"branch"`
	PopID          string `json:"pop_id"`
	RegistrationNo string `json:"registration_no"`
	Role           string `json:"role"`
	Tier           string `json:"tier"`
}

// AgentRegistry answers who the registered agents are and checks their PINs.
type AgentRegistry interface {
	Lookup(ctx context.Context, agentID string) (*Agent, error)
	Authenticate(ctx context.Context, agentID, pin string) (*Agent, error)
}

// NormalizeAgentID upper-cases and trims an agent id as typed by a user.
func NormalizeAgentID(agentID string) string {
	return strings.ToUpper(strings.TrimSpace(agentID))
}

// AgentCredential seeds a simulated agent with a plain PIN. The PIN is
// hashed before first use and never kept.
type AgentCredential struct {
	Agent Agent
	PIN   string
}

// DefaultAgents is the roster used when none is configured.
func DefaultAgents() []AgentCredential {
	return []AgentCredential{
		{Agent: Agent{ID: "SBI-2024-001", Name: "Rajesh Kumar", Organization: "State Bank of India", Branch: "Connaught Place, New Delhi", PopID: "POP-SBI-00142", RegistrationNo: "PFRDA/POP/2024/SBI/001", Role: "Relationship Manager", Tier: "platinum"}, PIN: "1234"},
		{Agent: Agent{ID: "HDFC-2024-005", Name: "Priya Sharma", Organization: "HDFC Bank", Branch: "Bandra West, Mumbai", PopID: "POP-HDFC-00087", RegistrationNo: "PFRDA/POP/2024/HDFC/005", Role: "Branch Manager", Tier: "gold"}, PIN: "5678"},
		{Agent: Agent{ID: "CSC-2024-012", Name: "Amit Patel", Organization: "Common Service Centre", Branch: "Gram Panchayat, Varanasi", PopID: "POP-CSC-00321", RegistrationNo: "PFRDA/POP/2024/CSC/012", Role: "CSC Operator", Tier: "silver"}, PIN: "9012"},
		{Agent: Agent{ID: "POST-2024-008", Name: "Sunita Devi", Organization: "India Post", Branch: "Head Post Office, Jaipur", PopID: "POP-POST-00198", RegistrationNo: "PFRDA/POP/2024/POST/008", Role: "Postal Agent", Tier: "silver"}, PIN: "3456"},
	}
}

type agentEntry struct {
	agent   Agent
	pinHash string
}

// SimulatedAgentRegistry holds a fixed roster in memory. PINs are bcrypt
// hashed lazily on the first authentication.
type SimulatedAgentRegistry struct {
	seed []AgentCredential

	once    sync.Once
	hashErr error
	agents  map[string]agentEntry
}

// NewSimulatedAgentRegistry builds a registry over creds, or DefaultAgents
// when none are given.
func NewSimulatedAgentRegistry(creds ...AgentCredential) *SimulatedAgentRegistry {
	if len(creds) == 0 {
		creds = DefaultAgents()
	}
	return &SimulatedAgentRegistry{seed: slices.Clone(creds)}
}

func (r *SimulatedAgentRegistry) load() error {
	r.once.Do(func() {
		agents := make(map[string]agentEntry, len(r.seed))
		for _, c := range r.seed {
			hash, err := signature.HashProof(c.PIN)
			if err != nil {
				r.hashErr = err
				return
			}
			agent := c.Agent
			agent.ID = NormalizeAgentID(agent.ID)
			agents[agent.ID] = agentEntry{agent: agent, pinHash: hash}
		}
		r.agents = agents
		r.seed = nil
	})
	return r.hashErr
}

func (r *SimulatedAgentRegistry) Lookup(ctx context.Context, agentID string) (*Agent, error) {
	if err := ctx.Err(); err != nil {
		return nil, NewProviderError(ErrorTimeout, "pop-registry", "lookup cancelled", err)
	}
	if err := r.load(); err != nil {
		return nil, NewProviderError(ErrorInternal, "pop-registry", "registry unavailable", err)
	}
	entry, ok := r.agents[NormalizeAgentID(agentID)]
	if !ok {
		return nil, NewProviderError(ErrorNotFound, "pop-registry", "agent is not registered", nil)
	}
	agent := entry.agent
	return &agent, nil
}

// Authenticate reports an unknown id and a wrong PIN the same way.
func (r *SimulatedAgentRegistry) Authenticate(ctx context.Context, agentID, pin string) (*Agent, error) {
	if err := ctx.Err(); err != nil {
		return nil, NewProviderError(ErrorTimeout, "pop-registry", "login cancelled", err)
	}
	if err := r.load(); err != nil {
		return nil, NewProviderError(ErrorInternal, "pop-registry", "registry unavailable", err)
	}
	entry, ok := r.agents[NormalizeAgentID(agentID)]
	if !ok || !signature.MatchProof(entry.pinHash, pin) {
		return nil, NewProviderError(ErrorRejected, "pop-registry", "agent id or pin is invalid", nil)
	}
	agent := entry.agent
	return &agent, nil
}
