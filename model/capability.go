// Package model resolves agent roles to LLM endpoints. Roles map to
// capabilities, and the registry resolves a capability to an ordered chain of
// endpoints so a failing model can fall back to the next one.
package model

import "github.com/c360studio/semmodel/agent"

// Capability is a semantic class of work used for model selection.
type Capability string

const (
	// CapabilityReasoning is for requirements analysis and model revision.
	CapabilityReasoning Capability = "reasoning"

	// CapabilityModeling is for structured diagram generation.
	CapabilityModeling Capability = "modeling"

	// CapabilityFormal is for OCL constraint writing.
	CapabilityFormal Capability = "formal"

	// CapabilityReviewing is for model validation.
	CapabilityReviewing Capability = "reviewing"

	// CapabilityFast is for quick, cheap calls.
	CapabilityFast Capability = "fast"
)

// RoleCapabilities maps agent roles to their default capability.
var RoleCapabilities = map[agent.Role]Capability{
	agent.RoleAnalyst:          CapabilityReasoning,
	agent.RoleUseCaseModeler:   CapabilityModeling,
	agent.RoleClassDesigner:    CapabilityModeling,
	agent.RoleSequenceDesigner: CapabilityModeling,
	agent.RoleConstraintExpert: CapabilityFormal,
	agent.RoleValidator:        CapabilityReviewing,
	agent.RoleCoordinator:      CapabilityReasoning,
}

// CapabilityForRole returns the default capability for a role.
// Unknown roles get CapabilityModeling.
func CapabilityForRole(role agent.Role) Capability {
	if c, ok := RoleCapabilities[role]; ok {
		return c
	}
	return CapabilityModeling
}

// IsValid checks if a capability string is a known capability.
func (c Capability) IsValid() bool {
	switch c {
	case CapabilityReasoning, CapabilityModeling, CapabilityFormal, CapabilityReviewing, CapabilityFast:
		return true
	}
	return false
}

func (c Capability) String() string {
	return string(c)
}

// ParseCapability converts a string to a Capability, returning empty for invalid values.
func ParseCapability(s string) Capability {
	c := Capability(s)
	if c.IsValid() {
		return c
	}
	return ""
}

// ForRole returns the preferred endpoint for a role's default capability.
func (r *Registry) ForRole(role agent.Role) string {
	return r.Resolve(CapabilityForRole(role))
}

// ChainForRole returns the available fallback chain for a role.
func (r *Registry) ChainForRole(role agent.Role) []string {
	return r.GetAvailableFallbackChain(CapabilityForRole(role))
}
