package model

import "time"

// Link represents a direct point-to-point connection between two ports
type Link struct {
	ID        string    `json:"id"`
	PortAID   string    `json:"port_a_id"`
	PortBID   string    `json:"port_b_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Provider represents a circuit provider
type Provider struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ProviderNetwork represents a provider-side network a circuit lands in
type ProviderNetwork struct {
	ID         string `json:"id"`
	ProviderID string `json:"provider_id"`
	Name       string `json:"name"`
}

// Termination sides
const (
	TermSideA = "A"
	TermSideZ = "Z"
)

// Circuit represents a provider circuit identified by its circuit id (CID)
type Circuit struct {
	ID         string    `json:"id"`
	CID        string    `json:"cid"`
	ProviderID string    `json:"provider_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// Termination represents one end of a circuit. The A side is scoped to
// a site, the Z side to a provider network.
type Termination struct {
	ID                string `json:"id"`
	CircuitID         string `json:"circuit_id"`
	Side              string `json:"side"`
	SiteID            string `json:"site_id,omitempty"`
	ProviderNetworkID string `json:"provider_network_id,omitempty"`
}

// Cable connects a port to a circuit termination
type Cable struct {
	ID            string `json:"id"`
	PortID        string `json:"port_id"`
	TerminationID string `json:"termination_id"`
}
