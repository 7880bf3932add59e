package model

import "time"

// Address statuses
const (
	AddressStatusActive = "active"
)

// Address roles
const (
	AddressRoleLoopback = "loopback"
)

// AddressBlock represents a CIDR range addresses are allocated from.
// The set of available addresses is derived: the block's CIDR minus
// every address already recorded inside it.
type AddressBlock struct {
	ID        string    `json:"id"`
	CIDR      string    `json:"cidr"`
	Family    int       `json:"family"` // 4 or 6
	Role      string    `json:"role,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// AddressRecord represents an address with mask, optionally bound to a port
type AddressRecord struct {
	ID        string    `json:"id"`
	Address   string    `json:"address"` // address/prefixlen, e.g. "10.0.0.0/31"
	Family    int       `json:"family"`
	PortID    string    `json:"port_id,omitempty"`
	Status    string    `json:"status"`
	Role      string    `json:"role,omitempty"`
	DNSName   string    `json:"dns_name,omitempty"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"created_at"`
}

// Label is a named marker attached to ports and addresses. Semantic
// labels encode a key/value pair in the name; see the labels package.
type Label struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}
