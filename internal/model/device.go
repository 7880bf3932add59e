package model

import "time"

// Site represents a physical location that scopes devices and VLANs
type Site struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Device represents a network device in the inventory
type Device struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	SiteID    string    `json:"site_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Port kinds
const (
	PortKindPhysical = "physical"
	PortKindVLAN     = "vlan"
	PortKindBundle   = "bundle"
)

// Port modes
const (
	PortModeAccess = "access"
	PortModeTrunk  = "trunk"
)

// Port represents an interface on a device: a physical port, a VLAN
// sub-port or an LACP bundle
type Port struct {
	ID          string    `json:"id"`
	DeviceID    string    `json:"device_id"`
	Name        string    `json:"name"`
	Kind        string    `json:"kind"`
	Mode        string    `json:"mode,omitempty"`
	ParentID    string    `json:"parent_id,omitempty"` // VLAN sub-port -> physical parent
	BundleID    string    `json:"bundle_id,omitempty"` // LAG membership
	VLANID      string    `json:"vlan_id,omitempty"`   // untagged VLAN
	Description string    `json:"description,omitempty"`
	Tags        []string  `json:"tags"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// VLAN represents a site-scoped VLAN
type VLAN struct {
	ID     string `json:"id"`
	SiteID string `json:"site_id"`
	VID    int    `json:"vid"`
	Name   string `json:"name,omitempty"`
	Role   string `json:"role,omitempty"`
}

// PortFilter holds filter criteria for listing ports
type PortFilter struct {
	DeviceID string // limit to one device
	Tag      string // limit to ports carrying a label
}
