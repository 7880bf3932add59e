// Package provision implements the AddPNI operation: attaching a new
// point-to-point interface (optionally behind a VLAN sub-port, LACP
// bundle or provider circuit) and binding its addresses.
package provision

import (
	"errors"
	"fmt"
	"net/netip"

	"github.com/as36198/linkd/internal/ipam"
	"github.com/as36198/linkd/internal/labels"
	"github.com/as36198/linkd/internal/log"
	"github.com/as36198/linkd/internal/model"
	"github.com/as36198/linkd/internal/script"
	"github.com/as36198/linkd/internal/storage"
	"github.com/as36198/linkd/internal/topology"
)

// ErrAddressAssigned is returned when an address selected for
// allocation is already bound to a port
var ErrAddressAssigned = script.NewCancel("address is already assigned")

// Point-to-point prefix lengths
const (
	ptpBitsV4 = 31
	ptpBitsV6 = 127
)

// Params is the parameter set of the AddPNI operation
type Params struct {
	Port      script.PortRef `json:"port"`
	Members   []string       `json:"members,omitempty"`    // member port names; creates a bundle
	VLANID    int            `json:"vlan_id,omitempty"`    // 0 = no VLAN tagging
	Provider  string         `json:"provider,omitempty"`   // with CircuitID, builds a circuit
	CircuitID string         `json:"circuit_id,omitempty"` //
	Autogen   bool           `json:"autogen"`              // autogenerate addresses
	IPv4      string         `json:"ipv4,omitempty"`       // explicit local IPv4 with mask
	IPv6      string         `json:"ipv6,omitempty"`       // explicit local IPv6 with mask
}

// AddPNI provisions a point-to-point interface per the parameters.
// The whole operation runs inside the supplied transaction; any
// cancellation leaves no partial topology behind.
func AddPNI(tx *storage.Tx, p *Params) (script.Output, error) {
	target, err := resolveTarget(tx, p)
	if err != nil {
		return nil, err
	}

	device, err := tx.GetDevice(target.DeviceID)
	if err != nil {
		return nil, err
	}

	if p.Provider != "" || p.CircuitID != "" {
		if p.Provider == "" || p.CircuitID == "" {
			return nil, script.Cancelf("both provider and circuit id are required for a circuit")
		}
		if err := topology.EnsureAvailable(tx, target); err != nil {
			return nil, err
		}
		if _, err := topology.BuildCircuit(tx, target, device.SiteID, p.Provider, p.CircuitID); err != nil {
			return nil, err
		}
	}

	status := "found"
	if p.VLANID != 0 {
		if p.VLANID < 1 || p.VLANID > 4094 {
			return nil, script.Cancelf("VLAN id %d out of range (1-4094)", p.VLANID)
		}

		sub, created, err := topology.ResolveVLANSubPort(tx, target, p.VLANID)
		if err != nil {
			return nil, err
		}
		if created {
			status = "created"
		}
		target = sub
	}

	count, err := tx.CountPortAddresses(target.ID)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, fmt.Errorf("%w: port %s already has addresses assigned", topology.ErrAlreadyConfigured, target.Name)
	}

	v4, v6, err := selectAddresses(tx, p)
	if err != nil {
		return nil, err
	}
	log.Info("Selected addresses", "ipv4", v4.String(), "ipv6", v6.String(), "port", target.Name)

	var bound []string
	for _, prefix := range []netip.Prefix{v4, v6} {
		if err := bindAddress(tx, target, prefix); err != nil {
			return nil, err
		}
		bound = append(bound, prefix.String())
	}

	out := make(script.Output)
	out.Add(device.Name, target.Name, script.Entry{
		Status:      status,
		Tags:        target.Tags,
		Address:     bound,
		Description: target.Description,
	})
	return out, nil
}

// resolveTarget resolves the port the operation works on: the named
// port, or a fresh bundle built from the named member ports.
func resolveTarget(tx *storage.Tx, p *Params) (*model.Port, error) {
	if len(p.Members) == 0 {
		return p.Port.Resolve(tx)
	}

	// A bundle needs a device to live on; take it from the port
	// reference's device name or the first resolvable member.
	deviceName := p.Port.Device
	if deviceName == "" {
		return nil, fmt.Errorf("%w: device name required for bundle creation", script.ErrTargetNotFound)
	}

	device, err := tx.GetDeviceByName(deviceName)
	if errors.Is(err, storage.ErrDeviceNotFound) {
		return nil, fmt.Errorf("%w: device %s", script.ErrTargetNotFound, deviceName)
	}
	if err != nil {
		return nil, err
	}

	members := make([]*model.Port, 0, len(p.Members))
	for _, name := range p.Members {
		member, err := tx.GetPortByName(device.ID, name)
		if errors.Is(err, storage.ErrPortNotFound) {
			return nil, fmt.Errorf("%w: port %s:%s", script.ErrTargetNotFound, deviceName, name)
		}
		if err != nil {
			return nil, err
		}
		members = append(members, member)
	}

	return topology.CreateBundle(tx, device.ID, members)
}

// selectAddresses yields the local IPv4/IPv6 pair: autogenerated from
// the role-tagged blocks, or the explicitly supplied pair.
func selectAddresses(tx *storage.Tx, p *Params) (netip.Prefix, netip.Prefix, error) {
	var zero netip.Prefix

	if p.Autogen {
		v4, err := autogen(tx, 4, ptpBitsV4)
		if err != nil {
			return zero, zero, err
		}
		v6, err := autogen(tx, 6, ptpBitsV6)
		if err != nil {
			return zero, zero, err
		}
		return v4, v6, nil
	}

	if p.IPv4 == "" || p.IPv6 == "" {
		return zero, zero, script.Cancelf("either autogen must be selected or both address fields completed")
	}

	v4, err := netip.ParsePrefix(p.IPv4)
	if err != nil {
		return zero, zero, script.Cancelf("invalid IPv4 assignment %q: %v", p.IPv4, err)
	}
	v6, err := netip.ParsePrefix(p.IPv6)
	if err != nil {
		return zero, zero, script.Cancelf("invalid IPv6 assignment %q: %v", p.IPv6, err)
	}
	if !v4.Addr().Is4() || !v6.Addr().Is6() || v6.Addr().Is4In6() {
		return zero, zero, fmt.Errorf("%w: invalid family for one or both assignments", ipam.ErrFamilyMismatch)
	}

	return v4, v6, nil
}

// autogen carves the local half of a point-to-point pair from the
// first role-tagged block of the family
func autogen(tx *storage.Tx, family, bits int) (netip.Prefix, error) {
	var zero netip.Prefix

	blocks, err := tx.ListBlocks(labels.AutogenRole, family)
	if err != nil {
		return zero, err
	}
	if len(blocks) == 0 {
		return zero, fmt.Errorf("%w: no autogeneration block for family %d", ipam.ErrBlockNotFound, family)
	}

	pool, err := BlockPool(tx, &blocks[0])
	if err != nil {
		return zero, err
	}

	primary, _, err := ipam.AllocatePair(pool, family, bits)
	if err != nil {
		return zero, err
	}

	return netip.PrefixFrom(primary, bits), nil
}

// BlockPool builds the consumable available set of a block from the
// addresses currently recorded in the store
func BlockPool(tx *storage.Tx, block *model.AddressBlock) (*ipam.Pool, error) {
	records, err := tx.ListAddresses(&storage.AddressFilter{Family: block.Family})
	if err != nil {
		return nil, err
	}

	used := make([]netip.Addr, 0, len(records))
	for _, r := range records {
		prefix, err := netip.ParsePrefix(r.Address)
		if err != nil {
			return nil, fmt.Errorf("parsing stored address %q: %w", r.Address, err)
		}
		used = append(used, prefix.Addr())
	}

	return ipam.PoolFromBlock(block.CIDR, used)
}

// bindAddress records a new active address on the port, rejecting
// addresses already bound elsewhere
func bindAddress(tx *storage.Tx, port *model.Port, prefix netip.Prefix) error {
	existing, err := tx.GetAddressByValue(prefix.String())
	if err == nil && existing.PortID != "" {
		return fmt.Errorf("%w: %s", ErrAddressAssigned, prefix)
	}
	if err != nil && !errors.Is(err, storage.ErrAddressNotFound) {
		return err
	}

	family := 6
	if prefix.Addr().Is4() {
		family = 4
	}

	addr := &model.AddressRecord{
		Address: prefix.String(),
		Family:  family,
		PortID:  port.ID,
		Status:  model.AddressStatusActive,
	}
	if err := tx.CreateAddress(addr); err != nil {
		return err
	}
	log.Info("Address created and assigned", "address", prefix.String(), "port", port.Name)

	return nil
}
