// Package renumber implements the two-phase renumbering protocol for
// point-to-point port pairs: Generate allocates and binds replacement
// address pairs while marking the old ones for removal, Prune deletes
// the marked addresses once an operator has verified the new ones.
package renumber

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"

	"github.com/as36198/linkd/internal/ipam"
	"github.com/as36198/linkd/internal/labels"
	"github.com/as36198/linkd/internal/log"
	"github.com/as36198/linkd/internal/model"
	"github.com/as36198/linkd/internal/provision"
	"github.com/as36198/linkd/internal/script"
	"github.com/as36198/linkd/internal/storage"
	"github.com/as36198/linkd/internal/topology"
)

// ErrNoEligiblePairs is returned when Generate finds no port pair to
// renumber
var ErrNoEligiblePairs = script.NewCancel("no eligible interfaces")

// BlockRef identifies an address block by resolved reference, by id or
// by CIDR string. All shapes converge on one stored block of the
// required family before allocation starts.
type BlockRef struct {
	Block *model.AddressBlock `json:"-"`
	ID    string              `json:"id,omitempty"`
	CIDR  string              `json:"cidr,omitempty"`
}

// Resolve returns the single block the reference names, requiring the
// given address family
func (r BlockRef) Resolve(tx *storage.Tx, family int) (*model.AddressBlock, error) {
	var (
		block *model.AddressBlock
		err   error
	)
	switch {
	case r.Block != nil:
		block = r.Block
	case r.ID != "":
		block, err = tx.GetBlock(r.ID)
	case r.CIDR != "":
		block, err = tx.GetBlockByCIDR(r.CIDR)
	default:
		return nil, fmt.Errorf("%w: block reference required", ipam.ErrBlockNotFound)
	}
	if errors.Is(err, storage.ErrBlockNotFound) {
		return nil, fmt.Errorf("%w: %s%s", ipam.ErrBlockNotFound, r.ID, r.CIDR)
	}
	if err != nil {
		return nil, err
	}

	if block.Family != family {
		return nil, fmt.Errorf("%w: block %s is family %d, family %d required",
			ipam.ErrFamilyMismatch, block.CIDR, block.Family, family)
	}

	return block, nil
}

// Params selects the address blocks Generate draws the replacement
// pairs from
type Params struct {
	BlockV4 BlockRef `json:"block_v4"`
	BlockV6 BlockRef `json:"block_v6"`
}

// Generate renumbers every eligible point-to-point port pair: ports
// labeled for renumbering that carry a point-to-point role and resolve
// to a direct peer. Each pair is processed exactly once regardless of
// which side is encountered first. Old addresses are labeled for
// removal, not deleted; Prune finishes the job after verification.
func Generate(tx *storage.Tx, p *Params) (script.Output, error) {
	blockV4, err := p.BlockV4.Resolve(tx, 4)
	if err != nil {
		return nil, err
	}
	blockV6, err := p.BlockV6.Resolve(tx, 6)
	if err != nil {
		return nil, err
	}

	// Pools are built once so consumption carries across pairs
	poolV4, err := provision.BlockPool(tx, blockV4)
	if err != nil {
		return nil, err
	}
	poolV6, err := provision.BlockPool(tx, blockV6)
	if err != nil {
		return nil, err
	}

	marked, err := tx.ListPorts(&model.PortFilter{Tag: labels.Renumber})
	if err != nil {
		return nil, err
	}

	out := make(script.Output)
	visited := make(map[string]bool)
	pairs := 0

	for i := range marked {
		port := &marked[i]
		if visited[port.ID] {
			continue
		}

		role := ptpRole(port.Tags)
		if role == "" {
			log.Debug("Skipping port without point-to-point role", "port", port.Name)
			continue
		}

		peer, err := topology.ResolvePeer(tx, port)
		if errors.Is(err, storage.ErrLinkNotFound) {
			log.Debug("Skipping port without a link", "port", port.Name)
			continue
		}
		if err != nil {
			return nil, err
		}
		if peer.Port == nil {
			// Circuit-terminated ports have no far-side port to pair with
			log.Debug("Skipping circuit-terminated port", "port", port.Name)
			continue
		}

		v4a, v4b, err := ipam.AllocatePair(poolV4, 4, 31)
		if err != nil {
			return nil, err
		}
		v6a, v6b, err := ipam.AllocatePair(poolV6, 6, 127)
		if err != nil {
			return nil, err
		}

		if err := renumberPort(tx, out, port, role, v4a, v6a); err != nil {
			return nil, err
		}
		if err := renumberPort(tx, out, peer.Port, role, v4b, v6b); err != nil {
			return nil, err
		}

		visited[port.ID] = true
		visited[peer.Port.ID] = true
		pairs++
		log.Info("Pair renumbered", "port", port.Name, "peer", peer.Port.Name,
			"ipv4", v4a.String(), "ipv6", v6a.String())
	}

	if pairs == 0 {
		return nil, ErrNoEligiblePairs
	}

	return out, nil
}

// renumberPort moves one side of a pair to its new addresses: existing
// addresses are marked for removal, the new pair is bound with the
// role and freshly-generated labels, and the renumber mark is cleared.
func renumberPort(tx *storage.Tx, out script.Output, port *model.Port, role string, v4, v6 netip.Addr) error {
	pending, err := markForRemoval(tx, port)
	if err != nil {
		return err
	}

	var bound []string
	for _, prefix := range []netip.Prefix{netip.PrefixFrom(v4, 31), netip.PrefixFrom(v6, 127)} {
		if err := bindNew(tx, port, prefix, role); err != nil {
			return err
		}
		bound = append(bound, prefix.String())
	}

	renumber, err := tx.GetLabelByName(labels.Renumber)
	if err != nil {
		return err
	}
	if err := tx.RemovePortLabel(port.ID, renumber.ID); err != nil {
		return err
	}

	device, err := tx.GetDevice(port.DeviceID)
	if err != nil {
		return err
	}

	description := port.Description
	if len(pending) > 0 {
		description = "pending removal: " + strings.Join(pending, ", ")
	}
	out.Add(device.Name, port.Name, script.Entry{
		Status:      "renumbered",
		Tags:        []string{role, labels.NewIP},
		Address:     bound,
		Description: description,
	})

	return nil
}

// markForRemoval labels every address currently on the port as pending
// removal and returns the marked addresses
func markForRemoval(tx *storage.Tx, port *model.Port) ([]string, error) {
	prune, err := labels.GetOrCreate(tx, labels.Prune)
	if err != nil {
		return nil, err
	}

	current, err := tx.ListAddresses(&storage.AddressFilter{PortID: port.ID})
	if err != nil {
		return nil, err
	}

	var marked []string
	for i := range current {
		if err := tx.AddAddressLabel(current[i].ID, prune.ID); err != nil {
			return nil, err
		}
		marked = append(marked, current[i].Address)
	}

	return marked, nil
}

// bindNew creates the replacement address on the port, labeled with
// the point-to-point role and the freshly-generated mark
func bindNew(tx *storage.Tx, port *model.Port, prefix netip.Prefix, role string) error {
	existing, err := tx.GetAddressByValue(prefix.String())
	if err == nil && existing.PortID != "" {
		return fmt.Errorf("%w: %s", provision.ErrAddressAssigned, prefix)
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

	for _, name := range []string{role, labels.NewIP} {
		label, err := labels.GetOrCreate(tx, name)
		if err != nil {
			return err
		}
		if err := tx.AddAddressLabel(addr.ID, label.ID); err != nil {
			return err
		}
	}

	return nil
}

// ptpRole returns the point-to-point role label carried by the port,
// or "" when it carries neither
func ptpRole(tags []string) string {
	switch {
	case labels.Has(tags, labels.L2PTP):
		return labels.L2PTP
	case labels.Has(tags, labels.L3PTP):
		return labels.L3PTP
	}
	return ""
}

// Prune deletes every address marked as pending removal and clears the
// freshly-generated label from the addresses that carry it. An empty
// result set is a valid outcome; running Prune twice is a no-op the
// second time.
func Prune(tx *storage.Tx) (script.Output, error) {
	out := make(script.Output)

	pending, err := tx.ListAddresses(&storage.AddressFilter{Tag: labels.Prune})
	if err != nil {
		return nil, err
	}
	for i := range pending {
		addr := &pending[i]
		if err := tx.DeleteAddress(addr.ID); err != nil {
			return nil, err
		}

		device, port, err := addressLocation(tx, addr)
		if err != nil {
			return nil, err
		}
		out.Add(device, port, script.Entry{
			Status:  "pruned",
			Address: []string{addr.Address},
		})
		log.Info("Address pruned", "address", addr.Address)
	}

	fresh, err := tx.ListAddresses(&storage.AddressFilter{Tag: labels.NewIP})
	if err != nil {
		return nil, err
	}
	if len(fresh) == 0 {
		return out, nil
	}

	newIP, err := tx.GetLabelByName(labels.NewIP)
	if err != nil {
		return nil, err
	}
	for i := range fresh {
		addr := &fresh[i]
		if err := tx.RemoveAddressLabel(addr.ID, newIP.ID); err != nil {
			return nil, err
		}

		device, port, err := addressLocation(tx, addr)
		if err != nil {
			return nil, err
		}
		out.Add(device, port, script.Entry{
			Status:  "kept",
			Address: []string{addr.Address},
		})
	}

	return out, nil
}

// addressLocation names the device and port an address sits on, for
// report keying. Unassigned addresses are grouped under "(unassigned)".
func addressLocation(tx *storage.Tx, addr *model.AddressRecord) (string, string, error) {
	if addr.PortID == "" {
		return "(unassigned)", addr.Address, nil
	}

	port, err := tx.GetPort(addr.PortID)
	if err != nil {
		return "", "", err
	}
	device, err := tx.GetDevice(port.DeviceID)
	if err != nil {
		return "", "", err
	}

	return device.Name, port.Name, nil
}
