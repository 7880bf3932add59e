// Package topology builds and resolves the structure around
// point-to-point links: VLAN sub-ports, LACP bundles and provider
// circuits. Every construction here is idempotent or fails closed.
package topology

import (
	"errors"
	"fmt"

	"github.com/as36198/linkd/internal/labels"
	"github.com/as36198/linkd/internal/log"
	"github.com/as36198/linkd/internal/model"
	"github.com/as36198/linkd/internal/script"
	"github.com/as36198/linkd/internal/storage"
)

var (
	// ErrQinQUnsupported is returned when a VLAN sub-port is requested
	// on a port that is already in access mode
	ErrQinQUnsupported = script.NewCancel("q-in-q is not supported")

	// ErrAlreadyConfigured is returned when a port carrying addresses,
	// enrolled in a bundle or wired to a link is re-assigned
	ErrAlreadyConfigured = script.NewCancel("port is already configured")

	// ErrDuplicateCircuit is returned when a circuit with the
	// requested id already exists
	ErrDuplicateCircuit = script.NewCancel("circuit id already exists")

	// ErrBundleNamesExhausted is returned when every name in the
	// bundle naming sequence is taken on the device
	ErrBundleNamesExhausted = script.NewCancel("bundle names exhausted")
)

// Bundle naming sequence bounds: bond0..bond100
const maxBundleIndex = 100

// ResolveVLANSubPort looks up the sub-port named "<port>.<vid>" on the
// port's device and reuses it when present. Otherwise it locates or
// creates the VLAN scoped to the device's site and creates the
// sub-port in access mode with the given port as parent.
func ResolveVLANSubPort(tx *storage.Tx, port *model.Port, vid int) (*model.Port, bool, error) {
	if port.Mode == model.PortModeAccess {
		// Stacking a VLAN on an access port would be Q-in-Q
		return nil, false, fmt.Errorf("%w: cannot assign a VLAN to port %s", ErrQinQUnsupported, port.Name)
	}

	name := fmt.Sprintf("%s.%d", port.Name, vid)

	existing, err := tx.GetPortByName(port.DeviceID, name)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, storage.ErrPortNotFound) {
		return nil, false, err
	}

	device, err := tx.GetDevice(port.DeviceID)
	if err != nil {
		return nil, false, err
	}

	vlan, err := tx.GetVLANByVID(device.SiteID, vid)
	if errors.Is(err, storage.ErrVLANNotFound) {
		vlan = &model.VLAN{
			SiteID: device.SiteID,
			VID:    vid,
			Role:   labels.AutogenRole,
		}
		if err := tx.CreateVLAN(vlan); err != nil {
			return nil, false, err
		}
		log.Info("VLAN created", "vid", vid, "site_id", device.SiteID)
	} else if err != nil {
		return nil, false, err
	}

	sub := &model.Port{
		DeviceID: port.DeviceID,
		Name:     name,
		Kind:     model.PortKindVLAN,
		Mode:     model.PortModeAccess,
		ParentID: port.ID,
		VLANID:   vlan.ID,
	}
	if err := tx.CreatePort(sub); err != nil {
		return nil, false, err
	}
	log.Info("VLAN sub-port created", "name", sub.Name, "vid", vid)

	return sub, true, nil
}

// NextBundleName scans the fixed naming sequence bond0..bond100 for
// the first name not already used on the device
func NextBundleName(tx *storage.Tx, deviceID string) (string, error) {
	for i := 0; i <= maxBundleIndex; i++ {
		name := fmt.Sprintf("bond%d", i)

		_, err := tx.GetPortByName(deviceID, name)
		if errors.Is(err, storage.ErrPortNotFound) {
			return name, nil
		}
		if err != nil {
			return "", err
		}
	}

	return "", fmt.Errorf("%w: bond0..bond%d all taken", ErrBundleNamesExhausted, maxBundleIndex)
}

// CreateBundle creates a new LACP bundle on the device and enrolls the
// member ports. Members that already carry addresses, belong to a
// bundle or are wired to a link are rejected.
func CreateBundle(tx *storage.Tx, deviceID string, members []*model.Port) (*model.Port, error) {
	for _, member := range members {
		if err := EnsureAvailable(tx, member); err != nil {
			return nil, err
		}
	}

	name, err := NextBundleName(tx, deviceID)
	if err != nil {
		return nil, err
	}

	bundle := &model.Port{
		DeviceID: deviceID,
		Name:     name,
		Kind:     model.PortKindBundle,
		Mode:     model.PortModeTrunk,
	}
	if err := tx.CreatePort(bundle); err != nil {
		return nil, err
	}

	for _, member := range members {
		member.BundleID = bundle.ID
		if err := tx.UpdatePort(member); err != nil {
			return nil, err
		}
	}
	log.Info("Bundle created", "name", name, "members", len(members))

	return bundle, nil
}

// EnsureAvailable rejects ports that cannot be the target of a new
// assignment: ports carrying addresses, bundle members and ports
// already wired to a link or cable.
func EnsureAvailable(tx *storage.Tx, port *model.Port) error {
	count, err := tx.CountPortAddresses(port.ID)
	if err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("%w: port %s already has addresses assigned", ErrAlreadyConfigured, port.Name)
	}

	if port.BundleID != "" {
		return fmt.Errorf("%w: port %s is a bundle member", ErrAlreadyConfigured, port.Name)
	}

	if _, err := tx.GetLinkForPort(port.ID); err == nil {
		return fmt.Errorf("%w: port %s is already linked", ErrAlreadyConfigured, port.Name)
	} else if !errors.Is(err, storage.ErrLinkNotFound) {
		return err
	}

	if _, err := tx.GetPortCircuit(port.ID); err == nil {
		return fmt.Errorf("%w: port %s is already cabled to a circuit", ErrAlreadyConfigured, port.Name)
	} else if !errors.Is(err, storage.ErrCableNotFound) {
		return err
	}

	return nil
}

// Peer is the far side of a point-to-point link: another inventory
// port for a direct link, or circuit metadata when the port terminates
// into a provider circuit.
type Peer struct {
	Port    *model.Port
	Circuit *storage.PortCircuit
}

// ResolvePeer finds the opposite side of the port's point-to-point
// link. Returns storage.ErrLinkNotFound when the port has neither a
// direct link nor a circuit termination.
func ResolvePeer(tx *storage.Tx, port *model.Port) (*Peer, error) {
	link, err := tx.GetLinkForPort(port.ID)
	if err == nil {
		peerID := link.PortAID
		if peerID == port.ID {
			peerID = link.PortBID
		}

		peer, err := tx.GetPort(peerID)
		if err != nil {
			return nil, err
		}
		return &Peer{Port: peer}, nil
	}
	if !errors.Is(err, storage.ErrLinkNotFound) {
		return nil, err
	}

	circuit, err := tx.GetPortCircuit(port.ID)
	if err == nil {
		return &Peer{Circuit: circuit}, nil
	}
	if !errors.Is(err, storage.ErrCableNotFound) {
		return nil, err
	}

	return nil, storage.ErrLinkNotFound
}

// BuildCircuit wires a port into a new provider circuit: provider and
// provider network are created on demand, the circuit id must be new,
// and the port is cabled to the site-side termination.
func BuildCircuit(tx *storage.Tx, port *model.Port, siteID, providerName, cid string) (*model.Circuit, error) {
	provider, err := tx.GetProviderByName(providerName)
	if errors.Is(err, storage.ErrProviderNotFound) {
		provider, err = tx.CreateProvider(providerName)
		if err != nil {
			return nil, err
		}
		log.Info("Provider created", "name", providerName)
	} else if err != nil {
		return nil, err
	}

	networkName := providerName + " Network"
	network, err := tx.GetProviderNetwork(provider.ID, networkName)
	if errors.Is(err, storage.ErrProviderNotFound) {
		network, err = tx.CreateProviderNetwork(provider.ID, networkName)
		if err != nil {
			return nil, err
		}
		log.Info("Provider network created", "name", networkName)
	} else if err != nil {
		return nil, err
	}

	if _, err := tx.GetCircuitByCID(cid); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateCircuit, cid)
	} else if !errors.Is(err, storage.ErrCircuitNotFound) {
		return nil, err
	}

	circuit, err := tx.CreateCircuit(cid, provider.ID)
	if err != nil {
		return nil, err
	}

	termA := &model.Termination{
		CircuitID: circuit.ID,
		Side:      model.TermSideA,
		SiteID:    siteID,
	}
	if err := tx.CreateTermination(termA); err != nil {
		return nil, err
	}

	termZ := &model.Termination{
		CircuitID:         circuit.ID,
		Side:              model.TermSideZ,
		ProviderNetworkID: network.ID,
	}
	if err := tx.CreateTermination(termZ); err != nil {
		return nil, err
	}

	if _, err := tx.CreateCable(port.ID, termA.ID); err != nil {
		return nil, err
	}
	log.Info("Circuit created", "cid", cid, "provider", providerName, "port", port.Name)

	return circuit, nil
}
