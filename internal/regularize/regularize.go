// Package regularize rewrites interface descriptions and reverse DNS
// names from the topology, so that what the inventory displays always
// reflects what is actually cabled and addressed. Both passes are
// idempotent: a second run with no topology change updates nothing.
package regularize

import (
	"errors"
	"fmt"
	"net/netip"
	"regexp"
	"strconv"
	"strings"

	"github.com/as36198/linkd/internal/log"
	"github.com/as36198/linkd/internal/model"
	"github.com/as36198/linkd/internal/script"
	"github.com/as36198/linkd/internal/storage"
	"github.com/as36198/linkd/internal/topology"
)

// Loopback port naming: dum<N>, with the index deciding visibility
var loopbackName = regexp.MustCompile(`^dum(\d+)$`)

const (
	loopbackInternalLow = 10
	loopbackInternalHi  = 199
	loopbackPublicHi    = 255
)

// Descriptions recomputes the description of every port that the
// topology gives a canonical one: VLAN sub-ports, point-to-point
// ports, circuit-terminated ports and loopbacks. Only changed
// descriptions are written; the report lists the updated ports.
func Descriptions(tx *storage.Tx) (script.Output, error) {
	devices, err := tx.ListDevices()
	if err != nil {
		return nil, err
	}

	out := make(script.Output)
	for i := range devices {
		device := &devices[i]

		ports, err := tx.ListPorts(&model.PortFilter{DeviceID: device.ID})
		if err != nil {
			return nil, err
		}

		for j := range ports {
			port := &ports[j]

			desc, err := canonicalDescription(tx, device, port)
			if err != nil {
				return nil, err
			}
			if desc == "" || desc == port.Description {
				continue
			}

			port.Description = desc
			if err := tx.UpdatePort(port); err != nil {
				return nil, err
			}
			log.Info("Description updated", "device", device.Name, "port", port.Name, "description", desc)

			out.Add(device.Name, port.Name, script.Entry{
				Status:      "updated",
				Description: desc,
			})
		}
	}

	return out, nil
}

// canonicalDescription computes the description the topology dictates
// for the port, or "" when the port has no canonical form
func canonicalDescription(tx *storage.Tx, device *model.Device, port *model.Port) (string, error) {
	if port.VLANID != "" {
		vlan, err := tx.GetVLAN(port.VLANID)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("[T=lan][vid=%d] %s", vlan.VID, vlan.Name), nil
	}

	if m := loopbackName.FindStringSubmatch(port.Name); m != nil {
		n, _ := strconv.Atoi(m[1])
		switch {
		case n >= loopbackInternalLow && n <= loopbackInternalHi:
			return "[T=loop][internal]", nil
		case n > loopbackInternalHi && n <= loopbackPublicHi:
			return "[T=loop][public]", nil
		}
		return "", nil
	}

	peer, err := topology.ResolvePeer(tx, port)
	if errors.Is(err, storage.ErrLinkNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}

	if peer.Circuit != nil {
		return fmt.Sprintf("[T=transit][%s:%s]", peer.Circuit.ProviderName, peer.Circuit.CID), nil
	}

	peerDevice, err := tx.GetDevice(peer.Port.DeviceID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("[T=ptp][%s:%s:%s:%s]", device.Name, port.Name, peerDevice.Name, peer.Port.Name), nil
}

// PTRs recomputes the reverse DNS name of every public address that
// has a canonical one: point-to-point pairs, VLAN gateways and
// loopback-role addresses. The domain suffix comes from configuration.
func PTRs(tx *storage.Tx, domain string) (script.Output, error) {
	addrs, err := tx.ListAddresses(&storage.AddressFilter{})
	if err != nil {
		return nil, err
	}

	out := make(script.Output)
	for i := range addrs {
		addr := &addrs[i]
		if addr.PortID == "" {
			continue
		}

		prefix, err := netip.ParsePrefix(addr.Address)
		if err != nil {
			return nil, fmt.Errorf("parsing stored address %q: %w", addr.Address, err)
		}
		if !isPublic(prefix.Addr()) {
			continue
		}

		port, err := tx.GetPort(addr.PortID)
		if err != nil {
			return nil, err
		}
		device, err := tx.GetDevice(port.DeviceID)
		if err != nil {
			return nil, err
		}

		name, err := canonicalPTR(tx, device, port, addr, domain)
		if err != nil {
			return nil, err
		}
		if name == "" || name == addr.DNSName {
			continue
		}

		addr.DNSName = name
		if err := tx.UpdateAddress(addr); err != nil {
			return nil, err
		}
		log.Info("PTR updated", "address", addr.Address, "name", name)

		out.Add(device.Name, port.Name, script.Entry{
			Status:      "updated",
			Address:     []string{addr.Address},
			Description: name,
		})
	}

	return out, nil
}

// canonicalPTR computes the reverse name for one address, or "" when
// no rule applies
func canonicalPTR(tx *storage.Tx, device *model.Device, port *model.Port, addr *model.AddressRecord, domain string) (string, error) {
	if addr.Role == model.AddressRoleLoopback {
		return fmt.Sprintf("%s.loopbacks.%s", dnsLabel(device.Name), domain), nil
	}

	if port.VLANID != "" {
		vlan, err := tx.GetVLAN(port.VLANID)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s-vlan%d-gw.%s", dnsLabel(device.Name), vlan.VID, domain), nil
	}

	peer, err := topology.ResolvePeer(tx, port)
	if errors.Is(err, storage.ErrLinkNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if peer.Port == nil {
		return "", nil
	}

	peerDevice, err := tx.GetDevice(peer.Port.DeviceID)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%s-%s-%s-%s.ptp.%s",
		dnsLabel(device.Name), dnsLabel(port.Name),
		dnsLabel(peerDevice.Name), dnsLabel(peer.Port.Name), domain), nil
}

// isPublic reports whether the address should get a public PTR
func isPublic(addr netip.Addr) bool {
	return addr.IsGlobalUnicast() && !addr.IsPrivate()
}

var dnsUnsafe = strings.NewReplacer("/", "-", ".", "-", "_", "-", ":", "-")

// dnsLabel folds a device or interface name into a DNS label
func dnsLabel(name string) string {
	return dnsUnsafe.Replace(strings.ToLower(name))
}
