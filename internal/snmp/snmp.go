// Package snmp discovers the physical interfaces of a device over
// SNMP and seeds the inventory with the ports it finds.
package snmp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"

	"github.com/as36198/linkd/internal/log"
	"github.com/as36198/linkd/internal/model"
	"github.com/as36198/linkd/internal/script"
	"github.com/as36198/linkd/internal/storage"
)

// IF-MIB ifDescr column
const ifDescrOID = "1.3.6.1.2.1.2.2.1.2"

// Client walks a single SNMP agent
type Client struct {
	Target    string
	Port      uint16
	Community string
	Timeout   time.Duration
}

// FetchInterfaces walks IF-MIB ifDescr on the target and returns the
// interface names in table order
func (c *Client) FetchInterfaces(ctx context.Context) ([]string, error) {
	port := c.Port
	if port == 0 {
		port = 161
	}
	timeout := c.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	g := &gosnmp.GoSNMP{
		Context:   ctx,
		Target:    c.Target,
		Port:      port,
		Community: c.Community,
		Version:   gosnmp.Version2c,
		Timeout:   timeout,
		Retries:   1,
	}
	if err := g.Connect(); err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", c.Target, err)
	}
	defer g.Conn.Close()

	pdus, err := g.BulkWalkAll(ifDescrOID)
	if err != nil {
		return nil, fmt.Errorf("walking ifDescr on %s: %w", c.Target, err)
	}

	var names []string
	for _, pdu := range pdus {
		if pdu.Type != gosnmp.OctetString {
			continue
		}
		name := strings.TrimSpace(string(pdu.Value.([]byte)))
		if name != "" {
			names = append(names, name)
		}
	}
	log.Debug("Interface walk complete", "target", c.Target, "interfaces", len(names))

	return names, nil
}

// SeedPorts creates a physical port for every discovered interface
// name the device does not already have. Existing ports are left
// untouched, so re-running discovery is safe.
func SeedPorts(tx *storage.Tx, device *model.Device, names []string) (script.Output, error) {
	out := make(script.Output)

	for _, name := range names {
		_, err := tx.GetPortByName(device.ID, name)
		if err == nil {
			out.Add(device.Name, name, script.Entry{Status: "found"})
			continue
		}
		if !errors.Is(err, storage.ErrPortNotFound) {
			return nil, err
		}

		port := &model.Port{
			DeviceID: device.ID,
			Name:     name,
			Kind:     model.PortKindPhysical,
			Mode:     model.PortModeTrunk,
		}
		if err := tx.CreatePort(port); err != nil {
			return nil, err
		}
		log.Info("Port discovered", "device", device.Name, "port", name)

		out.Add(device.Name, name, script.Entry{Status: "created"})
	}

	return out, nil
}
