package script

import (
	"errors"
	"fmt"

	"github.com/as36198/linkd/internal/model"
	"github.com/as36198/linkd/internal/storage"
)

// PortRef identifies a port either by a resolved ID (interactive form)
// or by a device-name/port-name pair (remote-call path). Both shapes
// converge on the same port identity before any business logic runs.
type PortRef struct {
	ID     string `json:"id,omitempty"`
	Device string `json:"device,omitempty"`
	Port   string `json:"port,omitempty"`
}

// Resolve turns the reference into the port it names, failing with
// ErrTargetNotFound when it does not resolve uniquely
func (r PortRef) Resolve(tx *storage.Tx) (*model.Port, error) {
	if r.ID != "" {
		port, err := tx.GetPort(r.ID)
		if errors.Is(err, storage.ErrPortNotFound) {
			return nil, fmt.Errorf("%w: port id %s", ErrTargetNotFound, r.ID)
		}
		return port, err
	}

	if r.Device == "" || r.Port == "" {
		return nil, fmt.Errorf("%w: device and port names required", ErrTargetNotFound)
	}

	device, err := tx.GetDeviceByName(r.Device)
	if errors.Is(err, storage.ErrDeviceNotFound) {
		return nil, fmt.Errorf("%w: device %s", ErrTargetNotFound, r.Device)
	}
	if err != nil {
		return nil, err
	}

	port, err := tx.GetPortByName(device.ID, r.Port)
	if errors.Is(err, storage.ErrPortNotFound) {
		return nil, fmt.Errorf("%w: port %s:%s", ErrTargetNotFound, r.Device, r.Port)
	}
	return port, err
}

// DeviceRef identifies a device by resolved ID or by name
type DeviceRef struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

// Resolve turns the reference into the device it names
func (r DeviceRef) Resolve(tx *storage.Tx) (*model.Device, error) {
	var (
		device *model.Device
		err    error
	)
	switch {
	case r.ID != "":
		device, err = tx.GetDevice(r.ID)
	case r.Name != "":
		device, err = tx.GetDeviceByName(r.Name)
	default:
		return nil, fmt.Errorf("%w: device reference required", ErrTargetNotFound)
	}
	if errors.Is(err, storage.ErrDeviceNotFound) {
		return nil, fmt.Errorf("%w: device %s%s", ErrTargetNotFound, r.ID, r.Name)
	}
	return device, err
}
