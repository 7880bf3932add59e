package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/as36198/linkd/internal/model"
)

// CreateSite adds a new site
func (t *Tx) CreateSite(name string) (*model.Site, error) {
	site := &model.Site{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: time.Now(),
	}

	_, err := t.tx.Exec(`INSERT INTO sites (id, name, created_at) VALUES (?, ?, ?)`,
		site.ID, site.Name, site.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("inserting site: %w", err)
	}

	return site, nil
}

// GetSite retrieves a site by ID
func (t *Tx) GetSite(id string) (*model.Site, error) {
	var site model.Site
	err := t.tx.QueryRow(`SELECT id, name, created_at FROM sites WHERE id = ?`, id).
		Scan(&site.ID, &site.Name, &site.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSiteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying site: %w", err)
	}
	return &site, nil
}

// GetSiteByName retrieves a site by name
func (t *Tx) GetSiteByName(name string) (*model.Site, error) {
	var site model.Site
	err := t.tx.QueryRow(`SELECT id, name, created_at FROM sites WHERE name = ?`, name).
		Scan(&site.ID, &site.Name, &site.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSiteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying site: %w", err)
	}
	return &site, nil
}

// CreateDevice adds a new device
func (t *Tx) CreateDevice(name, siteID string) (*model.Device, error) {
	now := time.Now()
	device := &model.Device{
		ID:        uuid.NewString(),
		Name:      name,
		SiteID:    siteID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := t.tx.Exec(`
		INSERT INTO devices (id, name, site_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, device.ID, device.Name, device.SiteID, device.CreatedAt, device.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("inserting device: %w", err)
	}

	return device, nil
}

// GetDevice retrieves a device by ID
func (t *Tx) GetDevice(id string) (*model.Device, error) {
	return t.queryDevice(`SELECT id, name, site_id, created_at, updated_at FROM devices WHERE id = ?`, id)
}

// GetDeviceByName retrieves a device by name
func (t *Tx) GetDeviceByName(name string) (*model.Device, error) {
	return t.queryDevice(`SELECT id, name, site_id, created_at, updated_at FROM devices WHERE name = ?`, name)
}

func (t *Tx) queryDevice(query string, args ...any) (*model.Device, error) {
	var d model.Device
	err := t.tx.QueryRow(query, args...).Scan(&d.ID, &d.Name, &d.SiteID, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDeviceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying device: %w", err)
	}
	return &d, nil
}

// ListDevices returns all devices ordered by name
func (t *Tx) ListDevices() ([]model.Device, error) {
	rows, err := t.tx.Query(`SELECT id, name, site_id, created_at, updated_at FROM devices ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var devices []model.Device
	for rows.Next() {
		var d model.Device
		if err := rows.Scan(&d.ID, &d.Name, &d.SiteID, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		devices = append(devices, d)
	}

	return devices, rows.Err()
}

// CreateVLAN adds a new site-scoped VLAN
func (t *Tx) CreateVLAN(vlan *model.VLAN) error {
	if vlan.ID == "" {
		vlan.ID = uuid.NewString()
	}

	_, err := t.tx.Exec(`
		INSERT INTO vlans (id, site_id, vid, name, role)
		VALUES (?, ?, ?, ?, ?)
	`, vlan.ID, vlan.SiteID, vlan.VID, vlan.Name, vlan.Role)
	if err != nil {
		return fmt.Errorf("inserting vlan: %w", err)
	}

	return nil
}

// GetVLAN retrieves a VLAN by ID
func (t *Tx) GetVLAN(id string) (*model.VLAN, error) {
	return t.queryVLAN(`SELECT id, site_id, vid, name, role FROM vlans WHERE id = ?`, id)
}

// GetVLANByVID retrieves a VLAN by site and VLAN id
func (t *Tx) GetVLANByVID(siteID string, vid int) (*model.VLAN, error) {
	return t.queryVLAN(`SELECT id, site_id, vid, name, role FROM vlans WHERE site_id = ? AND vid = ?`, siteID, vid)
}

func (t *Tx) queryVLAN(query string, args ...any) (*model.VLAN, error) {
	var v model.VLAN
	err := t.tx.QueryRow(query, args...).Scan(&v.ID, &v.SiteID, &v.VID, &v.Name, &v.Role)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrVLANNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying vlan: %w", err)
	}
	return &v, nil
}

const portColumns = `p.id, p.device_id, p.name, p.kind, p.mode,
	COALESCE(p.parent_id, ''), COALESCE(p.bundle_id, ''), COALESCE(p.vlan_id, ''),
	p.description, p.created_at, p.updated_at`

// CreatePort adds a new port. The ID and timestamps are filled in.
func (t *Tx) CreatePort(port *model.Port) error {
	if port.ID == "" {
		port.ID = uuid.NewString()
	}
	now := time.Now()
	port.CreatedAt = now
	port.UpdatedAt = now

	_, err := t.tx.Exec(`
		INSERT INTO ports (id, device_id, name, kind, mode, parent_id, bundle_id, vlan_id, description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, port.ID, port.DeviceID, port.Name, port.Kind, port.Mode,
		nullable(port.ParentID), nullable(port.BundleID), nullable(port.VLANID),
		port.Description, port.CreatedAt, port.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting port: %w", err)
	}

	return nil
}

// UpdatePort updates an existing port
func (t *Tx) UpdatePort(port *model.Port) error {
	port.UpdatedAt = time.Now()

	result, err := t.tx.Exec(`
		UPDATE ports
		SET name = ?, kind = ?, mode = ?, parent_id = ?, bundle_id = ?, vlan_id = ?, description = ?, updated_at = ?
		WHERE id = ?
	`, port.Name, port.Kind, port.Mode,
		nullable(port.ParentID), nullable(port.BundleID), nullable(port.VLANID),
		port.Description, port.UpdatedAt, port.ID)
	if err != nil {
		return fmt.Errorf("updating port: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrPortNotFound
	}

	return nil
}

// GetPort retrieves a port by ID
func (t *Tx) GetPort(id string) (*model.Port, error) {
	return t.queryPort(`SELECT `+portColumns+` FROM ports p WHERE p.id = ?`, id)
}

// GetPortByName retrieves a port by device and name
func (t *Tx) GetPortByName(deviceID, name string) (*model.Port, error) {
	return t.queryPort(`SELECT `+portColumns+` FROM ports p WHERE p.device_id = ? AND p.name = ?`, deviceID, name)
}

func (t *Tx) queryPort(query string, args ...any) (*model.Port, error) {
	rows, err := t.tx.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying port: %w", err)
	}
	defer rows.Close()

	ports, err := t.scanPorts(rows)
	if err != nil {
		return nil, err
	}
	if len(ports) == 0 {
		return nil, ErrPortNotFound
	}

	if err := t.loadPortTags(&ports[0]); err != nil {
		return nil, err
	}

	return &ports[0], nil
}

// ListPorts returns ports, optionally filtered by device or label
func (t *Tx) ListPorts(filter *model.PortFilter) ([]model.Port, error) {
	query := `SELECT ` + portColumns + ` FROM ports p`
	var args []any

	if filter != nil && filter.Tag != "" {
		query += ` INNER JOIN port_labels pl ON p.id = pl.port_id
			INNER JOIN labels l ON pl.label_id = l.id AND l.name = ?`
		args = append(args, filter.Tag)
	}
	if filter != nil && filter.DeviceID != "" {
		query += ` WHERE p.device_id = ?`
		args = append(args, filter.DeviceID)
	}
	query += ` ORDER BY p.device_id, p.name`

	rows, err := t.tx.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying ports: %w", err)
	}
	defer rows.Close()

	ports, err := t.scanPorts(rows)
	if err != nil {
		return nil, err
	}

	for i := range ports {
		if err := t.loadPortTags(&ports[i]); err != nil {
			return nil, err
		}
	}

	return ports, nil
}

// ListBundleMembers returns the ports enrolled in a bundle
func (t *Tx) ListBundleMembers(bundleID string) ([]model.Port, error) {
	rows, err := t.tx.Query(`SELECT `+portColumns+` FROM ports p WHERE p.bundle_id = ? ORDER BY p.name`, bundleID)
	if err != nil {
		return nil, fmt.Errorf("querying bundle members: %w", err)
	}
	defer rows.Close()

	return t.scanPorts(rows)
}

// CountPortAddresses returns the number of addresses assigned to a port
func (t *Tx) CountPortAddresses(portID string) (int, error) {
	var count int
	err := t.tx.QueryRow(`SELECT COUNT(*) FROM addresses WHERE port_id = ?`, portID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting port addresses: %w", err)
	}
	return count, nil
}

func (t *Tx) scanPorts(rows *sql.Rows) ([]model.Port, error) {
	var ports []model.Port

	for rows.Next() {
		var p model.Port
		err := rows.Scan(&p.ID, &p.DeviceID, &p.Name, &p.Kind, &p.Mode,
			&p.ParentID, &p.BundleID, &p.VLANID, &p.Description, &p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning port: %w", err)
		}
		ports = append(ports, p)
	}

	return ports, rows.Err()
}

func (t *Tx) loadPortTags(port *model.Port) error {
	rows, err := t.tx.Query(`
		SELECT l.name FROM labels l
		INNER JOIN port_labels pl ON l.id = pl.label_id
		WHERE pl.port_id = ?
		ORDER BY l.name
	`, port.ID)
	if err != nil {
		return fmt.Errorf("querying port labels: %w", err)
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return err
		}
		tags = append(tags, tag)
	}

	port.Tags = tags
	return rows.Err()
}

// nullable maps an empty string to NULL for optional foreign keys
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
