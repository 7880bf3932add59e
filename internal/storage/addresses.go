package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/as36198/linkd/internal/model"
)

// GetLabelByName retrieves a label by its unique name
func (t *Tx) GetLabelByName(name string) (*model.Label, error) {
	var l model.Label
	err := t.tx.QueryRow(`SELECT id, name, description FROM labels WHERE name = ?`, name).
		Scan(&l.ID, &l.Name, &l.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrLabelNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying label: %w", err)
	}
	return &l, nil
}

// CreateLabel adds a new label. The UNIQUE constraint on the name makes
// duplicate creation inside a transaction fail closed.
func (t *Tx) CreateLabel(name, description string) (*model.Label, error) {
	label := &model.Label{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
	}

	_, err := t.tx.Exec(`INSERT INTO labels (id, name, description) VALUES (?, ?, ?)`,
		label.ID, label.Name, label.Description)
	if err != nil {
		return nil, fmt.Errorf("inserting label: %w", err)
	}

	return label, nil
}

// AddPortLabel attaches a label to a port (no-op if already attached)
func (t *Tx) AddPortLabel(portID, labelID string) error {
	_, err := t.tx.Exec(`
		INSERT INTO port_labels (port_id, label_id) VALUES (?, ?)
		ON CONFLICT (port_id, label_id) DO NOTHING
	`, portID, labelID)
	if err != nil {
		return fmt.Errorf("attaching port label: %w", err)
	}
	return nil
}

// RemovePortLabel detaches a label from a port
func (t *Tx) RemovePortLabel(portID, labelID string) error {
	_, err := t.tx.Exec(`DELETE FROM port_labels WHERE port_id = ? AND label_id = ?`, portID, labelID)
	if err != nil {
		return fmt.Errorf("detaching port label: %w", err)
	}
	return nil
}

// AddAddressLabel attaches a label to an address (no-op if already attached)
func (t *Tx) AddAddressLabel(addressID, labelID string) error {
	_, err := t.tx.Exec(`
		INSERT INTO address_labels (address_id, label_id) VALUES (?, ?)
		ON CONFLICT (address_id, label_id) DO NOTHING
	`, addressID, labelID)
	if err != nil {
		return fmt.Errorf("attaching address label: %w", err)
	}
	return nil
}

// RemoveAddressLabel detaches a label from an address
func (t *Tx) RemoveAddressLabel(addressID, labelID string) error {
	_, err := t.tx.Exec(`DELETE FROM address_labels WHERE address_id = ? AND label_id = ?`, addressID, labelID)
	if err != nil {
		return fmt.Errorf("detaching address label: %w", err)
	}
	return nil
}

// AddressFilter holds filter criteria for listing addresses
type AddressFilter struct {
	PortID string
	Tag    string
	Family int
}

const addressColumns = `a.id, a.address, a.family, COALESCE(a.port_id, ''), a.status, a.role, a.dns_name, a.created_at`

// CreateAddress adds a new address record. The ID and timestamp are filled in.
func (t *Tx) CreateAddress(addr *model.AddressRecord) error {
	if addr.ID == "" {
		addr.ID = uuid.NewString()
	}
	if addr.Status == "" {
		addr.Status = model.AddressStatusActive
	}
	addr.CreatedAt = time.Now()

	_, err := t.tx.Exec(`
		INSERT INTO addresses (id, address, family, port_id, status, role, dns_name, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, addr.ID, addr.Address, addr.Family, nullable(addr.PortID), addr.Status, addr.Role, addr.DNSName, addr.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting address: %w", err)
	}

	return nil
}

// UpdateAddress updates an existing address record
func (t *Tx) UpdateAddress(addr *model.AddressRecord) error {
	result, err := t.tx.Exec(`
		UPDATE addresses SET address = ?, family = ?, port_id = ?, status = ?, role = ?, dns_name = ?
		WHERE id = ?
	`, addr.Address, addr.Family, nullable(addr.PortID), addr.Status, addr.Role, addr.DNSName, addr.ID)
	if err != nil {
		return fmt.Errorf("updating address: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrAddressNotFound
	}

	return nil
}

// DeleteAddress removes an address record
func (t *Tx) DeleteAddress(id string) error {
	result, err := t.tx.Exec(`DELETE FROM addresses WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting address: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrAddressNotFound
	}

	return nil
}

// GetAddressByValue retrieves an address record by its address/mask text
func (t *Tx) GetAddressByValue(address string) (*model.AddressRecord, error) {
	rows, err := t.tx.Query(`SELECT `+addressColumns+` FROM addresses a WHERE a.address = ?`, address)
	if err != nil {
		return nil, fmt.Errorf("querying address: %w", err)
	}
	defer rows.Close()

	addrs, err := t.scanAddresses(rows)
	if err != nil {
		return nil, err
	}
	if len(addrs) == 0 {
		return nil, ErrAddressNotFound
	}

	if err := t.loadAddressTags(&addrs[0]); err != nil {
		return nil, err
	}

	return &addrs[0], nil
}

// ListAddresses returns addresses, optionally filtered by port, label or family
func (t *Tx) ListAddresses(filter *AddressFilter) ([]model.AddressRecord, error) {
	query := `SELECT ` + addressColumns + ` FROM addresses a`
	var (
		args  []any
		where []string
	)

	if filter != nil && filter.Tag != "" {
		query += ` INNER JOIN address_labels al ON a.id = al.address_id
			INNER JOIN labels l ON al.label_id = l.id AND l.name = ?`
		args = append(args, filter.Tag)
	}
	if filter != nil && filter.PortID != "" {
		where = append(where, `a.port_id = ?`)
		args = append(args, filter.PortID)
	}
	if filter != nil && filter.Family != 0 {
		where = append(where, `a.family = ?`)
		args = append(args, filter.Family)
	}
	for i, cond := range where {
		if i == 0 {
			query += ` WHERE ` + cond
		} else {
			query += ` AND ` + cond
		}
	}
	query += ` ORDER BY a.address`

	rows, err := t.tx.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying addresses: %w", err)
	}
	defer rows.Close()

	addrs, err := t.scanAddresses(rows)
	if err != nil {
		return nil, err
	}

	for i := range addrs {
		if err := t.loadAddressTags(&addrs[i]); err != nil {
			return nil, err
		}
	}

	return addrs, nil
}

func (t *Tx) scanAddresses(rows *sql.Rows) ([]model.AddressRecord, error) {
	var addrs []model.AddressRecord

	for rows.Next() {
		var a model.AddressRecord
		err := rows.Scan(&a.ID, &a.Address, &a.Family, &a.PortID, &a.Status, &a.Role, &a.DNSName, &a.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning address: %w", err)
		}
		addrs = append(addrs, a)
	}

	return addrs, rows.Err()
}

func (t *Tx) loadAddressTags(addr *model.AddressRecord) error {
	rows, err := t.tx.Query(`
		SELECT l.name FROM labels l
		INNER JOIN address_labels al ON l.id = al.label_id
		WHERE al.address_id = ?
		ORDER BY l.name
	`, addr.ID)
	if err != nil {
		return fmt.Errorf("querying address labels: %w", err)
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

	addr.Tags = tags
	return rows.Err()
}

// CreateBlock adds a new address block
func (t *Tx) CreateBlock(cidr string, family int, role string) (*model.AddressBlock, error) {
	block := &model.AddressBlock{
		ID:        uuid.NewString(),
		CIDR:      cidr,
		Family:    family,
		Role:      role,
		CreatedAt: time.Now(),
	}

	_, err := t.tx.Exec(`INSERT INTO blocks (id, cidr, family, role, created_at) VALUES (?, ?, ?, ?, ?)`,
		block.ID, block.CIDR, block.Family, block.Role, block.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("inserting block: %w", err)
	}

	return block, nil
}

// GetBlock retrieves an address block by ID
func (t *Tx) GetBlock(id string) (*model.AddressBlock, error) {
	return t.queryBlock(`SELECT id, cidr, family, role, created_at FROM blocks WHERE id = ?`, id)
}

// GetBlockByCIDR retrieves an address block by its CIDR text
func (t *Tx) GetBlockByCIDR(cidr string) (*model.AddressBlock, error) {
	return t.queryBlock(`SELECT id, cidr, family, role, created_at FROM blocks WHERE cidr = ?`, cidr)
}

func (t *Tx) queryBlock(query string, args ...any) (*model.AddressBlock, error) {
	var b model.AddressBlock
	err := t.tx.QueryRow(query, args...).Scan(&b.ID, &b.CIDR, &b.Family, &b.Role, &b.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBlockNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying block: %w", err)
	}
	return &b, nil
}

// ListBlocks returns address blocks, optionally filtered by role and family
func (t *Tx) ListBlocks(role string, family int) ([]model.AddressBlock, error) {
	query := `SELECT id, cidr, family, role, created_at FROM blocks`
	var (
		args  []any
		where []string
	)

	if role != "" {
		where = append(where, `role = ?`)
		args = append(args, role)
	}
	if family != 0 {
		where = append(where, `family = ?`)
		args = append(args, family)
	}
	for i, cond := range where {
		if i == 0 {
			query += ` WHERE ` + cond
		} else {
			query += ` AND ` + cond
		}
	}
	query += ` ORDER BY cidr`

	rows, err := t.tx.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying blocks: %w", err)
	}
	defer rows.Close()

	var blocks []model.AddressBlock
	for rows.Next() {
		var b model.AddressBlock
		if err := rows.Scan(&b.ID, &b.CIDR, &b.Family, &b.Role, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning block: %w", err)
		}
		blocks = append(blocks, b)
	}

	return blocks, rows.Err()
}
