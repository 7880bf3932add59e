package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/as36198/linkd/internal/model"
)

// CreateLink connects two ports with a direct point-to-point link
func (t *Tx) CreateLink(portAID, portBID string) (*model.Link, error) {
	link := &model.Link{
		ID:        uuid.NewString(),
		PortAID:   portAID,
		PortBID:   portBID,
		CreatedAt: time.Now(),
	}

	_, err := t.tx.Exec(`INSERT INTO links (id, port_a_id, port_b_id, created_at) VALUES (?, ?, ?, ?)`,
		link.ID, link.PortAID, link.PortBID, link.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("inserting link: %w", err)
	}

	return link, nil
}

// GetLinkForPort retrieves the link a port participates in
func (t *Tx) GetLinkForPort(portID string) (*model.Link, error) {
	var l model.Link
	err := t.tx.QueryRow(`
		SELECT id, port_a_id, port_b_id, created_at FROM links
		WHERE port_a_id = ? OR port_b_id = ?
	`, portID, portID).Scan(&l.ID, &l.PortAID, &l.PortBID, &l.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrLinkNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying link: %w", err)
	}
	return &l, nil
}

// GetProviderByName retrieves a provider by name
func (t *Tx) GetProviderByName(name string) (*model.Provider, error) {
	var p model.Provider
	err := t.tx.QueryRow(`SELECT id, name FROM providers WHERE name = ?`, name).Scan(&p.ID, &p.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProviderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying provider: %w", err)
	}
	return &p, nil
}

// CreateProvider adds a new provider
func (t *Tx) CreateProvider(name string) (*model.Provider, error) {
	provider := &model.Provider{
		ID:   uuid.NewString(),
		Name: name,
	}

	_, err := t.tx.Exec(`INSERT INTO providers (id, name) VALUES (?, ?)`, provider.ID, provider.Name)
	if err != nil {
		return nil, fmt.Errorf("inserting provider: %w", err)
	}

	return provider, nil
}

// GetProviderNetwork retrieves a provider network by provider and name
func (t *Tx) GetProviderNetwork(providerID, name string) (*model.ProviderNetwork, error) {
	var pn model.ProviderNetwork
	err := t.tx.QueryRow(`SELECT id, provider_id, name FROM provider_networks WHERE provider_id = ? AND name = ?`,
		providerID, name).Scan(&pn.ID, &pn.ProviderID, &pn.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProviderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying provider network: %w", err)
	}
	return &pn, nil
}

// CreateProviderNetwork adds a new provider network
func (t *Tx) CreateProviderNetwork(providerID, name string) (*model.ProviderNetwork, error) {
	pn := &model.ProviderNetwork{
		ID:         uuid.NewString(),
		ProviderID: providerID,
		Name:       name,
	}

	_, err := t.tx.Exec(`INSERT INTO provider_networks (id, provider_id, name) VALUES (?, ?, ?)`,
		pn.ID, pn.ProviderID, pn.Name)
	if err != nil {
		return nil, fmt.Errorf("inserting provider network: %w", err)
	}

	return pn, nil
}

// GetCircuitByCID retrieves a circuit by its circuit id
func (t *Tx) GetCircuitByCID(cid string) (*model.Circuit, error) {
	var c model.Circuit
	err := t.tx.QueryRow(`SELECT id, cid, provider_id, created_at FROM circuits WHERE cid = ?`, cid).
		Scan(&c.ID, &c.CID, &c.ProviderID, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCircuitNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying circuit: %w", err)
	}
	return &c, nil
}

// CreateCircuit adds a new circuit
func (t *Tx) CreateCircuit(cid, providerID string) (*model.Circuit, error) {
	circuit := &model.Circuit{
		ID:         uuid.NewString(),
		CID:        cid,
		ProviderID: providerID,
		CreatedAt:  time.Now(),
	}

	_, err := t.tx.Exec(`INSERT INTO circuits (id, cid, provider_id, created_at) VALUES (?, ?, ?, ?)`,
		circuit.ID, circuit.CID, circuit.ProviderID, circuit.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("inserting circuit: %w", err)
	}

	return circuit, nil
}

// CreateTermination adds a circuit termination. The ID is filled in.
func (t *Tx) CreateTermination(term *model.Termination) error {
	if term.ID == "" {
		term.ID = uuid.NewString()
	}

	_, err := t.tx.Exec(`
		INSERT INTO terminations (id, circuit_id, side, site_id, provider_network_id)
		VALUES (?, ?, ?, ?, ?)
	`, term.ID, term.CircuitID, term.Side, nullable(term.SiteID), nullable(term.ProviderNetworkID))
	if err != nil {
		return fmt.Errorf("inserting termination: %w", err)
	}

	return nil
}

// CreateCable connects a port to a circuit termination
func (t *Tx) CreateCable(portID, terminationID string) (*model.Cable, error) {
	cable := &model.Cable{
		ID:            uuid.NewString(),
		PortID:        portID,
		TerminationID: terminationID,
	}

	_, err := t.tx.Exec(`INSERT INTO cables (id, port_id, termination_id) VALUES (?, ?, ?)`,
		cable.ID, cable.PortID, cable.TerminationID)
	if err != nil {
		return nil, fmt.Errorf("inserting cable: %w", err)
	}

	return cable, nil
}

// PortCircuit describes the circuit a cabled port terminates into
type PortCircuit struct {
	ProviderName string
	CID          string
}

// GetPortCircuit resolves the circuit a port is cabled to, if any
func (t *Tx) GetPortCircuit(portID string) (*PortCircuit, error) {
	var pc PortCircuit
	err := t.tx.QueryRow(`
		SELECT pr.name, c.cid
		FROM cables cb
		INNER JOIN terminations tm ON cb.termination_id = tm.id
		INNER JOIN circuits c ON tm.circuit_id = c.id
		INNER JOIN providers pr ON c.provider_id = pr.id
		WHERE cb.port_id = ?
	`, portID).Scan(&pc.ProviderName, &pc.CID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCableNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying port circuit: %w", err)
	}
	return &pc, nil
}
