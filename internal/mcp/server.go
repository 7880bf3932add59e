// Package mcp exposes the provisioning and renumbering operations as
// MCP tools so an agent can drive the inventory.
package mcp

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/paularlott/mcp"
	"golang.org/x/crypto/bcrypt"

	"github.com/as36198/linkd/internal/config"
	"github.com/as36198/linkd/internal/log"
	"github.com/as36198/linkd/internal/model"
	"github.com/as36198/linkd/internal/provision"
	"github.com/as36198/linkd/internal/regularize"
	"github.com/as36198/linkd/internal/renumber"
	"github.com/as36198/linkd/internal/script"
	"github.com/as36198/linkd/internal/storage"
)

// Server wraps the MCP server with the inventory store
type Server struct {
	mcpServer *mcp.Server
	store     *storage.Store
	cfg       *config.Config
}

// NewServer creates a new MCP server for link provisioning
func NewServer(store *storage.Store, cfg *config.Config) *Server {
	s := &Server{
		mcpServer: mcp.NewServer("linkd", "1.0.0"),
		store:     store,
		cfg:       cfg,
	}
	s.registerTools()
	return s
}

// registerTools registers all provisioning tools
func (s *Server) registerTools() {
	// provision_pni - Provision a point-to-point interface
	s.mcpServer.RegisterTool(
		mcp.NewTool("provision_pni", "Provision a point-to-point network interface: optionally create an LACP bundle from member ports, a VLAN sub-port, a provider circuit, and bind a /31 + /127 address pair.",
			mcp.String("device", "Device name", mcp.Required()),
			mcp.String("port", "Port name on the device (omit when members are given)"),
			mcp.StringArray("members", "Member port names; creates an LACP bundle from them"),
			mcp.String("vlan_id", "VLAN id 1-4094 (optional)"),
			mcp.String("provider", "Provider name (with circuit_id, builds a circuit)"),
			mcp.String("circuit_id", "Circuit id"),
			mcp.String("autogen", "true to autogenerate addresses from the autogeneration blocks"),
			mcp.String("ipv4", "Explicit local IPv4 with mask, e.g. 192.0.2.0/31"),
			mcp.String("ipv6", "Explicit local IPv6 with mask, e.g. 2001:db8::/127"),
			mcp.String("commit", "true to commit, false for a dry run (default false)"),
		),
		s.handleProvision,
	)

	// renumber_generate - Allocate replacement address pairs
	s.mcpServer.RegisterTool(
		mcp.NewTool("renumber_generate", "Allocate replacement /31 + /127 address pairs for every linked port pair labeled 'renumber'. Old addresses are marked for removal, not deleted; run renumber_prune after verifying.",
			mcp.String("block_v4", "IPv4 address block CIDR or id to allocate from", mcp.Required()),
			mcp.String("block_v6", "IPv6 address block CIDR or id to allocate from", mcp.Required()),
			mcp.String("commit", "true to commit, false for a dry run (default false)"),
		),
		s.handleRenumberGenerate,
	)

	// renumber_prune - Delete superseded addresses
	s.mcpServer.RegisterTool(
		mcp.NewTool("renumber_prune", "Delete every address marked for removal by renumber_generate and clear the freshly-generated marks. Idempotent.",
			mcp.String("commit", "true to commit, false for a dry run (default false)"),
		),
		s.handleRenumberPrune,
	)

	// regularize_descriptions - Recompute interface descriptions
	s.mcpServer.RegisterTool(
		mcp.NewTool("regularize_descriptions", "Recompute canonical interface descriptions from the topology (point-to-point, circuit, VLAN and loopback ports). Reports updated ports only.",
			mcp.String("commit", "true to commit, false for a dry run (default false)"),
		),
		s.handleRegularizeDescriptions,
	)

	// regularize_ptrs - Recompute reverse DNS names
	s.mcpServer.RegisterTool(
		mcp.NewTool("regularize_ptrs", "Recompute reverse DNS names for public addresses (point-to-point, VLAN gateway and loopback addresses).",
			mcp.String("domain", "Domain suffix for generated names (defaults to the configured one)"),
			mcp.String("commit", "true to commit, false for a dry run (default false)"),
		),
		s.handleRegularizePTRs,
	)

	// device_list - List inventory devices
	s.mcpServer.RegisterTool(
		mcp.NewTool("device_list", "List all devices in the inventory"),
		s.handleDeviceList,
	)

	// device_ports - List the ports of a device
	s.mcpServer.RegisterTool(
		mcp.NewTool("device_ports", "List the ports of a device with their addresses and labels",
			mcp.String("device", "Device name", mcp.Required()),
		),
		s.handleDevicePorts,
	)
}

// HandleRequest handles MCP HTTP requests with optional bearer token
// authentication against the configured bcrypt hash
func (s *Server) HandleRequest(w http.ResponseWriter, r *http.Request) {
	log.Debug("MCP request received", "method", r.Method, "path", r.URL.Path, "remote_addr", r.RemoteAddr)

	if s.cfg.BearerToken != "" {
		auth := r.Header.Get("Authorization")
		if auth == "" {
			log.Warn("MCP request missing Authorization header", "remote_addr", r.RemoteAddr)
			http.Error(w, "Unauthorized: Missing Authorization header", http.StatusUnauthorized)
			return
		}
		if !strings.HasPrefix(auth, "Bearer ") {
			log.Warn("MCP request invalid Authorization format", "remote_addr", r.RemoteAddr)
			http.Error(w, "Unauthorized: Invalid Authorization format", http.StatusUnauthorized)
			return
		}
		token := strings.TrimPrefix(auth, "Bearer ")
		if bcrypt.CompareHashAndPassword([]byte(s.cfg.BearerToken), []byte(token)) != nil {
			log.Warn("MCP request invalid token", "remote_addr", r.RemoteAddr)
			http.Error(w, "Unauthorized: Invalid token", http.StatusUnauthorized)
			return
		}
	}

	s.mcpServer.HandleRequest(w, r)
}

// Operation tool handlers

func (s *Server) handleProvision(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	device, err := req.String("device")
	if err != nil {
		return nil, mcp.NewToolErrorInvalidParams("device is required: " + err.Error())
	}

	params := &provision.Params{
		Port: script.PortRef{
			Device: device,
			Port:   req.StringOr("port", ""),
		},
		Provider:  req.StringOr("provider", ""),
		CircuitID: req.StringOr("circuit_id", ""),
		IPv4:      req.StringOr("ipv4", ""),
		IPv6:      req.StringOr("ipv6", ""),
	}
	params.Members, _ = req.StringSlice("members")

	if v := req.StringOr("vlan_id", ""); v != "" {
		vid, err := strconv.Atoi(v)
		if err != nil {
			return nil, mcp.NewToolErrorInvalidParams("vlan_id must be an integer")
		}
		params.VLANID = vid
	}
	params.Autogen = boolParam(req, "autogen")

	return s.runOperation(boolParam(req, "commit"), func(tx *storage.Tx) (script.Output, error) {
		return provision.AddPNI(tx, params)
	})
}

func (s *Server) handleRenumberGenerate(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	blockV4, err := req.String("block_v4")
	if err != nil {
		return nil, mcp.NewToolErrorInvalidParams("block_v4 is required: " + err.Error())
	}
	blockV6, err := req.String("block_v6")
	if err != nil {
		return nil, mcp.NewToolErrorInvalidParams("block_v6 is required: " + err.Error())
	}

	params := &renumber.Params{
		BlockV4: blockRef(blockV4),
		BlockV6: blockRef(blockV6),
	}

	return s.runOperation(boolParam(req, "commit"), func(tx *storage.Tx) (script.Output, error) {
		return renumber.Generate(tx, params)
	})
}

func (s *Server) handleRenumberPrune(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	return s.runOperation(boolParam(req, "commit"), renumber.Prune)
}

func (s *Server) handleRegularizeDescriptions(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	return s.runOperation(boolParam(req, "commit"), regularize.Descriptions)
}

func (s *Server) handleRegularizePTRs(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	domain := req.StringOr("domain", s.cfg.PTRDomain)

	return s.runOperation(boolParam(req, "commit"), func(tx *storage.Tx) (script.Output, error) {
		return regularize.PTRs(tx, domain)
	})
}

// runOperation executes an operation through the transaction runner
// and renders its result as YAML text
func (s *Server) runOperation(commit bool, op script.Op) (*mcp.ToolResponse, error) {
	result, err := script.Run(s.store, commit, op)
	if err != nil {
		log.Error("MCP operation failed", "error", err)
		return nil, mcp.NewToolErrorInternal("operation failed: " + err.Error())
	}

	text, err := result.YAML()
	if err != nil {
		return nil, mcp.NewToolErrorInternal("rendering result: " + err.Error())
	}
	return mcp.NewToolResponseText(text), nil
}

// Inventory tool handlers

func (s *Server) handleDeviceList(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	tx, err := s.store.Begin()
	if err != nil {
		return nil, mcp.NewToolErrorInternal(err.Error())
	}
	defer tx.Rollback()

	devices, err := tx.ListDevices()
	if err != nil {
		return nil, mcp.NewToolErrorInternal("failed to list devices: " + err.Error())
	}

	if len(devices) == 0 {
		return mcp.NewToolResponseText("No devices found"), nil
	}

	var result strings.Builder
	result.WriteString(fmt.Sprintf("Found %d devices:\n\n", len(devices)))
	for _, device := range devices {
		result.WriteString(fmt.Sprintf("- %s (ID: %s)\n", device.Name, device.ID))
	}

	return mcp.NewToolResponseText(result.String()), nil
}

func (s *Server) handleDevicePorts(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	name, err := req.String("device")
	if err != nil {
		return nil, mcp.NewToolErrorInvalidParams("device is required: " + err.Error())
	}

	tx, err := s.store.Begin()
	if err != nil {
		return nil, mcp.NewToolErrorInternal(err.Error())
	}
	defer tx.Rollback()

	device, err := tx.GetDeviceByName(name)
	if err != nil {
		return nil, mcp.NewToolErrorInternal("device not found: " + name)
	}

	ports, err := tx.ListPorts(&model.PortFilter{DeviceID: device.ID})
	if err != nil {
		return nil, mcp.NewToolErrorInternal("failed to list ports: " + err.Error())
	}

	if len(ports) == 0 {
		return mcp.NewToolResponseText(fmt.Sprintf("No ports found on device: %s", name)), nil
	}

	var result strings.Builder
	result.WriteString(fmt.Sprintf("Ports on %s:\n\n", device.Name))
	for i := range ports {
		port := &ports[i]
		result.WriteString(fmt.Sprintf("- %s (%s)", port.Name, port.Kind))
		if len(port.Tags) > 0 {
			result.WriteString(fmt.Sprintf(" tags: %s", strings.Join(port.Tags, ", ")))
		}

		addrs, err := tx.ListAddresses(&storage.AddressFilter{PortID: port.ID})
		if err != nil {
			return nil, mcp.NewToolErrorInternal("failed to list addresses: " + err.Error())
		}
		for j := range addrs {
			result.WriteString(fmt.Sprintf("\n    %s", addrs[j].Address))
		}
		if port.Description != "" {
			result.WriteString(fmt.Sprintf("\n    %s", port.Description))
		}
		result.WriteString("\n")
	}

	return mcp.NewToolResponseText(result.String()), nil
}

// Utility functions

// boolParam reads a string tool parameter as a boolean, defaulting to
// false on absence or garbage
func boolParam(req *mcp.ToolRequest, name string) bool {
	v, err := strconv.ParseBool(req.StringOr(name, "false"))
	if err != nil {
		return false
	}
	return v
}

// blockRef builds a block reference from a CIDR or id string
func blockRef(v string) renumber.BlockRef {
	if strings.Contains(v, "/") {
		return renumber.BlockRef{CIDR: v}
	}
	return renumber.BlockRef{ID: v}
}

// GetHTTPHandler returns the HTTP handler for the MCP server
func (s *Server) GetHTTPHandler() http.HandlerFunc {
	return s.HandleRequest
}

// LogStartup logs MCP server startup information
func (s *Server) LogStartup() {
	log.Info("MCP Server initialized", "version", "1.0.0")
	if s.cfg.BearerToken != "" {
		log.Info("MCP authentication enabled", "type", "Bearer token")
	} else {
		log.Info("MCP authentication disabled")
	}
	tools := s.mcpServer.ListTools()
	log.Info("MCP tools registered", "count", len(tools))
	for _, tool := range tools {
		log.Debug("MCP tool registered", "name", tool.Name, "description", tool.Description)
	}
}
