// Package labels provides get-or-create access to inventory labels.
// A semantic label carries a key/value pair; the pair is rendered as
// "key=value" only at the store boundary.
package labels

import (
	"errors"
	"strings"

	"github.com/as36198/linkd/internal/model"
	"github.com/as36198/linkd/internal/storage"
)

// Delimiter joins the key and value of a semantic label
const Delimiter = "="

// Well-known label names
const (
	Renumber = "renumber" // port is queued for renumbering
	L2PTP    = "l2ptp"    // layer-2 point-to-point role
	L3PTP    = "l3ptp"    // layer-3 point-to-point role
	NewIP    = "new_ip"   // freshly generated address
	Prune    = "prune"    // address pending removal
)

// AutogenRole marks the blocks and VLANs consumed by autogeneration
const AutogenRole = "pni-autogeneration-role"

// Descriptions for the utility labels created on demand
var descriptions = map[string]string{
	NewIP: "New IP assignment generated by the renumbering engine",
	Prune: "IP assignment pending removal by the renumbering engine",
}

// GetOrCreate looks a label up by exact name and creates it when
// absent. The store's uniqueness constraint serializes creation, so
// duplicate names fail closed inside the enclosing transaction.
func GetOrCreate(tx *storage.Tx, name string) (*model.Label, error) {
	label, err := tx.GetLabelByName(name)
	if err == nil {
		return label, nil
	}
	if !errors.Is(err, storage.ErrLabelNotFound) {
		return nil, err
	}

	return tx.CreateLabel(name, descriptions[name])
}

// GetOrCreateSemantic looks up or creates the label for a key/value pair
func GetOrCreateSemantic(tx *storage.Tx, key, value string) (*model.Label, error) {
	return GetOrCreate(tx, key+Delimiter+value)
}

// ParseSemantic extracts the key/value pairs from a set of label
// names. Names without the delimiter are ordinary labels and ignored.
func ParseSemantic(names []string) map[string]string {
	parsed := make(map[string]string)
	for _, name := range names {
		key, value, found := strings.Cut(name, Delimiter)
		if !found {
			continue
		}
		parsed[key] = value
	}
	return parsed
}

// Has reports whether a label name is present in a tag set
func Has(tags []string, name string) bool {
	for _, t := range tags {
		if t == name {
			return true
		}
	}
	return false
}
