// Package rules holds the versioned heuristics configuration: the header alias
// table used to resolve vendor columns and the keyword set used to flag
// reimbursable rows. Both are data, so they can be extended through a YAML
// file without touching resolver or classifier code.
package rules

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/theduckverse/refundhunter-backend/constants"
)

// Field is a canonical column name.
type Field string

const (
	FieldSKU           Field = "sku"
	FieldQuantity      Field = "quantity"
	FieldUnitCost      Field = "unitCost"
	FieldTransactionID Field = "transactionId"
	FieldDisposition   Field = "disposition"
	FieldEventType     Field = "eventType"
	FieldReason        Field = "reason"
)

// DefaultVersion stamps the built-in table.
const DefaultVersion = "2024-1"

var knownFields = []Field{
	FieldSKU,
	FieldQuantity,
	FieldUnitCost,
	FieldTransactionID,
	FieldDisposition,
	FieldEventType,
	FieldReason,
}

// FieldAliases lists the header substrings that resolve to one canonical field.
type FieldAliases struct {
	Field   Field    `yaml:"field"`
	Aliases []string `yaml:"aliases"`
}

// AliasTable is ordered: fields earlier in the table claim headers first.
type AliasTable []FieldAliases

// Rules is the on-disk configuration artifact.
type Rules struct {
	Version  string     `yaml:"version"`
	Aliases  AliasTable `yaml:"aliases"`
	Keywords []string   `yaml:"keywords"`
}

// DefaultAliases returns the merged alias table observed across vendor exports.
func DefaultAliases() AliasTable {
	return AliasTable{
		{Field: FieldSKU, Aliases: []string{"sku", "seller-sku", "item-sku", "product sku", "asin", "fnsku"}},
		{Field: FieldQuantity, Aliases: []string{"quantity", "qty", "units", "unit count"}},
		{Field: FieldUnitCost, Aliases: []string{"unit cost", "unit-cost", "unit_cost", "unit price", "unit-price", "cost per unit", "cost"}},
		{Field: FieldTransactionID, Aliases: []string{"transaction-item-id", "transaction id", "transaction-id", "transaction_id", "adjustment-id", "adjustment id", "reference id", "order-id", "order id"}},
		{Field: FieldDisposition, Aliases: []string{"disposition"}},
		{Field: FieldEventType, Aliases: []string{"event type", "event-type", "event_type", "transaction type", "transaction-type"}},
		{Field: FieldReason, Aliases: []string{"reason", "description", "note", "comment"}},
	}
}

// Default returns the built-in rules.
func Default() *Rules {
	return &Rules{
		Version:  DefaultVersion,
		Aliases:  DefaultAliases(),
		Keywords: slices.Clone(constants.EligibilityKeywords),
	}
}

// Load reads a YAML rules file. Sections left out of the file keep their defaults.
func Load(path string) (*Rules, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML rules and fills omitted sections from Default. An empty
// document yields the defaults.
func Parse(b []byte) (*Rules, error) {
	var r Rules
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&r); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode rules: %w", err)
	}
	def := Default()
	if strings.TrimSpace(r.Version) == "" {
		r.Version = def.Version
	}
	if len(r.Aliases) == 0 {
		r.Aliases = def.Aliases
	}
	if len(r.Keywords) == 0 {
		r.Keywords = def.Keywords
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

// Validate rejects unknown fields, duplicates and blank aliases.
func (r *Rules) Validate() error {
	seen := make(map[Field]struct{}, len(r.Aliases))
	for _, fa := range r.Aliases {
		if !slices.Contains(knownFields, fa.Field) {
			return fmt.Errorf("rules %s: unknown field %q", r.Version, fa.Field)
		}
		if _, dup := seen[fa.Field]; dup {
			return fmt.Errorf("rules %s: field %q listed twice", r.Version, fa.Field)
		}
		seen[fa.Field] = struct{}{}
		if len(fa.Aliases) == 0 {
			return fmt.Errorf("rules %s: field %q has no aliases", r.Version, fa.Field)
		}
		for _, a := range fa.Aliases {
			if strings.TrimSpace(a) == "" {
				return fmt.Errorf("rules %s: field %q has a blank alias", r.Version, fa.Field)
			}
		}
	}
	for _, k := range r.Keywords {
		if strings.TrimSpace(k) == "" {
			return errors.New("rules: blank keyword")
		}
	}
	return nil
}

// Marshal renders the rules back to YAML, e.g. to seed a custom rules file.
func (r *Rules) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
