package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// Address is the shipping/billing address stored as JSONB on orders and
// customers. No geocoding; carrier quoting only needs the postal fields.
type Address struct {
	Name       string  `json:"name"`
	Line1      string  `json:"line1"`
	Line2      *string `json:"line2,omitempty"`
	City       string  `json:"city"`
	Region     string  `json:"region"`
	PostalCode string  `json:"postal_code"`
	Country    string  `json:"country"`
	Phone      *string `json:"phone,omitempty"`
}

// Validate reports the first missing required field.
func (a Address) Validate() error {
	switch {
	case strings.TrimSpace(a.Line1) == "":
		return fmt.Errorf("address: missing line1")
	case strings.TrimSpace(a.City) == "":
		return fmt.Errorf("address: missing city")
	case strings.TrimSpace(a.PostalCode) == "":
		return fmt.Errorf("address: missing postal_code")
	}
	return nil
}

// Value serializes the address to JSON.
func (a *Address) Value() (driver.Value, error) {
	if a == nil {
		return nil, nil
	}
	normalized := *a
	if strings.TrimSpace(normalized.Country) == "" {
		normalized.Country = "US"
	}
	return json.Marshal(normalized)
}

// Scan decodes JSONB into the address struct.
func (a *Address) Scan(value interface{}) error {
	if value == nil {
		*a = Address{}
		return nil
	}
	raw, err := asJSON(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, a)
}
