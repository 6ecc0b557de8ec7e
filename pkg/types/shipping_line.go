package types

import (
	"database/sql/driver"
	"encoding/json"
)

// ShippingLine stores the carrier quote a shopper selected at checkout.
type ShippingLine struct {
	Carrier       string `json:"carrier"`
	Service       string `json:"service"`
	Code          string `json:"code"`
	PriceCents    int64  `json:"price_cents"`
	EstimatedDays int    `json:"estimated_days,omitempty"`
}

// Value serializes the shipping line to JSON.
func (s *ShippingLine) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	return json.Marshal(s)
}

// Scan decodes JSONB into the shipping line struct.
func (s *ShippingLine) Scan(value interface{}) error {
	if value == nil {
		*s = ShippingLine{}
		return nil
	}
	raw, err := asJSON(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, s)
}

// JSONMap stores an arbitrary JSON object inside a JSONB column.
type JSONMap map[string]any

// Value serializes the map to JSON.
func (j *JSONMap) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan decodes JSONB into the map.
func (j *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	raw, err := asJSON(value)
	if err != nil {
		return err
	}
	var decoded JSONMap
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return err
	}
	*j = decoded
	return nil
}
