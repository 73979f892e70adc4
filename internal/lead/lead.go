// Package lead turns loosely-shaped spreadsheet rows into validated property leads.
package lead

import (
	"fmt"
	"slices"
	"strings"
)

// MissingAddress is the sentinel address for rows that carry no usable address.
// Leads with this address never survive ingestion.
const MissingAddress = "N/A"

// Lead is a property/contact record awaiting enrichment.
type Lead struct {
	ID             string `json:"id"`
	ContactName    string `json:"contactName"`
	Address        string `json:"address"`
	City           string `json:"city,omitempty"`
	State          string `json:"state,omitempty"`
	ZipCode        string `json:"zipCode,omitempty"`
	CompanyAddress string `json:"companyAddress,omitempty"`
	PropertySize   string `json:"propertySize,omitempty"`
	LastSale       string `json:"lastSale,omitempty"`
}

// FullAddress joins address, city, state and zip with ", ", skipping empty parts.
func (l Lead) FullAddress() string {
	return joinNonEmpty(", ", l.Address, l.City, l.State, l.ZipCode)
}

// Query is the free-text subject sent to the AI collaborator.
func (l Lead) Query() string {
	return joinNonEmpty(", ", l.ContactName, l.Address, l.City, l.State, l.ZipCode)
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}

// RawRow is one decoded spreadsheet row keyed by column header.
type RawRow = map[string]any

// Header synonym lists, in priority order.
var (
	ContactNameHeaders    = []string{"Owner - Contact", "Contact Name", "Owner Name", "Contact", "Owner"}
	AddressHeaders        = []string{"Address", "Property Address", "Property Street Address", "Property Full Address"}
	CompanyAddressHeaders = []string{"Company Address", "Company Full Address"}
	PropertySizeHeaders   = []string{"Building Size (SF)", "Property Size (SF)", "Building Size", "Size (SF)"}
	LastSaleHeaders       = []string{"Last Sale", "Last Sale Price (Total) & Date", "Sale Info"}
	CityHeaders           = []string{"City", "Property City"}
	StateHeaders          = []string{"State", "Property State", "State/Province"}
	ZipCodeHeaders        = []string{"Zip Code", "Property Zip Code", "Postal Code", "Property Postal Code"}
)

// Resolve returns the trimmed value of the first header variant present in row with a
// non-empty value. Keys match case-insensitively. ok is false when no variant has a value.
func Resolve(row RawRow, variants []string) (value string, ok bool) {
	if len(row) == 0 {
		return "", false
	}
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, variant := range variants {
		for _, k := range keys {
			if !strings.EqualFold(strings.TrimSpace(k), variant) {
				continue
			}
			if v, ok := cellString(row[k]); ok {
				return v, true
			}
		}
	}
	return "", false
}

func cellString(v any) (string, bool) {
	if v == nil {
		return "", false
	}
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case fmt.Stringer:
		s = t.String()
	default:
		s = fmt.Sprint(t)
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}
