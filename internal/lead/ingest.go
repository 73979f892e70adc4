package lead

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

var (
	// ErrEmptySheet means the decoded sheet produced no rows at all.
	ErrEmptySheet = errors.New("lead: sheet is empty")
	// ErrNoValidLeads means every row was filtered out for lacking an address.
	ErrNoValidLeads = errors.New("lead: no rows with an address")
	// ErrDecode wraps failures of the spreadsheet decode collaborator.
	ErrDecode = errors.New("lead: file could not be decoded")
)

var userMessages = []struct {
	err error
	msg string
}{
	{ErrEmptySheet, "The uploaded Excel file is empty"},
	{ErrNoValidLeads, "No valid properties found. Check headers (e.g., 'Address')"},
	{ErrDecode, "File data could not be read"},
}

// Ingest converts decoded spreadsheet rows into leads.
//
// Row ids are 1-based positions in rows. Rows without a resolvable address are dropped.
// It fails as a whole, never with a partial list, when rows is empty or nothing survives.
func Ingest(rows []RawRow) ([]Lead, error) {
	if len(rows) == 0 {
		return nil, ErrEmptySheet
	}

	out := make([]Lead, 0, len(rows))
	for i, row := range rows {
		if row == nil {
			continue
		}
		l := FromRow(i+1, row)
		if l.Address == MissingAddress {
			continue
		}
		out = append(out, l)
	}
	if len(out) == 0 {
		return nil, ErrNoValidLeads
	}
	return out, nil
}

// FromRow builds the lead for the row at 1-based position pos. The address falls back to
// MissingAddress and the contact name to "Unnamed Contact <pos>".
func FromRow(pos int, row RawRow) Lead {
	get := func(variants []string) string {
		v, _ := Resolve(row, variants)
		return v
	}

	contactName, ok := Resolve(row, ContactNameHeaders)
	if !ok {
		contactName = "Unnamed Contact " + strconv.Itoa(pos)
	}
	address, ok := Resolve(row, AddressHeaders)
	if !ok {
		address = MissingAddress
	}

	return Lead{
		ID:             strconv.Itoa(pos),
		ContactName:    contactName,
		Address:        address,
		City:           get(CityHeaders),
		State:          get(StateHeaders),
		ZipCode:        get(ZipCodeHeaders),
		CompanyAddress: get(CompanyAddressHeaders),
		PropertySize:   get(PropertySizeHeaders),
		LastSale:       get(LastSaleHeaders),
	}
}

// DecodeError marks err as a failure of the decode collaborator.
func DecodeError(err error) error {
	if err == nil {
		return nil
	}
	return eris.Wrap(errors.Join(ErrDecode, err), "lead: decode spreadsheet")
}

// ParseError renders the single user-visible message for a failed ingestion.
func ParseError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.TrimRight(err.Error(), ".")
	for _, um := range userMessages {
		if errors.Is(err, um.err) {
			msg = um.msg
			break
		}
	}
	return fmt.Sprintf("Parse failed: %s.", msg)
}
