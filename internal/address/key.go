// Package address builds the normalized join key that matches user
// addresses against the official house coordinate registry.
package address

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/gebref-geocoder/internal/table"
)

// KeyColumn is the name of the column that holds the address key.
const KeyColumn = "addressID"

// keyReplacements is applied in order after lowercasing. Order matters: the
// umlaut rules run before the street abbreviation rules, so "straße" has
// already become "strasse" by the time the abbreviations are folded.
var keyReplacements = []struct{ old, new string }{
	{"null", ""},
	{"nan", ""},
	{" ", ""},
	{"-", ""},
	{"ß", "ss"},
	{"ü", "ue"},
	{"ö", "oe"},
	{"ä", "ae"},
	{"str.", "str"},
	{"strße", "str"},
	{"strasse", "str"},
	{"straße", "str"},
	{"strsse", "str"},
	{".", ""},
}

// BuildKey returns the address key for one address:
// lower(street + houseNumber + suffix + "_" + municipality) followed by the
// fixed replacement sequence. Equal keys mean "same address" under common
// spelling variation; the mapping is a heuristic, not a bijection.
func BuildKey(street, houseNumber, suffix, municipality string) string {
	var b strings.Builder
	b.Grow(len(street) + len(houseNumber) + len(suffix) + len(municipality) + 1)
	b.WriteString(street)
	b.WriteString(houseNumber)
	b.WriteString(suffix)
	b.WriteByte('_')
	b.WriteString(municipality)

	key := strings.ToLower(norm.NFC.String(b.String()))
	for _, r := range keyReplacements {
		key = strings.ReplaceAll(key, r.old, r.new)
	}
	return key
}

// Binding names the four columns a key is built from.
type Binding struct {
	Street       string
	HouseNumber  string
	Suffix       string
	Municipality string
}

// RegistryBinding is the fixed binding for the official registry table.
var RegistryBinding = Binding{
	Street:       "13",
	HouseNumber:  "9",
	Suffix:       "10",
	Municipality: MunicipalityColumn,
}

// Columns returns the bound column names in street, number, suffix, municipality order.
func (b Binding) Columns() []string {
	return []string{b.Street, b.HouseNumber, b.Suffix, b.Municipality}
}

// AddKeyColumn computes the address key for every row of t and stores it in
// KeyColumn. A bound column that does not exist yields a MissingInputError
// and leaves t unchanged.
func AddKeyColumn(t *table.Table, b Binding) error {
	idx := make([]int, 0, 4)
	for _, name := range b.Columns() {
		i, err := t.Col(name)
		if err != nil {
			return err
		}
		idx = append(idx, i)
	}

	t.SetColumn(KeyColumn, func(row []string) string {
		return BuildKey(row[idx[0]], row[idx[1]], row[idx[2]], row[idx[3]])
	})
	return nil
}
