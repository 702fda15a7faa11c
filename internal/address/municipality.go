package address

import "strings"

// MunicipalityColumn holds the derived municipality identifier (AGS) in the registry table.
const MunicipalityColumn = "agsField"

// MunicipalityID joins the Land, Regierungsbezirk and Kreis parts with the
// zero-padded Gemeinde part, e.g. ("05", "3", "15", "0") -> "05315000".
func MunicipalityID(land, district, county, community string) string {
	return strings.TrimSpace(land) + strings.TrimSpace(district) + strings.TrimSpace(county) + PadCommunity(community)
}

// PadCommunity left-pads a community number with zeros to three digits.
// Values of three or more characters are returned unchanged.
func PadCommunity(s string) string {
	s = strings.TrimSpace(s)
	switch len(s) {
	case 1:
		return "00" + s
	case 2:
		return "0" + s
	default:
		return s
	}
}
