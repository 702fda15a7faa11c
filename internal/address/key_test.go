package address

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/gebref-geocoder/internal/apperr"
	"github.com/sells-group/gebref-geocoder/internal/table"
)

func TestBuildKey(t *testing.T) {
	tests := []struct {
		name                     string
		street, hnr, suffix, ags string
		want                     string
	}{
		{"example", "Hauptstraße", "5", "a", "05315000", "hauptstr5a_05315000"},
		{"abbreviation with dot", "Hauptstr.", "5", "a", "05315000", "hauptstr5a_05315000"},
		{"spelled out", "Hauptstrasse", "5", "A", "05315000", "hauptstr5a_05315000"},
		{"typo without a", "Hauptstrße", "5", "a", "05315000", "hauptstr5a_05315000"},
		{"umlauts", "Königsallee", "12", "", "05111000", "koenigsallee12_05111000"},
		{"upper umlauts", "ÜBERWEG", "1", "", "05111000", "ueberweg1_05111000"},
		{"spaces and hyphens", "Konrad-Adenauer Platz", "1", "", "05315000", "konradadenauerplatz1_05315000"},
		{"null tokens", "Ring", "3", "NULL", "05315000", "ring3_05315000"},
		{"nan tokens", "Ring", "3", "nan", "05315000", "ring3_05315000"},
		{"periods removed", "St. Apern-Str.", "7", "", "05315000", "stapernstr7_05315000"},
		{"empty parts", "", "", "", "", "_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildKey(tt.street, tt.hnr, tt.suffix, tt.ags))
		})
	}
}

func TestBuildKey_Deterministic(t *testing.T) {
	a := BuildKey("Am Weiher", "10", "b", "05334002")
	for range 10 {
		assert.Equal(t, a, BuildKey("Am Weiher", "10", "b", "05334002"))
	}
}

func TestBuildKey_CaseAndDiacriticInsensitive(t *testing.T) {
	assert.Equal(t,
		BuildKey("Straße", "5", "", "05315000"),
		BuildKey("strasse", "5", "", "05315000"),
	)
	assert.Equal(t,
		BuildKey("Mühlenweg", "1", "", "05315000"),
		BuildKey("MUEHLENWEG", "1", "", "05315000"),
	)
}

func TestBuildKey_DecomposedUmlaut(t *testing.T) {
	// "u" followed by COMBINING DIAERESIS must behave like the precomposed "ü".
	assert.Equal(t,
		BuildKey("Mu\u0308hlenweg", "1", "", "05315000"),
		BuildKey("Mühlenweg", "1", "", "05315000"),
	)
}

func TestBuildKey_MunicipalityDisambiguates(t *testing.T) {
	assert.NotEqual(t,
		BuildKey("Hauptstraße", "5", "", "05315000"),
		BuildKey("Hauptstraße", "5", "", "05111000"),
	)
}

func TestAddKeyColumn(t *testing.T) {
	tbl := table.New("strasse", "hnr", "zusatz", "ags")
	require.NoError(t, tbl.Append([]string{"Hauptstraße", "5", "a", "05315000"}))
	require.NoError(t, tbl.Append([]string{"Ringstr.", "12", "", "05315000"}))

	b := Binding{Street: "strasse", HouseNumber: "hnr", Suffix: "zusatz", Municipality: "ags"}
	require.NoError(t, AddKeyColumn(tbl, b))

	assert.Equal(t, KeyColumn, tbl.Columns[len(tbl.Columns)-1])
	assert.Equal(t, "hauptstr5a_05315000", tbl.Value(0, KeyColumn))
	assert.Equal(t, "ringstr12_05315000", tbl.Value(1, KeyColumn))
}

func TestAddKeyColumn_MissingColumn(t *testing.T) {
	tbl := table.New("strasse", "hnr", "ags")
	require.NoError(t, tbl.Append([]string{"Hauptstraße", "5", "05315000"}))

	b := Binding{Street: "strasse", HouseNumber: "hnr", Suffix: "zusatz", Municipality: "ags"}
	err := AddKeyColumn(tbl, b)
	require.Error(t, err)
	assert.True(t, apperr.IsMissingInput(err))
	assert.Contains(t, err.Error(), "zusatz")
	assert.False(t, tbl.Has(KeyColumn))
}

func TestAddKeyColumn_SameFunctionForBothTables(t *testing.T) {
	user := table.New("s", "n", "z", "g")
	require.NoError(t, user.Append([]string{"Hauptstraße", "5", "a", "05315000"}))
	require.NoError(t, AddKeyColumn(user, Binding{"s", "n", "z", "g"}))

	reg := table.New(append(table.PositionalColumns(14), MunicipalityColumn)...)
	row := make([]string, 15)
	row[13], row[9], row[10], row[14] = "Hauptstr.", "5", "a", "05315000"
	require.NoError(t, reg.Append(row))
	require.NoError(t, AddKeyColumn(reg, RegistryBinding))

	assert.Equal(t, user.Value(0, KeyColumn), reg.Value(0, KeyColumn))
}
