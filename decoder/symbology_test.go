package decoder

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aluiziolira/go-barcode-lookup/models"
)

func TestParseSymbol(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		payload   string
		symbology models.Symbology
	}{
		{name: "aim ean13", raw: "]E04006381333931", payload: "4006381333931", symbology: models.SymbologyEAN13},
		{name: "aim upca", raw: "]E0012345678905", payload: "012345678905", symbology: models.SymbologyUPCA},
		{name: "aim ean8", raw: "]E496385074", payload: "96385074", symbology: models.SymbologyEAN8},
		{name: "aim code128", raw: "]C0ABC-123", payload: "ABC-123", symbology: models.SymbologyCode128},
		{name: "aim qr", raw: "]Q1https://example.com/p?id=1", payload: "https://example.com/p?id=1", symbology: models.SymbologyQR},
		{name: "aim other", raw: "]d2010123", payload: "010123", symbology: models.SymbologyUnknown},
		{name: "inferred ean13", raw: "4006381333931\r\n", payload: "4006381333931", symbology: models.SymbologyEAN13},
		{name: "inferred upca", raw: "012345678905", payload: "012345678905", symbology: models.SymbologyUPCA},
		{name: "inferred ean8", raw: "96385074", payload: "96385074", symbology: models.SymbologyEAN8},
		{name: "free text", raw: "hello world", payload: "hello world", symbology: models.SymbologyUnknown},
		{name: "odd length digits", raw: "12345", payload: "12345", symbology: models.SymbologyUnknown},
		{name: "blank", raw: " \t", payload: "", symbology: models.SymbologyUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, symbology := ParseSymbol(tt.raw)
			require.Equal(t, tt.payload, payload)
			require.Equal(t, tt.symbology, symbology)
		})
	}
}

func TestParseSymbologies(t *testing.T) {
	got, err := ParseSymbologies([]string{" EAN13", "qr", "", "code128"})
	require.NoError(t, err)
	require.Equal(t, []models.Symbology{models.SymbologyEAN13, models.SymbologyQR, models.SymbologyCode128}, got)

	_, err = ParseSymbologies([]string{"ean13", "pdf417"})
	var unknown *UnknownSymbologyError
	require.ErrorAs(t, err, &unknown)
	require.Equal(t, "pdf417", unknown.Name)
	require.Contains(t, err.Error(), `"pdf417"`)
}
