package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const voltMargOutput = "GetVoltMarg\r\n" +
	"| Rail       | Nominal | Actual | Scope      |\r\n" +
	"|------------|---------|--------|------------|\r\n" +
	"| VDD_CORE   | 0.900   | 0.903  | BOARD      |\r\n" +
	"| VDD_3V3    | 3.300   | NA     | Main Board |\r\n" +
	"| VDD_1V8    | 1.800   | 1.797  | BOARD      |\r\n" +
	"| FRU1_12V   | 12.000  | 11.95  | FRU 1      |\r\n" +
	"| FRU2_12V   | 12.000  | 12.02  | FRU 2      |\r\n" +
	"Diag> "

func TestParseVoltagesBoardScope(t *testing.T) {
	set := ParseVoltages(voltMargOutput, 0)
	require.Len(t, set, 3)

	v, ok := set["VDD_CORE"].Float()
	require.True(t, ok)
	assert.InDelta(t, 0.903, v, 1e-9)

	na := set["VDD_3V3"]
	assert.False(t, na.Numeric, "NA не приводится к числу")
	assert.Equal(t, "NA", na.Raw)
}

func TestParseVoltagesFRUScope(t *testing.T) {
	set := ParseVoltages(voltMargOutput, 1)
	assert.Len(t, set, 2)
	assert.Contains(t, set, "FRU1_12V")
	assert.Contains(t, set, "FRU2_12V")
}

func TestParseVoltagesWildcardScope(t *testing.T) {
	assert.Len(t, ParseVoltages(voltMargOutput, -1), 5)
}

func TestParseVoltagesEmpty(t *testing.T) {
	assert.Empty(t, ParseVoltages("% Unknown command: GetVoltMarg\r\nDiag> ", 0))
}

func TestParseVoltagesNaNIsNotNumeric(t *testing.T) {
	out := "| Rail     | Nominal | Actual | Scope |\r\n" +
		"| VDD_CORE | 0.900   | NaN    | BOARD |\r\n" +
		"| VDD_1V8  | 1.800   | -Inf   | BOARD |\r\n" +
		"| VDD_3V3  | 3.300   | 3.301  | BOARD |\r\n"

	set := ParseVoltages(out, 0)
	require.Len(t, set, 3)
	assert.False(t, set["VDD_CORE"].Numeric, "NaN - отсутствующее значение, а не число")
	assert.False(t, set["VDD_1V8"].Numeric)
	assert.True(t, set["VDD_3V3"].Numeric)
}
