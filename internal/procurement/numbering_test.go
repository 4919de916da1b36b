package procurement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFiscalYear(t *testing.T) {
	cases := []struct {
		date time.Time
		want string
	}{
		{time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC), "25-26"},
		{time.Date(2025, time.June, 15, 0, 0, 0, 0, time.UTC), "25-26"},
		{time.Date(2026, time.March, 31, 23, 59, 0, 0, time.UTC), "25-26"},
		{time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC), "26-27"},
		{time.Date(2025, time.January, 10, 0, 0, 0, 0, time.UTC), "24-25"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, FiscalYear(tc.date), "date %s", tc.date)
	}
}

func TestFormatPONumber(t *testing.T) {
	require.Equal(t, "PO/25-26/RM/0001", FormatPONumber("25-26", POTypeRawMaterial, 1))
	require.Equal(t, "PO/25-26/FG/0042", FormatPONumber("25-26", POTypeFinishedGoods, 42))
	require.Equal(t, "PO/25-26/PM/12345", FormatPONumber("25-26", POTypePackingMaterial, 12345), "sequences past 9999 widen, they never wrap")
}
