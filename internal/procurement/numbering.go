package procurement

import (
	"fmt"
	"time"
)

// FiscalYear returns the April-to-March fiscal year label for t, e.g. a date
// in June 2025 yields "25-26" and a date in February 2026 also yields "25-26".
func FiscalYear(t time.Time) string {
	year := t.Year()
	if t.Month() < time.April {
		year--
	}
	return fmt.Sprintf("%02d-%02d", year%100, (year+1)%100)
}

// FormatPONumber renders PO/{fiscal year}/{type}/{sequence}, zero padded to
// four digits. The sequence counter is per fiscal year and type, so numbers
// restart at 0001 every April.
func FormatPONumber(fiscalYear string, poType POType, seq int64) string {
	return fmt.Sprintf("PO/%s/%s/%04d", fiscalYear, poType, seq)
}
