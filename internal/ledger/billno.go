package ledger

import "fmt"

// FormatBillNo renders a bill number as prefix plus a six digit, zero padded
// counter. Counters past 999999 are printed in full.
func FormatBillNo(prefix string, number int64) string {
	return fmt.Sprintf("%s%06d", prefix, number)
}
