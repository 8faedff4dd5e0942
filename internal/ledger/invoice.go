package ledger

import (
	"fmt"
	"time"
)

// invoicePrefixes maps entry types to their invoice number prefix. Types
// without a dedicated prefix fall back to MIS.
var invoicePrefixes = map[EntryType]string{
	TypeRent:        "INV",
	TypeRenewalRent: "RNW",
	TypeAdjustment:  "ADJ",
}

const miscInvoicePrefix = "MIS"

// InvoicePrefix returns the numbering prefix for the entry type.
func InvoicePrefix(t EntryType) string {
	if prefix, ok := invoicePrefixes[t]; ok {
		return prefix
	}
	return miscInvoicePrefix
}

// FormatInvoiceNumber builds "<PREFIX>-<YYYYMMDD>-<bookingID>-<sequence>" with
// the sequence zero-padded to three digits. Numbers are globally unique via a
// unique index; collisions are resolved by the caller's retry loop.
func FormatInvoiceNumber(t EntryType, bookingID int64, sequence int, at time.Time) string {
	return fmt.Sprintf("%s-%s-%d-%03d", InvoicePrefix(t), at.Format("20060102"), bookingID, sequence)
}
