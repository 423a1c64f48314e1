package models

// BillKind discriminates the billable reference a bill was issued for.
type BillKind string

const (
	BillKindExam        BillKind = "EXAM"
	BillKindCertificate BillKind = "CERTIFICATE"
)

// Valid reports whether the kind is known.
func (k BillKind) Valid() bool {
	return k == BillKindExam || k == BillKindCertificate
}

// NumberPrefix returns the prefix used in bill numbers.
func (k BillKind) NumberPrefix() string {
	if k == BillKindCertificate {
		return "CERT"
	}
	return string(k)
}

// FeeType returns the fee structure type a bill of this kind must be priced with.
func (k BillKind) FeeType() FeeType {
	if k == BillKindCertificate {
		return FeeTypeCertificate
	}
	return FeeTypeExam
}

// BillStatus is derived from paid and total amounts, never set directly.
type BillStatus string

const (
	BillStatusPending       BillStatus = "PENDING"
	BillStatusPartiallyPaid BillStatus = "PARTIALLY_PAID"
	BillStatusCompleted     BillStatus = "COMPLETED"
)

// Valid reports whether the status is known.
func (s BillStatus) Valid() bool {
	switch s {
	case BillStatusPending, BillStatusPartiallyPaid, BillStatusCompleted:
		return true
	}
	return false
}

// Open reports whether a bill in this status still accepts payments.
func (s BillStatus) Open() bool {
	return s == BillStatusPending || s == BillStatusPartiallyPaid
}

// OpenBillStatuses lists every status for which Open is true. Overdue queries
// bind these so SQL and IsOverdue agree on what counts as unsettled.
func OpenBillStatuses() []BillStatus {
	return []BillStatus{BillStatusPending, BillStatusPartiallyPaid}
}

// PaymentMethod enumerates accepted payment channels.
type PaymentMethod string

const (
	PaymentMethodCash          PaymentMethod = "CASH"
	PaymentMethodBankTransfer  PaymentMethod = "BANK_TRANSFER"
	PaymentMethodCard          PaymentMethod = "CARD"
	PaymentMethodMobileMoney   PaymentMethod = "MOBILE_MONEY"
	PaymentMethodOnlineGateway PaymentMethod = "ONLINE_GATEWAY"
)

// PaymentStatus of a recorded payment. Only completed payments are recorded.
type PaymentStatus string

const (
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
)
