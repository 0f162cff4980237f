package fine

// PaymentStatus is the closed set of payment-status labels the listing
// service is known to emit. Anything else is Unknown rather than unpaid.
type PaymentStatus int

const (
	PaymentUnknown PaymentStatus = iota
	PaymentUnpaid
	PaymentPaid
)

var statusLabels = map[string]PaymentStatus{
	"Оплачен":    PaymentPaid,
	"Төленген":   PaymentPaid,
	"Не оплачен": PaymentUnpaid,
	"Төленбеген": PaymentUnpaid,
}

func ParsePaymentStatus(label string) PaymentStatus {
	if s, ok := statusLabels[label]; ok {
		return s
	}
	return PaymentUnknown
}

func (s PaymentStatus) String() string {
	switch s {
	case PaymentPaid:
		return "paid"
	case PaymentUnpaid:
		return "unpaid"
	default:
		return "unknown"
	}
}
