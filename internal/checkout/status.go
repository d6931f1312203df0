package checkout

type Status string

const (
	StatusInitiated        Status = "INITIATED"
	StatusPaymentPending   Status = "PAYMENT_PENDING"
	StatusPaymentCompleted Status = "PAYMENT_COMPLETED"
	StatusCompleted        Status = "COMPLETED"
	StatusFailed           Status = "FAILED"
)

var transitions = map[Status][]Status{
	StatusInitiated:        {StatusPaymentPending, StatusFailed},
	StatusPaymentPending:   {StatusPaymentCompleted, StatusFailed},
	StatusPaymentCompleted: {StatusCompleted},
}

func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

func (s Status) String() string {
	return string(s)
}

func CanTransitionTo(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
