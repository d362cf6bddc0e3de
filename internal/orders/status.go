package orders

import (
	"fmt"
	"strings"
)

// Status is the lifecycle state of an order.
type Status string

const (
	StatusCreated         Status = "Created"
	StatusPaymentReserved Status = "PaymentReserved"
	StatusCompleted       Status = "Completed"
	StatusFailed          Status = "Failed"
	StatusCancelled       Status = "Cancelled"
)

var transitions = map[Status]map[Status]bool{
	StatusCreated: {
		StatusPaymentReserved: true,
		StatusFailed:          true,
		StatusCancelled:       true,
	},
	StatusPaymentReserved: {
		StatusCompleted: true,
		StatusFailed:    true,
		StatusCancelled: true,
	},
	StatusCompleted: {},
	StatusFailed:    {},
	StatusCancelled: {},
}

// CanTransitionTo reports whether the transition table allows moving to target.
func (s Status) CanTransitionTo(target Status) bool {
	return transitions[s][target]
}

// IsTerminal reports whether no transition leaves s.
func (s Status) IsTerminal() bool {
	next, ok := transitions[s]
	return ok && len(next) == 0
}

func (s Status) String() string {
	return string(s)
}

// ParseStatus maps a stored status name onto a Status, ignoring case.
func ParseStatus(raw string) (Status, error) {
	for status := range transitions {
		if strings.EqualFold(string(status), strings.TrimSpace(raw)) {
			return status, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", raw)
}
