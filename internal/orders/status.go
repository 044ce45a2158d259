package orders

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusShipped   Status = "shipped"
	StatusCancelled Status = "cancelled"
)

// Shipping from pending is legal: a shipped order is implicitly confirmed.
// shipped and cancelled are terminal.
var validNext = map[Status]map[Status]bool{
	StatusPending:   {StatusConfirmed: true, StatusShipped: true, StatusCancelled: true},
	StatusConfirmed: {StatusShipped: true, StatusCancelled: true},
	StatusShipped:   {},
	StatusCancelled: {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// shippableFrom lists the states MarkShipped may move out of.
func shippableFrom() []string {
	return []string{string(StatusPending), string(StatusConfirmed)}
}
