package outbox

// Event is the domain event envelope written to the outbox table within the
// same transaction as the mutation it describes. The Kafka topic name equals
// EventType.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// Topics this service produces.
const (
	EventAppointmentMoved   = "shop.appointment.moved.v1"
	EventAppointmentPatched = "shop.appointment.patched.v1"
)
