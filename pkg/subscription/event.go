package subscription

//go:generate mockgen -destination=event_handler_mock_test.go -package=subscription . EventHandler

// EventType can be used to define subscription events decoupled from any protocols.
type EventType int

const (
	EventTypeOnError EventType = iota
	EventTypeOnSubscriptionData
	EventTypeOnSubscriptionCompleted
	EventTypeOnNonSubscriptionExecutionResult
	EventTypeOnConnectionTerminatedByClient
	EventTypeOnConnectionTerminatedByServer
	EventTypeOnConnectionError
	EventTypeOnConnectionOpened
	EventTypeOnDuplicatedSubscriberID
)

// EventHandler is an interface that handles subscription events.
type EventHandler interface {
	Emit(eventType EventType, id string, data []byte, err error)
}
