package appmessage

// EventType names an inbound event emitted by a message channel.
type EventType string

const (
	// EventReady is emitted once the channel to the device is established.
	EventReady EventType = "ready"
	// EventAppMessage is emitted for every structured record received from the device.
	EventAppMessage EventType = "appmessage"
)

// Event is a single inbound notification from the device side.
type Event struct {
	Type    EventType  // Type of the event.
	Payload Dictionary // Payload carried by an appmessage event, nil for ready.
	Session string     // Session identifies the channel connection that produced the event.
}
