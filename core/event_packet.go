package core

import "github.com/google/uuid"

type EventRelayDestination int

const (
	EventRelayDestinationNextService EventRelayDestination = iota + 1 // Pass to the next handler in the pipeline.
	EventRelayDestinationTopService                                   // Echo back to the head of the pipeline.
)

type EventPacket struct {
	Event       IEvent
	Destination EventRelayDestination
	Uid         string // Unique identifier for tracking the event packet.
	Relayer     string // Identifier of the handler that relayed the event.
}

func NewEventPacket(event IEvent, destination EventRelayDestination, relayer string) *EventPacket {
	return &EventPacket{
		Event:       event,
		Destination: destination,
		Uid:         uuid.New().String(),
		Relayer:     relayer,
	}
}
