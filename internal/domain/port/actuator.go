package port

import "blister-inspector/internal/domain/entity"

// Actuator is the outbound command channel to the line hardware
type Actuator interface {
	// SetCommand replaces the pending command. It never blocks.
	SetCommand(cmd entity.Command)
}
