package common

// --------------------------------------------------------------------------
// Connection State
// --------------------------------------------------------------------------

// ConnectionState is the lifecycle state of one connection. Publisher sessions only
// use Connected and Disconnected, the consumer client walks the full state machine:
//
//	Idle -> Connecting -> Connected -> (Connected | Reconnecting) -> Closed
type ConnectionState uint32

const (
	StateIdle ConnectionState = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateDisconnected
	StateClosed
)

// String returns the string representation of a ConnectionState.
func (s ConnectionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateDisconnected:
		return "disconnected"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// --------------------------------------------------------------------------
// Server State
// --------------------------------------------------------------------------

// ServerState is the lifecycle state of the publisher endpoint:
//
//	Unbound -> Bound -> Listening -> ShuttingDown -> Unbound
type ServerState uint32

const (
	ServerUnbound ServerState = iota
	ServerBound
	ServerListening
	ServerShuttingDown
)

// String returns the string representation of a ServerState.
func (s ServerState) String() string {
	switch s {
	case ServerUnbound:
		return "unbound"
	case ServerBound:
		return "bound"
	case ServerListening:
		return "listening"
	case ServerShuttingDown:
		return "shutting down"
	default:
		return "unknown"
	}
}
