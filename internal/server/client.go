package server

import "github.com/lawnchairsociety/combatroller/internal/command"

// Client abstracts the connection layer for both telnet and WebSocket connections.
type Client interface {
	// ReadLine blocks until a complete line is received (without newline).
	ReadLine() (string, error)

	// WriteResponse renders a command response in the transport's format:
	// plain text lines for telnet, a JSON envelope for WebSocket.
	WriteResponse(resp command.Response) error

	// Close closes the connection.
	Close() error

	// RemoteAddr returns the client's address for logging.
	RemoteAddr() string
}
