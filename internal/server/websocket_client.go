package server

import (
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/lawnchairsociety/combatroller/internal/command"
	"github.com/lawnchairsociety/combatroller/internal/display"
)

// Envelope is the JSON message sent to browser clients for every response.
type Envelope struct {
	Kind  command.Kind   `json:"kind"`
	Text  string         `json:"text"`
	Icons []display.Icon `json:"icons"`
	SVG   string         `json:"svg,omitempty"`
}

// NewEnvelope converts a command response, rendering its icons as SVG.
func NewEnvelope(resp command.Response) Envelope {
	env := Envelope{
		Kind:  resp.Kind,
		Text:  resp.Text,
		Icons: resp.Icons,
	}
	if env.Icons == nil {
		env.Icons = []display.Icon{}
	}
	if len(resp.Icons) > 0 {
		env.SVG = display.SVG(resp.Icons)
	}
	return env
}

// WebSocketClient wraps a WebSocket connection for browser-based communication.
type WebSocketClient struct {
	conn    *websocket.Conn
	readBuf []string   // Buffer for lines when a message contains multiple lines
	mu      sync.Mutex // Protects readBuf
	writeMu sync.Mutex // gorilla/websocket allows one concurrent writer
}

// NewWebSocketClient creates a new WebSocketClient from a WebSocket connection.
func NewWebSocketClient(conn *websocket.Conn) *WebSocketClient {
	return &WebSocketClient{
		conn:    conn,
		readBuf: make([]string, 0),
	}
}

// ReadLine reads a line from the WebSocket connection (blocking).
// If a message contains multiple lines, they are buffered and returned one at a time.
// Blank messages are skipped.
func (c *WebSocketClient) ReadLine() (string, error) {
	for {
		c.mu.Lock()
		if len(c.readBuf) > 0 {
			line := c.readBuf[0]
			c.readBuf = c.readBuf[1:]
			c.mu.Unlock()
			return line, nil
		}
		c.mu.Unlock()

		_, message, err := c.conn.ReadMessage()
		if err != nil {
			return "", err
		}

		lines := make([]string, 0, 1)
		for _, line := range strings.Split(string(message), "\n") {
			if trimmed := strings.TrimSpace(line); trimmed != "" {
				lines = append(lines, trimmed)
			}
		}
		if len(lines) == 0 {
			continue
		}

		c.mu.Lock()
		c.readBuf = append(c.readBuf, lines[1:]...)
		c.mu.Unlock()

		return lines[0], nil
	}
}

// WriteResponse sends the response as a JSON envelope.
func (c *WebSocketClient) WriteResponse(resp command.Response) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(NewEnvelope(resp))
}

// Close closes the WebSocket connection.
func (c *WebSocketClient) Close() error {
	return c.conn.Close()
}

// RemoteAddr returns the remote address as a string.
func (c *WebSocketClient) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
