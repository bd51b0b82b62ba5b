package server

import (
	"bufio"
	"net"
	"strings"
	"sync"

	"github.com/lawnchairsociety/combatroller/internal/command"
)

// TelnetClient wraps a raw TCP connection for telnet-style communication.
type TelnetClient struct {
	conn    net.Conn
	scanner *bufio.Scanner
	mu      sync.Mutex // Protects writer
	writer  *bufio.Writer
}

// NewTelnetClient creates a new TelnetClient from a TCP connection. Lines
// longer than maxLine bytes end the session; maxLine <= 0 keeps the
// bufio.Scanner default.
func NewTelnetClient(conn net.Conn, maxLine int) *TelnetClient {
	scanner := bufio.NewScanner(conn)
	if maxLine > 0 {
		// room for the trailing CRLF
		scanner.Buffer(make([]byte, 0, min(maxLine+2, 4096)), maxLine+2)
	}
	return &TelnetClient{
		conn:    conn,
		scanner: scanner,
		writer:  bufio.NewWriter(conn),
	}
}

// ReadLine reads a line from the connection (blocking).
// Returns the line without the trailing CRLF, or bufio.ErrTooLong when the
// line exceeds the configured limit.
func (c *TelnetClient) ReadLine() (string, error) {
	if c.scanner.Scan() {
		return c.scanner.Text(), nil
	}
	if err := c.scanner.Err(); err != nil {
		return "", err
	}
	// Scanner finished without error means EOF/connection closed
	return "", net.ErrClosed
}

// WriteLine writes a message to the client with every line terminated by CRLF.
func (c *TelnetClient) WriteLine(message string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	message = strings.ReplaceAll(message, "\r\n", "\n")
	for _, line := range strings.Split(message, "\n") {
		if _, err := c.writer.WriteString(line + "\r\n"); err != nil {
			return err
		}
	}
	return c.writer.Flush()
}

// WriteResponse writes the response text. Icons are not rendered on telnet;
// the text already lists every die.
func (c *TelnetClient) WriteResponse(resp command.Response) error {
	if resp.Text == "" {
		return nil
	}
	return c.WriteLine(resp.Text)
}

// Close closes the underlying connection.
func (c *TelnetClient) Close() error {
	return c.conn.Close()
}

// RemoteAddr returns the remote address as a string.
func (c *TelnetClient) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
