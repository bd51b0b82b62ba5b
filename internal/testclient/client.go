// Package testclient is a scripted telnet client for driving a running
// roller server in tests.
package testclient

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"
)

// TestClient is one telnet connection that records every line it receives.
type TestClient struct {
	conn     net.Conn
	writer   *bufio.Writer
	messages []string
	mu       sync.Mutex
	closed   sync.Once
}

// Dial connects to address and starts collecting server lines in the background.
func Dial(address string) (*TestClient, error) {
	conn, err := net.DialTimeout("tcp", address, 2*time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	client := &TestClient{
		conn:     conn,
		writer:   bufio.NewWriter(conn),
		messages: make([]string, 0),
	}

	go client.readMessages(bufio.NewReader(conn))

	return client, nil
}

// readMessages continuously reads lines until the connection closes.
func (c *TestClient) readMessages(reader *bufio.Reader) {
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\r\n")
		if line != "" {
			c.mu.Lock()
			c.messages = append(c.messages, line)
			c.mu.Unlock()
		}
	}
}

// SendCommand sends one line to the server, terminated by CRLF.
func (c *TestClient) SendCommand(cmd string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.writer.WriteString(cmd + "\r\n"); err != nil {
		return err
	}
	return c.writer.Flush()
}

// GetMessages returns a copy of all lines received so far.
func (c *TestClient) GetMessages() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := make([]string, len(c.messages))
	copy(result, c.messages)
	return result
}

// GetLastMessage returns the most recent line, or "" if none arrived.
func (c *TestClient) GetLastMessage() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.messages) == 0 {
		return ""
	}
	return c.messages[len(c.messages)-1]
}

// ClearMessages clears the message buffer.
func (c *TestClient) ClearMessages() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = c.messages[:0]
}

// WaitForMessage waits for a line containing text and returns it.
func (c *TestClient) WaitForMessage(text string, timeout time.Duration) (string, bool) {
	deadline := time.Now().Add(timeout)

	for {
		for _, msg := range c.GetMessages() {
			if strings.Contains(msg, text) {
				return msg, true
			}
		}
		if time.Now().After(deadline) {
			return "", false
		}
		time.Sleep(20 * time.Millisecond)
	}
}

// Roundtrip clears the buffer, sends cmd and waits for a reply containing want.
func (c *TestClient) Roundtrip(cmd, want string, timeout time.Duration) (string, error) {
	c.ClearMessages()
	if err := c.SendCommand(cmd); err != nil {
		return "", err
	}
	msg, ok := c.WaitForMessage(want, timeout)
	if !ok {
		return "", fmt.Errorf("no reply containing %q to %q, got %v", want, cmd, c.GetMessages())
	}
	return msg, nil
}

// Close closes the client connection. It is safe to call more than once.
func (c *TestClient) Close() error {
	var err error
	c.closed.Do(func() {
		err = c.conn.Close()
	})
	return err
}
