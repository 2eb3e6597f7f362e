package session

import (
	"bufio"
	"io"
	"net"

	"github.com/vovakirdan/relaychat-server/internal/proto"
)

// DefaultMaxLineBytes bounds a single inbound line when no limit is configured.
const DefaultMaxLineBytes = 64 * 1024

// Transport carries protocol lines for one connection. WriteLine is called
// with the session's write lock held.
type Transport interface {
	ReadLine() (string, error)
	WriteLine(line string) error
	Close() error
	RemoteAddr() string
}

type connTransport struct {
	conn    net.Conn
	scanner *bufio.Scanner
	w       *bufio.Writer
}

// NewConnTransport frames a stream connection as newline-terminated lines.
// Lines longer than maxLine end the connection.
func NewConnTransport(conn net.Conn, maxLine int) Transport {
	if maxLine <= 0 {
		maxLine = DefaultMaxLineBytes
	}
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, min(4096, maxLine)), maxLine)
	return &connTransport{
		conn:    conn,
		scanner: scanner,
		w:       bufio.NewWriter(conn),
	}
}

func (t *connTransport) ReadLine() (string, error) {
	if t.scanner.Scan() {
		return proto.Clean(t.scanner.Text()), nil
	}
	if err := t.scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

func (t *connTransport) WriteLine(line string) error {
	if _, err := t.w.WriteString(line + "\n"); err != nil {
		return err
	}
	return t.w.Flush()
}

func (t *connTransport) Close() error {
	return t.conn.Close()
}

func (t *connTransport) RemoteAddr() string {
	if addr := t.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}
