package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/coder/websocket"
	"github.com/gookit/color"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/relaychat-server/internal/session"
)

func main() {
	if err := newRootCmd(os.Stdin).ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(stdin io.Reader) *cobra.Command {
	var (
		addr    string
		noColor bool
	)

	cmd := &cobra.Command{
		Use:          "relaychat-client",
		Short:        "Interactive line protocol client (host:port for TCP, ws:// URL for WebSocket)",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			conn, err := dial(ctx, addr)
			if err != nil {
				return err
			}
			defer conn.Close()

			fmt.Fprintf(cmd.ErrOrStderr(), "Connected to %s. Type protocol lines, Ctrl+C to exit.\n", addr)
			render := highlight
			if noColor {
				render = nil
			}
			return relay(ctx, conn, stdin, cmd.OutOrStdout(), render)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "localhost:8888", "server address")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "print server lines without colors")
	return cmd
}

func dial(ctx context.Context, addr string) (session.Transport, error) {
	if strings.HasPrefix(addr, "ws://") || strings.HasPrefix(addr, "wss://") {
		conn, _, err := websocket.Dial(ctx, addr, nil)
		if err != nil {
			return nil, fmt.Errorf("dial %s: %w", addr, err)
		}
		return &wsLines{ctx: ctx, conn: conn, remote: addr}, nil
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return session.NewConnTransport(conn, session.DefaultMaxLineBytes), nil
}

// highlight colors failures red and incoming messages cyan.
func highlight(line string) string {
	tag, _, _ := strings.Cut(line, ":")
	switch {
	case tag == "ERROR" || strings.HasSuffix(tag, "_FAILED"):
		return color.Red.Sprint(line)
	case tag == "DM" || tag == "SERVER_MSG" || tag == "FRIEND_REQUEST":
		return color.Cyan.Sprint(line)
	}
	return line
}

// relay copies stdin lines to the server and server lines to out until
// either side finishes. A nil render prints lines unchanged.
func relay(ctx context.Context, conn session.Transport, in io.Reader, out io.Writer, render func(string) string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	readErr := make(chan error, 1)
	go func() {
		defer cancel()
		for {
			line, err := conn.ReadLine()
			if err != nil {
				readErr <- err
				return
			}
			if render != nil {
				line = render(line)
			}
			if _, err := fmt.Fprintln(out, line); err != nil {
				readErr <- err
				return
			}
		}
	}()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	writeLoop(ctx, conn, lines)
	_ = conn.Close()

	err := <-readErr
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func writeLoop(ctx context.Context, conn session.Transport, lines <-chan string) {
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			text := strings.TrimSpace(line)
			if text == "" {
				continue
			}
			if err := conn.WriteLine(text); err != nil {
				return
			}
		}
	}
}

type wsLines struct {
	ctx    context.Context
	conn   *websocket.Conn
	remote string
}

func (w *wsLines) ReadLine() (string, error) {
	_, data, err := w.conn.Read(w.ctx)
	if err != nil {
		switch websocket.CloseStatus(err) {
		case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			return "", io.EOF
		}
		return "", err
	}
	return string(data), nil
}

func (w *wsLines) WriteLine(line string) error {
	return w.conn.Write(w.ctx, websocket.MessageText, []byte(line))
}

func (w *wsLines) Close() error {
	return w.conn.Close(websocket.StatusNormalClosure, "bye")
}

func (w *wsLines) RemoteAddr() string {
	return w.remote
}
