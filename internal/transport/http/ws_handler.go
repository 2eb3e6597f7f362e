package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	stdhttp "net/http"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/relaychat-server/internal/proto"
	"github.com/vovakirdan/relaychat-server/internal/session"
)

var errBinaryFrame = errors.New("binary frames are not supported")

// WSHandler upgrades HTTP connections and runs a protocol session over them.
// Each text frame carries one protocol line in either direction.
type WSHandler struct {
	dispatcher *session.Dispatcher
	maxLine    int
	log        *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(dispatcher *session.Dispatcher, maxLine int, logger *zerolog.Logger) stdhttp.Handler {
	if maxLine <= 0 {
		maxLine = session.DefaultMaxLineBytes
	}
	return &WSHandler{dispatcher: dispatcher, maxLine: maxLine, log: logger}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	conn.SetReadLimit(int64(h.maxLine))

	ctx := r.Context()
	t := newWSTransport(ctx, conn, r.RemoteAddr)

	if err := h.dispatcher.Serve(ctx, t); err != nil {
		status := websocket.StatusInternalError
		if errors.Is(err, errBinaryFrame) {
			status = websocket.StatusUnsupportedData
		}
		h.log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("ws connection closed with error")
		_ = conn.Close(status, err.Error())
		return
	}
	_ = conn.Close(websocket.StatusNormalClosure, "closing")
}

// wsTransport adapts a WebSocket connection to session.Transport. Close
// aborts pending I/O; the handler sends the close frame once the session ends.
type wsTransport struct {
	ctx    context.Context
	cancel context.CancelFunc
	conn   *websocket.Conn
	remote string
}

func newWSTransport(ctx context.Context, conn *websocket.Conn, remote string) *wsTransport {
	ctx, cancel := context.WithCancel(ctx)
	return &wsTransport{ctx: ctx, cancel: cancel, conn: conn, remote: remote}
}

func (t *wsTransport) ReadLine() (string, error) {
	typ, data, err := t.conn.Read(t.ctx)
	if err != nil {
		switch websocket.CloseStatus(err) {
		case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			return "", io.EOF
		}
		return "", err
	}
	if typ != websocket.MessageText {
		return "", errBinaryFrame
	}
	return proto.Clean(string(data)), nil
}

func (t *wsTransport) WriteLine(line string) error {
	if err := t.conn.Write(t.ctx, websocket.MessageText, []byte(line)); err != nil {
		return fmt.Errorf("write ws frame: %w", err)
	}
	return nil
}

func (t *wsTransport) Close() error {
	t.cancel()
	return nil
}

func (t *wsTransport) RemoteAddr() string {
	return t.remote
}
