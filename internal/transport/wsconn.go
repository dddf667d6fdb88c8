// ABOUTME: Byte-stream adapter over a WebSocket connection
// ABOUTME: Carries the same line/metadata/chunk protocol inside binary frames
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Path is the HTTP path the server upgrades on
const Path = "/stream"

const closeTimeout = time.Second

// WSConn turns message-oriented WebSocket frames into a byte stream.
// Frame boundaries carry no meaning, as with TCP segments.
type WSConn struct {
	ws     *websocket.Conn
	reader io.Reader

	writeMu   sync.Mutex
	closeOnce sync.Once
}

// NewWSConn wraps an established WebSocket connection
func NewWSConn(ws *websocket.Conn) *WSConn {
	return &WSConn{ws: ws}
}

// Dial opens a WebSocket connection to url
func Dial(ctx context.Context, url string) (*WSConn, error) {
	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", url, err)
	}
	return NewWSConn(ws), nil
}

// Upgrader accepts WebSocket connections from any origin. Clients are
// command line players rather than browsers.
func Upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  64 * 1024,
		WriteBufferSize: 64 * 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}
}

// Read reads from the current frame, advancing to the next one as needed.
// A close frame from the peer reads as io.EOF.
func (c *WSConn) Read(p []byte) (int, error) {
	for {
		if c.reader == nil {
			_, r, err := c.ws.NextReader()
			if err != nil {
				var closeErr *websocket.CloseError
				if errors.As(err, &closeErr) {
					return 0, io.EOF
				}
				return 0, err
			}
			c.reader = r
		}

		n, err := c.reader.Read(p)
		if err == io.EOF {
			c.reader = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

// Write sends p as a single binary frame
func (c *WSConn) Write(p []byte) (int, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.ws.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close sends a normal close frame and closes the underlying connection
func (c *WSConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeTimeout))
		c.writeMu.Unlock()
		err = c.ws.Close()
	})
	return err
}

// RemoteAddr returns the peer address
func (c *WSConn) RemoteAddr() net.Addr {
	return c.ws.RemoteAddr()
}

// LocalAddr returns the local address
func (c *WSConn) LocalAddr() net.Addr {
	return c.ws.LocalAddr()
}
