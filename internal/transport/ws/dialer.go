package ws

import (
	"context"
	"fmt"
	"net"

	"nhooyr.io/websocket"
)

// Dialer opens game streams to a Listener. It satisfies match.Dialer;
// the address is the host:port of the HTTP server.
type Dialer struct {
	Path    string // request path, e.g. "/ws"
	Options *websocket.DialOptions
}

func (d Dialer) DialContext(ctx context.Context, _, address string) (net.Conn, error) {
	u := "ws://" + address + d.Path
	c, _, err := websocket.Dial(ctx, u, d.Options)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", u, err)
	}
	return websocket.NetConn(context.Background(), c, websocket.MessageBinary), nil
}
