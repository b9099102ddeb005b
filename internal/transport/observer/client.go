package observer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"pipeworks/internal/protocol"
)

// Client is an observer connection, used by mirror replicas.
type Client struct {
	conn *websocket.Conn
}

// Dial connects to a hub and sends the initial SUBSCRIBE.
func Dial(ctx context.Context, url string, center [3]int, radius int) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	c := &Client{conn: conn}
	if err := c.Subscribe(center, radius); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return c, nil
}

func (c *Client) Subscribe(center [3]int, radius int) error {
	b, _ := json.Marshal(protocol.SubscribeMsg{
		Type:            protocol.TypeSubscribe,
		ProtocolVersion: protocol.Version,
		Center:          center,
		Radius:          radius,
	})
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	return nil
}

// Read blocks for the next message and returns a protocol.UnitUpdate or
// protocol.UnitGone. Unknown message types are skipped.
func (c *Client) Read() (any, error) {
	for {
		_, b, err := c.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		base, err := protocol.DecodeBase(b)
		if err != nil {
			return nil, fmt.Errorf("decode: %w", err)
		}
		switch base.Type {
		case protocol.TypePipeItem:
			var m protocol.UnitUpdate
			if err := json.Unmarshal(b, &m); err != nil {
				return nil, fmt.Errorf("decode %s: %w", base.Type, err)
			}
			return m, nil
		case protocol.TypePipeGone:
			var m protocol.UnitGone
			if err := json.Unmarshal(b, &m); err != nil {
				return nil, fmt.Errorf("decode %s: %w", base.Type, err)
			}
			return m, nil
		}
	}
}

func (c *Client) Close() error {
	_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))
	return c.conn.Close()
}
