package transport

import (
	"time"

	"github.com/gorilla/websocket"
)

const wsReadLimit = 8 << 20 // 8MB

// WS adapts a gorilla websocket connection.
type WS struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
}

// NewWS wraps an upgraded connection. writeTimeout bounds each outbound
// message so a stalled peer cannot block the writer indefinitely.
func NewWS(conn *websocket.Conn, writeTimeout time.Duration) *WS {
	conn.SetReadLimit(wsReadLimit)
	return &WS{conn: conn, writeTimeout: writeTimeout}
}

func (t *WS) ReadMessage() ([]byte, error) {
	_, data, err := t.conn.ReadMessage()
	return data, err
}

func (t *WS) WriteMessage(data []byte) error {
	if t.writeTimeout > 0 {
		t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout))
	}
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

func (t *WS) SetReadDeadline(deadline time.Time) error {
	return t.conn.SetReadDeadline(deadline)
}

func (t *WS) Close() error {
	return t.conn.Close()
}
