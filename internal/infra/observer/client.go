package observer

import (
	"encoding/json"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// WritePump drains c's send channel to its websocket connection until the
// channel is closed (by Hub.removeClient) or a write fails. Callers spawn
// it in its own goroutine per connected client.
func (c *Client) WritePump() {
	for event := range c.send {
		payload, err := json.Marshal(event)
		if err != nil {
			log.Error().Err(err).Msg("observer: failed to marshal event")
			continue
		}
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			log.Warn().Err(err).Msg("observer: client write failed, closing")
			return
		}
	}
}

// Close closes the underlying websocket connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
