package web

import (
	"context"

	"golang.org/x/net/websocket"
)

// GetLogHandler pumps lines from logChan to the client until either side
// goes away, then cancels the producer.
func GetLogHandler(cancel context.CancelFunc, logChan chan string) *websocket.Server {
	config := &websocket.Config{
		Origin: nil,
	}

	h := websocket.Server{
		Handler: func(ws *websocket.Conn) {
			defer cancel() // tell the log producer to stop
			for line := range logChan {
				if err := websocket.JSON.Send(ws, line); err != nil {
					weblog.WithError(err).Debug("closing log websocket")
					return
				}
			}
		},
		Config: *config,
	}
	return &h
}
