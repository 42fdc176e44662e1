package web

import (
	"context"
	"time"

	boxd "github.com/lnbitsbox/boxd/pkg"
	"golang.org/x/net/websocket"
)

const sweepInterval = 10 * time.Second

// WSRelay fans every Change published on relay out to all dashboard
// sockets. The client set is only touched from the Run loop.
type WSRelay struct {
	clients map[*WSCONN]struct{}
	relay   chan boxd.Change
	join    chan *WSCONN
}

func NewWSRelay(relay chan boxd.Change) WSRelay {
	return WSRelay{
		clients: map[*WSCONN]struct{}{},
		relay:   relay,
		join:    make(chan *WSCONN),
	}
}

func (t WSRelay) Run(started, stopped chan bool, stop chan context.Context) error {
	done := make(chan struct{})
	go func() {
		go func() {
			sweep := time.NewTicker(sweepInterval)
			defer sweep.Stop()
			for {
				select {
				case <-done:
					for c := range t.clients {
						c.Close()
					}
					stopped <- true
					return
				case c := <-t.join:
					t.clients[c] = struct{}{}
				case change := <-t.relay:
					t.send(change)
				case <-sweep.C:
					t.sweep()
				}
			}
		}()

		started <- true
		<-stop
		close(done)
	}()
	return nil
}

// drops sockets whose handler already went away
func (t WSRelay) sweep() {
	for c := range t.clients {
		if c.IsClosed() {
			delete(t.clients, c)
		}
	}
}

func (t WSRelay) send(change boxd.Change) {
	for c := range t.clients {
		if c.IsClosed() {
			continue
		}
		if err := websocket.JSON.Send(c.WS, change); err != nil {
			weblog.WithError(err).Debug("dropping dashboard socket")
			c.Close()
			delete(t.clients, c)
		}
	}
}

// GetWSHandler sends bootstrap() to a new socket, then hands it to the
// relay and holds the connection open until the relay closes it. Origin
// is not checked, the dashboard sits behind the session cookie.
func (t WSRelay) GetWSHandler(bootstrap func() any) *websocket.Server {
	return &websocket.Server{Handler: func(ws *websocket.Conn) {
		if err := websocket.JSON.Send(ws, bootstrap()); err != nil {
			weblog.WithError(err).Warn("failed to send initial payload")
			return
		}
		c := &WSCONN{WS: ws, Stop: make(chan bool)}
		stop := c.Stop
		t.join <- c
		<-stop
	}}
}
