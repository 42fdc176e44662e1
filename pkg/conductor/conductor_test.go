package conductor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
)

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(e string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

type fakeService struct {
	name string
	rec  *recorder
	err  error
}

func (t fakeService) Run(started, stopped chan bool, stop chan context.Context) error {
	if t.err != nil {
		return t.err
	}
	go func() {
		t.rec.add("start " + t.name)
		started <- true
		<-stop
		t.rec.add("stop " + t.name)
		stopped <- true
	}()
	return nil
}

// twoReaders reads stop from two goroutines, like the websocket relay.
type twoReaders struct{}

func (t twoReaders) Run(started, stopped chan bool, stop chan context.Context) error {
	go func() {
		go func() { <-stop }()
		started <- true
		<-stop
		stopped <- true
	}()
	return nil
}

func newTestConductor() *Conductor {
	logger, _ := test.NewNullLogger()
	return NewConductor(Logger(logger), ShutdownTimeout(time.Second))
}

func TestStartStopOrder(t *testing.T) {
	rec := &recorder{}
	c := newTestConductor()
	c.Service("a", fakeService{name: "a", rec: rec})
	c.Service("b", fakeService{name: "b", rec: rec})
	c.Service("c", fakeService{name: "c", rec: rec})

	done := c.Start()
	c.Stop()
	c.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("conductor never finished")
	}

	assert.Equal(t, []string{"start a", "start b", "start c", "stop c", "stop b", "stop a"}, rec.events)
}

func TestFailedServiceStopsTheRest(t *testing.T) {
	rec := &recorder{}
	c := newTestConductor()
	c.Service("a", fakeService{name: "a", rec: rec})
	c.Service("b", fakeService{name: "b", err: errors.New("nope")})
	c.Service("c", fakeService{name: "c", rec: rec})

	select {
	case <-c.Start():
	case <-time.After(2 * time.Second):
		t.Fatal("conductor never finished")
	}

	assert.Equal(t, []string{"start a", "stop a"}, rec.events)
}

func TestServiceReadingStopTwice(t *testing.T) {
	c := newTestConductor()
	c.Service("relay", twoReaders{})

	done := c.Start()
	c.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("conductor never finished")
	}
}
