package msghub

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/inbucket/mailroute/pkg/extension"
	"github.com/inbucket/mailroute/pkg/extension/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testListener implements the Listener interface, mock for unit tests
type testListener struct {
	decisions  []*event.RouteDecision // received decisions
	wantEvents int                    // how many events this listener wants to receive
	errorAfter int                    // when != 0, event count until Receive() begins returning error
	gotEvents  int

	done     chan struct{} // closed once we have received wantEvents
	overflow chan struct{} // closed if we receive wantEvents+1
}

func newTestListener(want int) *testListener {
	l := &testListener{
		decisions:  make([]*event.RouteDecision, 0, want*2),
		wantEvents: want,
		done:       make(chan struct{}),
		overflow:   make(chan struct{}),
	}
	if want == 0 {
		close(l.done)
	}
	return l
}

// Receive a decision, store it in the decisions slice, close applicable channels, and return an
// error if instructed
func (l *testListener) Receive(d event.RouteDecision) error {
	l.gotEvents++
	l.decisions = append(l.decisions, &d)
	if l.gotEvents == l.wantEvents {
		close(l.done)
	}
	if l.gotEvents == l.wantEvents+1 {
		close(l.overflow)
	}
	if l.errorAfter > 0 && l.gotEvents > l.errorAfter {
		return errors.New("too many decisions")
	}
	return nil
}

// String formats the got vs wanted decision counts
func (l *testListener) String() string {
	return fmt.Sprintf("got %v decisions, wanted %v", len(l.decisions), l.wantEvents)
}

func startHub(t *testing.T, historyLen int) (*Hub, *extension.Host) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	extHost := extension.NewHost()
	hub := New(historyLen, extHost)
	go hub.Start(ctx)
	return hub, extHost
}

func wait(t *testing.T, l *testListener) {
	t.Helper()
	select {
	case <-l.done:
	case <-time.After(time.Second):
		t.Fatal("Timeout:", l)
	}
}

func TestHubZeroLen(t *testing.T) {
	hub, _ := startHub(t, 0)
	l := newTestListener(100)
	hub.AddListener(l)
	for i := 0; i < 100; i++ {
		hub.Dispatch(event.RouteDecision{})
	}

	// Listeners are still served without history.
	wait(t, l)
	assert.Empty(t, hub.History())
}

func TestHubOneListener(t *testing.T) {
	hub, _ := startHub(t, 5)
	l := newTestListener(1)

	hub.AddListener(l)
	hub.Dispatch(event.RouteDecision{ID: "a"})

	wait(t, l)
	assert.Equal(t, "a", l.decisions[0].ID)
}

func TestHubRegistersExtensionListeners(t *testing.T) {
	hub, extHost := startHub(t, 5)
	l := newTestListener(2)
	hub.AddListener(l)

	extHost.Events.AfterMessageForwarded.Emit(&event.RouteDecision{Action: event.ActionForward})
	extHost.Events.AfterMessageRejected.Emit(&event.RouteDecision{Action: event.ActionReject})

	wait(t, l)
	actions := []string{l.decisions[0].Action, l.decisions[1].Action}
	assert.ElementsMatch(t, []string{event.ActionForward, event.ActionReject}, actions)
	assert.Equal(t, []string{listenerName}, extHost.Events.AfterMessageForwarded.Listeners())
	assert.Equal(t, []string{listenerName}, extHost.Events.AfterMessageRejected.Listeners())
}

func TestHubRemoveListener(t *testing.T) {
	hub, _ := startHub(t, 5)
	l := newTestListener(1)

	hub.AddListener(l)
	hub.Dispatch(event.RouteDecision{})
	hub.RemoveListener(l)
	hub.Dispatch(event.RouteDecision{})
	hub.Sync()

	select {
	case <-l.overflow:
		t.Error(l)
	case <-time.After(50 * time.Millisecond):
		// Expected result, no overflow
	}
}

func TestHubRemoveListenerOnError(t *testing.T) {
	hub, _ := startHub(t, 5)

	// error after 1 means listener should receive 2 decisions before being removed
	l := newTestListener(2)
	l.errorAfter = 1

	hub.AddListener(l)
	for i := 0; i < 4; i++ {
		hub.Dispatch(event.RouteDecision{})
	}
	hub.Sync()

	select {
	case <-l.overflow:
		t.Error(l)
	case <-time.After(50 * time.Millisecond):
		// Expected result, no overflow
	}
}

func TestHubHistoryReplay(t *testing.T) {
	hub, _ := startHub(t, 100)
	l1 := newTestListener(3)
	hub.AddListener(l1)

	ds := make([]event.RouteDecision, 3)
	for i := range ds {
		ds[i] = event.RouteDecision{Subject: fmt.Sprintf("subj %v", i)}
		hub.Dispatch(ds[i])
	}
	wait(t, l1)

	// Add a new listener
	l2 := newTestListener(3)
	hub.AddListener(l2)
	wait(t, l2)

	for i := range ds {
		assert.Equal(t, ds[i].Subject, l2.decisions[i].Subject, "decision %v", i)
	}
	assert.Equal(t, ds, hub.History())
}

func TestHubHistoryReplayWrap(t *testing.T) {
	hub, _ := startHub(t, 5)
	l1 := newTestListener(20)
	hub.AddListener(l1)

	// Broadcast more decisions than the hub can hold
	ds := make([]event.RouteDecision, 20)
	for i := range ds {
		ds[i] = event.RouteDecision{Subject: fmt.Sprintf("subj %v", i)}
		hub.Dispatch(ds[i])
	}
	wait(t, l1)

	l2 := newTestListener(5)
	hub.AddListener(l2)
	wait(t, l2)

	for i := 0; i < 5; i++ {
		assert.Equal(t, ds[i+15].Subject, l2.decisions[i].Subject)
	}
	require.Equal(t, 5, hub.history.Len())
	assert.Equal(t, ds[15:], hub.History())
}

func TestHubContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := New(5, extension.NewHost())
	go hub.Start(ctx)
	l := newTestListener(1)

	hub.AddListener(l)
	hub.Dispatch(event.RouteDecision{})
	hub.Sync()
	cancel()

	// Stopped hubs drop operations instead of blocking.
	<-hub.done
	for i := 0; i < opChanLen*2; i++ {
		hub.Dispatch(event.RouteDecision{})
	}
	assert.Nil(t, hub.History())

	select {
	case <-l.overflow:
		t.Error(l)
	case <-time.After(50 * time.Millisecond):
		// Expected result, no overflow
	}
}
