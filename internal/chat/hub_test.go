package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/lalith-99/echogram/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeConn struct {
	mu     sync.Mutex
	got    []string
	fail   bool
	closed int
}

func (c *fakeConn) Send(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("broken pipe")
	}
	c.got = append(c.got, text)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed++
	return nil
}

func (c *fakeConn) received() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.got...)
}

func (c *fakeConn) breakPipe() {
	c.mu.Lock()
	c.fail = true
	c.mu.Unlock()
}

type memoryLog struct {
	mu      sync.Mutex
	nextID  int64
	msgs    []models.ChatMessage
	saveErr error
}

func (l *memoryLog) Save(_ context.Context, roomID, userID int64, content string) (*models.ChatMessage, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.saveErr != nil {
		return nil, l.saveErr
	}
	l.nextID++
	m := models.ChatMessage{
		ID:        l.nextID,
		RoomID:    roomID,
		UserID:    userID,
		Content:   content,
		CreatedAt: time.Now(),
	}
	l.msgs = append(l.msgs, m)
	return &m, nil
}

func (l *memoryLog) ListByRoom(_ context.Context, roomID int64) ([]models.ChatMessage, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := []models.ChatMessage{}
	for _, m := range l.msgs {
		if m.RoomID == roomID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (l *memoryLog) count(roomID int64) int {
	msgs, _ := l.ListByRoom(context.Background(), roomID)
	return len(msgs)
}

func newHub() (*Hub, *memoryLog) {
	log := &memoryLog{}
	return NewHub(log, zap.NewNop()), log
}

func TestRender(t *testing.T) {
	msg := models.ChatMessage{UserID: 1, Content: "hi"}
	assert.Equal(t, "Me >> hi", Render(msg, 1))
	assert.Equal(t, "Friend >> hi", Render(msg, 2))
}

func TestBroadcastRendersPerRecipient(t *testing.T) {
	hub, log := newHub()
	ctx := context.Background()

	a, b, c := &fakeConn{}, &fakeConn{}, &fakeConn{}
	require.NoError(t, hub.Connect(ctx, a, 1, 10))
	require.NoError(t, hub.Connect(ctx, b, 1, 20))
	require.NoError(t, hub.Connect(ctx, c, 1, 30))

	msg, err := hub.Broadcast(ctx, a, "hello")
	require.NoError(t, err)
	assert.Equal(t, int64(10), msg.UserID)

	assert.Equal(t, []string{"Me >> hello"}, a.received())
	assert.Equal(t, []string{"Friend >> hello"}, b.received())
	assert.Equal(t, []string{"Friend >> hello"}, c.received())

	require.Equal(t, 1, log.count(1))
	assert.Equal(t, int64(10), log.msgs[0].UserID)
}

func TestBroadcastStaysInRoom(t *testing.T) {
	hub, _ := newHub()
	ctx := context.Background()

	a, other := &fakeConn{}, &fakeConn{}
	require.NoError(t, hub.Connect(ctx, a, 1, 10))
	require.NoError(t, hub.Connect(ctx, other, 2, 20))

	_, err := hub.Broadcast(ctx, a, "hello")
	require.NoError(t, err)

	assert.Empty(t, other.received())
}

func TestSameMemberTwiceSeesSelfOnBoth(t *testing.T) {
	hub, _ := newHub()
	ctx := context.Background()

	tab1, tab2 := &fakeConn{}, &fakeConn{}
	require.NoError(t, hub.Connect(ctx, tab1, 1, 10))
	require.NoError(t, hub.Connect(ctx, tab2, 1, 10))

	_, err := hub.Broadcast(ctx, tab1, "hi")
	require.NoError(t, err)

	assert.Equal(t, []string{"Me >> hi"}, tab1.received())
	assert.Equal(t, []string{"Me >> hi"}, tab2.received())
}

func TestConnectReplaysHistoryPrivately(t *testing.T) {
	hub, _ := newHub()
	ctx := context.Background()

	a, b := &fakeConn{}, &fakeConn{}
	require.NoError(t, hub.Connect(ctx, a, 1, 10))
	require.NoError(t, hub.Connect(ctx, b, 1, 20))
	_, err := hub.Broadcast(ctx, a, "one")
	require.NoError(t, err)
	_, err = hub.Broadcast(ctx, b, "two")
	require.NoError(t, err)

	beforeA, beforeB := len(a.received()), len(b.received())

	late := &fakeConn{}
	require.NoError(t, hub.Connect(ctx, late, 1, 20))

	assert.Equal(t, []string{"Friend >> one", "Me >> two"}, late.received())
	assert.Len(t, a.received(), beforeA)
	assert.Len(t, b.received(), beforeB)
}

func TestConnectTwiceRejected(t *testing.T) {
	hub, _ := newHub()
	ctx := context.Background()

	a := &fakeConn{}
	require.NoError(t, hub.Connect(ctx, a, 1, 10))
	assert.ErrorIs(t, hub.Connect(ctx, a, 2, 10), ErrAlreadyRegistered)
	assert.Equal(t, 1, hub.Count())
	assert.Equal(t, 1, hub.RoomCount(1))
	assert.Equal(t, 0, hub.RoomCount(2))
}

func TestConnectReplayFailureUnregisters(t *testing.T) {
	hub, log := newHub()
	ctx := context.Background()

	_, err := log.Save(ctx, 1, 20, "old")
	require.NoError(t, err)

	broken := &fakeConn{fail: true}
	require.Error(t, hub.Connect(ctx, broken, 1, 10))
	assert.Equal(t, 0, hub.Count())
}

func TestBroadcastPersistFailureDeliversNothing(t *testing.T) {
	hub, log := newHub()
	ctx := context.Background()

	a, b := &fakeConn{}, &fakeConn{}
	require.NoError(t, hub.Connect(ctx, a, 1, 10))
	require.NoError(t, hub.Connect(ctx, b, 1, 20))

	log.saveErr = errors.New("db down")
	_, err := hub.Broadcast(ctx, a, "lost")
	require.Error(t, err)

	assert.Empty(t, a.received())
	assert.Empty(t, b.received())
	assert.Equal(t, 2, hub.Count())
}

func TestBroadcastFromUnregistered(t *testing.T) {
	hub, log := newHub()

	_, err := hub.Broadcast(context.Background(), &fakeConn{}, "x")
	assert.ErrorIs(t, err, ErrNotRegistered)
	assert.Equal(t, 0, log.count(1))
}

func TestBroadcastDropsDeadRecipient(t *testing.T) {
	hub, log := newHub()
	ctx := context.Background()

	a, dead, c := &fakeConn{}, &fakeConn{}, &fakeConn{}
	require.NoError(t, hub.Connect(ctx, a, 1, 10))
	require.NoError(t, hub.Connect(ctx, dead, 1, 20))
	require.NoError(t, hub.Connect(ctx, c, 1, 30))
	dead.breakPipe()

	_, err := hub.Broadcast(ctx, a, "still here")
	require.NoError(t, err)

	assert.Equal(t, []string{"Me >> still here"}, a.received())
	assert.Equal(t, []string{"Friend >> still here"}, c.received())
	assert.Equal(t, 2, hub.Count())
	assert.Equal(t, 1, dead.closed)
	assert.Equal(t, 1, log.count(1))

	_, err = hub.Broadcast(ctx, c, "again")
	require.NoError(t, err)
	assert.Equal(t, 1, dead.closed)
}

func TestDisconnectIdempotent(t *testing.T) {
	hub, _ := newHub()
	ctx := context.Background()

	a, b := &fakeConn{}, &fakeConn{}
	require.NoError(t, hub.Connect(ctx, a, 1, 10))
	require.NoError(t, hub.Connect(ctx, b, 1, 20))

	hub.Disconnect(a)
	hub.Disconnect(a)
	hub.Disconnect(&fakeConn{})

	assert.Equal(t, 1, hub.Count())
	assert.Equal(t, 1, hub.RoomCount(1))

	_, err := hub.Broadcast(ctx, b, "alone")
	require.NoError(t, err)
	assert.Empty(t, a.received())
	assert.Equal(t, []string{"Me >> alone"}, b.received())
}

func TestRoomReleasedWhenEmpty(t *testing.T) {
	hub, _ := newHub()
	ctx := context.Background()

	a := &fakeConn{}
	require.NoError(t, hub.Connect(ctx, a, 1, 10))
	hub.Disconnect(a)

	hub.mu.Lock()
	defer hub.mu.Unlock()
	assert.Empty(t, hub.rooms)
	assert.Empty(t, hub.conns)
}

func TestShutdownClosesEverything(t *testing.T) {
	hub, _ := newHub()
	ctx := context.Background()

	a, b := &fakeConn{}, &fakeConn{}
	require.NoError(t, hub.Connect(ctx, a, 1, 10))
	require.NoError(t, hub.Connect(ctx, b, 2, 20))

	hub.Shutdown()

	assert.Equal(t, 0, hub.Count())
	assert.Equal(t, 1, a.closed)
	assert.Equal(t, 1, b.closed)
	assert.ErrorIs(t, hub.Connect(ctx, &fakeConn{}, 1, 30), ErrHubClosed)
}

func TestConcurrentConnectAndBroadcast(t *testing.T) {
	hub, log := newHub()
	ctx := context.Background()

	const (
		rooms    = 4
		perRoom  = 8
		messages = 5
	)

	conns := make([][]*fakeConn, rooms)
	for r := range conns {
		conns[r] = make([]*fakeConn, perRoom)
		for i := range conns[r] {
			conns[r][i] = &fakeConn{}
		}
	}

	var wg sync.WaitGroup
	for r := 0; r < rooms; r++ {
		for i := 0; i < perRoom; i++ {
			wg.Add(1)
			go func(r, i int) {
				defer wg.Done()
				c := conns[r][i]
				userID := int64(r*100 + i)
				if !assert.NoError(t, hub.Connect(ctx, c, int64(r), userID)) {
					return
				}
				for m := 0; m < messages; m++ {
					_, err := hub.Broadcast(ctx, c, fmt.Sprintf("%d-%d-%d", r, i, m))
					assert.NoError(t, err)
				}
			}(r, i)
		}
	}
	wg.Wait()

	assert.Equal(t, rooms*perRoom, hub.Count())
	for r := 0; r < rooms; r++ {
		roomID := int64(r)
		assert.Equal(t, perRoom, hub.RoomCount(roomID))

		history, err := log.ListByRoom(ctx, roomID)
		require.NoError(t, err)
		require.Len(t, history, perRoom*messages)

		seen := make(map[string]bool)
		for _, m := range history {
			assert.False(t, seen[m.Content], "duplicate %s", m.Content)
			seen[m.Content] = true
		}

		// Replay plus live deliveries give every member the whole room
		// history exactly once, in log order.
		for i, c := range conns[r] {
			userID := int64(r*100 + i)
			want := make([]string, 0, len(history))
			for _, m := range history {
				want = append(want, Render(m, userID))
			}
			assert.Equal(t, want, c.received())
		}
	}
}
