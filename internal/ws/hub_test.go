package ws

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

type fakeSession struct {
	id     string
	hub    *Hub
	postID uint

	mu     sync.Mutex
	msgs   [][]byte
	fail   bool
	closed int
}

func newFake(id string) *fakeSession { return &fakeSession{id: id} }

func (f *fakeSession) ID() string { return f.id }

func (f *fakeSession) Send(b []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("connection gone")
	}
	f.msgs = append(f.msgs, b)
	return nil
}

func (f *fakeSession) Close() {
	f.mu.Lock()
	f.closed++
	f.mu.Unlock()
	if f.hub != nil {
		f.hub.Leave(f.postID, f)
	}
}

func (f *fakeSession) received() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.msgs...)
}

func TestNewHub(t *testing.T) {
	hub := NewHub()
	if hub == nil {
		t.Fatal("NewHub() returned nil")
	}
	if hub.rooms == nil {
		t.Error("NewHub() rooms map is nil")
	}
	if hub.Rooms() != 0 {
		t.Errorf("Rooms() = %d, want 0", hub.Rooms())
	}
}

func TestHub_Online_NonExistentRoom(t *testing.T) {
	hub := NewHub()
	if online := hub.Online(999); online != 0 {
		t.Errorf("Online() for non-existent room = %d, want 0", online)
	}
	if m := hub.Members(999); len(m) != 0 {
		t.Errorf("Members() for non-existent room = %v, want empty", m)
	}
}

func TestHub_JoinLeave(t *testing.T) {
	hub := NewHub()
	a, b := newFake("a"), newFake("b")

	hub.Join(1, a)
	hub.Join(1, b)
	if hub.Online(1) != 2 {
		t.Fatalf("Online() after two joins = %d, want 2", hub.Online(1))
	}
	if hub.Rooms() != 1 {
		t.Fatalf("Rooms() = %d, want 1", hub.Rooms())
	}

	hub.Leave(1, a)
	if hub.Online(1) != 1 {
		t.Errorf("Online() after leave = %d, want 1", hub.Online(1))
	}
	hub.Leave(1, b)
	if hub.Online(1) != 0 {
		t.Errorf("Online() after all left = %d, want 0", hub.Online(1))
	}
	if hub.Rooms() != 0 {
		t.Errorf("empty room not removed, Rooms() = %d", hub.Rooms())
	}
}

func TestHub_DuplicateJoinCountsOnce(t *testing.T) {
	hub := NewHub()
	a := newFake("a")
	hub.Join(1, a)
	hub.Join(1, a)
	if hub.Online(1) != 1 {
		t.Errorf("Online() = %d, want 1", hub.Online(1))
	}
}

func TestHub_LeaveIsIdempotent(t *testing.T) {
	hub := NewHub()
	a, b := newFake("a"), newFake("b")
	hub.Join(1, a)
	hub.Join(1, b)

	hub.Leave(1, a)
	hub.Leave(1, a)
	if hub.Online(1) != 1 {
		t.Errorf("Online() after double leave = %d, want 1", hub.Online(1))
	}

	// 未加入的会话、不存在的房间都是空操作
	hub.Leave(1, newFake("stranger"))
	hub.Leave(42, a)
	if hub.Online(1) != 1 {
		t.Errorf("Online() = %d, want 1", hub.Online(1))
	}
}

func TestHub_RoomRecreatedAfterEmpty(t *testing.T) {
	hub := NewHub()
	a := newFake("a")
	hub.Join(1, a)
	hub.Leave(1, a)
	hub.Join(1, a)
	if hub.Online(1) != 1 || hub.Rooms() != 1 {
		t.Errorf("Online()=%d Rooms()=%d, want 1 1", hub.Online(1), hub.Rooms())
	}
}

func TestHub_MembersIsSnapshot(t *testing.T) {
	hub := NewHub()
	hub.Join(1, newFake("a"))
	snap := hub.Members(1)
	hub.Join(1, newFake("b"))
	if len(snap) != 1 {
		t.Errorf("snapshot changed after join: len = %d, want 1", len(snap))
	}
	if len(hub.Members(1)) != 2 {
		t.Errorf("Members() = %d, want 2", len(hub.Members(1)))
	}
}

func TestHub_MultipleRooms(t *testing.T) {
	hub := NewHub()
	hub.Join(1, newFake("u1"))
	hub.Join(2, newFake("u2"))
	hub.Join(2, newFake("u3"))

	if hub.Online(1) != 1 {
		t.Errorf("Online(1) = %d, want 1", hub.Online(1))
	}
	if hub.Online(2) != 2 {
		t.Errorf("Online(2) = %d, want 2", hub.Online(2))
	}
}

func TestHub_Concurrent(t *testing.T) {
	hub := NewHub()
	var wg sync.WaitGroup
	const rooms, perRoom = 20, 25

	for r := 0; r < rooms; r++ {
		for i := 0; i < perRoom; i++ {
			wg.Add(1)
			go func(room uint, id string) {
				defer wg.Done()
				s := newFake(id)
				hub.Join(room, s)
				if n := hub.Online(room); n < 1 {
					t.Errorf("Online(%d) = %d while joined", room, n)
				}
				hub.Leave(room, s)
				hub.Leave(room, s)
			}(uint(r), fmt.Sprintf("s-%d-%d", r, i))
		}
	}
	wg.Wait()

	for r := 0; r < rooms; r++ {
		if n := hub.Online(uint(r)); n != 0 {
			t.Errorf("Online(%d) = %d, want 0", r, n)
		}
	}
	if hub.Rooms() != 0 {
		t.Errorf("Rooms() = %d, want 0", hub.Rooms())
	}
}

func TestHub_Shutdown(t *testing.T) {
	hub := NewHub()
	var sessions []*fakeSession
	for i := 0; i < 5; i++ {
		s := newFake(fmt.Sprintf("s%d", i))
		s.hub, s.postID = hub, uint(i%2)
		hub.Join(s.postID, s)
		sessions = append(sessions, s)
	}

	hub.Shutdown()

	for _, s := range sessions {
		if s.closed != 1 {
			t.Errorf("session %s closed %d times, want 1", s.id, s.closed)
		}
	}
	if hub.Rooms() != 0 {
		t.Errorf("Rooms() after shutdown = %d, want 0", hub.Rooms())
	}
}

func TestHub_JoinAfterShutdown(t *testing.T) {
	hub := NewHub()
	hub.Shutdown()

	late := newFake("late")
	if hub.Join(1, late) {
		t.Fatal("Join() after shutdown = true, want false")
	}
	if hub.Online(1) != 0 || hub.Rooms() != 0 {
		t.Errorf("Online() = %d, Rooms() = %d after rejected join, want 0", hub.Online(1), hub.Rooms())
	}
}

func TestClient_SendAndClose(t *testing.T) {
	hub := NewHub()
	c := newClient("c1", 1, 10, "alice", hub, nil, 1)
	hub.Join(1, c)

	if err := c.Send([]byte("one")); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if err := c.Send([]byte("two")); !errors.Is(err, ErrSendBufferFull) {
		t.Errorf("Send() on full buffer = %v, want ErrSendBufferFull", err)
	}

	c.Close()
	c.Close()
	if hub.Online(1) != 0 {
		t.Errorf("Online() after close = %d, want 0", hub.Online(1))
	}
	if err := c.Send([]byte("three")); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("Send() after close = %v, want ErrSessionClosed", err)
	}
	select {
	case <-c.done:
	case <-time.After(time.Second):
		t.Error("done not closed")
	}
}
