package ws

import (
	"sync"

	"commentroom/internal/metrics"
)

// Session 是 Hub 中的一个在线连接。Send 不得阻塞；Close 必须幂等。
type Session interface {
	ID() string
	Send(msg []byte) error
	Close()
}

// Hub 管理以帖子 ID 为键的房间，首个会话加入时创建，最后一个离开时销毁。
// rooms 由 mu 保护，房间成员由各自的 room.mu 保护；加锁顺序固定为 h.mu -> room.mu。
type Hub struct {
	mu     sync.RWMutex
	rooms  map[uint]*room
	closed bool
}

type room struct {
	mu      sync.Mutex
	members map[string]Session
}

func NewHub() *Hub { return &Hub{rooms: make(map[uint]*room)} }

// Join 把会话注册到帖子房间，房间不存在则创建。重复 Join 同一会话不会重复计数。
// 添加成员时始终持有 h.mu（读锁或写锁），因此不会与 Leave 中的房间回收交错。
// Shutdown 之后返回 false，调用方负责关闭该会话。
func (h *Hub) Join(postID uint, s Session) bool {
	h.mu.RLock()
	if h.closed {
		h.mu.RUnlock()
		return false
	}
	if rm := h.rooms[postID]; rm != nil {
		rm.mu.Lock()
		h.addLocked(rm, s)
		rm.mu.Unlock()
		h.mu.RUnlock()
		return true
	}
	h.mu.RUnlock()

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	rm := h.rooms[postID]
	if rm == nil {
		rm = &room{members: make(map[string]Session)}
		h.rooms[postID] = rm
		metrics.ActiveRooms.Inc()
	}
	rm.mu.Lock()
	h.addLocked(rm, s)
	rm.mu.Unlock()
	return true
}

func (h *Hub) addLocked(rm *room, s Session) {
	if _, ok := rm.members[s.ID()]; ok {
		return
	}
	rm.members[s.ID()] = s
	metrics.WsConnections.Inc()
}

// Leave 移除会话；会话不存在时是空操作，便于重复断开时安全调用。
func (h *Hub) Leave(postID uint, s Session) {
	h.mu.RLock()
	rm := h.rooms[postID]
	h.mu.RUnlock()
	if rm == nil {
		return
	}

	rm.mu.Lock()
	if _, ok := rm.members[s.ID()]; !ok {
		rm.mu.Unlock()
		return
	}
	delete(rm.members, s.ID())
	metrics.WsConnections.Dec()
	empty := len(rm.members) == 0
	rm.mu.Unlock()
	if !empty {
		return
	}

	// 房间变空时在全局写锁下复查，避免与并发 Join 竞争。
	h.mu.Lock()
	defer h.mu.Unlock()
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if len(rm.members) == 0 && h.rooms[postID] == rm {
		delete(h.rooms, postID)
		metrics.ActiveRooms.Dec()
	}
}

// Members 返回房间成员的快照，调用方可以在不持锁的情况下遍历。
func (h *Hub) Members(postID uint) []Session {
	h.mu.RLock()
	rm := h.rooms[postID]
	h.mu.RUnlock()
	if rm == nil {
		return nil
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	out := make([]Session, 0, len(rm.members))
	for _, s := range rm.members {
		out = append(out, s)
	}
	return out
}

// Online 返回房间在线会话数量，供 REST 接口复用。
func (h *Hub) Online(postID uint) int {
	h.mu.RLock()
	rm := h.rooms[postID]
	h.mu.RUnlock()
	if rm == nil {
		return 0
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return len(rm.members)
}

// Rooms 返回当前存活的房间数。
func (h *Hub) Rooms() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

// Shutdown 拒绝之后的 Join 并关闭所有会话；每个会话在 Close 中自行调用 Leave。
func (h *Hub) Shutdown() {
	h.mu.Lock()
	h.closed = true
	var all []Session
	for _, rm := range h.rooms {
		rm.mu.Lock()
		for _, s := range rm.members {
			all = append(all, s)
		}
		rm.mu.Unlock()
	}
	h.mu.Unlock()
	for _, s := range all {
		s.Close()
	}
}
