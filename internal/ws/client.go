package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var (
	ErrSessionClosed  = errors.New("session closed")
	ErrSendBufferFull = errors.New("send buffer full")
)

// Client 是一个已加入房间的 WebSocket 会话。send 永不关闭，关闭信号走 done，
// 因此并发的 Send 与 Close 不会触发向已关闭 channel 写入的 panic。
type Client struct {
	id     string
	postID uint
	userID uint
	uname  string
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	once   sync.Once
}

func newClient(id string, postID, userID uint, uname string, hub *Hub, conn *websocket.Conn, buf int) *Client {
	return &Client{
		id:     id,
		postID: postID,
		userID: userID,
		uname:  uname,
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, buf),
		done:   make(chan struct{}),
	}
}

func (c *Client) ID() string { return c.id }

// Send 非阻塞地把消息放入发送队列。
func (c *Client) Send(msg []byte) error {
	select {
	case <-c.done:
		return ErrSessionClosed
	default:
	}
	select {
	case c.send <- msg:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Close 只执行一次：离开房间、通知写协程退出并关闭底层连接。
// 对端断开、写失败和进程关停都会调用它。
func (c *Client) Close() {
	c.once.Do(func() {
		c.hub.Leave(c.postID, c)
		close(c.done)
		if c.conn != nil {
			// WriteControl 可以与写协程并发调用
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(time.Second))
			_ = c.conn.Close()
		}
	})
}

func (c *Client) writePump(pingInterval, writeWait time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.Close()
	}()
	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			_, _ = w.Write(message)
			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
