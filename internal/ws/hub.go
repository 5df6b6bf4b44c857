// Package ws pushes live attendance updates to admin dashboards.
package ws

import (
	"encoding/json"
	"log"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zaqqye/training_qr_backend/internal/attendance"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 256
)

type message struct {
	programID uint
	payload   []byte
}

// AttendanceHub fans attendance events out to websocket clients. A client
// follows one program, or every program when it subscribed without one.
type AttendanceHub struct {
	register   chan *client
	unregister chan *client
	broadcast  chan message
	clients    map[*client]struct{}
	done       chan struct{}
	active     atomic.Int64
}

func NewAttendanceHub() *AttendanceHub {
	return &AttendanceHub{
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan message, 256),
		clients:    make(map[*client]struct{}),
		done:       make(chan struct{}),
	}
}

func (h *AttendanceHub) Run() {
	for {
		select {
		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.active.Add(1)
		case c := <-h.unregister:
			h.drop(c)
		case msg := <-h.broadcast:
			for c := range h.clients {
				if c.programID != 0 && c.programID != msg.programID {
					continue
				}
				select {
				case c.send <- msg.payload:
				default:
					h.drop(c)
				}
			}
		case <-h.done:
			for c := range h.clients {
				h.drop(c)
			}
			return
		}
	}
}

// Subscribers is the number of connected clients.
func (h *AttendanceHub) Subscribers() int {
	return int(h.active.Load())
}

// Stop disconnects every client and ends Run.
func (h *AttendanceHub) Stop() {
	close(h.done)
}

func (h *AttendanceHub) drop(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	h.active.Add(-1)
	close(c.send)
	c.conn.Close()
}

// Publish queues ev for subscribers of programID. It never blocks the caller:
// when the queue is full the event is dropped and logged.
func (h *AttendanceHub) Publish(programID uint, ev attendance.Event) {
	if h == nil {
		return
	}
	data, err := json.Marshal(ev)
	if err != nil {
		log.Printf("ws: failed to marshal payload: %v", err)
		return
	}
	select {
	case h.broadcast <- message{programID: programID, payload: data}:
	default:
		log.Printf("ws: broadcast queue full, dropping event for program %d", programID)
	}
}

type client struct {
	hub       *AttendanceHub
	conn      *websocket.Conn
	send      chan []byte
	programID uint
}

func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
	}()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			if _, err := w.Write(msg); err != nil {
				return
			}
			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
