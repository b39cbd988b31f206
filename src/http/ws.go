// MIT License
//
// Copyright (c) 2025 agrismart-core
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// go/src/http/ws.go
package httpapi

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	types "github.com/agrismart-core/go/src/core/record"
	logger "github.com/agrismart-core/go/src/log"
)

const wsWriteTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The feed is broadcast-only public data.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// BlockHub fans mined blocks out to websocket subscribers. It consumes the
// engine's block feed channel; subscribers that cannot keep up are dropped.
type BlockHub struct {
	feed <-chan *types.Block

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

// NewBlockHub builds a hub over the engine's block feed.
func NewBlockHub(feed <-chan *types.Block) *BlockHub {
	return &BlockHub{
		feed:    feed,
		clients: make(map[*websocket.Conn]struct{}),
	}
}

// Run consumes the block feed until ctx is cancelled, broadcasting each mined
// block to every connected subscriber. Call it from its own goroutine.
func (h *BlockHub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case block, ok := <-h.feed:
			if !ok {
				h.closeAll()
				return
			}
			h.broadcast(block)
		}
	}
}

func (h *BlockHub) broadcast(block *types.Block) {
	payload := block.Serialize()

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteJSON(payload); err != nil {
			logger.Warnf("Dropping block feed subscriber: %v", err)
			conn.Close()
			delete(h.clients, conn)
		}
	}
}

func (h *BlockHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.Close()
		delete(h.clients, conn)
	}
}

// Subscribe upgrades an HTTP request to a websocket subscription. The
// connection only receives; inbound frames are read and discarded to service
// control messages.
func (h *BlockHub) Subscribe(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warnf("Websocket upgrade failed: %v", err)
		return
	}

	h.mu.Lock()
	h.clients[conn] = struct{}{}
	h.mu.Unlock()
	logger.Debugf("Block feed subscriber connected from %s", conn.RemoteAddr())

	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.mu.Lock()
				if _, ok := h.clients[conn]; ok {
					conn.Close()
					delete(h.clients, conn)
				}
				h.mu.Unlock()
				return
			}
		}
	}()
}
