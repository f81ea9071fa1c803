package server

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/chatroomd/chatroomd/internal/config"
	"github.com/chatroomd/chatroomd/internal/database"
	"github.com/chatroomd/chatroomd/internal/stats"
	"github.com/chatroomd/chatroomd/internal/types"
	"github.com/gorilla/websocket"
)

const (
	metricConnections = "NumConnections"
	metricLoadedRooms = "NumLoadedRooms"
	metricMessages    = "NumMessages"
	metricErrors      = "NumErrors"
)

// roomHandle is the in-process anchor for one room: its persistent id
// and the lock that serializes commit+broadcast so messages reach every
// member in commit order.
type roomHandle struct {
	id         int
	externalId string
	mu         sync.Mutex
}

type ChatServer struct {
	log          *log.Logger
	db           database.Repository
	stats        stats.Provider
	registry     *ConnectionRegistry
	index        *RoomIndex
	broadcaster  *Broadcaster
	rooms        map[string]*roomHandle
	roomsMu      sync.Mutex
	clients      map[*Client]struct{}
	clientsMu    sync.Mutex
	wg           sync.WaitGroup
	storeTimeout time.Duration
	historyLimit int
}

func NewChatServer(logger *log.Logger, db database.Repository, su stats.Provider, cfg *config.Config) (*ChatServer, error) {
	if db == nil {
		return nil, errors.New("database repository is required")
	}

	registry := NewConnectionRegistry()
	index := NewRoomIndex()

	cs := &ChatServer{
		log:          logger,
		db:           db,
		stats:        su,
		registry:     registry,
		index:        index,
		broadcaster:  NewBroadcaster(registry, index, logger),
		rooms:        make(map[string]*roomHandle),
		clients:      make(map[*Client]struct{}),
		storeTimeout: cfg.StoreTimeout,
		historyLimit: cfg.HistoryLimit,
	}

	su.RegisterMetric(metricConnections)
	su.RegisterMetric(metricLoadedRooms)
	su.RegisterMetric(metricMessages)
	su.RegisterMetric(metricErrors)

	return cs, nil
}

// ServeConn runs a verified connection until its transport closes. It
// blocks in the read pump; callers invoke it from the connection's own
// goroutine (an HTTP handler after upgrade).
func (cs *ChatServer) ServeConn(user types.User, conn *websocket.Conn) {
	c := NewClient(user, conn, cs, cs.log)

	cs.wg.Add(1)
	defer cs.wg.Done()

	cs.addClient(c)
	cs.handleConnect(c)

	go c.Write()
	c.Read()
}

func (cs *ChatServer) addClient(c *Client) {
	cs.clientsMu.Lock()
	defer cs.clientsMu.Unlock()
	cs.clients[c] = struct{}{}
}

func (cs *ChatServer) removeClient(c *Client) {
	cs.clientsMu.Lock()
	defer cs.clientsMu.Unlock()
	delete(cs.clients, c)
}

// storeCtx bounds a persistence call; no handler blocks indefinitely on
// the store.
func (cs *ChatServer) storeCtx() (context.Context, context.CancelFunc) {
	timeout := cs.storeTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return context.WithTimeout(context.Background(), timeout)
}

// roomHandle returns the handle for a room, creating it on first use.
func (cs *ChatServer) roomHandle(roomId int, externalId string) *roomHandle {
	cs.roomsMu.Lock()
	defer cs.roomsMu.Unlock()

	if rh, ok := cs.rooms[externalId]; ok {
		return rh
	}

	rh := &roomHandle{id: roomId, externalId: externalId}
	cs.rooms[externalId] = rh
	cs.stats.Incr(metricLoadedRooms)

	return rh
}

func (cs *ChatServer) loadedRoom(externalId string) *roomHandle {
	cs.roomsMu.Lock()
	defer cs.roomsMu.Unlock()

	return cs.rooms[externalId]
}

// Shutdown closes every client transport and waits for their
// disconnect paths to finish unwinding registry and index state.
func (cs *ChatServer) Shutdown(ctx context.Context) error {
	cs.clientsMu.Lock()
	clients := make([]*Client, 0, len(cs.clients))
	for c := range cs.clients {
		clients = append(clients, c)
	}
	cs.clientsMu.Unlock()

	for _, c := range clients {
		c.close()
	}

	done := make(chan struct{})
	go func() {
		cs.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
