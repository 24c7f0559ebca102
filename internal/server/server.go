package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/coder/websocket"
	_ "github.com/joho/godotenv/autoload"

	"tabletop-server/internal/table"
)

const (
	sweepInterval     = 1 * time.Minute
	inactivityTimeout = 5 * time.Minute

	// Per-connection message budget for the rate limiter. Cursor traffic
	// is the high-frequency case this has to accommodate.
	rateLimitMessages = 120
	rateLimitWindow   = 1 * time.Second
)

type Server struct {
	port int

	store      RoomStore
	closeStore func()

	scheduler   *SaveScheduler
	roomManager *RoomManager

	connectionManager *ConnectionManager
	rateLimiter       *RateLimiter
	health            *ConnectionHealth

	stopSweep chan struct{}
}

// NewServer wires the full stack: Postgres store, save scheduler, room
// manager, connection tracking. Configuration comes from the environment
// (PORT, DATABASE_URL), with .env loaded automatically.
func NewServer() (*Server, *http.Server, error) {
	port, _ := strconv.Atoi(os.Getenv("PORT"))
	if port == 0 {
		port = 8080
	}

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return nil, nil, fmt.Errorf("DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	store, err := NewStore(ctx, databaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	scheduler := NewSaveScheduler(store)
	s := &Server{
		port:              port,
		store:             store,
		closeStore:        store.Close,
		scheduler:         scheduler,
		roomManager:       NewRoomManager(store, scheduler),
		connectionManager: NewConnectionManager(),
		rateLimiter:       NewRateLimiter(rateLimitMessages, rateLimitWindow),
		health:            NewConnectionHealth(),
		stopSweep:         make(chan struct{}),
	}
	s.roomManager.OnPlayerRemoved = s.notifyPlayerRemoved

	go s.sweepTask()

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return s, httpServer, nil
}

// sweepTask is the periodic janitor: evicts idle rooms, expires stale
// rate limit buckets and closes sockets that went silent without a close
// frame.
func (s *Server) sweepTask() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.roomManager.Sweep()
			s.rateLimiter.Cleanup()

			for _, connID := range s.health.GetInactiveConnections(inactivityTimeout) {
				conn := s.connectionManager.GetConnection(connID)
				if conn == nil {
					s.health.RemoveConnection(connID)
					continue
				}
				log.Printf("Closing inactive connection %s", connID)
				// The read loop's deferred cleanup handles the rest.
				conn.Close(websocket.StatusGoingAway, "Inactive")
			}
		case <-s.stopSweep:
			return
		}
	}
}

// notifyPlayerRemoved tells a room the sweep dropped a long-disconnected
// member.
func (s *Server) notifyPlayerRemoved(room *Room, player *Player, scattered []*table.Card) {
	s.broadcastToRoom(room, "room:playerLeft", PlayerLeftNotification{
		PlayerID:   player.ID,
		PlayerName: player.Name,
		Scattered:  scattered,
	}, "")
}

// Shutdown flushes every room to durable storage and tears down the
// background machinery. The HTTP listener is closed separately by main.
func (s *Server) Shutdown(ctx context.Context) error {
	close(s.stopSweep)

	// Saves every resident room, stops timers, flushes the scheduler.
	s.roomManager.Dispose()

	if s.closeStore != nil {
		s.closeStore()
	}

	log.Println("Server shutdown complete: all rooms persisted")
	return nil
}
