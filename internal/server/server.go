package server

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"minired/internal/config"
	"minired/internal/handler"
	"minired/internal/metrics"
	"minired/internal/persistence"
	"minired/internal/protocol"
	"minired/internal/storage"
)

// Server accepts TCP clients, frames their command lines and drives the
// background cadence. Dispatch and background ticks serialize on a single
// mutex, so the keyspace has exactly one owner at a time and mutations
// form a total order.
type Server struct {
	cfg     *config.Config
	store   *storage.Store
	handler *handler.CommandHandler
	persist *persistence.Manager
	metrics *metrics.Metrics

	listenerMu sync.Mutex
	listener   net.Listener

	// dispatchMu is the keyspace ownership lock: one command or one
	// background tick at a time.
	dispatchMu sync.Mutex

	connections     sync.Map
	connIDCounter   atomic.Int64
	activeConnCount atomic.Int64

	wg           sync.WaitGroup
	shutdownChan chan struct{}
	shutdownOnce sync.Once
}

// New builds the full server stack from config.
func New(cfg *config.Config) (*Server, error) {
	store := storage.NewStore()

	m := metrics.New()

	persist, err := persistence.NewManager(cfg)
	if err != nil {
		return nil, err
	}

	h := handler.NewCommandHandler(store, persist, cfg, m)

	s := &Server{
		cfg:          cfg,
		store:        store,
		handler:      h,
		persist:      persist,
		metrics:      m,
		shutdownChan: make(chan struct{}),
	}

	// Startup recovery runs before any client is accepted, so it needs no
	// locking.
	if persist.Enabled() {
		persist.Recover(store, h.Replay)
	}

	return s, nil
}

// Start binds the listener and runs until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to start listener: %w", err)
	}
	s.listenerMu.Lock()
	s.listener = listener
	s.listenerMu.Unlock()
	log.Info().Str("addr", addr).Msg("server listening")

	s.metrics.Serve(s.cfg.MetricsAddr)

	go s.acceptConnections()
	go s.backgroundLoop()

	<-ctx.Done()
	s.Shutdown()
	return nil
}

func (s *Server) acceptConnections() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.shutdownChan:
				return
			default:
				log.Error().Err(err).Msg("accept error")
				continue
			}
		}

		s.metrics.ConnectionsTotal.Inc()
		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()

	connID := s.connIDCounter.Add(1)
	s.activeConnCount.Add(1)
	s.metrics.ActiveConnections.Inc()
	defer func() {
		s.activeConnCount.Add(-1)
		s.metrics.ActiveConnections.Dec()
	}()

	client := &handler.Client{
		ID:   connID,
		Conn: conn,
	}

	s.connections.Store(connID, conn)
	defer s.connections.Delete(connID)
	defer conn.Close()
	defer s.disconnect(client)

	reader := bufio.NewReader(conn)
	for {
		select {
		case <-s.shutdownChan:
			return
		default:
		}

		line, err := reader.ReadString('\n')
		if err != nil {
			if err != io.EOF {
				select {
				case <-s.shutdownChan:
				default:
					log.Debug().Err(err).Int64("client", connID).Msg("read error")
				}
			}
			return
		}

		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			continue
		}

		cmd, err := protocol.ParseLine(line)
		if err != nil {
			if werr := client.Write(protocol.EncodeError(fmt.Sprintf("ERR %v", err))); werr != nil {
				return
			}
			continue
		}

		response := s.execute(client, cmd)
		if err := client.Write(response); err != nil {
			log.Debug().Err(err).Int64("client", connID).Msg("write error")
			return
		}
	}
}

// execute runs one command while holding the keyspace lock.
func (s *Server) execute(client *handler.Client, cmd *protocol.Command) []byte {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()
	return s.handler.Execute(client, cmd)
}

func (s *Server) disconnect(client *handler.Client) {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()
	s.handler.Disconnect(client)
}

// backgroundLoop drives sampled expiration and persistence evaluation on
// the configured cadence.
func (s *Server) backgroundLoop() {
	cleanupTicker := time.NewTicker(s.cfg.CleanupInterval)
	persistTicker := time.NewTicker(s.cfg.PersistenceInterval)
	defer cleanupTicker.Stop()
	defer persistTicker.Stop()

	for {
		select {
		case <-s.shutdownChan:
			return

		case <-cleanupTicker.C:
			s.dispatchMu.Lock()
			expired := s.store.CleanupExpiredKeys()
			s.metrics.KeyspaceSize.Set(float64(s.store.KeyCount()))
			s.metrics.MemoryUsage.Set(float64(s.store.MemoryUsage()))
			s.dispatchMu.Unlock()
			if expired > 0 {
				s.metrics.ExpiredKeys.Add(float64(expired))
				log.Debug().Int("count", expired).Msg("expired keys reclaimed")
			}

		case <-persistTicker.C:
			if !s.persist.Enabled() {
				continue
			}
			s.dispatchMu.Lock()
			s.persist.PeriodicTasks(s.store.Snapshot)
			s.dispatchMu.Unlock()
		}
	}
}

// Shutdown stops accepting, closes clients, syncs the AOF and releases
// resources. Safe to call more than once.
func (s *Server) Shutdown() {
	s.shutdownOnce.Do(func() {
		log.Info().Msg("initiating graceful shutdown")
		close(s.shutdownChan)

		s.listenerMu.Lock()
		if s.listener != nil {
			s.listener.Close()
		}
		s.listenerMu.Unlock()

		s.connections.Range(func(key, value interface{}) bool {
			if conn, ok := value.(net.Conn); ok {
				conn.Close()
			}
			return true
		})

		done := make(chan struct{})
		go func() {
			s.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			log.Warn().Msg("shutdown timeout reached, forcing exit")
		}

		if err := s.persist.SyncAOF(); err != nil {
			log.Error().Err(err).Msg("final AOF sync failed")
		}
		if err := s.persist.Close(); err != nil {
			log.Error().Err(err).Msg("closing persistence failed")
		}

		log.Info().Msg("server shutdown complete")
	})
}

// Handler exposes the dispatcher, for tests.
func (s *Server) Handler() *handler.CommandHandler {
	return s.handler
}

// Addr returns the bound listener address, nil before Start.
func (s *Server) Addr() net.Addr {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}
