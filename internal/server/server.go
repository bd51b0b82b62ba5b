// Package server exposes roller sessions over telnet, WebSocket and a
// stateless JSON API.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"

	"github.com/lawnchairsociety/combatroller/internal/command"
	"github.com/lawnchairsociety/combatroller/internal/config"
	"github.com/lawnchairsociety/combatroller/internal/dice"
	"github.com/lawnchairsociety/combatroller/internal/help"
	"github.com/lawnchairsociety/combatroller/internal/logger"
	"github.com/lawnchairsociety/combatroller/internal/session"
	"github.com/lawnchairsociety/combatroller/internal/throttle"
)

const welcomeMessage = "Welcome to the combat roller. Type 'help' for commands."

// Server runs the telnet listener and the HTTP handler. Every connection
// gets its own session and random source.
type Server struct {
	listener     net.Listener
	httpServer   *http.Server
	config       *config.ServerConfig
	help         *help.Help
	connLimiter  *ConnLimiter
	apiThrottle  *IPThrottle
	clients      map[Client]struct{}
	mu           sync.RWMutex
	shutdown     chan struct{}
	shutdownOnce sync.Once
	StartTime    time.Time

	seeded    bool
	seed      uint64
	connCount atomic.Uint64
}

// NewServer creates a server. A nil config uses the defaults; a nil help
// uses the built-in help text.
func NewServer(cfg *config.ServerConfig, h *help.Help) *Server {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if h == nil {
		h = help.Default()
	}
	return &Server{
		config:      cfg,
		help:        h,
		connLimiter: NewConnLimiter(cfg.Connections),
		apiThrottle: NewIPThrottle(throttle.FromServerConfig(cfg.Throttle)),
		clients:     make(map[Client]struct{}),
		shutdown:    make(chan struct{}),
		StartTime:   time.Now(),
	}
}

// SetSeed makes every source deterministic: connection n rolls from seed+n.
func (s *Server) SetSeed(seed uint64) {
	s.seeded = true
	s.seed = seed
}

// Addr returns the telnet listener's address, or nil before Start listens.
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// newSource returns a fresh random source for one connection or request.
func (s *Server) newSource() dice.Source {
	n := s.connCount.Add(1)
	if s.seeded {
		return dice.NewSource(s.seed + n)
	}

	src, err := dice.NewRandomSource()
	if err != nil {
		logger.Warning("Falling back to shared random source", "error", err)
		return dice.DefaultSource
	}
	return src
}

// Start listens for telnet connections on address and blocks until Shutdown.
func (s *Server) Start(address string) error {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("failed to start telnet listener: %w", err)
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	logger.Info("Telnet server listening", "address", listener.Addr().String())

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-s.shutdown:
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			logger.Error("Error accepting connection", "error", err)
			continue
		}

		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	remoteAddr := conn.RemoteAddr().String()
	ip := extractIP(remoteAddr)

	if !s.connLimiter.TryAcquire(ip) {
		logger.Warning("Connection rejected - limit exceeded",
			"remote_addr", remoteAddr,
			"ip", ip)
		conn.Write([]byte("Too many connections. Please try again later.\r\n"))
		conn.Close()
		return
	}

	defer func() {
		s.connLimiter.Release(ip)
		conn.Close()
	}()

	s.handleClient(NewTelnetClient(conn, s.config.Connections.MaxLineLength))
}

// clientIP keys HTTP clients for the connection limiter and API throttle.
func (s *Server) clientIP(r *http.Request) string {
	return getRealIP(r, s.config.Connections.TrustProxyHeaders)
}

// clientContext is the command.Context for one connection.
type clientContext struct {
	session  *session.Session
	help     *help.Help
	throttle *throttle.Tracker
}

func (c *clientContext) GetSession() command.SessionInterface { return c.session }

func (c *clientContext) GetHelp() *help.Help { return c.help }

func (c *clientContext) CheckThrottle() throttle.CheckResult { return c.throttle.Check() }

// handleClient is the shared client handling logic for both telnet and WebSocket.
func (s *Server) handleClient(client Client) {
	remoteAddr := client.RemoteAddr()
	logger.Info("Client connected", "remote_addr", remoteAddr)

	s.mu.Lock()
	s.clients[client] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.clients, client)
		s.mu.Unlock()
		logger.Info("Client disconnected", "remote_addr", remoteAddr)
	}()

	ctx := &clientContext{
		session:  session.New(s.newSource(), s.config.Rolls.AttackOptions()),
		help:     s.help,
		throttle: throttle.NewTracker(throttle.FromServerConfig(s.config.Throttle)),
	}

	if err := client.WriteResponse(command.Response{Kind: command.KindInfo, Text: welcomeMessage}); err != nil {
		return
	}

	for {
		line, err := client.ReadLine()
		if err != nil {
			logger.Debug("Read ended", "remote_addr", remoteAddr, "error", err)
			return
		}

		cmd := command.Parse(line)
		if cmd.Name == "" {
			continue
		}

		resp := command.Execute(ctx, cmd)
		logger.Debug("Command executed",
			"remote_addr", remoteAddr,
			"command", cmd.Name,
			"kind", string(resp.Kind))

		if err := client.WriteResponse(resp); err != nil {
			logger.Info("Write failed", "remote_addr", remoteAddr, "error", err)
			return
		}
		if resp.Kind == command.KindQuit {
			return
		}
	}
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Router builds the HTTP handler: the browser page, the WebSocket endpoint
// and the JSON API.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/", s.handleIndex)
	r.Get("/ws", s.handleWebSocketUpgrade)

	r.Route("/api", func(rr chi.Router) {
		rr.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.corsOrigins(),
			AllowedMethods: []string{"POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         60 * 15,
		}))
		rr.Post("/attack", s.handleAPIAttack)
		rr.Post("/damage", s.handleAPIDamage)
	})

	return r
}

// corsOrigins reuses the WebSocket allow list; an empty list allows all
// origins since the API keeps no state.
func (s *Server) corsOrigins() []string {
	if len(s.config.WebSocket.AllowedOrigins) == 0 {
		return []string{"*"}
	}
	return s.config.WebSocket.AllowedOrigins
}

// StartHTTP serves Router on address and blocks until Shutdown.
func (s *Server) StartHTTP(address string) error {
	srv := &http.Server{
		Addr:              address,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.mu.Lock()
	s.httpServer = srv
	s.mu.Unlock()

	logger.Info("HTTP server listening", "address", address)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// handleWebSocketUpgrade upgrades an HTTP connection to WebSocket.
func (s *Server) handleWebSocketUpgrade(w http.ResponseWriter, r *http.Request) {
	clientIP := s.clientIP(r)

	if !s.connLimiter.TryAcquire(clientIP) {
		logger.Warning("WebSocket connection rejected - limit exceeded",
			"remote_addr", r.RemoteAddr,
			"client_ip", clientIP)
		http.Error(w, "Too many connections. Please try again later.", http.StatusTooManyRequests)
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			allowed := s.config.WebSocket.IsOriginAllowed(origin, r.Host)
			if !allowed {
				logger.Warning("WebSocket connection rejected - origin not allowed",
					"origin", origin,
					"host", r.Host,
					"remote_addr", r.RemoteAddr)
			}
			return allowed
		},
	}

	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Info("WebSocket upgrade failed", "error", err)
		s.connLimiter.Release(clientIP)
		return
	}
	if s.config.WebSocket.MaxMessageSize > 0 {
		wsConn.SetReadLimit(s.config.WebSocket.MaxMessageSize)
	}

	go func() {
		defer func() {
			s.connLimiter.Release(clientIP)
			wsConn.Close()
		}()
		s.handleClient(NewWebSocketClient(wsConn))
	}()
}

// Shutdown closes the listeners and every open connection. It is safe to
// call more than once.
func (s *Server) Shutdown() {
	s.shutdownOnce.Do(func() {
		close(s.shutdown)

		s.mu.Lock()
		listener, httpServer := s.listener, s.httpServer
		clients := make([]Client, 0, len(s.clients))
		for client := range s.clients {
			clients = append(clients, client)
		}
		s.mu.Unlock()

		if listener != nil {
			listener.Close()
		}
		if httpServer != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := httpServer.Shutdown(ctx); err != nil {
				logger.Warning("HTTP shutdown incomplete", "error", err)
			}
			cancel()
		}

		// Hijacked WebSocket connections are not closed by http.Server.Shutdown
		for _, client := range clients {
			client.Close()
		}

		s.apiThrottle.Stop()

		logger.Info("Server shutdown complete", "clients_closed", len(clients))
	})
}
