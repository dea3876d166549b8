package stomp

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/woutdenolf/coilmq/api"
	"github.com/woutdenolf/coilmq/config"
	"github.com/woutdenolf/coilmq/shared/logging"
	"github.com/woutdenolf/coilmq/shared/thirdpartyshared/ginshared"
	"github.com/woutdenolf/coilmq/shared/workgroup"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/net/netutil"
)

// Server wires the broker together: the store, the destination managers,
// authentication, the tcp and websocket transports and the management api.
type Server struct {
	cfg     *config.CoilConfig
	metrics *Metrics
	auth    Authenticator
	store   Store
	queues  *QueueManager
	topics  *TopicManager

	listener     net.Listener
	wsServer     *http.Server
	wsAddr       net.Addr
	manageServer *http.Server
	manageAddr   net.Addr
	sessionGroup sync.WaitGroup

	handlerLock sync.Mutex
	handlers    map[*connHandler]bool

	closeCh   chan struct{}
	closeOnce sync.Once
}

// NewServer assembles a stopped broker from the configuration. Call Start to
// open the listeners.
func NewServer(cfg *config.CoilConfig) (*Server, error) {
	logging.SetLevelFromString(cfg.Broker.LogLevel)

	store, err := NewStore(cfg.Store)
	if err != nil {
		return nil, err
	}
	queueScheduler, err := NewQueueScheduler(cfg.Broker.QueueScheduler, store)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	subscriberScheduler, err := NewSubscriberScheduler(cfg.Broker.SubscriberScheduler)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	metrics := NewMetrics(prometheus.NewRegistry())
	return &Server{
		cfg:      cfg,
		metrics:  metrics,
		auth:     NewAuthenticator(cfg.Auth),
		store:    store,
		queues:   NewQueueManager(store, subscriberScheduler, queueScheduler, metrics),
		topics:   NewTopicManager(metrics),
		handlers: make(map[*connHandler]bool),
		closeCh:  make(chan struct{}),
	}, nil
}

// Start opens the stomp listener, the websocket endpoint and the management
// api, then returns. The broker keeps serving until Shutdown. On a partial
// failure the caller still owns Shutdown to release what did start.
func (s *Server) Start() error {
	select {
	case <-s.closeCh:
		return ErrServerClosed
	default:
	}

	ln, err := net.Listen("tcp", s.cfg.Broker.Listen)
	if err != nil {
		return err
	}
	if s.cfg.Broker.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, s.cfg.Broker.MaxConnections)
	}
	s.listener = ln
	workgroup.WithFailOver().Run(s.acceptLoop)
	_serviceLogger.Infof("stomp listener on:[%s]", ln.Addr())

	if !s.cfg.Broker.WebSocket.Disable {
		wsListener, err := net.Listen("tcp", s.cfg.Broker.WebSocket.Listen)
		if err != nil {
			return err
		}
		mux := http.NewServeMux()
		mux.Handle(api.WebSocketPath, websocketHandler{server: s})
		s.wsServer = &http.Server{
			Handler:     mux,
			ReadTimeout: 10 * time.Second,
		}
		s.wsAddr = wsListener.Addr()
		go func() {
			if err := s.wsServer.Serve(wsListener); err != nil && err != http.ErrServerClosed {
				_serviceLogger.Errorf("websocket server stopped serving:[%s]", err)
			}
		}()
		_serviceLogger.Infof("websocket listener on:[%s]", wsListener.Addr())
	}

	if !s.cfg.Manage.Disable {
		manageListener, err := net.Listen("tcp", s.cfg.Manage.Listen)
		if err != nil {
			return err
		}
		s.manageAddr = manageListener.Addr()
		s.manageServer = ginshared.StartBareMetalGinServer(manageListener, newManageEngine(s))
		_serviceLogger.Infof("management api on:[%s]", manageListener.Addr())
	}

	return nil
}

// Addr reports the stomp listener address, nil before Start. Handy when the
// configuration asked for port 0.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// WebSocketAddr reports the websocket listener address, nil when disabled or
// before Start.
func (s *Server) WebSocketAddr() net.Addr {
	return s.wsAddr
}

// ManageAddr reports the management api address, nil when disabled or before
// Start.
func (s *Server) ManageAddr() net.Addr {
	return s.manageAddr
}

func (s *Server) acceptLoop() bool {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return true
			}
			select {
			case <-s.closeCh:
				return true
			default:
			}
			_serviceLogger.Errorf("accept connection failed:[%s]", err)
			continue
		}
		s.sessionGroup.Add(1)
		go func() {
			defer s.sessionGroup.Done()
			s.serveConn(conn)
		}()
	}
}

// serveConn runs one session to completion. The websocket transport calls it
// synchronously from ServeHTTP so http.Server tracks those sessions itself.
func (s *Server) serveConn(conn net.Conn) {
	h := newConnHandler(s, conn)
	if !s.addHandler(h) {
		_ = conn.Close()
		return
	}
	s.metrics.IncConnections()
	defer s.metrics.DecConnections()
	h.serve()
}

func (s *Server) addHandler(h *connHandler) bool {
	s.handlerLock.Lock()
	defer s.handlerLock.Unlock()
	if s.handlers == nil {
		return false
	}
	s.handlers[h] = true
	return true
}

func (s *Server) removeHandler(h *connHandler) {
	s.handlerLock.Lock()
	defer s.handlerLock.Unlock()
	delete(s.handlers, h)
}

// ConnectionCount reports the number of live sessions.
func (s *Server) ConnectionCount() int {
	s.handlerLock.Lock()
	defer s.handlerLock.Unlock()
	return len(s.handlers)
}

// Shutdown stops the listeners, tears down every live session and closes the
// store. Safe to call after a partial Start.
func (s *Server) Shutdown(ctx context.Context) error {
	s.closeOnce.Do(func() {
		close(s.closeCh)
	})

	if s.listener != nil {
		_ = s.listener.Close()
	}

	s.handlerLock.Lock()
	handlers := s.handlers
	s.handlers = nil
	s.handlerLock.Unlock()
	for h := range handlers {
		h.shutdown()
	}

	if s.wsServer != nil {
		_ = s.wsServer.Shutdown(ctx)
	}
	if s.manageServer != nil {
		_ = s.manageServer.Shutdown(ctx)
	}

	// sessions flush and tear down concurrently, wait for them so the store
	// is not closed under a live dispatch
	done := make(chan struct{})
	go func() {
		s.sessionGroup.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		_serviceLogger.Warnf("giving up waiting for sessions:[%s]", ctx.Err())
	}

	return s.store.Close()
}
