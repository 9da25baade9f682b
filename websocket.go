package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	configpkg "starfolio/navigator/internal/config"
	"starfolio/navigator/internal/logging"
	"starfolio/navigator/internal/pilot"
	"starfolio/navigator/internal/wire"
)

const (
	sendBuffer   = 256
	writeTimeout = 10 * time.Second
)

var errSlowConsumer = errors.New("pilot is not draining frames")

type outbound struct {
	binary  bool
	payload []byte
}

// websocketServer upgrades pilots onto /ws and runs one runtime per connection.
type websocketServer struct {
	host          *Host
	baseCtx       context.Context
	upgrader      websocket.Upgrader
	authenticator websocketAuthenticator
	maxPayload    int64
	pingInterval  time.Duration
	logger        *logging.Logger
}

func newWebsocketServer(ctx context.Context, cfg *configpkg.Config, host *Host, authenticator websocketAuthenticator, logger *logging.Logger) *websocketServer {
	if authenticator == nil {
		authenticator = allowAllAuthenticator{}
	}
	if logger == nil {
		logger = logging.L()
	}
	allowed := make(map[string]struct{}, len(cfg.AllowedOrigins))
	for _, origin := range cfg.AllowedOrigins {
		allowed[origin] = struct{}{}
	}
	return &websocketServer{
		host:    host,
		baseCtx: ctx,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if len(allowed) == 0 || origin == "" {
					return true
				}
				_, ok := allowed[origin]
				return ok
			},
		},
		authenticator: authenticator,
		maxPayload:    cfg.MaxPayloadBytes,
		pingInterval:  cfg.PingInterval,
		logger:        logger,
	}
}

// ServeHTTP admits the pilot, upgrades and blocks until the session ends.
func (s *websocketServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	//1.- Resolve identity and frame format before taking a slot.
	pilotID, err := s.authenticator.Authenticate(r)
	if err != nil {
		s.logger.Warn("websocket authentication failed", logging.String("remote", r.RemoteAddr), logging.Error(err))
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	query := r.URL.Query()
	format, err := wire.ParseFormat(query.Get("encoding"), query.Get("compress"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	runtime, err := s.host.NewRuntime(pilotID, "ws", format)
	if err != nil {
		status := http.StatusServiceUnavailable
		if errors.Is(err, errSessionActive) {
			status = http.StatusConflict
		}
		http.Error(w, err.Error(), status)
		return
	}

	//2.- Upgrade; the upgrader has already answered the client on failure.
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		runtime.Close()
		s.logger.Warn("websocket upgrade failed", logging.Error(err))
		return
	}
	defer conn.Close()
	logger := runtime.Logger()

	hello, err := json.Marshal(runtime.Hello())
	if err == nil {
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		err = conn.WriteMessage(websocket.TextMessage, hello)
	}
	if err != nil {
		runtime.Close()
		logger.Warn("sending hello failed", logging.Error(err))
		return
	}

	ctx, cancel := context.WithCancel(s.baseCtx)
	defer cancel()

	//3.- One reader feeds the runtime; one writer owns the connection from here on.
	send := make(chan outbound, sendBuffer)
	go s.readLoop(ctx, cancel, conn, runtime)
	writeDone := make(chan struct{})
	go func() {
		defer close(writeDone)
		s.writeLoop(ctx, cancel, conn, send, logger)
	}()

	binary := format.Binary()
	_ = runtime.Run(ctx, func(d pilot.Delivery) error {
		select {
		case send <- outbound{binary: binary, payload: d.Payload}:
			return nil
		default:
			return errSlowConsumer
		}
	})
	cancel()
	<-writeDone
}

func (s *websocketServer) readLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, runtime *pilot.Runtime) {
	defer cancel()
	logger := runtime.Logger()
	if s.maxPayload > 0 {
		conn.SetReadLimit(s.maxPayload)
	}
	if s.pingInterval > 0 {
		pongWait := 2 * s.pingInterval
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("websocket read ended", logging.Error(err))
			}
			return
		}
		msg, err := wire.DecodeControl(data)
		if err != nil {
			logger.Debug("ignoring malformed control", logging.Error(err))
			continue
		}
		switch err := runtime.Submit(msg, time.Now()); {
		case err == nil:
		case errors.Is(err, pilot.ErrClosed):
			return
		case errors.Is(err, pilot.ErrGated):
			logger.Debug("joystick sample dropped", logging.Error(err))
		default:
			logger.Warn("control rejected", logging.Error(err))
		}
	}
}

func (s *websocketServer) writeLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, send <-chan outbound, logger *logging.Logger) {
	defer cancel()
	var pings <-chan time.Time
	if s.pingInterval > 0 {
		ticker := time.NewTicker(s.pingInterval)
		defer ticker.Stop()
		pings = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			deadline := time.Now().Add(time.Second)
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
			return
		case msg := <-send:
			messageType := websocket.TextMessage
			if msg.binary {
				messageType = websocket.BinaryMessage
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(messageType, msg.payload); err != nil {
				logger.Debug("websocket write failed", logging.Error(err))
				return
			}
		case <-pings:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				logger.Debug("websocket ping failed", logging.Error(err))
				return
			}
		}
	}
}
