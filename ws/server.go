package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"support-relay/contract"
	"support-relay/domain"
	"support-relay/services"
	"support-relay/sink"
)

// Server owns the websocket endpoint. Each accepted socket becomes one relay
// connection: a read loop feeding commands into the lifecycle queue and a
// write loop draining the connection's sink.
type Server struct {
	log          *slog.Logger
	relay        services.IRelayService
	verifier     contract.IdentityVerifier
	upgrader     websocket.Upgrader
	bufferSize   int
	writeTimeout time.Duration
}

func NewServer(log *slog.Logger, relay services.IRelayService,
	verifier contract.IdentityVerifier, bufferSize int, writeTimeout time.Duration) *Server {
	return &Server{
		log:      log,
		relay:    relay,
		verifier: verifier,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The mobile client connects from app origins; access control
			// happens at identify time, not at upgrade time.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		bufferSize:   bufferSize,
		writeTimeout: writeTimeout,
	}
}

// HandleWS upgrades the HTTP request and runs the connection until either
// side closes. Socket teardown maps to exactly one disconnect, whatever path
// ends the loops first.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("Websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	connID := newConnectionID()
	connSink := sink.NewConnSink(s.bufferSize)
	s.relay.Connect(connID, connSink)

	var once sync.Once
	disconnect := func() {
		once.Do(func() { s.relay.Disconnect(connID) })
	}
	defer disconnect()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go s.writePump(ctx, conn, connSink, connID)
	s.readPump(conn, connID)
}

// readPump decodes inbound frames and forwards them to the relay. Malformed
// frames are dropped and logged, never answered; the loop only exits when
// the socket errors or closes.
func (s *Server) readPump(conn *websocket.Conn, connID domain.ConnectionID) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debug(fmt.Sprintf("Connection %s read error", connID), "error", err)
			}
			return
		}

		var frame InboundFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			s.log.Warn("Dropping undecodable frame", "connection", string(connID), "error", err)
			continue
		}
		if err := frame.Validate(); err != nil {
			s.log.Warn("Dropping malformed frame", "connection", string(connID), "error", err)
			continue
		}

		if frame.Type == TypeIdentify {
			s.identify(connID, frame)
			continue
		}

		if cmd := toCommand(connID, frame); cmd != nil {
			s.relay.Dispatch(cmd)
		}
	}
}

// identify verifies the presented token before any relay state is touched.
// A failed verification never transitions the connection: the event simply
// does not happen.
func (s *Server) identify(connID domain.ConnectionID, frame InboundFrame) {
	identity, err := s.verifier.Verify(frame.Token)
	if err != nil {
		s.log.Warn("Identify rejected", "connection", string(connID), "error", err)
		return
	}
	s.relay.Dispatch(domain.IdentifyCommand{Conn: connID, Identity: identity})
}

// writePump is the socket's single writer: it serializes every notification
// the relay pushed into the sink, and sends the close frame on shutdown.
func (s *Server) writePump(ctx context.Context, conn *websocket.Conn,
	connSink *sink.ConnSink, connID domain.ConnectionID) {
	for {
		select {
		case <-ctx.Done():
			deadline := time.Now().Add(s.writeTimeout)
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
			return
		case n := <-connSink.Events:
			_ = conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			if err := conn.WriteJSON(toFrame(n)); err != nil {
				s.log.Debug(fmt.Sprintf("Connection %s write error", connID), "error", err)
				// Unblock the read loop; the deferred disconnect does the rest.
				_ = conn.Close()
				return
			}
		}
	}
}
