package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"civicgrid/internal/protocol"
	"civicgrid/internal/sim/multiroom"
	"civicgrid/internal/sim/room"
)

const outQueueSize = 16

type Server struct {
	mgr *multiroom.Manager
	log *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(mgr *multiroom.Manager, logger *log.Logger) *Server {
	return &Server{
		mgr: mgr,
		log: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		rm, playerID, out := s.handshake(conn)
		if playerID == "" {
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-out:
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil {
				continue
			}
			if !protocol.IsTxType(base.Type) {
				continue
			}
			var tx protocol.TxMsg
			if err := json.Unmarshal(msg, &tx); err != nil {
				continue
			}
			rm.Inbox() <- room.TxEnvelope{PlayerID: playerID, Msg: tx}
		}

		// Cleanup.
		rm.Leave() <- playerID
		s.mgr.Release(rm.ID())
	}
}

// handshake expects HELLO as the first frame, routes the player to a room,
// and sends WELCOME, CATALOG, and the full STATE before any other traffic.
func (s *Server) handshake(conn *websocket.Conn) (*room.Room, string, chan []byte) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil, "", nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return nil, "", nil
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return nil, "", nil
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"), time.Now().Add(time.Second))
		return nil, "", nil
	}
	if hello.PlayerName == "" {
		hello.PlayerName = "player"
	}
	resumeToken := strings.TrimSpace(hello.ResumeToken)

	rm, err := s.mgr.Route(hello.RoomPreference, resumeToken)
	if err != nil {
		s.log.Printf("ws: route failed: %v", err)
		return nil, "", nil
	}

	out := make(chan []byte, outQueueSize)
	respCh := make(chan room.JoinResponse, 1)
	rm.Join() <- room.JoinRequest{
		Name:        hello.PlayerName,
		ResumeToken: resumeToken,
		Out:         out,
		Resp:        respCh,
	}
	resp := <-respCh

	s.mgr.Bind(resp.Welcome.ResumeToken, rm.ID())

	// The player is joined from here on: any failure must undo the join
	// and give the room slot back, or the seat stays occupied by a ghost.
	for _, frame := range []any{resp.Welcome, resp.Catalog, resp.State} {
		if err := writeJSON(conn, frame); err != nil {
			rm.Leave() <- resp.Welcome.PlayerID
			s.mgr.Release(rm.ID())
			return nil, "", nil
		}
	}

	return rm, resp.Welcome.PlayerID, out
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
