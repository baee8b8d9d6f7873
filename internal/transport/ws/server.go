package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"biomesxp.io/internal/abiform"
	"biomesxp.io/internal/chain"
	"biomesxp.io/internal/display"
	"biomesxp.io/internal/poll"
	"biomesxp.io/internal/protocol"
)

// Resolver binds contract names to deployed contracts.
type Resolver interface {
	Contract(name string) (*chain.Contract, error)
}

// Info is announced to every client in WELCOME.
type Info struct {
	ChainID      uint64
	WorldAddress string
	Contracts    []string
}

// Server streams polled contract reads over WebSocket. Clients subscribe to
// view functions and receive the latest classified result whenever it is
// read.
type Server struct {
	cache     *poll.Cache
	contracts Resolver
	info      Info
	renderer  display.Renderer
	log       *log.Logger

	sessions atomic.Uint64
	upgrader websocket.Upgrader
}

func NewServer(cache *poll.Cache, contracts Resolver, info Info, renderer display.Renderer, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{
		cache:     cache,
		contracts: contracts,
		info:      info,
		renderer:  renderer,
		log:       logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
	return s
}

type session struct {
	id  string
	out chan []byte

	mu   sync.Mutex
	subs map[string]func()
	wg   sync.WaitGroup
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sess := s.handshake(conn)
		if sess == nil {
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
				case b := <-sess.out:
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
			_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil {
				s.send(ctx, sess, protocol.NewError("", protocol.ErrProtoBadRequest, "bad json"))
				continue
			}
			if base.ProtocolVersion != protocol.Version {
				s.send(ctx, sess, protocol.NewError("", protocol.ErrProtoVersion, "bad protocol_version"))
				continue
			}
			switch base.Type {
			case protocol.TypeSubscribe:
				var sub protocol.SubscribeMsg
				if err := json.Unmarshal(msg, &sub); err != nil {
					s.send(ctx, sess, protocol.NewError("", protocol.ErrProtoBadRequest, err.Error()))
					continue
				}
				if code, err := s.subscribe(ctx, sess, sub); err != nil {
					s.send(ctx, sess, protocol.NewError(sub.SubID, code, err.Error()))
				}
			case protocol.TypeUnsubscribe:
				var un protocol.UnsubscribeMsg
				if err := json.Unmarshal(msg, &un); err != nil {
					continue
				}
				sess.unsubscribe(un.SubID)
			default:
				s.send(ctx, sess, protocol.NewError("", protocol.ErrProtoBadRequest, "unexpected "+base.Type))
			}
		}

		// Cleanup.
		sess.closeAll()
		sess.wg.Wait()
		s.log.Printf("session %s closed", sess.id)
	}
}

func (s *Server) handshake(conn *websocket.Conn) *session {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return nil
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return nil
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"), time.Now().Add(time.Second))
		return nil
	}

	maxQ := hello.MaxQueue
	if maxQ <= 0 {
		maxQ = 16
	}
	if maxQ > 256 {
		maxQ = 256
	}
	sess := &session{
		id:   fmt.Sprintf("S%d", s.sessions.Add(1)),
		out:  make(chan []byte, maxQ),
		subs: map[string]func(){},
	}

	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       sess.id,
		ChainID:         s.info.ChainID,
		WorldAddress:    s.info.WorldAddress,
		Contracts:       append([]string{}, s.info.Contracts...),
		MinPollMS:       int(poll.MinInterval / time.Millisecond),
		DefaultPollMS:   int(poll.DefaultInterval / time.Millisecond),
	}
	if err := writeJSON(conn, welcome); err != nil {
		return nil
	}
	s.log.Printf("session %s opened client=%q account=%s", sess.id, hello.ClientName, hello.Account)
	return sess
}

// subscribe starts forwarding updates for sub. The returned code
// classifies a rejection.
func (s *Server) subscribe(ctx context.Context, sess *session, sub protocol.SubscribeMsg) (string, error) {
	if sub.SubID == "" {
		return protocol.ErrProtoBadRequest, errors.New("missing sub_id")
	}
	c, err := s.contracts.Contract(sub.Contract)
	if err != nil {
		return protocol.ErrUnknownContract, err
	}
	fn, ok := c.Form.Function(sub.Function)
	if !ok {
		return protocol.ErrUnknownFunction, fmt.Errorf("%s has no function %q", c.Name, sub.Function)
	}
	if !fn.IsView() {
		return protocol.ErrNotView, fmt.Errorf("%s.%s is not a view function", c.Name, fn.Name)
	}
	form := abiform.NewForm(fn)
	for i, a := range sub.Args {
		if err := form.SetInput(i, a); err != nil {
			return protocol.ErrBadArgs, err
		}
	}
	args, err := form.Args()
	if err != nil {
		return protocol.ErrBadArgs, err
	}
	key, fetch, err := poll.Read(c, fn.Method, args...)
	if err != nil {
		return protocol.ErrBadArgs, err
	}

	sess.mu.Lock()
	if _, dup := sess.subs[sub.SubID]; dup {
		sess.mu.Unlock()
		return protocol.ErrConflict, fmt.Errorf("sub_id %q in use", sub.SubID)
	}
	interval := poll.DefaultInterval
	if sub.PollMS > 0 {
		interval = time.Duration(sub.PollMS) * time.Millisecond
	}
	updates, cancel := s.cache.Subscribe(key, interval, fetch)
	sess.subs[sub.SubID] = cancel
	sess.wg.Add(1)
	sess.mu.Unlock()

	go func() {
		defer sess.wg.Done()
		for u := range updates {
			s.send(ctx, sess, s.updateMsg(sub.SubID, u))
		}
	}()
	return "", nil
}

func (s *Server) updateMsg(subID string, u poll.Update) any {
	if u.Err != nil {
		code := protocol.ErrCallFailed
		if errors.Is(u.Err, chain.ErrNoData) {
			code = protocol.ErrNoData
		}
		return protocol.NewError(subID, code, chain.ParseError(u.Err))
	}
	d := display.Classify(u.Value)
	value := display.JSON(u.Value, 0)
	if value == "" {
		value = "null"
	}
	return protocol.UpdateMsg{
		Type:            protocol.TypeUpdate,
		ProtocolVersion: protocol.Version,
		SubID:           subID,
		Key:             u.Key.String(),
		Kind:            d.Kind.String(),
		Text:            s.renderer.Render(d, true),
		Value:           json.RawMessage(value),
		At:              u.At.UTC().Format(time.RFC3339Nano),
	}
}

func (s *Server) send(ctx context.Context, sess *session, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		s.log.Printf("session %s: marshal: %v", sess.id, err)
		return
	}
	select {
	case sess.out <- b:
	case <-ctx.Done():
	}
}

func (sess *session) unsubscribe(id string) {
	sess.mu.Lock()
	cancel, ok := sess.subs[id]
	delete(sess.subs, id)
	sess.mu.Unlock()
	if ok {
		cancel()
	}
}

func (sess *session) closeAll() {
	sess.mu.Lock()
	subs := sess.subs
	sess.subs = map[string]func(){}
	sess.mu.Unlock()
	for _, cancel := range subs {
		cancel()
	}
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
