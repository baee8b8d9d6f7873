package ws

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"math/big"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/websocket"

	"biomesxp.io/internal/chain"
	"biomesxp.io/internal/chain/chaintest"
	"biomesxp.io/internal/contracts"
	"biomesxp.io/internal/display"
	"biomesxp.io/internal/poll"
	"biomesxp.io/internal/protocol"
)

var gameAddr = common.HexToAddress("0xaFFFd91f427b81e0e56be9A4b6369f8DE6f24994")

func newTestServer(t *testing.T) (*httptest.Server, *poll.Cache) {
	t.Helper()
	b := chaintest.NewBackend(common.HexToAddress("0x1111111111111111111111111111111111111111"))
	raw, err := contracts.ABI("Game")
	if err != nil {
		t.Fatalf("ABI: %v", err)
	}
	b.Register(gameAddr, raw).Return("basicGetter", big.NewInt(42))

	reg := &contracts.Registry{
		Network: chain.NetworkSpec{ChainID: 17069, Name: "garnet", Contracts: map[string]string{"Game": gameAddr.Hex()}},
		Caller:  b,
	}
	ctx, cancel := context.WithCancel(context.Background())
	cache := poll.New(ctx, nil, log.New(io.Discard, "", 0))
	srv := NewServer(cache, reg, Info{ChainID: 17069, Contracts: []string{"Game"}}, display.Renderer{}, log.New(io.Discard, "", 0))
	hs := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		hs.Close()
		cancel()
		cache.Wait()
	})
	return hs, cache
}

func dial(t *testing.T, hs *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(hs.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	if err := conn.WriteJSON(v); err != nil {
		t.Fatalf("write: %v", err)
	}
}

// next reads messages until one of type typ for subID arrives.
func next(t *testing.T, conn *websocket.Conn, typ, subID string) map[string]any {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		_ = conn.SetReadDeadline(deadline)
		_, b, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read waiting for %s %s: %v", typ, subID, err)
		}
		var m map[string]any
		if err := json.Unmarshal(b, &m); err != nil {
			t.Fatalf("bad json %s: %v", b, err)
		}
		if m["type"] == typ && (subID == "" || m["sub_id"] == subID) {
			return m
		}
	}
}

func hello(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	send(t, conn, protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, ClientName: "test"})
	return next(t, conn, protocol.TypeWelcome, "")
}

func subscribe(id, fn string, args ...string) protocol.SubscribeMsg {
	return protocol.SubscribeMsg{
		Type:            protocol.TypeSubscribe,
		ProtocolVersion: protocol.Version,
		SubID:           id,
		Contract:        "Game",
		Function:        fn,
		Args:            args,
		PollMS:          500,
	}
}

func TestServer_Welcome(t *testing.T) {
	hs, _ := newTestServer(t)
	conn := dial(t, hs)
	w := hello(t, conn)
	if w["chain_id"] != float64(17069) || w["session_id"] == "" {
		t.Fatalf("welcome=%v", w)
	}
	if w["min_poll_ms"] != float64(500) || w["default_poll_ms"] != float64(4000) {
		t.Fatalf("poll bounds=%v %v", w["min_poll_ms"], w["default_poll_ms"])
	}
}

func TestServer_RejectsBadHello(t *testing.T) {
	hs, _ := newTestServer(t)
	conn := dial(t, hs)
	send(t, conn, protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: "0.1"})
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("err=%v want policy violation close", err)
	}
}

func TestServer_SubscribeStreamsUpdates(t *testing.T) {
	hs, cache := newTestServer(t)
	conn := dial(t, hs)
	hello(t, conn)

	send(t, conn, subscribe("s1", "basicGetter"))
	u := next(t, conn, protocol.TypeUpdate, "s1")
	if u["kind"] != "scalar" || u["text"] != "42" {
		t.Fatalf("update=%v", u)
	}
	if !strings.HasPrefix(u["key"].(string), gameAddr.Hex()+".basicGetter") {
		t.Fatalf("key=%v", u["key"])
	}

	// A second subscription to the same read shares the poller.
	send(t, conn, subscribe("s2", "basicGetter"))
	next(t, conn, protocol.TypeUpdate, "s2")
	if n := cache.Pollers(); n != 1 {
		t.Fatalf("pollers=%d want 1", n)
	}

	send(t, conn, protocol.UnsubscribeMsg{Type: protocol.TypeUnsubscribe, ProtocolVersion: protocol.Version, SubID: "s1"})
	send(t, conn, protocol.UnsubscribeMsg{Type: protocol.TypeUnsubscribe, ProtocolVersion: protocol.Version, SubID: "s2"})
	deadline := time.Now().Add(5 * time.Second)
	for cache.Pollers() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("pollers still running after unsubscribe")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestServer_SubscribeErrors(t *testing.T) {
	hs, _ := newTestServer(t)
	conn := dial(t, hs)
	hello(t, conn)

	cases := []struct {
		msg  protocol.SubscribeMsg
		code string
	}{
		{subscribe("e1", "nope"), protocol.ErrUnknownFunction},
		{subscribe("e2", "onAfterCallSystem"), protocol.ErrNotView},
		{subscribe("e3", "supportsInterface", "0x01"), protocol.ErrBadArgs},
		{protocol.SubscribeMsg{Type: protocol.TypeSubscribe, ProtocolVersion: protocol.Version, SubID: "e4", Contract: "BuyChest", Function: "x"}, protocol.ErrUnknownContract},
		{protocol.SubscribeMsg{Type: protocol.TypeSubscribe, ProtocolVersion: protocol.Version, Contract: "Game", Function: "basicGetter"}, protocol.ErrProtoBadRequest},
	}
	for _, tc := range cases {
		send(t, conn, tc.msg)
		e := next(t, conn, protocol.TypeError, tc.msg.SubID)
		if e["code"] != tc.code {
			t.Fatalf("%s: code=%v want %s (%v)", tc.msg.SubID, e["code"], tc.code, e["message"])
		}
	}

	send(t, conn, subscribe("dup", "basicGetter"))
	next(t, conn, protocol.TypeUpdate, "dup")
	send(t, conn, subscribe("dup", "basicGetter"))
	if e := next(t, conn, protocol.TypeError, "dup"); e["code"] != protocol.ErrConflict {
		t.Fatalf("dup code=%v", e["code"])
	}
}

func TestServer_SupportsInterfaceArgs(t *testing.T) {
	hs, _ := newTestServer(t)
	conn := dial(t, hs)
	hello(t, conn)

	// No handler for supportsInterface: the call fails and is reported.
	send(t, conn, subscribe("si", "supportsInterface", "0x01ffc9a7"))
	e := next(t, conn, protocol.TypeError, "si")
	if e["code"] != protocol.ErrCallFailed {
		t.Fatalf("code=%v", e["code"])
	}
}
