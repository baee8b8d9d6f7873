package protocol_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"biomesxp.io/internal/protocol"
)

func TestSchemas_ValidateMessages(t *testing.T) {
	compile := func(name string) *jsonschema.Schema {
		t.Helper()
		p := filepath.Join("..", "..", "schemas", name)
		s, err := jsonschema.Compile(p)
		if err != nil {
			t.Fatalf("compile %s: %v", name, err)
		}
		return s
	}

	validate := func(s *jsonschema.Schema, msg any) {
		t.Helper()
		b, err := json.Marshal(msg)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		var v any
		if err := json.Unmarshal(b, &v); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if err := s.Validate(v); err != nil {
			t.Fatalf("validate %s: %v", b, err)
		}
	}

	validate(compile("hello.schema.json"), protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		ClientName:      "xpctl",
		Account:         "0x1111111111111111111111111111111111111111",
	})
	validate(compile("welcome.schema.json"), protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       "S1",
		ChainID:         690,
		WorldAddress:    "0xf75b1b7bdb6932e487c4aa8d210f4a682abeacf0",
		Contracts:       []string{"Experience"},
		MinPollMS:       500,
		DefaultPollMS:   4000,
	})
	validate(compile("subscribe.schema.json"), protocol.SubscribeMsg{
		Type:            protocol.TypeSubscribe,
		ProtocolVersion: protocol.Version,
		SubID:           "s1",
		Contract:        "Game",
		Function:        "getPlayers",
		PollMS:          1000,
	})
	validate(compile("update.schema.json"), protocol.UpdateMsg{
		Type:            protocol.TypeUpdate,
		ProtocolVersion: protocol.Version,
		SubID:           "s1",
		Key:             "0xaFFFd91f427b81e0e56be9A4b6369f8DE6f24994.getPlayers(0x)",
		Kind:            "list",
		Text:            "[]",
		Value:           json.RawMessage(`[]`),
		At:              "2024-06-01T12:00:00Z",
	})
	validate(compile("error.schema.json"), protocol.NewError("s1", protocol.ErrUnknownFunction, "no such function"))
}

func TestDecodeBase(t *testing.T) {
	m, err := protocol.DecodeBase([]byte(`{"type":"SUBSCRIBE","protocol_version":"1.0","sub_id":"a"}`))
	if err != nil || m.Type != protocol.TypeSubscribe || m.ProtocolVersion != protocol.Version {
		t.Fatalf("DecodeBase=%+v err=%v", m, err)
	}
	if _, err := protocol.DecodeBase([]byte(`{`)); err == nil {
		t.Fatalf("expected error for bad json")
	}
}
