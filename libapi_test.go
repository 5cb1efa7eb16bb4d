package protowamp

import (
	"context"
	"errors"
	"testing"
)

func TestNewServiceExportPropagatesErrors(t *testing.T) {
	if _, err := NewService(nil, nil, context.Background(), ServiceDependencies{}); !errors.Is(err, ErrConfigRequired) {
		t.Fatalf("expected config required error, got %v", err)
	}

	_, err := NewService(&Config{PubSubSystem: "kafka"}, nil, context.Background(), ServiceDependencies{})
	var cfgErr ConfigValidationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected config validation error, got %v", err)
	}
}

func TestAuthExports(t *testing.T) {
	sig, err := SignChallenge(0, "secret", "challenge")
	if err == nil || sig != "" {
		t.Fatalf("expected unavailable hash to fail, got %q, %v", sig, err)
	}

	lookup := StaticSecrets(map[string]string{"alice": "s3cret"})
	if lookup == nil {
		t.Fatal("expected secret lookup")
	}
	if NewChallengeResponse(CRAConfig{Secrets: lookup}).Name() != AuthCRA {
		t.Fatal("unexpected negotiator name")
	}
	if NewAnonymous().Name() != AuthAnonymous {
		t.Fatal("unexpected anonymous name")
	}
}

func TestEncodingExportAliases(t *testing.T) {
	payload := map[string]string{"hello": "world"}
	if _, err := Marshal(payload); err != nil {
		t.Fatalf("marshal alias failed: %v", err)
	}
	if _, err := MarshalIndent(payload, "", "  "); err != nil {
		t.Fatalf("marshal indent alias failed: %v", err)
	}
	if err := Unmarshal([]byte(`{"hello":"world"}`), &payload); err != nil {
		t.Fatalf("unmarshal alias failed: %v", err)
	}
}

func TestMessageCodecExports(t *testing.T) {
	raw, err := EncodeMessage(&Result{Request: 7, Details: Dict{}, Arguments: List{"pong"}})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	msg, err := DecodeMessage(raw)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	res, ok := msg.(*Result)
	if !ok || res.Request != 7 {
		t.Fatalf("unexpected message %#v", msg)
	}
}

func TestMetadataExport(t *testing.T) {
	md := NewMetadata("key", "value")
	if md["key"] != "value" {
		t.Fatalf("expected metadata to contain key, got %#v", md)
	}
}

func TestStatisticsExport(t *testing.T) {
	tree := NewStatisticsTree("realm1")
	tree.Auth.OnChallenge()
	if tree.Auth.Challenged() != 1 {
		t.Fatalf("expected one challenge, got %d", tree.Auth.Challenged())
	}
}
