package providers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestNormalizeSIPURI(t *testing.T) {
	cases := []struct {
		in, want string
		ok       bool
	}{
		{"sip:alice@Example.ORG", "sip:alice@example.org", true},
		{"alice@example.org", "sip:alice@example.org", true},
		{"  SIP:bob@pbx.local ", "sip:bob@pbx.local", true},
		{"alice", "", false},
		{"sip:@example.org", "", false},
		{"sips:alice@example.org", "", false},
		{"alice smith@example.org", "", false},
	}
	for _, tc := range cases {
		got, err := NormalizeSIPURI(tc.in)
		if tc.ok && (err != nil || got != tc.want) {
			t.Fatalf("%q: got %q %v want %q", tc.in, got, err, tc.want)
		}
		if !tc.ok && !errors.Is(err, ErrInvalidIM) {
			t.Fatalf("%q: expected invalid IM, got %q %v", tc.in, got, err)
		}
	}
}

func TestSIP_IMInfo(t *testing.T) {
	p := &SIP{ProfileBase: "https://pbx.local/contacts/"}
	info, err := p.IMInfo(context.Background(), "alice@example.org")
	if err != nil {
		t.Fatalf("im: %v", err)
	}
	if info.ID != "sip:alice@example.org" || info.Title != "alice@example.org" || info.ProfileLink != "https://pbx.local/contacts/sip:alice@example.org" {
		t.Fatalf("unexpected info: %+v", info)
	}
}

func TestWebRTC_RTCConfiguration(t *testing.T) {
	ctx := context.Background()
	p := NewWebRTC(NewMemoryConfigStore())

	cfg, err := p.RTCConfiguration(ctx)
	if err != nil || len(cfg.ICEServers) == 0 {
		t.Fatalf("expected default configuration, got %+v %v", cfg, err)
	}

	bad := RTCConfiguration{ICEServers: []ICEServer{{URLs: []string{"turn:turn.local:3478"}}}}
	if err := p.SaveRTCConfiguration(ctx, bad); !errors.Is(err, ErrInvalidConfiguration) {
		t.Fatalf("expected TURN without credentials rejected, got %v", err)
	}

	good := RTCConfiguration{
		BundlePolicy:       "max-bundle",
		ICETransportPolicy: "relay",
		ICEServers:         []ICEServer{{URLs: []string{"turn:turn.local:3478"}, Username: "u", Credential: "c"}},
	}
	if err := p.SaveRTCConfiguration(ctx, good); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := p.RTCConfiguration(ctx)
	if err != nil || got.ICETransportPolicy != "relay" || got.ICEServers[0].Username != "u" {
		t.Fatalf("unexpected saved configuration: %+v %v", got, err)
	}
}

func TestLiveKit_JoinToken(t *testing.T) {
	p := NewLiveKit("wss://lk.example.org", "key", "secret-secret-secret-secret-secret", 10*time.Minute)
	tok, err := p.JoinToken("c1", "alice", "Alice")
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	if tok.Room != "c1" || tok.URL != "wss://lk.example.org" || tok.Token == "" {
		t.Fatalf("unexpected token: %+v", tok)
	}

	claims := jwt.MapClaims{}
	_, err = jwt.ParseWithClaims(tok.Token, claims, func(*jwt.Token) (any, error) {
		return []byte("secret-secret-secret-secret-secret"), nil
	})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims["sub"] != "alice" || claims["iss"] != "key" {
		t.Fatalf("unexpected claims: %v", claims)
	}
	video, _ := claims["video"].(map[string]any)
	if video["room"] != "c1" || video["roomJoin"] != true {
		t.Fatalf("unexpected grant: %v", video)
	}

	if _, err := p.JoinToken("", "alice", ""); err == nil {
		t.Fatalf("expected error without call id")
	}
}
