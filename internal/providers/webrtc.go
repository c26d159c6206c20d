package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"webconferencing/internal/calls"
)

const (
	WebRTCType = "webrtc"

	webrtcSettingsKey = "webrtc:rtc"
)

// ICEServer follows the RTCIceServer dictionary of the browser API.
type ICEServer struct {
	URLs       []string `json:"urls"`
	Username   string   `json:"username,omitempty"`
	Credential string   `json:"credential,omitempty"`
}

// RTCConfiguration is handed to browsers to build their peer connections.
type RTCConfiguration struct {
	BundlePolicy       string      `json:"bundlePolicy,omitempty"`
	ICETransportPolicy string      `json:"iceTransportPolicy,omitempty"`
	ICEServers         []ICEServer `json:"iceServers"`
}

func DefaultRTCConfiguration() RTCConfiguration {
	return RTCConfiguration{
		BundlePolicy:       "balanced",
		ICETransportPolicy: "all",
		ICEServers: []ICEServer{
			{URLs: []string{"stun:stun.l.google.com:19302", "stun:stun1.l.google.com:19302"}},
		},
	}
}

// Validate checks policies and ICE server urls.
func (c RTCConfiguration) Validate() error {
	switch c.BundlePolicy {
	case "", "balanced", "max-compat", "max-bundle":
	default:
		return fmt.Errorf("unknown bundle policy %q", c.BundlePolicy)
	}
	switch c.ICETransportPolicy {
	case "", "all", "relay":
	default:
		return fmt.Errorf("unknown ICE transport policy %q", c.ICETransportPolicy)
	}
	for i, s := range c.ICEServers {
		if len(s.URLs) == 0 {
			return fmt.Errorf("ICE server %d has no urls", i)
		}
		for _, u := range s.URLs {
			if !strings.HasPrefix(u, "stun:") && !strings.HasPrefix(u, "turn:") && !strings.HasPrefix(u, "turns:") {
				return fmt.Errorf("ICE server %d: unsupported url %q", i, u)
			}
			if strings.HasPrefix(u, "turn") && (s.Username == "" || s.Credential == "") {
				return fmt.Errorf("ICE server %d: TURN needs username and credential", i)
			}
		}
	}
	return nil
}

// WebRTC is the browser peer-to-peer provider. It has no IM accounts.
type WebRTC struct {
	settings ConfigStore
}

func NewWebRTC(settings ConfigStore) *WebRTC {
	if settings == nil {
		settings = NewMemoryConfigStore()
	}
	return &WebRTC{settings: settings}
}

func (p *WebRTC) Type() string             { return WebRTCType }
func (p *WebRTC) SupportedTypes() []string { return []string{WebRTCType} }
func (p *WebRTC) Title() string            { return "WebRTC" }
func (p *WebRTC) Description() string {
	return "Peer-to-peer audio and video calls in the browser."
}

func (p *WebRTC) IMInfo(ctx context.Context, imID string) (*calls.IMInfo, error) {
	return nil, nil
}

// RTCConfiguration returns the saved configuration or the default one.
func (p *WebRTC) RTCConfiguration(ctx context.Context) (RTCConfiguration, error) {
	raw, ok, err := p.settings.Get(ctx, webrtcSettingsKey)
	if err != nil {
		return RTCConfiguration{}, err
	}
	if !ok {
		return DefaultRTCConfiguration(), nil
	}
	var cfg RTCConfiguration
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return RTCConfiguration{}, fmt.Errorf("decoding RTC configuration: %w", err)
	}
	return cfg, nil
}

func (p *WebRTC) SaveRTCConfiguration(ctx context.Context, cfg RTCConfiguration) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
	}
	raw, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	return p.settings.Put(ctx, webrtcSettingsKey, raw)
}
