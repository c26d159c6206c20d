package providers

import (
	"context"
	"errors"
	"time"

	"webconferencing/internal/calls"
	"webconferencing/internal/metrics"

	"github.com/livekit/protocol/auth"
)

const LiveKitType = "livekit"

// LiveKit runs calls in rooms of a LiveKit SFU. The room name is the call id.
type LiveKit struct {
	url       string
	apiKey    string
	apiSecret string
	ttl       time.Duration
	now       func() time.Time
}

func NewLiveKit(url, apiKey, apiSecret string, ttl time.Duration) *LiveKit {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &LiveKit{url: url, apiKey: apiKey, apiSecret: apiSecret, ttl: ttl, now: time.Now}
}

func (p *LiveKit) Type() string             { return LiveKitType }
func (p *LiveKit) SupportedTypes() []string { return []string{LiveKitType} }
func (p *LiveKit) Title() string            { return "LiveKit" }
func (p *LiveKit) Description() string {
	return "Group audio and video calls through a LiveKit server."
}

func (p *LiveKit) IMInfo(ctx context.Context, imID string) (*calls.IMInfo, error) {
	return nil, nil
}

// JoinToken lets a client connect to the room of one call.
type JoinToken struct {
	URL       string    `json:"url"`
	Room      string    `json:"room"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// JoinToken issues a room token for identity. name is shown to other participants.
func (p *LiveKit) JoinToken(callID, identity, name string) (JoinToken, error) {
	if callID == "" || identity == "" {
		return JoinToken{}, errors.New("providers: call id and identity are required")
	}

	canPublish := true
	canSubscribe := true
	canPublishData := true

	grant := &auth.VideoGrant{
		RoomJoin:       true,
		Room:           callID,
		CanPublish:     &canPublish,
		CanSubscribe:   &canSubscribe,
		CanPublishData: &canPublishData,
	}

	at := auth.NewAccessToken(p.apiKey, p.apiSecret)
	at.AddGrant(grant).
		SetIdentity(identity).
		SetName(name).
		SetValidFor(p.ttl)

	token, err := at.ToJWT()
	if err != nil {
		return JoinToken{}, err
	}
	metrics.ProviderTokensIssued.WithLabelValues(LiveKitType).Inc()
	return JoinToken{URL: p.url, Room: callID, Token: token, ExpiresAt: p.now().Add(p.ttl).UTC()}, nil
}
