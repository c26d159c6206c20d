package providers

import (
	"context"
	"fmt"
	"strings"

	"webconferencing/internal/calls"
)

const SIPType = "sip"

// SIP offers calls to SIP accounts through a gateway. Users list their SIP
// URI as an IM account of type sip.
type SIP struct {
	// ProfileBase, when set, is prefixed to the URI to build a profile link.
	ProfileBase string
}

func (p *SIP) Type() string             { return SIPType }
func (p *SIP) SupportedTypes() []string { return []string{SIPType} }
func (p *SIP) Title() string            { return "SIP" }
func (p *SIP) Description() string {
	return "Calls to SIP phones and softphones through a SIP gateway."
}

// IMInfo normalizes imID to a sip: URI.
func (p *SIP) IMInfo(ctx context.Context, imID string) (*calls.IMInfo, error) {
	uri, err := NormalizeSIPURI(imID)
	if err != nil {
		return nil, err
	}
	info := &calls.IMInfo{Type: SIPType, ID: uri, Title: strings.TrimPrefix(uri, "sip:")}
	if p.ProfileBase != "" {
		info.ProfileLink = p.ProfileBase + uri
	}
	return info, nil
}

// NormalizeSIPURI accepts user@host with or without a sip: scheme.
func NormalizeSIPURI(v string) (string, error) {
	v = strings.TrimSpace(v)
	lower := strings.ToLower(v)
	switch {
	case strings.HasPrefix(lower, "sips:"):
		return "", fmt.Errorf("%w: sips is not supported: %q", ErrInvalidIM, v)
	case strings.HasPrefix(lower, "sip:"):
		v = v[len("sip:"):]
	}
	user, host, ok := strings.Cut(v, "@")
	if !ok || user == "" || host == "" || strings.ContainsAny(v, " \t<>") || strings.Contains(host, "@") {
		return "", fmt.Errorf("%w: %q", ErrInvalidIM, v)
	}
	return "sip:" + user + "@" + strings.ToLower(host), nil
}
