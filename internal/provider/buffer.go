package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ganelltubbs501/podcast-insight-dashboard-sub002/internal/idgen"
)

// BufferConfig configures a Buffer adapter instance.
type BufferConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	AuthBase     string
	APIBase      string
}

// Buffer posts to social networks through the Buffer queue. One Buffer
// instance is registered per social channel so channel dispatch stays
// exhaustive; they share the tenant's single Buffer connection. Audience
// and contact operations have no meaning on social channels and report
// unsupported with a manual fallback.
type Buffer struct {
	cfg     BufferConfig
	channel Channel
	conns   ConnectionStore
	api     *apiClient
}

func NewBuffer(cfg BufferConfig, channel Channel, conns ConnectionStore) *Buffer {
	if cfg.AuthBase == "" {
		cfg.AuthBase = "https://bufferapp.com"
	}
	if cfg.APIBase == "" {
		cfg.APIBase = "https://api.bufferapp.com"
	}
	return &Buffer{cfg: cfg, channel: channel, conns: conns, api: newAPIClient()}
}

func (b *Buffer) Name() string     { return "buffer-" + string(b.channel) }
func (b *Buffer) Channel() Channel { return b.channel }

func (b *Buffer) Capabilities() Capabilities {
	return Capabilities{
		AuthRedirect:  true,
		SendOrTrigger: true,
	}
}

func (b *Buffer) configured() bool {
	return b.cfg.ClientID != "" && b.cfg.ClientSecret != ""
}

// connProvider is the shared connection key: one Buffer OAuth grant
// covers every social channel.
const bufferConnProvider = "buffer"

func (b *Buffer) AuthURL(ctx context.Context, tenantID, state string) Result[string] {
	if !b.configured() {
		return NotSupported[string](FallbackNotConfigured, "buffer credentials are not configured")
	}
	q := url.Values{
		"client_id":     {b.cfg.ClientID},
		"redirect_uri":  {b.cfg.RedirectURL},
		"response_type": {"code"},
		"state":         {state},
	}
	return OK(b.cfg.AuthBase + "/oauth2/authorize?" + q.Encode())
}

func (b *Buffer) HandleCallback(ctx context.Context, tenantID, code string) Result[Connection] {
	if !b.configured() {
		return NotSupported[Connection](FallbackNotConfigured, "buffer credentials are not configured")
	}

	var token struct {
		AccessToken string `json:"access_token"`
	}
	err := b.api.doJSON(ctx, http.MethodPost, b.cfg.APIBase+"/1/oauth2/token.json", "", map[string]string{
		"client_id":     b.cfg.ClientID,
		"client_secret": b.cfg.ClientSecret,
		"grant_type":    "authorization_code",
		"code":          code,
		"redirect_uri":  b.cfg.RedirectURL,
	}, &token)
	if err != nil {
		return NotSupported[Connection](FallbackManual, fmt.Sprintf("buffer token exchange failed: %v", err))
	}

	conn := Connection{
		ID:          idgen.WithPrefix("con_"),
		TenantID:    tenantID,
		Provider:    bufferConnProvider,
		AccessToken: token.AccessToken,
	}
	if err := b.conns.Upsert(ctx, &conn); err != nil {
		return NotSupported[Connection](FallbackManual, fmt.Sprintf("failed to store buffer connection: %v", err))
	}
	return OK(conn)
}

func (b *Buffer) Status(ctx context.Context, tenantID string) Result[ConnectionStatus] {
	conn, err := b.conns.Get(ctx, tenantID, bufferConnProvider)
	if err != nil {
		return OK(ConnectionStatus{Connected: false})
	}
	return OK(ConnectionStatus{
		Connected:   true,
		AccountName: conn.AccountName,
		ConnectedAt: conn.CreatedAt,
	})
}

func (b *Buffer) Disconnect(ctx context.Context, tenantID string) Result[bool] {
	if err := b.conns.Delete(ctx, tenantID, bufferConnProvider); err != nil {
		return OK(false)
	}
	return OK(true)
}

func (b *Buffer) ListAudiences(ctx context.Context, tenantID string) Result[[]Audience] {
	return NotSupported[[]Audience](FallbackManual, "social channels have followers, not addressable audiences")
}

func (b *Buffer) UpsertContact(ctx context.Context, tenantID string, c Contact) Result[Contact] {
	return NotSupported[Contact](FallbackManual, "social channels do not hold contact records")
}

func (b *Buffer) Subscribe(ctx context.Context, tenantID, audienceID, email string) Result[bool] {
	return NotSupported[bool](FallbackManual, "social channels do not support subscriptions")
}

func (b *Buffer) Tag(ctx context.Context, tenantID, email, tag string) Result[TagApplication] {
	return NotSupported[TagApplication](FallbackManual, "social channels do not support tagging")
}

// SendOrTrigger queues the post on the profile matching this adapter's
// channel.
func (b *Buffer) SendOrTrigger(ctx context.Context, tenantID string, req SendRequest) Result[SendReceipt] {
	conn, err := b.conns.Get(ctx, tenantID, bufferConnProvider)
	if err != nil {
		return NotSupported[SendReceipt](FallbackNotConfigured, "buffer account is not connected")
	}

	profileID, err := b.profileFor(ctx, conn.AccessToken)
	if err != nil {
		return NotSupported[SendReceipt](FallbackManual, fmt.Sprintf("buffer profile lookup failed: %v", err))
	}

	var resp struct {
		Updates []struct {
			ID string `json:"id"`
		} `json:"updates"`
	}
	err = b.api.doJSON(ctx, http.MethodPost, b.cfg.APIBase+"/1/updates/create.json", conn.AccessToken, map[string]interface{}{
		"text":        req.Body,
		"profile_ids": []string{profileID},
	}, &resp)
	if err != nil {
		return NotSupported[SendReceipt](FallbackManual, fmt.Sprintf("buffer post failed: %v", err))
	}

	receipt := SendReceipt{}
	if len(resp.Updates) > 0 {
		receipt.ExternalID = resp.Updates[0].ID
	}
	return OK(receipt)
}

func (b *Buffer) profileFor(ctx context.Context, token string) (string, error) {
	var profiles []struct {
		ID      string `json:"id"`
		Service string `json:"service"`
	}
	if err := b.api.doJSON(ctx, http.MethodGet, b.cfg.APIBase+"/1/profiles.json", token, nil, &profiles); err != nil {
		return "", err
	}
	for _, p := range profiles {
		if p.Service == string(b.channel) {
			return p.ID, nil
		}
	}
	return "", fmt.Errorf("no %s profile on the connected buffer account", b.channel)
}
