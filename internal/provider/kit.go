package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ganelltubbs501/podcast-insight-dashboard-sub002/internal/idgen"
)

// KitConfig configures the Kit (formerly ConvertKit) adapter. AuthBase
// and APIBase exist so tests can point at a local server.
type KitConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	AuthBase     string
	APIBase      string
}

// Kit is the email adapter for Kit. Kit delivers through tag-triggered
// automations: applying a tag hands delivery timing to an automation the
// user owns, so this adapter declares sendOrTrigger false and callers
// take the tag path instead.
type Kit struct {
	cfg   KitConfig
	conns ConnectionStore
	api   *apiClient
}

func NewKit(cfg KitConfig, conns ConnectionStore) *Kit {
	if cfg.AuthBase == "" {
		cfg.AuthBase = "https://app.kit.com"
	}
	if cfg.APIBase == "" {
		cfg.APIBase = "https://api.kit.com"
	}
	return &Kit{cfg: cfg, conns: conns, api: newAPIClient()}
}

func (k *Kit) Name() string     { return "kit" }
func (k *Kit) Channel() Channel { return ChannelEmail }

func (k *Kit) Capabilities() Capabilities {
	return Capabilities{
		AuthRedirect:  true,
		ListAudiences: true,
		UpsertContact: true,
		Subscribe:     true,
		Tag:           true,
		SendOrTrigger: false,
	}
}

func (k *Kit) configured() bool {
	return k.cfg.ClientID != "" && k.cfg.ClientSecret != ""
}

func (k *Kit) AuthURL(ctx context.Context, tenantID, state string) Result[string] {
	if !k.configured() {
		return NotSupported[string](FallbackNotConfigured, "kit credentials are not configured")
	}
	q := url.Values{
		"client_id":     {k.cfg.ClientID},
		"redirect_uri":  {k.cfg.RedirectURL},
		"response_type": {"code"},
		"state":         {state},
	}
	return OK(k.cfg.AuthBase + "/oauth/authorize?" + q.Encode())
}

func (k *Kit) HandleCallback(ctx context.Context, tenantID, code string) Result[Connection] {
	if !k.configured() {
		return NotSupported[Connection](FallbackNotConfigured, "kit credentials are not configured")
	}

	var token struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int    `json:"expires_in"`
	}
	err := k.api.doJSON(ctx, http.MethodPost, k.cfg.APIBase+"/oauth/token", "", map[string]string{
		"client_id":     k.cfg.ClientID,
		"client_secret": k.cfg.ClientSecret,
		"grant_type":    "authorization_code",
		"code":          code,
		"redirect_uri":  k.cfg.RedirectURL,
	}, &token)
	if err != nil {
		return NotSupported[Connection](FallbackManual, fmt.Sprintf("kit token exchange failed: %v", err))
	}

	var account struct {
		Account struct {
			Name string `json:"name"`
		} `json:"account"`
	}
	// Account name is nice-to-have; connection succeeds without it.
	_ = k.api.doJSON(ctx, http.MethodGet, k.cfg.APIBase+"/v4/account", token.AccessToken, nil, &account)

	conn := Connection{
		ID:           idgen.WithPrefix("con_"),
		TenantID:     tenantID,
		Provider:     k.Name(),
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		AccountName:  account.Account.Name,
	}
	if token.ExpiresIn > 0 {
		exp := time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)
		conn.TokenExpiresAt = &exp
	}
	if err := k.conns.Upsert(ctx, &conn); err != nil {
		return NotSupported[Connection](FallbackManual, fmt.Sprintf("failed to store kit connection: %v", err))
	}
	return OK(conn)
}

func (k *Kit) Status(ctx context.Context, tenantID string) Result[ConnectionStatus] {
	conn, err := k.conns.Get(ctx, tenantID, k.Name())
	if err != nil {
		return OK(ConnectionStatus{Connected: false})
	}
	return OK(ConnectionStatus{
		Connected:   true,
		AccountName: conn.AccountName,
		ConnectedAt: conn.CreatedAt,
	})
}

func (k *Kit) Disconnect(ctx context.Context, tenantID string) Result[bool] {
	if err := k.conns.Delete(ctx, tenantID, k.Name()); err != nil {
		return OK(false)
	}
	return OK(true)
}

func (k *Kit) connection(ctx context.Context, tenantID string) (*Connection, *Result[Connection]) {
	conn, err := k.conns.Get(ctx, tenantID, k.Name())
	if err != nil {
		r := NotSupported[Connection](FallbackNotConfigured, "kit account is not connected")
		return nil, &r
	}
	return conn, nil
}

func (k *Kit) ListAudiences(ctx context.Context, tenantID string) Result[[]Audience] {
	conn, fail := k.connection(ctx, tenantID)
	if fail != nil {
		return NotSupported[[]Audience](fail.Fallback, fail.Message)
	}

	var resp struct {
		Forms []struct {
			ID   int64  `json:"id"`
			Name string `json:"name"`
		} `json:"forms"`
	}
	if err := k.api.doJSON(ctx, http.MethodGet, k.cfg.APIBase+"/v4/forms", conn.AccessToken, nil, &resp); err != nil {
		return NotSupported[[]Audience](FallbackManual, fmt.Sprintf("kit form listing failed: %v", err))
	}

	audiences := make([]Audience, 0, len(resp.Forms))
	for _, f := range resp.Forms {
		audiences = append(audiences, Audience{ID: fmt.Sprintf("%d", f.ID), Name: f.Name})
	}
	return OK(audiences)
}

func (k *Kit) UpsertContact(ctx context.Context, tenantID string, c Contact) Result[Contact] {
	conn, fail := k.connection(ctx, tenantID)
	if fail != nil {
		return NotSupported[Contact](fail.Fallback, fail.Message)
	}

	var resp struct {
		Subscriber struct {
			ID int64 `json:"id"`
		} `json:"subscriber"`
	}
	err := k.api.doJSON(ctx, http.MethodPost, k.cfg.APIBase+"/v4/subscribers", conn.AccessToken, map[string]string{
		"email_address": c.Email,
		"first_name":    c.FirstName,
	}, &resp)
	if err != nil {
		return NotSupported[Contact](FallbackManual, fmt.Sprintf("kit subscriber upsert failed: %v", err))
	}

	c.ID = fmt.Sprintf("%d", resp.Subscriber.ID)
	return OK(c)
}

func (k *Kit) Subscribe(ctx context.Context, tenantID, audienceID, email string) Result[bool] {
	conn, fail := k.connection(ctx, tenantID)
	if fail != nil {
		return NotSupported[bool](fail.Fallback, fail.Message)
	}

	url := fmt.Sprintf("%s/v4/forms/%s/subscribers", k.cfg.APIBase, audienceID)
	err := k.api.doJSON(ctx, http.MethodPost, url, conn.AccessToken, map[string]string{
		"email_address": email,
	}, nil)
	if err != nil {
		return NotSupported[bool](FallbackManual, fmt.Sprintf("kit subscribe failed: %v", err))
	}
	return OK(true)
}

// Tag resolves the named tag (creating it when absent) and applies it to
// the subscriber. Tag application is how Kit deliveries are triggered.
func (k *Kit) Tag(ctx context.Context, tenantID, email, tag string) Result[TagApplication] {
	conn, fail := k.connection(ctx, tenantID)
	if fail != nil {
		return NotSupported[TagApplication](fail.Fallback, fail.Message)
	}

	tagID, err := k.resolveTag(ctx, conn.AccessToken, tag)
	if err != nil {
		return NotSupported[TagApplication](FallbackManual, fmt.Sprintf("kit tag resolution failed: %v", err))
	}

	url := fmt.Sprintf("%s/v4/tags/%s/subscribers", k.cfg.APIBase, tagID)
	err = k.api.doJSON(ctx, http.MethodPost, url, conn.AccessToken, map[string]string{
		"email_address": email,
	}, nil)
	if err != nil {
		return NotSupported[TagApplication](FallbackManual, fmt.Sprintf("kit tag apply failed: %v", err))
	}
	return OK(TagApplication{TagID: tagID, Email: email, Label: tag})
}

func (k *Kit) resolveTag(ctx context.Context, token, name string) (string, error) {
	var list struct {
		Tags []struct {
			ID   int64  `json:"id"`
			Name string `json:"name"`
		} `json:"tags"`
	}
	if err := k.api.doJSON(ctx, http.MethodGet, k.cfg.APIBase+"/v4/tags", token, nil, &list); err != nil {
		return "", err
	}
	for _, t := range list.Tags {
		if t.Name == name {
			return fmt.Sprintf("%d", t.ID), nil
		}
	}

	var created struct {
		Tag struct {
			ID int64 `json:"id"`
		} `json:"tag"`
	}
	err := k.api.doJSON(ctx, http.MethodPost, k.cfg.APIBase+"/v4/tags", token, map[string]string{"name": name}, &created)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d", created.Tag.ID), nil
}

func (k *Kit) SendOrTrigger(ctx context.Context, tenantID string, req SendRequest) Result[SendReceipt] {
	return NotSupported[SendReceipt](FallbackManual,
		"kit delivers through tag-triggered automations; apply a tag instead of sending directly")
}
