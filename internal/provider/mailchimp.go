package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ganelltubbs501/podcast-insight-dashboard-sub002/internal/idgen"
)

// MailchimpConfig configures the Mailchimp adapter.
type MailchimpConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	AuthBase     string
	// APIBase overrides the per-account datacenter endpoint. Tests only;
	// production resolves it from the OAuth metadata endpoint.
	APIBase string
}

// Mailchimp is the email adapter for Mailchimp. Unlike Kit it can send
// directly: SendOrTrigger creates and sends a campaign.
type Mailchimp struct {
	cfg   MailchimpConfig
	conns ConnectionStore
	api   *apiClient
}

func NewMailchimp(cfg MailchimpConfig, conns ConnectionStore) *Mailchimp {
	if cfg.AuthBase == "" {
		cfg.AuthBase = "https://login.mailchimp.com"
	}
	return &Mailchimp{cfg: cfg, conns: conns, api: newAPIClient()}
}

func (m *Mailchimp) Name() string     { return "mailchimp" }
func (m *Mailchimp) Channel() Channel { return ChannelEmail }

func (m *Mailchimp) Capabilities() Capabilities {
	return Capabilities{
		AuthRedirect:  true,
		ListAudiences: true,
		UpsertContact: true,
		Subscribe:     true,
		Tag:           true,
		SendOrTrigger: true,
	}
}

func (m *Mailchimp) configured() bool {
	return m.cfg.ClientID != "" && m.cfg.ClientSecret != ""
}

func (m *Mailchimp) AuthURL(ctx context.Context, tenantID, state string) Result[string] {
	if !m.configured() {
		return NotSupported[string](FallbackNotConfigured, "mailchimp credentials are not configured")
	}
	q := url.Values{
		"client_id":     {m.cfg.ClientID},
		"redirect_uri":  {m.cfg.RedirectURL},
		"response_type": {"code"},
		"state":         {state},
	}
	return OK(m.cfg.AuthBase + "/oauth2/authorize?" + q.Encode())
}

func (m *Mailchimp) HandleCallback(ctx context.Context, tenantID, code string) Result[Connection] {
	if !m.configured() {
		return NotSupported[Connection](FallbackNotConfigured, "mailchimp credentials are not configured")
	}

	var token struct {
		AccessToken string `json:"access_token"`
	}
	err := m.api.doJSON(ctx, http.MethodPost, m.cfg.AuthBase+"/oauth2/token", "", map[string]string{
		"client_id":     m.cfg.ClientID,
		"client_secret": m.cfg.ClientSecret,
		"grant_type":    "authorization_code",
		"code":          code,
		"redirect_uri":  m.cfg.RedirectURL,
	}, &token)
	if err != nil {
		return NotSupported[Connection](FallbackManual, fmt.Sprintf("mailchimp token exchange failed: %v", err))
	}

	// Mailchimp shards accounts across datacenters; the metadata endpoint
	// tells us which API host this token belongs to.
	var meta struct {
		DC          string `json:"dc"`
		AccountName string `json:"accountname"`
		APIEndpoint string `json:"api_endpoint"`
	}
	if err := m.api.doJSON(ctx, http.MethodGet, m.cfg.AuthBase+"/oauth2/metadata", token.AccessToken, nil, &meta); err != nil {
		return NotSupported[Connection](FallbackManual, fmt.Sprintf("mailchimp metadata lookup failed: %v", err))
	}

	conn := Connection{
		ID:          idgen.WithPrefix("con_"),
		TenantID:    tenantID,
		Provider:    m.Name(),
		AccessToken: token.AccessToken,
		APIEndpoint: strings.TrimSuffix(meta.APIEndpoint, "/"),
		AccountName: meta.AccountName,
	}
	if err := m.conns.Upsert(ctx, &conn); err != nil {
		return NotSupported[Connection](FallbackManual, fmt.Sprintf("failed to store mailchimp connection: %v", err))
	}
	return OK(conn)
}

func (m *Mailchimp) Status(ctx context.Context, tenantID string) Result[ConnectionStatus] {
	conn, err := m.conns.Get(ctx, tenantID, m.Name())
	if err != nil {
		return OK(ConnectionStatus{Connected: false})
	}
	return OK(ConnectionStatus{
		Connected:   true,
		AccountName: conn.AccountName,
		ConnectedAt: conn.CreatedAt,
	})
}

func (m *Mailchimp) Disconnect(ctx context.Context, tenantID string) Result[bool] {
	if err := m.conns.Delete(ctx, tenantID, m.Name()); err != nil {
		return OK(false)
	}
	return OK(true)
}

// base returns the API root for a connection, honoring the test override.
func (m *Mailchimp) base(conn *Connection) string {
	if m.cfg.APIBase != "" {
		return m.cfg.APIBase
	}
	return conn.APIEndpoint
}

func (m *Mailchimp) connection(ctx context.Context, tenantID string) (*Connection, *Result[Connection]) {
	conn, err := m.conns.Get(ctx, tenantID, m.Name())
	if err != nil {
		r := NotSupported[Connection](FallbackNotConfigured, "mailchimp account is not connected")
		return nil, &r
	}
	return conn, nil
}

func (m *Mailchimp) ListAudiences(ctx context.Context, tenantID string) Result[[]Audience] {
	conn, fail := m.connection(ctx, tenantID)
	if fail != nil {
		return NotSupported[[]Audience](fail.Fallback, fail.Message)
	}

	var resp struct {
		Lists []struct {
			ID    string `json:"id"`
			Name  string `json:"name"`
			Stats struct {
				MemberCount int `json:"member_count"`
			} `json:"stats"`
		} `json:"lists"`
	}
	if err := m.api.doJSON(ctx, http.MethodGet, m.base(conn)+"/3.0/lists", conn.AccessToken, nil, &resp); err != nil {
		return NotSupported[[]Audience](FallbackManual, fmt.Sprintf("mailchimp list fetch failed: %v", err))
	}

	audiences := make([]Audience, 0, len(resp.Lists))
	for _, l := range resp.Lists {
		audiences = append(audiences, Audience{ID: l.ID, Name: l.Name, MemberCount: l.Stats.MemberCount})
	}
	return OK(audiences)
}

func (m *Mailchimp) UpsertContact(ctx context.Context, tenantID string, c Contact) Result[Contact] {
	conn, fail := m.connection(ctx, tenantID)
	if fail != nil {
		return NotSupported[Contact](fail.Fallback, fail.Message)
	}
	if c.ID == "" {
		// Contact upsert in Mailchimp is list-scoped; without an audience
		// the operation has no target.
		return NotSupported[Contact](FallbackManual, "mailchimp contacts live inside an audience; pass an audience id via Subscribe")
	}

	var resp struct {
		ID string `json:"id"`
	}
	url := fmt.Sprintf("%s/3.0/lists/%s/members", m.base(conn), c.ID)
	err := m.api.doJSON(ctx, http.MethodPost, url, conn.AccessToken, map[string]interface{}{
		"email_address": c.Email,
		"status":        "subscribed",
		"merge_fields":  map[string]string{"FNAME": c.FirstName},
	}, &resp)
	if err != nil {
		return NotSupported[Contact](FallbackManual, fmt.Sprintf("mailchimp member upsert failed: %v", err))
	}
	c.ID = resp.ID
	return OK(c)
}

func (m *Mailchimp) Subscribe(ctx context.Context, tenantID, audienceID, email string) Result[bool] {
	conn, fail := m.connection(ctx, tenantID)
	if fail != nil {
		return NotSupported[bool](fail.Fallback, fail.Message)
	}

	url := fmt.Sprintf("%s/3.0/lists/%s/members", m.base(conn), audienceID)
	err := m.api.doJSON(ctx, http.MethodPost, url, conn.AccessToken, map[string]string{
		"email_address": email,
		"status":        "subscribed",
	}, nil)
	if err != nil {
		return NotSupported[bool](FallbackManual, fmt.Sprintf("mailchimp subscribe failed: %v", err))
	}
	return OK(true)
}

func (m *Mailchimp) Tag(ctx context.Context, tenantID, email, tag string) Result[TagApplication] {
	conn, fail := m.connection(ctx, tenantID)
	if fail != nil {
		return NotSupported[TagApplication](fail.Fallback, fail.Message)
	}

	var lists struct {
		Lists []struct {
			ID string `json:"id"`
		} `json:"lists"`
	}
	if err := m.api.doJSON(ctx, http.MethodGet, m.base(conn)+"/3.0/lists", conn.AccessToken, nil, &lists); err != nil {
		return NotSupported[TagApplication](FallbackManual, fmt.Sprintf("mailchimp list fetch failed: %v", err))
	}
	if len(lists.Lists) == 0 {
		return NotSupported[TagApplication](FallbackManual, "mailchimp account has no audience to tag in")
	}

	// Tags in Mailchimp hang off a list member, addressed by the MD5 of
	// the lowercased email.
	url := fmt.Sprintf("%s/3.0/lists/%s/members/%s/tags", m.base(conn), lists.Lists[0].ID, memberHash(email))
	err := m.api.doJSON(ctx, http.MethodPost, url, conn.AccessToken, map[string]interface{}{
		"tags": []map[string]string{{"name": tag, "status": "active"}},
	}, nil)
	if err != nil {
		return NotSupported[TagApplication](FallbackManual, fmt.Sprintf("mailchimp tag apply failed: %v", err))
	}
	return OK(TagApplication{TagID: tag, Email: email, Label: tag})
}

// SendOrTrigger creates a campaign for the audience, sets its content,
// and sends it. Mailchimp is the direct-send email path.
func (m *Mailchimp) SendOrTrigger(ctx context.Context, tenantID string, req SendRequest) Result[SendReceipt] {
	conn, fail := m.connection(ctx, tenantID)
	if fail != nil {
		return NotSupported[SendReceipt](fail.Fallback, fail.Message)
	}
	if req.AudienceID == "" {
		return NotSupported[SendReceipt](FallbackManual, "mailchimp campaigns need a target audience")
	}

	var campaign struct {
		ID string `json:"id"`
	}
	err := m.api.doJSON(ctx, http.MethodPost, m.base(conn)+"/3.0/campaigns", conn.AccessToken, map[string]interface{}{
		"type":       "regular",
		"recipients": map[string]string{"list_id": req.AudienceID},
		"settings":   map[string]string{"subject_line": req.Subject, "title": req.Subject},
	}, &campaign)
	if err != nil {
		return NotSupported[SendReceipt](FallbackManual, fmt.Sprintf("mailchimp campaign create failed: %v", err))
	}

	contentURL := fmt.Sprintf("%s/3.0/campaigns/%s/content", m.base(conn), campaign.ID)
	if err := m.api.doJSON(ctx, http.MethodPut, contentURL, conn.AccessToken, map[string]string{"html": req.Body}, nil); err != nil {
		return NotSupported[SendReceipt](FallbackManual, fmt.Sprintf("mailchimp campaign content failed: %v", err))
	}

	sendURL := fmt.Sprintf("%s/3.0/campaigns/%s/actions/send", m.base(conn), campaign.ID)
	if err := m.api.doJSON(ctx, http.MethodPost, sendURL, conn.AccessToken, nil, nil); err != nil {
		return NotSupported[SendReceipt](FallbackManual, fmt.Sprintf("mailchimp campaign send failed: %v", err))
	}
	return OK(SendReceipt{ExternalID: campaign.ID})
}

func memberHash(email string) string {
	return md5Hex(strings.ToLower(strings.TrimSpace(email)))
}
