package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
)

// Handlers holds the handler functions for each MCP tool.
type Handlers struct {
	client *PodsightClient
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(client *PodsightClient) *Handlers {
	return &Handlers{client: client}
}

// HandleGetUsage reports the current cycle's consumption against plan caps.
func (h *Handlers) HandleGetUsage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := h.client.GetUsage(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get usage: %v", err)), nil
	}

	text, err := formatUsage(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse usage: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleScheduleContent schedules a post or thread on a channel.
func (h *Handlers) HandleScheduleContent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	channel := req.GetString("channel", "")
	if channel == "" {
		return mcp.NewToolResultError("channel is required"), nil
	}
	scheduledAt := req.GetString("scheduled_at", "")
	if scheduledAt == "" {
		return mcp.NewToolResultError("scheduled_at is required"), nil
	}
	if _, err := time.Parse(time.RFC3339, scheduledAt); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("scheduled_at must be RFC 3339: %v", err)), nil
	}

	content := req.GetString("content", "")
	threadParts := req.GetStringSlice("thread_parts", nil)
	if content == "" && len(threadParts) == 0 {
		return mcp.NewToolResultError("either content or thread_parts is required"), nil
	}
	if content != "" && len(threadParts) > 0 {
		return mcp.NewToolResultError("content and thread_parts are mutually exclusive"), nil
	}

	body := map[string]any{
		"channel":     channel,
		"scheduledAt": scheduledAt,
	}
	if content != "" {
		body["content"] = content
	}
	if len(threadParts) > 0 {
		body["thread"] = threadParts
	}
	if v := req.GetString("subject", ""); v != "" {
		body["subject"] = v
	}
	if v := req.GetString("audience_id", ""); v != "" {
		body["audienceId"] = v
	}
	if v := req.GetString("provider", ""); v != "" {
		body["provider"] = v
	}

	raw, err := h.client.ScheduleContent(ctx, body)
	if err != nil {
		var quota *QuotaError
		if errors.As(err, &quota) {
			return mcp.NewToolResultText(fmt.Sprintf(
				"Cannot schedule: the plan's scheduled-post limit is reached.\n\n"+
					"Used: %d of %d this cycle\n"+
					"Cycle resets: %s\n\n"+
					"Cancel an upcoming delivery to free quota, or upgrade the plan.",
				quota.Denial.Used, quota.Denial.Limit, quota.Denial.CycleEnd)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("Scheduling failed: %v", err)), nil
	}

	text, err := formatScheduled(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse response: %v", err)), nil
	}
	return mcp.NewToolResultText(text), nil
}

// HandleListDeliveries lists upcoming deliveries.
func (h *Handlers) HandleListDeliveries(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	from := req.GetString("from", "")
	to := req.GetString("to", "")

	raw, err := h.client.ListDeliveries(ctx, from, to)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list deliveries: %v", err)), nil
	}

	text, err := formatDeliveryList(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse deliveries: %v", err)), nil
	}
	return mcp.NewToolResultText(text), nil
}

// HandleCancelDelivery cancels a scheduled delivery.
func (h *Handlers) HandleCancelDelivery(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	deliveryID := req.GetString("delivery_id", "")
	if deliveryID == "" {
		return mcp.NewToolResultError("delivery_id is required"), nil
	}

	_, err := h.client.CancelDelivery(ctx, deliveryID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Cancel failed: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf(
		"Delivery %s canceled.\n"+
			"The slot it consumed is returned to this cycle's scheduled-post quota.",
		deliveryID)), nil
}

// HandleCheckIntegrations lists provider connections and capabilities.
func (h *Handlers) HandleCheckIntegrations(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := h.client.ListIntegrations(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list integrations: %v", err)), nil
	}

	text, err := formatIntegrations(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse integrations: %v", err)), nil
	}
	return mcp.NewToolResultText(text), nil
}

// --- Formatting helpers ---

func formatUsage(raw json.RawMessage) (string, error) {
	var report struct {
		Plan       string `json:"plan"`
		CycleStart string `json:"cycleStart"`
		CycleEnd   string `json:"cycleEnd"`
		Resources  map[string]struct {
			Used      int  `json:"used"`
			Limit     int  `json:"limit"`
			Unlimited bool `json:"unlimited"`
		} `json:"resources"`
	}
	if err := json.Unmarshal(raw, &report); err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Plan: %s\n", report.Plan)
	fmt.Fprintf(&sb, "Cycle: %s to %s\n\n", report.CycleStart, report.CycleEnd)

	// Stable order for the common resources; anything else is appended.
	order := []string{"analyses", "scheduled_posts", "automations", "team_members"}
	seen := make(map[string]bool)
	for _, name := range order {
		if ru, ok := report.Resources[name]; ok {
			seen[name] = true
			writeResourceLine(&sb, name, ru.Used, ru.Limit, ru.Unlimited)
		}
	}
	for name, ru := range report.Resources {
		if !seen[name] {
			writeResourceLine(&sb, name, ru.Used, ru.Limit, ru.Unlimited)
		}
	}
	return sb.String(), nil
}

func writeResourceLine(sb *strings.Builder, name string, used, limit int, unlimited bool) {
	if unlimited {
		fmt.Fprintf(sb, "  %-16s %d used (unlimited)\n", name+":", used)
		return
	}
	remaining := limit - used
	if remaining < 0 {
		remaining = 0
	}
	fmt.Fprintf(sb, "  %-16s %d of %d used, %d remaining\n", name+":", used, limit, remaining)
}

func formatScheduled(raw json.RawMessage) (string, error) {
	var resp struct {
		IDs        []string `json:"ids"`
		Deliveries []struct {
			ID          string `json:"id"`
			Channel     string `json:"channel"`
			ScheduledAt string `json:"scheduledAt"`
		} `json:"deliveries"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Scheduled %d delivery(ies):\n\n", len(resp.Deliveries))
	for i, d := range resp.Deliveries {
		fmt.Fprintf(&sb, "%d. %s on %s at %s\n", i+1, d.ID, d.Channel, d.ScheduledAt)
	}
	return sb.String(), nil
}

func formatDeliveryList(raw json.RawMessage) (string, error) {
	var resp struct {
		Deliveries []struct {
			ID          string `json:"id"`
			Channel     string `json:"channel"`
			Provider    string `json:"provider"`
			Subject     string `json:"subject"`
			ScheduledAt string `json:"scheduledAt"`
			Status      string `json:"status"`
		} `json:"deliveries"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("unexpected deliveries response format")
	}

	if len(resp.Deliveries) == 0 {
		return "No scheduled deliveries.", nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d delivery(ies):\n\n", len(resp.Deliveries))
	for i, d := range resp.Deliveries {
		fmt.Fprintf(&sb, "%d. %s [%s]\n", i+1, d.ID, d.Status)
		fmt.Fprintf(&sb, "   Channel: %s via %s\n", d.Channel, d.Provider)
		if d.Subject != "" {
			fmt.Fprintf(&sb, "   Subject: %s\n", d.Subject)
		}
		fmt.Fprintf(&sb, "   At: %s\n", d.ScheduledAt)
		if i < len(resp.Deliveries)-1 {
			sb.WriteString("\n")
		}
	}
	return sb.String(), nil
}

func formatIntegrations(raw json.RawMessage) (string, error) {
	var resp struct {
		Integrations []struct {
			Provider     string          `json:"provider"`
			Channel      string          `json:"channel"`
			Capabilities map[string]bool `json:"capabilities"`
			Status       struct {
				Data struct {
					Connected   bool   `json:"connected"`
					AccountName string `json:"accountName"`
				} `json:"data"`
			} `json:"status"`
		} `json:"integrations"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("unexpected integrations response format")
	}

	if len(resp.Integrations) == 0 {
		return "No provider integrations available.", nil
	}

	var sb strings.Builder
	for i, p := range resp.Integrations {
		status := "not connected"
		if p.Status.Data.Connected {
			status = "connected"
			if p.Status.Data.AccountName != "" {
				status += " as " + p.Status.Data.AccountName
			}
		}
		fmt.Fprintf(&sb, "%d. %s (%s) - %s\n", i+1, p.Provider, p.Channel, status)

		var caps []string
		for name, enabled := range p.Capabilities {
			if enabled {
				caps = append(caps, name)
			}
		}
		sort.Strings(caps)
		if len(caps) > 0 {
			fmt.Fprintf(&sb, "   Capabilities: %s\n", strings.Join(caps, ", "))
		}
	}
	return sb.String(), nil
}
