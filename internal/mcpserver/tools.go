package mcpserver

import "github.com/mark3labs/mcp-go/mcp"

// Tool definitions for the podsight MCP server.
// Descriptions are what the LLM reads to decide which tool to use.

var ToolGetUsage = mcp.NewTool("get_usage",
	mcp.WithDescription(
		"Check the workspace's plan usage for the current billing cycle. "+
			"Shows episode analyses, scheduled posts, and active automations against "+
			"their plan caps, plus when the cycle resets. "+
			"Use this before scheduling large batches to avoid hitting a limit."),
)

var ToolScheduleContent = mcp.NewTool("schedule_content",
	mcp.WithDescription(
		"Schedule repurposed podcast content for delivery on a connected channel. "+
			"A single post uses 'content'; a multi-part thread uses 'thread_parts' "+
			"(parts land on consecutive days at the same time of day). "+
			"Every part counts against the plan's scheduled-post cap. "+
			"If the plan limit is hit, the result explains the cap and when it resets."),
	mcp.WithString("channel",
		mcp.Required(),
		mcp.Description("Delivery channel: 'email', 'twitter', 'linkedin', or 'instagram'"),
		mcp.Enum("email", "twitter", "linkedin", "instagram")),
	mcp.WithString("scheduled_at",
		mcp.Required(),
		mcp.Description("When the first part goes out, RFC 3339 (e.g. '2026-03-01T09:00:00Z')")),
	mcp.WithString("content",
		mcp.Description("Body of a single post. Mutually exclusive with thread_parts.")),
	mcp.WithArray("thread_parts",
		mcp.Description("Ordered parts of a multi-day thread. Mutually exclusive with content."),
		mcp.Items(map[string]any{"type": "string"})),
	mcp.WithString("subject",
		mcp.Description("Subject line (email) or title. Optional for social channels.")),
	mcp.WithString("audience_id",
		mcp.Description("Provider audience or list to deliver to (email channels)")),
	mcp.WithString("provider",
		mcp.Description("Override the channel's default provider (e.g. 'kit', 'mailchimp', 'buffer-twitter')")),
)

var ToolListDeliveries = mcp.NewTool("list_deliveries",
	mcp.WithDescription(
		"List scheduled content deliveries for the workspace, soonest first. "+
			"Optionally bound the window with from/to timestamps."),
	mcp.WithString("from",
		mcp.Description("Only deliveries at or after this time, RFC 3339")),
	mcp.WithString("to",
		mcp.Description("Only deliveries before this time, RFC 3339")),
)

var ToolCancelDelivery = mcp.NewTool("cancel_delivery",
	mcp.WithDescription(
		"Cancel a scheduled delivery before it goes out. "+
			"Canceled deliveries free up scheduled-post quota for the current cycle. "+
			"Only deliveries still in 'scheduled' status can be canceled."),
	mcp.WithString("delivery_id",
		mcp.Required(),
		mcp.Description("The delivery ID from a previous schedule_content or list_deliveries result")),
)

var ToolCheckIntegrations = mcp.NewTool("check_integrations",
	mcp.WithDescription(
		"List the workspace's provider integrations (Kit, Mailchimp, Buffer) with "+
			"connection status and capabilities. "+
			"Use this to see which channels content can be scheduled on."),
)
