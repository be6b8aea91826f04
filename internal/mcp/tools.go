package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

var scheduleToolDef = mcp.NewTool("capsule_schedule",
	mcp.WithDescription("Schedule an email to be delivered at a future time. Returns the capsule ID and its pending status."),
	mcp.WithString("recipient_email",
		mcp.Required(),
		mcp.Description("Destination email address"),
	),
	mcp.WithString("subject",
		mcp.Required(),
		mcp.Description("Email subject line"),
	),
	mcp.WithString("body",
		mcp.Required(),
		mcp.Description("Plain-text email body"),
	),
	mcp.WithNumber("send_at",
		mcp.Required(),
		mcp.Description("Unix timestamp (seconds, UTC) at which to deliver. Must be in the future."),
	),
)

var getToolDef = mcp.NewTool("capsule_get",
	mcp.WithDescription("Fetch a capsule by ID, including its delivery status and any failure message."),
	mcp.WithString("id",
		mcp.Required(),
		mcp.Description("Capsule ULID"),
	),
)

var listToolDef = mcp.NewTool("capsule_list",
	mcp.WithDescription("List capsules newest first with pagination."),
	mcp.WithNumber("limit",
		mcp.Description("Page size (default 20, max 100)"),
	),
	mcp.WithNumber("offset",
		mcp.Description("Number of items to skip"),
	),
)

var cancelToolDef = mcp.NewTool("capsule_cancel",
	mcp.WithDescription("Delete a capsule. Deleting a pending capsule cancels its delivery."),
	mcp.WithString("id",
		mcp.Required(),
		mcp.Description("Capsule ULID"),
	),
)
