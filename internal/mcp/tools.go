package mcp

import "github.com/mark3labs/mcp-go/mcp"

var listCapsulesToolDef = mcp.NewTool("cortex_list_capsules",
	mcp.WithDescription("List captured bug capsule IDs (newest first)."),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of IDs to return (default 20, max 200)."),
	),
)

var getCapsuleToolDef = mcp.NewTool("cortex_get_capsule",
	mcp.WithDescription("Get a captured bug capsule by ID (JSON)."),
	mcp.WithString("id",
		mcp.Required(),
		mcp.Description("Capsule ID, as returned by cortex_list_capsules."),
	),
)

var getLastCapsuleToolDef = mcp.NewTool("cortex_get_last_capsule",
	mcp.WithDescription("Get the most recent bug capsule (JSON)."),
)

var getDiagnosisToolDef = mcp.NewTool("cortex_get_diagnosis",
	mcp.WithDescription("Get the diagnosis text for a capsule ID (if present)."),
	mcp.WithString("id",
		mcp.Required(),
		mcp.Description("Capsule ID the diagnosis belongs to."),
	),
)

var getLastDiagnosisToolDef = mcp.NewTool("cortex_get_last_diagnosis",
	mcp.WithDescription("Get the diagnosis text for the most recent capsule (if present)."),
)
