package cmd

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve plan and transform as MCP tools over stdio",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s := server.NewMCPServer("verso", "0.3.0",
			server.WithToolCapabilities(false),
		)

		planTool := mcp.NewTool("plan",
			mcp.WithDescription("Compose the version rule set for a module and return it as JSON"),
			mcp.WithString("module",
				mcp.Description("Module name for per-module overrides"),
			),
		)
		s.AddTool(planTool, handlePlanTool)

		transformTool := mcp.NewTool("transform",
			mcp.WithDescription("Rewrite a source tree into its version-namespaced copy and return the pass report"),
			mcp.WithString("source",
				mcp.Required(),
				mcp.Description("Source tree root"),
			),
			mcp.WithString("destination",
				mcp.Required(),
				mcp.Description("Destination tree root"),
			),
			mcp.WithString("module",
				mcp.Description("Module name for per-module overrides"),
			),
		)
		s.AddTool(transformTool, handleTransformTool)

		return server.ServeStdio(s)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func handlePlanTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	module := request.GetString("module", "")
	cfg, set, err := buildSet(module)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, err := planJSON(cfg, set, module)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func handleTransformTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	source, err := request.RequireString("source")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	dest, err := request.RequireString("destination")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	module := request.GetString("module", "")

	cfg, set, err := buildSet(module)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	report, err := runPass(ctx, cfg, set, module, source, dest)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("pass failed: %v", err)), nil
	}
	data, err := report.JSON()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
