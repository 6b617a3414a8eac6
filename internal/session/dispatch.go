package session

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/voxdesk/voxdesk/internal/host"
	"github.com/voxdesk/voxdesk/internal/observe"
	"github.com/voxdesk/voxdesk/pkg/live"
)

// Tool names offered to the agent. These are the only functions the agent
// may call; anything else is rejected by the dispatcher.
const (
	ToolOpenApp    = "openApp"
	ToolCloseApp   = "closeApp"
	ToolGetAppList = "getAppList"
)

// ToolDeclarations returns the function declarations advertised to the agent
// at session setup.
func ToolDeclarations() []live.ToolDeclaration {
	return []live.ToolDeclaration{
		{
			Name:        ToolOpenApp,
			Description: "Open an application on the user's desktop by name.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"appName": map[string]any{
						"type":        "string",
						"description": "Name of the application to open.",
					},
				},
				"required": []string{"appName"},
			},
		},
		{
			Name:        ToolCloseApp,
			Description: "Close the application that is currently open.",
		},
		{
			Name:        ToolGetAppList,
			Description: "List the applications available on the user's desktop.",
		},
	}
}

// dispatcher routes agent tool calls to the host capability surface.
type dispatcher struct {
	caps    host.Capabilities
	metrics *observe.Metrics
}

// Dispatch executes the tool call against the host and returns the result to
// send back to the agent. The second return value is false when the tool name
// is not recognised; no response is sent upstream in that case and the agent
// recovers via its own timeout.
func (d *dispatcher) Dispatch(ctx context.Context, call live.ToolCall) (live.ToolResult, bool) {
	ctx, span := observe.StartSpan(ctx, "tool.dispatch",
		trace.WithAttributes(
			attribute.String("tool", call.Name),
			attribute.String("call_id", call.ID),
		),
	)
	defer span.End()

	start := time.Now()

	var result string
	switch call.Name {
	case ToolOpenApp:
		// A missing or mistyped appName argument degrades to the empty
		// string, which the host answers with a not-found message.
		name, _ := call.Args["appName"].(string)
		result = d.caps.OpenApp(name)
	case ToolCloseApp:
		result = d.caps.CloseActiveApp()
	case ToolGetAppList:
		result = d.caps.ListApps()
	default:
		span.SetStatus(codes.Error, "unknown tool")
		d.metrics.RecordToolCall(ctx, call.Name, "unknown")
		slog.Warn("agent requested unknown tool",
			"tool", call.Name,
			"call_id", call.ID,
		)
		return live.ToolResult{}, false
	}

	d.metrics.RecordToolCall(ctx, call.Name, "ok")
	d.metrics.ToolExecutionDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("tool", call.Name)),
	)
	slog.Debug("tool call handled",
		"tool", call.Name,
		"call_id", call.ID,
		"result", result,
	)

	return live.ToolResult{ID: call.ID, Name: call.Name, Result: result}, true
}
