package session

import (
	"context"
	"strings"
	"testing"

	hostmock "github.com/voxdesk/voxdesk/internal/host/mock"
	"github.com/voxdesk/voxdesk/pkg/live"
)

func newTestDispatcher(h *hostmock.Host) dispatcher {
	return dispatcher{caps: h, metrics: testMetrics()}
}

func TestDispatch_OpenApp(t *testing.T) {
	t.Parallel()
	h := &hostmock.Host{}
	d := newTestDispatcher(h)

	result, ok := d.Dispatch(context.Background(), live.ToolCall{
		ID:   "42",
		Name: ToolOpenApp,
		Args: map[string]any{"appName": "Chrome"},
	})
	if !ok {
		t.Fatal("Dispatch returned ok=false for openApp")
	}
	if result.ID != "42" {
		t.Errorf("result ID = %q, want 42", result.ID)
	}
	if result.Name != ToolOpenApp {
		t.Errorf("result Name = %q, want %q", result.Name, ToolOpenApp)
	}
	if opens := h.Opens(); len(opens) != 1 || opens[0] != "Chrome" {
		t.Errorf("host opens = %v, want [Chrome]", opens)
	}
	if !strings.Contains(result.Result, "Chrome") {
		t.Errorf("result text %q should mention Chrome", result.Result)
	}
}

func TestDispatch_OpenAppMissingArgument(t *testing.T) {
	t.Parallel()
	h := &hostmock.Host{}
	d := newTestDispatcher(h)

	// A malformed call still gets a response so the agent can relay the
	// failure to the user.
	result, ok := d.Dispatch(context.Background(), live.ToolCall{
		ID:   "7",
		Name: ToolOpenApp,
		Args: map[string]any{"name": "Chrome"},
	})
	if !ok {
		t.Fatal("Dispatch returned ok=false for openApp with bad args")
	}
	if opens := h.Opens(); len(opens) != 1 || opens[0] != "" {
		t.Errorf("host opens = %v, want one empty-name call", opens)
	}
	if result.ID != "7" {
		t.Errorf("result ID = %q, want 7", result.ID)
	}
}

func TestDispatch_CloseApp(t *testing.T) {
	t.Parallel()
	h := &hostmock.Host{CloseResult: "Closed Chrome."}
	d := newTestDispatcher(h)

	result, ok := d.Dispatch(context.Background(), live.ToolCall{ID: "1", Name: ToolCloseApp})
	if !ok {
		t.Fatal("Dispatch returned ok=false for closeApp")
	}
	if h.Closes() != 1 {
		t.Errorf("close count = %d, want 1", h.Closes())
	}
	if result.Result != "Closed Chrome." {
		t.Errorf("result = %q", result.Result)
	}
}

func TestDispatch_GetAppList(t *testing.T) {
	t.Parallel()
	h := &hostmock.Host{ListResult: "Available applications: Chrome, Terminal."}
	d := newTestDispatcher(h)

	result, ok := d.Dispatch(context.Background(), live.ToolCall{ID: "2", Name: ToolGetAppList})
	if !ok {
		t.Fatal("Dispatch returned ok=false for getAppList")
	}
	if h.Lists() != 1 {
		t.Errorf("list count = %d, want 1", h.Lists())
	}
	if !strings.Contains(result.Result, "Terminal") {
		t.Errorf("result = %q, want app list", result.Result)
	}
}

func TestDispatch_UnknownToolRejected(t *testing.T) {
	t.Parallel()
	h := &hostmock.Host{}
	d := newTestDispatcher(h)

	_, ok := d.Dispatch(context.Background(), live.ToolCall{ID: "3", Name: "formatDisk"})
	if ok {
		t.Fatal("Dispatch returned ok=true for unknown tool")
	}
	if len(h.Opens()) != 0 || h.Closes() != 0 || h.Lists() != 0 {
		t.Error("unknown tool must not touch the host")
	}
}

func TestToolDeclarations_CoverCapabilitySurface(t *testing.T) {
	t.Parallel()
	decls := ToolDeclarations()
	names := make(map[string]live.ToolDeclaration, len(decls))
	for _, d := range decls {
		names[d.Name] = d
	}
	for _, want := range []string{ToolOpenApp, ToolCloseApp, ToolGetAppList} {
		if _, ok := names[want]; !ok {
			t.Errorf("missing declaration for %q", want)
		}
	}
	openApp := names[ToolOpenApp]
	if openApp.Parameters == nil {
		t.Fatal("openApp declaration has no parameter schema")
	}
	props, _ := openApp.Parameters["properties"].(map[string]any)
	if _, ok := props["appName"]; !ok {
		t.Error("openApp schema missing appName property")
	}
}
