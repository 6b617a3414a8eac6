// Package host defines the capability surface the voice session exposes to
// the remote agent, and an in-process application registry implementing it.
//
// The three capabilities are synchronous, side-effect on host UI state, and
// return natural-language confirmation or failure strings that the agent is
// expected to relay to the user verbally.
package host

// Capabilities is the narrow surface agent-issued tool calls are dispatched
// against. Implementations must be safe for concurrent use.
type Capabilities interface {
	// OpenApp opens the application with the given (possibly mis-transcribed)
	// name and returns a confirmation or failure sentence.
	OpenApp(name string) string

	// CloseActiveApp closes whatever application is currently in the
	// foreground and returns a confirmation or failure sentence.
	CloseActiveApp() string

	// ListApps returns a spoken-friendly enumeration of installed apps.
	ListApps() string
}
