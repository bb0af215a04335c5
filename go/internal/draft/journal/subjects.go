package journal

import (
	"github.com/mcdev12/draftslots/go/internal/draft/gateway"
)

// Subject is where an event of type t for sessionID is stored.
func Subject(prefix, sessionID string, t gateway.EventType) string {
	return prefix + "." + sessionID + "." + string(t)
}

// SessionFilter matches every event subject of sessionID.
func SessionFilter(prefix, sessionID string) string {
	return prefix + "." + sessionID + ".>"
}
