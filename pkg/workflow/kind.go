package workflow

import (
	"fmt"
	"strings"
)

// Kind is the capability a step provides. The set of kinds is closed.
type Kind string

const (
	KindLeadSource        Kind = "lead-source"
	KindEmailNotifier     Kind = "email-notifier"
	KindMessagingNotifier Kind = "messaging-notifier"
	KindStatusUpdater     Kind = "status-updater"
)

const (
	// LeadStepID is the fixed id of the single lead-source step.
	LeadStepID = "lead"

	// End is the terminal marker an edge points to when a run should stop.
	End = "__end__"
)

// Kinds lists every known step kind.
var Kinds = []Kind{KindLeadSource, KindEmailNotifier, KindMessagingNotifier, KindStatusUpdater}

var kindAliases = map[string]Kind{
	"lead":     KindLeadSource,
	"email":    KindEmailNotifier,
	"whatsapp": KindMessagingNotifier,
	"status":   KindStatusUpdater,
}

// Valid reports whether k is one of Kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindLeadSource, KindEmailNotifier, KindMessagingNotifier, KindStatusUpdater:
		return true
	}

	return false
}

// ParseKind accepts a canonical kind or one of the short aliases lead, email, whatsapp
// and status.
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))

	if kind, ok := kindAliases[s]; ok {
		return kind, nil
	}

	if kind := Kind(s); kind.Valid() {
		return kind, nil
	}

	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}
