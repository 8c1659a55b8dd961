package workflow

// StepError records a non-fatal step failure, such as an undeliverable notification.
type StepError struct {
	Step    string `json:"step"`
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

// State is the record threaded through a single run.
type State struct {
	LeadID   *string     `json:"leadId,omitempty"`
	Email    *string     `json:"email"`
	WhatsApp *string     `json:"whatsapp"`
	Errors   []StepError `json:"errors,omitempty"`
}

// Merge applies update over s: non-nil fields win, errors are appended.
func (s State) Merge(update State) State {
	merged := s

	if update.LeadID != nil {
		merged.LeadID = update.LeadID
	}

	if update.Email != nil {
		merged.Email = update.Email
	}

	if update.WhatsApp != nil {
		merged.WhatsApp = update.WhatsApp
	}

	if len(update.Errors) > 0 {
		merged.Errors = append(append([]StepError(nil), s.Errors...), update.Errors...)
	}

	return merged
}

func stringPtr(s string) *string {
	return &s
}
