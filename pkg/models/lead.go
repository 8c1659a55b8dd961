// Package models defines the core domain models for lead capture and lead workflows.
package models

import "time"

// LeadStatus represents where a lead is in the sales pipeline.
type LeadStatus string

const (
	LeadStatusNew       LeadStatus = "New"
	LeadStatusContacted LeadStatus = "Contacted"
	LeadStatusQualified LeadStatus = "Qualified"
	LeadStatusLost      LeadStatus = "Lost"
)

// Known lead sources.
const (
	LeadSourceManual   = "Manual"
	LeadSourceDocument = "document/image"
	LeadSourceChat     = "chat"
)

// Lead document field names. Filters and sorts address leads by these names.
const (
	LeadFieldID            = "id"
	LeadFieldName          = "name"
	LeadFieldEmail         = "email"
	LeadFieldPhone         = "phone"
	LeadFieldStatus        = "status"
	LeadFieldSource        = "source"
	LeadFieldCreatedAt     = "createdAt"
	LeadFieldDateContacted = "dateContacted"
)

// TimestampLayout renders document timestamps at a fixed width so that lexical order
// matches chronological order.
const TimestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// FormatTimestamp renders t in UTC using TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Lead is a captured prospective contact.
type Lead struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"                    validate:"required"`
	Email         string     `json:"email"                   validate:"required,email"`
	Phone         string     `json:"phone"`
	Status        LeadStatus `json:"status"`
	Source        string     `json:"source"`
	CreatedAt     time.Time  `json:"createdAt"`
	DateContacted *time.Time `json:"dateContacted,omitempty"`
}

// ApplyDefaults fills the fields a newly captured lead may omit.
func (l *Lead) ApplyDefaults(now time.Time) {
	if l.Status == "" {
		l.Status = LeadStatusNew
	}

	if l.Source == "" {
		l.Source = LeadSourceManual
	}

	if l.CreatedAt.IsZero() {
		l.CreatedAt = now.UTC()
	}
}

// SetStatus changes the lead status, stamping DateContacted when the lead is contacted.
func (l *Lead) SetStatus(status LeadStatus, now time.Time) {
	l.Status = status

	if status == LeadStatusContacted {
		contacted := now.UTC()
		l.DateContacted = &contacted
	}
}

// Document returns the lead as a generic document keyed by the lead field names.
// Timestamps are rendered with FormatTimestamp.
func (l *Lead) Document() map[string]any {
	doc := map[string]any{
		LeadFieldID:        l.ID,
		LeadFieldName:      l.Name,
		LeadFieldEmail:     l.Email,
		LeadFieldPhone:     l.Phone,
		LeadFieldStatus:    string(l.Status),
		LeadFieldSource:    l.Source,
		LeadFieldCreatedAt: FormatTimestamp(l.CreatedAt),
	}

	if l.DateContacted != nil {
		doc[LeadFieldDateContacted] = FormatTimestamp(*l.DateContacted)
	}

	return doc
}
