package leads

import (
	"sort"
	"strings"

	"github.com/dukex/leadflow/pkg/models"
)

// Select filters, sorts and windows an in-memory lead set. opts must be normalized.
func Select(all []*models.Lead, filter Filter, opts FindOptions) []*models.Lead {
	matched := Matching(all, filter)

	SortLeads(matched, opts.SortField, opts.SortOrder)

	if opts.Skip >= len(matched) {
		return make([]*models.Lead, 0)
	}

	end := len(matched)
	if opts.Limit > 0 && opts.Skip+opts.Limit < end {
		end = opts.Skip + opts.Limit
	}

	return matched[opts.Skip:end]
}

// Matching returns the leads whose documents satisfy the filter.
func Matching(all []*models.Lead, filter Filter) []*models.Lead {
	matched := make([]*models.Lead, 0, len(all))

	for _, lead := range all {
		if filter.Match(lead.Document()) {
			matched = append(matched, lead)
		}
	}

	return matched
}

// SortLeads sorts leads in place. Ties keep insertion order.
func SortLeads(all []*models.Lead, field, order string) {
	sort.SliceStable(all, func(i, j int) bool {
		var cmp int

		switch field {
		case models.LeadFieldName:
			cmp = strings.Compare(all[i].Name, all[j].Name)
		case models.LeadFieldEmail:
			cmp = strings.Compare(all[i].Email, all[j].Email)
		case models.LeadFieldStatus:
			cmp = strings.Compare(string(all[i].Status), string(all[j].Status))
		case models.LeadFieldSource:
			cmp = strings.Compare(all[i].Source, all[j].Source)
		default:
			cmp = all[i].CreatedAt.Compare(all[j].CreatedAt)
		}

		if order == SortDesc {
			return cmp > 0
		}

		return cmp < 0
	})
}
