// Package filter translates contact filter options into query conditions.
// Every predicate returns the fragment unchanged when its value is empty.
package filter

import (
	"strings"

	"github.com/unclebandit/outreach-backend/internal/model"
	"github.com/unclebandit/outreach-backend/internal/query"
)

const (
	LeadWarm = "warm"
	LeadCold = "cold"
	LeadAll  = "all"
)

// DefaultTargetingEmailStatuses is applied by the orchestrator for campaign
// targeting when the caller sent no email status.
var DefaultTargetingEmailStatuses = []string{"Valid", "Catch-all"}

// Step is one stage of a predicate pipeline.
type Step func(query.Fragment) query.Fragment

// Pipe folds steps left to right over a fragment.
func Pipe(steps ...Step) Step {
	return func(f query.Fragment) query.Fragment {
		for _, step := range steps {
			f = step(f)
		}
		return f
	}
}

// Search matches full text, name/company/email substrings, or a location
// substring of any state-expanded term.
func Search(f query.Fragment, term string) query.Fragment {
	term = strings.TrimSpace(term)
	if term == "" {
		return f
	}
	alts := []query.Cond{
		query.FullText(query.FieldSearch, term),
		query.ILike(query.FieldName, term),
		query.ILike(query.FieldCompany, term),
		query.ILike(query.FieldEmail, term),
	}
	for _, t := range ExpandStateTerms(term) {
		alts = append(alts, query.ILike(query.FieldLocation, t))
	}
	return f.And(query.Or(alts...))
}

func Location(f query.Fragment, term string) query.Fragment {
	terms := ExpandStateTerms(term)
	if len(terms) == 0 {
		return f
	}
	alts := make([]query.Cond, 0, len(terms))
	for _, t := range terms {
		alts = append(alts, query.ILike(query.FieldLocation, t))
	}
	return f.And(query.Or(alts...))
}

func Role(f query.Fragment, role string) query.Fragment {
	if role = strings.TrimSpace(role); role == "" {
		return f
	}
	return f.And(query.ILike(query.FieldRole, role))
}

func Source(f query.Fragment, source string) query.Fragment {
	if source = strings.TrimSpace(source); source == "" {
		return f
	}
	return f.And(query.ILike(query.FieldSource, source))
}

// ContactType matches contacts sharing at least one type with types.
func ContactType(f query.Fragment, types []string) query.Fragment {
	if len(types) == 0 {
		return f
	}
	return f.And(query.Overlap(query.FieldContactTypes, types...))
}

// LeadStatus treats a missing lead_status as cold.
func LeadStatus(f query.Fragment, status string) query.Fragment {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case LeadWarm:
		return f.And(query.Eq(query.FieldLeadStatus, LeadWarm))
	case LeadCold:
		return f.And(query.Or(
			query.Eq(query.FieldLeadStatus, LeadCold),
			query.IsNull(query.FieldLeadStatus),
		))
	}
	return f
}

func EmailStatus(f query.Fragment, statuses []string) query.Fragment {
	switch len(statuses) {
	case 0:
		return f
	case 1:
		return f.And(query.Eq(query.FieldEmailStatus, statuses[0]))
	}
	return f.And(query.In(query.FieldEmailStatus, statuses...))
}

// Tags matches the contact's single stored tag against any requested tag.
func Tags(f query.Fragment, tags []string) query.Fragment {
	if len(tags) == 0 {
		return f
	}
	alts := make([]query.Cond, 0, len(tags))
	for _, tag := range tags {
		alts = append(alts, query.Eq(query.FieldTag, tag))
	}
	return f.And(query.Or(alts...))
}

func WebsiteEvents(f query.Fragment, ev *model.WebsiteEventFilter) query.Fragment {
	if ev == nil {
		return f
	}
	types := model.StringList(ev.EventTypes).Values()
	if len(types) == 0 {
		return f
	}
	return f.And(query.Events(strings.EqualFold(ev.Operator, "all"), types...))
}

func ExcludeIDs(f query.Fragment, ids []int64) query.Fragment {
	if len(ids) == 0 {
		return f
	}
	return f.And(query.IDNotIn(ids...))
}

// RequireIDs restricts to ids. An empty list is a no-op here; callers that
// resolved an empty required set must short-circuit themselves.
func RequireIDs(f query.Fragment, ids []int64) query.Fragment {
	if len(ids) == 0 {
		return f
	}
	return f.And(query.IDIn(ids...))
}

// Suppression drops unsubscribed and bounced contacts. It is not part of
// Chain; callers opt in per use case.
func Suppression(f query.Fragment) query.Fragment {
	return f.
		And(query.NotTrue(query.FieldUnsubscribed)).
		And(query.NotTrue(query.FieldBounced))
}

// Chain builds the synchronous predicate pipeline for cf. Campaign history,
// excludeCampaigns and campaignResponse are handled by the orchestrator.
func Chain(cf model.ContactFilter) Step {
	return Pipe(
		func(f query.Fragment) query.Fragment { return Search(f, cf.Search) },
		func(f query.Fragment) query.Fragment { return Location(f, cf.Location) },
		func(f query.Fragment) query.Fragment { return Role(f, cf.Role) },
		func(f query.Fragment) query.Fragment { return Source(f, cf.Source) },
		func(f query.Fragment) query.Fragment { return ContactType(f, cf.ContactType.Values()) },
		func(f query.Fragment) query.Fragment { return LeadStatus(f, cf.LeadStatus) },
		func(f query.Fragment) query.Fragment { return EmailStatus(f, cf.EmailStatus.Values()) },
		func(f query.Fragment) query.Fragment { return Tags(f, cf.Tags.Values()) },
		func(f query.Fragment) query.Fragment { return WebsiteEvents(f, cf.WebsiteEvents) },
	)
}
