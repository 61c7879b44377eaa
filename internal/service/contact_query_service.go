// internal/service/contact_query_service.go
package service

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog"

	appErrors "github.com/unclebandit/outreach-backend/internal/errors"
	"github.com/unclebandit/outreach-backend/internal/filter"
	"github.com/unclebandit/outreach-backend/internal/metrics"
	"github.com/unclebandit/outreach-backend/internal/model"
	"github.com/unclebandit/outreach-backend/internal/query"
	"github.com/unclebandit/outreach-backend/internal/repository"
	"github.com/unclebandit/outreach-backend/internal/selection"
)

const DefaultPageSize = 25

// AllowedPageSizes are the page sizes a search may ask for.
var AllowedPageSizes = []int{10, 25, 50, 100}

// resolveBatch is the page size used when materializing a whole selection.
const resolveBatch = 500

type ContactQueryService struct {
	Store    repository.ContactStore
	Resolver repository.RecipientResolver
	Log      zerolog.Logger
}

// SearchRequest is one segmentation query. Page is zero-based. Targeting
// marks a campaign-targeting context: it defaults the email status and
// drops suppressed contacts.
type SearchRequest struct {
	Filter    model.ContactFilter `json:"filter"`
	Page      int                 `json:"page"`
	PageSize  int                 `json:"page_size"`
	Targeting bool                `json:"targeting"`
}

// RecipientList is a materialized selection. Unresolved counts contacts
// dropped because their address was ambiguous and never picked.
type RecipientList struct {
	Recipients []model.Recipient `json:"recipients"`
	Unresolved int               `json:"unresolved"`
}

// queryPlan is a shape and condition set, or an empty result decided
// before touching the contact store.
type queryPlan struct {
	shape query.Shape
	where query.Fragment
	empty string
}

func shapeFor(h model.CampaignHistory) query.Shape {
	switch h.Mode {
	case model.HistoryNone:
		return query.Shape{Join: query.AntiJoin}
	case model.HistoryAny:
		return query.Shape{Join: query.InnerJoin}
	case model.HistorySpecific:
		return query.Shape{Join: query.InnerJoin, CampaignIDs: slices.Clone(h.CampaignIDs)}
	}
	return query.Shape{Join: query.LeftJoin}
}

func validateResponse(cr *model.CampaignResponseFilter) error {
	if cr.CampaignID <= 0 {
		return appErrors.NewConfigError("campaignResponse.campaignId", "must be a campaign id")
	}
	switch cr.Response {
	case repository.ResponseReplied, repository.ResponseOpened, repository.ResponseClicked,
		repository.ResponseBounced, repository.ResponseNoReply:
		return nil
	}
	return appErrors.NewConfigError("campaignResponse.response", fmt.Sprintf("unknown response %q", cr.Response))
}

// plan builds the query in order: base shape, pre-resolved id sets, then
// the predicate chain.
func (s *ContactQueryService) plan(ctx context.Context, f model.ContactFilter, targeting bool) (queryPlan, error) {
	p := queryPlan{shape: shapeFor(f.CampaignHistory)}

	if f.CampaignResponse != nil {
		if err := validateResponse(f.CampaignResponse); err != nil {
			return p, err
		}
	}

	if f.CampaignHistory.Mode == model.HistoryNone {
		// A response needs a campaign-recipient row, which this shape excludes.
		if f.CampaignResponse != nil {
			p.empty = "response_on_never_contacted"
			return p, nil
		}
		p.where = filter.Suppression(p.where)
	} else {
		if len(f.ExcludeCampaigns) > 0 {
			ids, err := s.Resolver.ContactsInCampaigns(ctx, f.ExcludeCampaigns)
			if err != nil {
				return p, appErrors.NewQueryError("resolve excluded campaigns", err)
			}
			p.where = filter.ExcludeIDs(p.where, ids)
		}
		if cr := f.CampaignResponse; cr != nil {
			ids, err := s.Resolver.ContactsWithResponse(ctx, cr.CampaignID, cr.Response)
			if err != nil {
				return p, appErrors.NewQueryError("resolve campaign response", err)
			}
			if len(ids) == 0 {
				p.empty = "no_campaign_response"
				return p, nil
			}
			p.where = filter.RequireIDs(p.where, ids)
		}
		if targeting {
			p.where = filter.Suppression(p.where)
		}
	}

	if targeting && len(f.EmailStatus.Values()) == 0 {
		f.EmailStatus = filter.DefaultTargetingEmailStatuses
	}
	p.where = filter.Chain(f)(p.where)
	return p, nil
}

func pageSize(requested int) (int, error) {
	if requested == 0 {
		return DefaultPageSize, nil
	}
	if !slices.Contains(AllowedPageSizes, requested) {
		return 0, appErrors.NewConfigError("page_size", fmt.Sprintf("must be one of %v", AllowedPageSizes))
	}
	return requested, nil
}

func (s *ContactQueryService) find(ctx context.Context, q query.Select) ([]model.Contact, int, error) {
	start := time.Now()
	rows, total, err := s.Store.FindContacts(ctx, q)
	metrics.ObserveContactQuery(q.Shape.String(), start, err)
	if err != nil {
		s.Log.Error().Err(err).Str("shape", q.Shape.String()).Msg("contact query failed")
		return nil, 0, appErrors.NewQueryError("find contacts", err)
	}
	return rows, total, nil
}

// Search returns one page of contacts matching req.Filter, newest first,
// with the total count of the whole match.
func (s *ContactQueryService) Search(ctx context.Context, req SearchRequest) (*model.ContactPage, error) {
	size, err := pageSize(req.PageSize)
	if err != nil {
		return nil, err
	}
	if req.Page < 0 {
		return nil, appErrors.NewConfigError("page", "must not be negative")
	}

	p, err := s.plan(ctx, req.Filter, req.Targeting)
	if err != nil {
		return nil, err
	}
	page := &model.ContactPage{Rows: []model.Contact{}, Page: req.Page, PageSize: size}
	if p.empty != "" {
		metrics.ContactQueryShortCircuits.WithLabelValues(p.empty).Inc()
		s.Log.Debug().Str("reason", p.empty).Msg("contact search short-circuited")
		return page, nil
	}

	rows, total, err := s.find(ctx, query.Select{
		Shape:  p.shape,
		Where:  p.where,
		Offset: req.Page * size,
		Limit:  size,
	})
	if err != nil {
		return nil, err
	}
	page.Rows = rows
	page.TotalCount = total
	page.TotalPages = (total + size - 1) / size
	return page, nil
}

// ResolveRecipients materializes a selection submission into one address
// per contact. Contacts with several addresses need an explicit selection;
// the rest are dropped and counted.
func (s *ContactQueryService) ResolveRecipients(ctx context.Context, sub selection.Submission) (*RecipientList, error) {
	var contacts []model.Contact

	if sub.SelectAllMatching {
		if sub.Filters == nil {
			return nil, appErrors.NewConfigError("filters", "required when selectAllMatching is set")
		}
		p, err := s.plan(ctx, *sub.Filters, true)
		if err != nil {
			return nil, err
		}
		if p.empty != "" {
			metrics.ContactQueryShortCircuits.WithLabelValues(p.empty).Inc()
			return &RecipientList{Recipients: []model.Recipient{}}, nil
		}
		where := filter.ExcludeIDs(p.where, sub.Exclusions)
		for offset := 0; ; offset += resolveBatch {
			rows, total, err := s.find(ctx, query.Select{Shape: p.shape, Where: where, Offset: offset, Limit: resolveBatch})
			if err != nil {
				return nil, err
			}
			contacts = append(contacts, rows...)
			if len(rows) < resolveBatch || offset+resolveBatch >= total {
				break
			}
		}
	} else if len(sub.ContactIDs) > 0 {
		where := filter.Suppression(filter.RequireIDs(query.Fragment{}, sub.ContactIDs))
		rows, _, err := s.find(ctx, query.Select{Where: where, Limit: len(sub.ContactIDs)})
		if err != nil {
			return nil, err
		}
		contacts = rows
	}

	list := &RecipientList{Recipients: make([]model.Recipient, 0, len(contacts))}
	for _, c := range contacts {
		addr, ok := pickAddress(c, sub.ExplicitSelections)
		if !ok {
			list.Unresolved++
			continue
		}
		list.Recipients = append(list.Recipients, model.Recipient{ContactID: c.ID, Email: addr, Name: c.Name})
	}
	s.Log.Info().
		Bool("select_all", sub.SelectAllMatching).
		Int("recipients", len(list.Recipients)).
		Int("unresolved", list.Unresolved).
		Msg("selection resolved")
	return list, nil
}

func pickAddress(c model.Contact, overrides map[int64]string) (string, bool) {
	addrs := c.Addresses()
	if chosen, ok := overrides[c.ID]; ok && slices.Contains(addrs, chosen) {
		return chosen, true
	}
	if len(addrs) == 1 {
		return addrs[0], true
	}
	return "", false
}
