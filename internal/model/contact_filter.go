// internal/model/contact_filter.go
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// HistoryMode selects how contacts relate to past campaigns.
type HistoryMode int

const (
	HistoryUnconstrained HistoryMode = iota
	HistoryNone
	HistoryAny
	HistorySpecific
)

// CampaignHistory decodes 'any', 'none', a campaign id or a list of ids.
type CampaignHistory struct {
	Mode        HistoryMode
	CampaignIDs []int64
}

func (h *CampaignHistory) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*h = CampaignHistory{}
		return nil
	}
	if len(data) > 0 && data[0] == '[' {
		var raw []json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		ids := make([]int64, 0, len(raw))
		for _, r := range raw {
			id, err := decodeID(r)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		if len(ids) == 0 {
			*h = CampaignHistory{}
			return nil
		}
		*h = CampaignHistory{Mode: HistorySpecific, CampaignIDs: ids}
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "":
			*h = CampaignHistory{}
			return nil
		case "any":
			*h = CampaignHistory{Mode: HistoryAny}
			return nil
		case "none":
			*h = CampaignHistory{Mode: HistoryNone}
			return nil
		}
	}
	id, err := decodeID(data)
	if err != nil {
		return err
	}
	*h = CampaignHistory{Mode: HistorySpecific, CampaignIDs: []int64{id}}
	return nil
}

func (h CampaignHistory) MarshalJSON() ([]byte, error) {
	switch h.Mode {
	case HistoryNone:
		return json.Marshal("none")
	case HistoryAny:
		return json.Marshal("any")
	case HistorySpecific:
		return json.Marshal(h.CampaignIDs)
	}
	return []byte("null"), nil
}

func decodeID(data []byte) (int64, error) {
	var n int64
	if err := json.Unmarshal(data, &n); err == nil {
		return n, nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return 0, fmt.Errorf("campaign id: %w", err)
	}
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("campaign id %q: %w", s, err)
	}
	return n, nil
}

// StringList accepts either a single string or an array of strings.
type StringList []string

func (l *StringList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*l = nil
		return nil
	}
	if len(data) > 0 && data[0] == '[' {
		var items []string
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		*l = items
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*l = nil
		return nil
	}
	*l = StringList{s}
	return nil
}

// Values returns the trimmed, non-empty entries.
func (l StringList) Values() []string {
	out := make([]string, 0, len(l))
	for _, v := range l {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

type WebsiteEventFilter struct {
	EventTypes []string `json:"eventTypes"`
	Operator   string   `json:"operator"` // any, all
}

type CampaignResponseFilter struct {
	CampaignID int64  `json:"campaignId"`
	Response   string `json:"response"` // replied, opened, clicked, bounced, no_reply
}

// ContactFilter is a segmentation request. A zero field means no constraint.
type ContactFilter struct {
	Search           string                  `json:"search,omitempty"`
	Location         string                  `json:"location,omitempty"`
	Role             string                  `json:"role,omitempty"`
	Source           string                  `json:"source,omitempty"`
	ContactType      StringList              `json:"contactType,omitempty"`
	CampaignHistory  CampaignHistory         `json:"campaignHistory"`
	EmailStatus      StringList              `json:"emailStatus,omitempty"`
	LeadStatus       string                  `json:"leadStatus,omitempty"` // warm, cold, all
	Tags             StringList              `json:"tags,omitempty"`
	WebsiteEvents    *WebsiteEventFilter     `json:"websiteEvents,omitempty"`
	CampaignResponse *CampaignResponseFilter `json:"campaignResponse,omitempty"`
	ExcludeCampaigns []int64                 `json:"excludeCampaigns,omitempty"`
}
