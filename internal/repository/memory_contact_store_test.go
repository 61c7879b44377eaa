package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/outreach-backend/internal/model"
	"github.com/unclebandit/outreach-backend/internal/query"
)

func seededStore(t *testing.T) *MemoryContactStore {
	t.Helper()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	sent := base.Add(48 * time.Hour)

	m := NewMemoryContactStore()
	for i := 1; i <= 4; i++ {
		m.AddContact(model.Contact{
			ID:        int64(i),
			Email:     "c@x.com",
			CreatedAt: base.Add(time.Duration(i%2) * time.Hour),
			Details:   map[string]string{"lead_status": "warm"},
		})
	}
	m.AddRecipient(model.CampaignRecipient{CampaignID: 10, ContactID: 1, SentAt: &sent, RepliedAt: &sent})
	m.AddRecipient(model.CampaignRecipient{CampaignID: 11, ContactID: 1, SentAt: &sent})
	m.AddRecipient(model.CampaignRecipient{CampaignID: 11, ContactID: 2, SentAt: &sent})
	return m
}

func ids(rows []model.Contact) []int64 {
	out := make([]int64, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.ID)
	}
	return out
}

func TestMemoryStoreShapes(t *testing.T) {
	m := seededStore(t)
	ctx := context.Background()

	cases := []struct {
		name  string
		shape query.Shape
		want  []int64
	}{
		// created_at desc puts odd ids first, then id desc.
		{"unconstrained", query.Shape{Join: query.LeftJoin}, []int64{3, 1, 4, 2}},
		{"never contacted", query.Shape{Join: query.AntiJoin}, []int64{3, 4}},
		{"contacted any", query.Shape{Join: query.InnerJoin}, []int64{1, 2}},
		{"contacted specific", query.Shape{Join: query.InnerJoin, CampaignIDs: []int64{10}}, []int64{1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rows, total, err := m.FindContacts(ctx, query.Select{Shape: tc.shape, Limit: 10})
			require.NoError(t, err)
			assert.Equal(t, tc.want, ids(rows))
			assert.Equal(t, len(tc.want), total)
		})
	}
}

func TestMemoryStoreEnrichmentAndPaging(t *testing.T) {
	m := seededStore(t)
	rows, total, err := m.FindContacts(context.Background(), query.Select{Shape: query.Shape{Join: query.LeftJoin}, Offset: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	require.Equal(t, []int64{1, 4}, ids(rows))
	assert.Equal(t, 2, rows[0].CampaignCount)
	assert.NotNil(t, rows[0].LastContactedAt)
	assert.Equal(t, 0, rows[1].CampaignCount)

	rows, total, err = m.FindContacts(context.Background(), query.Select{Offset: 10, Limit: 2})
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Equal(t, 4, total)
}

func TestMemoryStoreResolvers(t *testing.T) {
	m := seededStore(t)
	ctx := context.Background()

	in, err := m.ContactsInCampaigns(ctx, []int64{11})
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{1, 2}, in)

	replied, err := m.ContactsWithResponse(ctx, 10, ResponseReplied)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, replied)

	noReply, err := m.ContactsWithResponse(ctx, 11, ResponseNoReply)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{1, 2}, noReply)

	opened, err := m.ContactsWithResponse(ctx, 10, ResponseOpened)
	require.NoError(t, err)
	assert.Empty(t, opened)

	_, err = m.ContactsWithResponse(ctx, 10, "forwarded")
	assert.Error(t, err)
}

func TestDecodeDetails(t *testing.T) {
	got, err := decodeDetails([]byte(`{"lead_status":"warm","score":7,"tag":null}`))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"lead_status": "warm", "score": "7"}, got)

	got, err = decodeDetails(nil)
	require.NoError(t, err)
	assert.Nil(t, got)
}
