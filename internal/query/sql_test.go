package query

import (
	"strings"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFragmentIsImmutable(t *testing.T) {
	base := Fragment{}.And(Eq(FieldRole, "broker"))
	a := base.And(ILike(FieldName, "ann"))
	b := base.And(ILike(FieldName, "bob"))

	assert.Len(t, base.Conds(), 1)
	assert.Equal(t, "ann", a.Conds()[1].Value)
	assert.Equal(t, "bob", b.Conds()[1].Value)
}

func TestSelectSQLShapes(t *testing.T) {
	cases := []struct {
		name     string
		shape    Shape
		join     string
		contains []string
		args     int
	}{
		{name: "unconstrained", shape: Shape{Join: LeftJoin}, join: "LEFT JOIN (", args: 2},
		{name: "never contacted", shape: Shape{Join: AntiJoin}, join: "LEFT JOIN (", contains: []string{"WHERE h.contact_id IS NULL"}, args: 2},
		{name: "any campaign", shape: Shape{Join: InnerJoin}, join: "\nJOIN (", args: 2},
		{name: "specific campaigns", shape: Shape{Join: InnerJoin, CampaignIDs: []int64{4, 7}}, join: "\nJOIN (", contains: []string{"WHERE campaign_id = ANY($1)"}, args: 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sql, args, err := Select{Shape: tc.shape, Limit: 25, Offset: 50}.SQL()
			require.NoError(t, err)
			assert.Contains(t, sql, tc.join)
			for _, c := range tc.contains {
				assert.Contains(t, sql, c)
			}
			assert.Contains(t, sql, "ORDER BY c.created_at DESC, c.id DESC")
			require.Len(t, args, tc.args)
			assert.Equal(t, 25, args[len(args)-2])
			assert.Equal(t, 50, args[len(args)-1])
		})
	}
}

func TestSelectSQLConditions(t *testing.T) {
	where := Fragment{}.
		And(Or(FullText(FieldSearch, "acme"), ILike(FieldName, "50%_off"))).
		And(Overlap(FieldContactTypes, "developer", "investor")).
		And(Or(Eq(FieldLeadStatus, "cold"), IsNull(FieldLeadStatus))).
		And(In(FieldEmailStatus, "Valid", "Catch-all")).
		And(NotTrue(FieldUnsubscribed)).
		And(IDNotIn(3, 9)).
		And(Events(true, "page_view", "form_submit", "page_view"))

	sql, args, err := Select{Where: where, Limit: 10}.SQL()
	require.NoError(t, err)

	assert.Contains(t, sql, "(c.search_vector @@ plainto_tsquery('english', $1) OR c.name ILIKE $2)")
	assert.Equal(t, `%50\%\_off%`, args[1])
	assert.Contains(t, sql, "c.contact_types && $3::text[]")
	assert.Contains(t, sql, "(c.details->>'lead_status' = $4 OR c.details->>'lead_status' IS NULL)")
	assert.Contains(t, sql, "c.details->>'email_status' = ANY($5)")
	assert.Contains(t, sql, "c.unsubscribed IS NOT TRUE")
	assert.Contains(t, sql, "NOT (c.id = ANY($6))")
	assert.Contains(t, sql, "= ANY($7)) = $8")
	assert.Equal(t, pq.Array([]int64{3, 9}), args[5])
	assert.Equal(t, 2, args[7])
}

func TestCountSQLHasNoPaging(t *testing.T) {
	sql, args, err := Select{Shape: Shape{Join: AntiJoin}, Where: Fragment{}.And(ILike(FieldRole, "agent")), Limit: 10, Offset: 20}.CountSQL()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sql, "SELECT COUNT(*) FROM contacts c"))
	assert.NotContains(t, sql, "LIMIT")
	assert.Len(t, args, 1)
}

func TestUnknownFieldIsRejected(t *testing.T) {
	_, _, err := Select{Where: Fragment{}.And(Eq("password", "x"))}.SQL()
	assert.Error(t, err)
}
