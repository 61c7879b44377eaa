package query

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"
)

var columns = map[string]string{
	FieldName:         "c.name",
	FieldCompany:      "c.company",
	FieldEmail:        "c.email",
	FieldLocation:     "c.location",
	FieldRole:         "c.role",
	FieldSource:       "c.source",
	FieldContactTypes: "c.contact_types",
	FieldLeadStatus:   "c.details->>'lead_status'",
	FieldEmailStatus:  "c.details->>'email_status'",
	FieldTag:          "c.details->>'tag'",
	FieldSearch:       "c.search_vector",
	FieldUnsubscribed: "c.unsubscribed",
	FieldBounced:      "c.bounced",
}

const selectColumns = `c.id, c.email, c.name, c.company, c.role, c.location, c.source,
       c.contact_types, c.details, c.unsubscribed, c.bounced, c.created_at,
       COALESCE(h.campaign_count, 0), h.last_contacted_at`

type sqlBuilder struct {
	args []any
}

func (b *sqlBuilder) arg(v any) string {
	b.args = append(b.args, v)
	return "$" + strconv.Itoa(len(b.args))
}

func column(field string) (string, error) {
	col, ok := columns[field]
	if !ok {
		return "", fmt.Errorf("query: unknown field %q", field)
	}
	return col, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func (b *sqlBuilder) from(shape Shape) string {
	history := `SELECT contact_id, COUNT(DISTINCT campaign_id) AS campaign_count, MAX(sent_at) AS last_contacted_at
        FROM campaign_recipients`
	if shape.Join == InnerJoin && len(shape.CampaignIDs) > 0 {
		history += " WHERE campaign_id = ANY(" + b.arg(pq.Array(shape.CampaignIDs)) + ")"
	}
	history += " GROUP BY contact_id"

	join := "LEFT JOIN"
	if shape.Join == InnerJoin {
		join = "JOIN"
	}
	return fmt.Sprintf("FROM contacts c\n%s (%s) h ON h.contact_id = c.id", join, history)
}

func (b *sqlBuilder) where(s Select) (string, error) {
	parts := []string{}
	if s.Shape.Join == AntiJoin {
		parts = append(parts, "h.contact_id IS NULL")
	}
	for _, c := range s.Where.conds {
		sql, err := b.cond(c)
		if err != nil {
			return "", err
		}
		parts = append(parts, sql)
	}
	if len(parts) == 0 {
		return "", nil
	}
	return "\nWHERE " + strings.Join(parts, "\n  AND "), nil
}

func (b *sqlBuilder) cond(c Cond) (string, error) {
	switch c.Op {
	case OpAnd, OpOr:
		if len(c.Children) == 0 {
			if c.Op == OpAnd {
				return "TRUE", nil
			}
			return "FALSE", nil
		}
		sep := " AND "
		if c.Op == OpOr {
			sep = " OR "
		}
		parts := make([]string, 0, len(c.Children))
		for _, child := range c.Children {
			sql, err := b.cond(child)
			if err != nil {
				return "", err
			}
			parts = append(parts, sql)
		}
		return "(" + strings.Join(parts, sep) + ")", nil
	case OpIDIn:
		return "c.id = ANY(" + b.arg(pq.Array(c.IDs)) + ")", nil
	case OpIDNotIn:
		return "NOT (c.id = ANY(" + b.arg(pq.Array(c.IDs)) + "))", nil
	case OpEvents:
		set := b.arg(pq.Array(c.Values))
		if c.MatchAll {
			want := b.arg(len(distinct(c.Values)))
			return "(SELECT COUNT(DISTINCT e.event_type) FROM website_events e WHERE e.contact_id = c.id AND e.event_type = ANY(" + set + ")) = " + want, nil
		}
		return "EXISTS (SELECT 1 FROM website_events e WHERE e.contact_id = c.id AND e.event_type = ANY(" + set + "))", nil
	}

	col, err := column(c.Field)
	if err != nil {
		return "", err
	}
	switch c.Op {
	case OpEq:
		return col + " = " + b.arg(c.Value), nil
	case OpILike:
		return col + " ILIKE " + b.arg("%"+escapeLike(c.Value)+"%"), nil
	case OpIn:
		return col + " = ANY(" + b.arg(pq.Array(c.Values)) + ")", nil
	case OpIsNull:
		return col + " IS NULL", nil
	case OpNotTrue:
		return col + " IS NOT TRUE", nil
	case OpOverlap:
		return col + " && " + b.arg(pq.Array(c.Values)) + "::text[]", nil
	case OpFullText:
		return col + " @@ plainto_tsquery('english', " + b.arg(c.Value) + ")", nil
	}
	return "", fmt.Errorf("query: unsupported op %d", c.Op)
}

// SQL renders the page query for Postgres.
func (s Select) SQL() (string, []any, error) {
	b := &sqlBuilder{}
	from := b.from(s.Shape)
	where, err := b.where(s)
	if err != nil {
		return "", nil, err
	}
	q := "SELECT " + selectColumns + "\n" + from + where +
		"\nORDER BY c.created_at DESC, c.id DESC" +
		"\nLIMIT " + b.arg(s.Limit) + " OFFSET " + b.arg(s.Offset)
	return q, b.args, nil
}

// CountSQL renders the matching-row count, ignoring pagination.
func (s Select) CountSQL() (string, []any, error) {
	b := &sqlBuilder{}
	from := b.from(s.Shape)
	where, err := b.where(s)
	if err != nil {
		return "", nil, err
	}
	return "SELECT COUNT(*) " + from + where, b.args, nil
}

func distinct(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
