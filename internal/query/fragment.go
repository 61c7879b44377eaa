// Package query holds the backend-neutral form of a contact segmentation
// query: immutable condition fragments plus the campaign-history base shape.
package query

// Op is the kind of a condition node.
type Op int

const (
	OpAnd Op = iota
	OpOr
	OpEq       // Field = Value
	OpILike    // Field contains Value, case-insensitive
	OpIn       // Field is one of Values
	OpIsNull   // Field absent or null
	OpNotTrue  // Field is false or null
	OpOverlap  // array Field shares an element with Values
	OpFullText // Field matches the text query Value
	OpIDIn     // contact id is one of IDs
	OpIDNotIn  // contact id is none of IDs
	OpEvents   // contact has website events of Values (all of them when MatchAll)
)

// Contact columns a condition may reference.
const (
	FieldName         = "name"
	FieldCompany      = "company"
	FieldEmail        = "email"
	FieldLocation     = "location"
	FieldRole         = "role"
	FieldSource       = "source"
	FieldContactTypes = "contact_types"
	FieldLeadStatus   = "details.lead_status"
	FieldEmailStatus  = "details.email_status"
	FieldTag          = "details.tag"
	FieldSearch       = "search_vector"
	FieldUnsubscribed = "unsubscribed"
	FieldBounced      = "bounced"
)

type Cond struct {
	Op       Op
	Field    string
	Value    string
	Values   []string
	IDs      []int64
	MatchAll bool
	Children []Cond
}

func Eq(field, value string) Cond       { return Cond{Op: OpEq, Field: field, Value: value} }
func ILike(field, value string) Cond    { return Cond{Op: OpILike, Field: field, Value: value} }
func In(field string, values ...string) Cond {
	return Cond{Op: OpIn, Field: field, Values: values}
}
func IsNull(field string) Cond            { return Cond{Op: OpIsNull, Field: field} }
func NotTrue(field string) Cond           { return Cond{Op: OpNotTrue, Field: field} }
func FullText(field, value string) Cond   { return Cond{Op: OpFullText, Field: field, Value: value} }
func Overlap(field string, values ...string) Cond {
	return Cond{Op: OpOverlap, Field: field, Values: values}
}
func IDIn(ids ...int64) Cond    { return Cond{Op: OpIDIn, IDs: ids} }
func IDNotIn(ids ...int64) Cond { return Cond{Op: OpIDNotIn, IDs: ids} }
func Events(matchAll bool, eventTypes ...string) Cond {
	return Cond{Op: OpEvents, Values: eventTypes, MatchAll: matchAll}
}
func Or(children ...Cond) Cond  { return Cond{Op: OpOr, Children: children} }
func And(children ...Cond) Cond { return Cond{Op: OpAnd, Children: children} }

// Fragment is an AND of conditions. It is a value: And returns a new
// fragment and never touches the receiver.
type Fragment struct {
	conds []Cond
}

func (f Fragment) And(c Cond) Fragment {
	out := make([]Cond, len(f.conds), len(f.conds)+1)
	copy(out, f.conds)
	return Fragment{conds: append(out, c)}
}

func (f Fragment) IsEmpty() bool { return len(f.conds) == 0 }

// Conds returns a copy of the conditions in application order.
func (f Fragment) Conds() []Cond {
	out := make([]Cond, len(f.conds))
	copy(out, f.conds)
	return out
}

// JoinMode is how contacts meet the campaign-recipient relation.
type JoinMode int

const (
	// LeftJoin only enriches rows for display.
	LeftJoin JoinMode = iota
	// AntiJoin keeps contacts with no campaign-recipient row.
	AntiJoin
	// InnerJoin keeps contacts with at least one row, restricted to
	// Shape.CampaignIDs when set.
	InnerJoin
)

type Shape struct {
	Join        JoinMode
	CampaignIDs []int64
}

func (s Shape) String() string {
	switch s.Join {
	case AntiJoin:
		return "never_contacted"
	case InnerJoin:
		if len(s.CampaignIDs) > 0 {
			return "contacted_specific"
		}
		return "contacted_any"
	}
	return "unconstrained"
}

// Select is one paginated contact query. Rows are always ordered newest
// first, ties broken by id descending.
type Select struct {
	Shape  Shape
	Where  Fragment
	Offset int
	Limit  int
}
