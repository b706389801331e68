package visibility

import (
	"fmt"
	"strings"

	"github.com/miniintern/bizboard/internal/shared"
)

// Ordering is a whitelisted sort field and direction.
type Ordering struct {
	Field string
	Desc  bool
}

// NewestFirst is the default ordering of posts and comments.
var NewestFirst = Ordering{Field: "created_at", Desc: true}

// ParseOrdering parses values like "created_at" or "-title". Fields outside
// allowed are rejected; an empty value yields def.
func ParseOrdering(raw string, def Ordering, allowed ...string) (Ordering, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	ord := Ordering{Field: raw}
	if strings.HasPrefix(raw, "-") {
		ord = Ordering{Field: strings.TrimPrefix(raw, "-"), Desc: true}
	}
	for _, field := range allowed {
		if ord.Field == field {
			return ord, nil
		}
	}
	return Ordering{}, &shared.ValidationError{Fields: map[string]string{
		"ordering": fmt.Sprintf("cannot order by %q", ord.Field),
	}}
}

// SQL renders an ORDER BY body. The id column breaks ties so pages are stable.
// Field is trusted because ParseOrdering only admits whitelisted names.
func (o Ordering) SQL(prefix string) string {
	dir := "ASC"
	if o.Desc {
		dir = "DESC"
	}
	return prefix + o.Field + " " + dir + ", " + prefix + "id " + dir
}

func (o Ordering) String() string {
	if o.Desc {
		return "-" + o.Field
	}
	return o.Field
}
