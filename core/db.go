package core

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// ParseOrdering parses a comma separated list of fields; a leading "-" means descending.
// Only fields present in allowed are accepted, and they are mapped to their column names.
func ParseOrdering(raw string, allowed map[string]string) ([]DBOrdering, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	var orderings []DBOrdering
	for _, field := range strings.Split(raw, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		col, ok := allowed[field]
		if !ok {
			msg := fmt.Sprintf("cannot order by %q", field)
			return nil, NewValidationError(errors.New(msg), FieldError{Field: "ordering", Error: msg})
		}
		orderings = append(orderings, DBOrdering{Field: col, Ascending: !descending})
	}
	return orderings, nil
}
