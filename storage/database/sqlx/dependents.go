package sqlxrepos

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/trezcool/masomo-schedule/core/schedule"
)

// dependentsChecker reports dependents found in a table owned by another subsystem
// (attendance records, ...) that references occurrences by id.
type dependentsChecker struct {
	db    sqlx.QueryerContext
	query string
}

var _ schedule.DependencyChecker = (*dependentsChecker)(nil)

// NewDependentsChecker checks table.column (table may be schema-qualified) for occurrence ids.
func NewDependentsChecker(db sqlx.QueryerContext, table, column string) schedule.DependencyChecker {
	parts := strings.Split(table, ".")
	for i, p := range parts {
		parts[i] = pq.QuoteIdentifier(p)
	}
	return &dependentsChecker{
		db: db,
		query: fmt.Sprintf(
			"SELECT EXISTS (SELECT 1 FROM %s WHERE %s::text = ANY($1))",
			strings.Join(parts, "."), pq.QuoteIdentifier(column),
		),
	}
}

func (c *dependentsChecker) HasDependents(ctx context.Context, occurrenceIDs []string) (bool, error) {
	if len(occurrenceIDs) == 0 {
		return false, nil
	}
	var found bool
	if err := sqlx.GetContext(ctx, c.db, &found, c.query, pq.StringArray(occurrenceIDs)); err != nil {
		return false, storageErr("HasDependents", err)
	}
	return found, nil
}
