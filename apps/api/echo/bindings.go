package echoapi

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-schedule/core"
)

const orderingParam = "ordering"

// seriesOrderings maps the public ordering names to store columns.
var seriesOrderings = map[string]string{
	"created_at": "created_at",
	"updated_at": "updated_at",
	"subject":    "subject",
	"group_id":   "group_id",
}

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context, allowed map[string]string) (err error) {
	ord.Orderings, err = core.ParseOrdering(ctx.QueryParam(orderingParam), allowed)
	return err
}

func invalidParam(name, msg string) error {
	return core.NewValidationError(errors.New(name+": "+msg), core.FieldError{Field: name, Error: msg})
}

// timeParam parses an RFC 3339 query param; a missing param yields def.
func timeParam(ctx echo.Context, name string, def time.Time) (time.Time, error) {
	raw := ctx.QueryParam(name)
	if raw == "" {
		return def, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, invalidParam(name, "must be an RFC 3339 date-time, e.g. 2024-01-01T15:00:00Z")
	}
	return t, nil
}

func durationParam(ctx echo.Context, name string) (time.Duration, error) {
	raw := ctx.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return 0, invalidParam(name, "must be a positive duration, e.g. 24h")
	}
	return d, nil
}

func boolParam(ctx echo.Context, name string) (bool, error) {
	raw := ctx.QueryParam(name)
	if raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, invalidParam(name, "must be a boolean")
	}
	return b, nil
}

func intParam(ctx echo.Context, name string) (int, error) {
	raw := ctx.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, invalidParam(name, "must be a positive integer")
	}
	return n, nil
}
