package echoapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-schedule/core"
	"github.com/trezcool/masomo-schedule/core/schedule"
	icssvc "github.com/trezcool/masomo-schedule/services/ics"
)

var nowFunc = time.Now // mockable

type (
	scheduleApi struct {
		svc    schedule.Service
		feed   *icssvc.Feed
		logger core.Logger
	}

	SeriesResponse struct {
		schedule.Series
		EndTime schedule.TimeOfDay `json:"end_time"`
		RRule   string             `json:"rrule"`
	}

	DeleteSeriesResponse struct {
		Purged int `json:"purged"`
	}

	RefreshResponse struct {
		Inserted int `json:"inserted"`
	}
)

func registerScheduleAPI(g *echo.Group, deps ServerDeps) {
	api := scheduleApi{
		svc:    deps.ScheduleSvc,
		feed:   deps.Feed,
		logger: deps.Logger,
	}

	sg := g.Group("/series")
	sg.GET("", api.querySeries)
	sg.POST("", api.createSeries, staffMiddleware())
	sg.POST("/refresh", api.refresh, adminMiddleware())
	sg.GET("/:id", api.retrieveSeries)
	sg.PUT("/:id", api.updateSeries, staffMiddleware())
	sg.DELETE("/:id", api.destroySeries, staffMiddleware())

	gg := g.Group("/groups/:group_id")
	gg.GET("/occurrences", api.listOccurrences)
	gg.GET("/calendar.ics", api.calendar)

	og := g.Group("/occurrences")
	og.GET("/upcoming", api.upcoming)
	og.POST("", api.createOccurrence, staffMiddleware())
	og.DELETE("/:id", api.destroyOccurrence, staffMiddleware())
}

func newSeriesResponse(s schedule.Series) SeriesResponse {
	return SeriesResponse{Series: s, EndTime: s.EndTime(), RRule: s.RRule()}
}

// Handlers

func (api *scheduleApi) createSeries(ctx echo.Context) error {
	var data schedule.NewSeries
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSeries")
	}

	res, err := api.svc.CreateSeries(ctx.Request().Context(), nowFunc(), data)
	if err != nil {
		return errors.Wrap(err, "creating series")
	}
	return ctx.JSON(http.StatusCreated, res)
}

func (api *scheduleApi) querySeries(ctx echo.Context) error {
	var ord Ordering
	if err := ord.Bind(ctx, seriesOrderings); err != nil {
		return err
	}

	series, err := api.svc.QuerySeries(ctx.Request().Context(), schedule.SeriesFilter{GroupID: ctx.QueryParam("group_id")}, ord.Orderings...)
	if err != nil {
		return errors.Wrap(err, "querying series")
	}
	resp := make([]SeriesResponse, 0, len(series))
	for _, s := range series {
		resp = append(resp, newSeriesResponse(s))
	}
	return ctx.JSON(http.StatusOK, resp)
}

func (api *scheduleApi) retrieveSeries(ctx echo.Context) error {
	s, err := api.svc.GetSeries(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting series")
	}
	return ctx.JSON(http.StatusOK, newSeriesResponse(s))
}

func (api *scheduleApi) updateSeries(ctx echo.Context) error {
	var data schedule.UpdateSeries
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateSeries")
	}

	res, err := api.svc.EditSeries(ctx.Request().Context(), nowFunc(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "editing series")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *scheduleApi) destroySeries(ctx echo.Context) error {
	force, err := boolParam(ctx, "force")
	if err != nil {
		return err
	}
	version, err := intParam(ctx, "version")
	if err != nil {
		return err
	}

	purged, err := api.svc.DeleteSeries(ctx.Request().Context(), ctx.Param("id"), schedule.DeleteOptions{Version: version, Force: force})
	if err != nil {
		return errors.Wrap(err, "deleting series")
	}
	if force {
		claims, _ := getContextClaims(ctx)
		api.logger.Warn(fmt.Sprintf("series %s force-deleted by %s", ctx.Param("id"), claims.Username), contextActor(ctx))
	}
	return ctx.JSON(http.StatusOK, DeleteSeriesResponse{Purged: purged})
}

func (api *scheduleApi) refresh(ctx echo.Context) error {
	n, err := api.svc.Refresh(ctx.Request().Context(), nowFunc())
	if err != nil {
		return errors.Wrap(err, "refreshing schedule")
	}
	return ctx.JSON(http.StatusOK, RefreshResponse{Inserted: n})
}

// occurrenceRange reads from/to, defaulting to the materialized window ahead of now.
func (api *scheduleApi) occurrenceRange(ctx echo.Context) (from, to time.Time, err error) {
	now := nowFunc().UTC()
	if from, err = timeParam(ctx, "from", now); err != nil {
		return
	}
	to, err = timeParam(ctx, "to", from.AddDate(0, 0, 7*api.svc.WindowWeeks()))
	return
}

func (api *scheduleApi) listOccurrences(ctx echo.Context) error {
	from, to, err := api.occurrenceRange(ctx)
	if err != nil {
		return err
	}

	occs, err := api.svc.ListOccurrences(ctx.Request().Context(), ctx.Param("group_id"), from, to)
	if err != nil {
		return errors.Wrap(err, "listing occurrences")
	}
	return ctx.JSON(http.StatusOK, occs)
}

func (api *scheduleApi) calendar(ctx echo.Context) error {
	from, to, err := api.occurrenceRange(ctx)
	if err != nil {
		return err
	}

	groupID := ctx.Param("group_id")
	occs, err := api.svc.ListOccurrences(ctx.Request().Context(), groupID, from, to)
	if err != nil {
		return errors.Wrap(err, "listing occurrences")
	}

	res := ctx.Response()
	res.Header().Set(echo.HeaderContentType, "text/calendar; charset=utf-8")
	res.Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("inline; filename=%q", groupID+".ics"))
	res.WriteHeader(http.StatusOK)
	return errors.Wrap(api.feed.Write(res, "Masomo "+groupID, occs), "writing calendar")
}

func (api *scheduleApi) upcoming(ctx echo.Context) error {
	within, err := durationParam(ctx, "within")
	if err != nil {
		return err
	}

	occs, err := api.svc.Upcoming(ctx.Request().Context(), nowFunc(), within)
	if err != nil {
		return errors.Wrap(err, "listing upcoming occurrences")
	}
	return ctx.JSON(http.StatusOK, occs)
}

func (api *scheduleApi) createOccurrence(ctx echo.Context) error {
	var data schedule.NewOccurrence
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewOccurrence")
	}

	o, err := api.svc.CreateOccurrence(ctx.Request().Context(), nowFunc(), data)
	if err != nil {
		return errors.Wrap(err, "creating occurrence")
	}
	return ctx.JSON(http.StatusCreated, o)
}

func (api *scheduleApi) destroyOccurrence(ctx echo.Context) error {
	force, err := boolParam(ctx, "force")
	if err != nil {
		return err
	}

	if err = api.svc.DeleteOccurrence(ctx.Request().Context(), ctx.Param("id"), force); err != nil {
		return errors.Wrap(err, "deleting occurrence")
	}
	return ctx.NoContent(http.StatusNoContent)
}
