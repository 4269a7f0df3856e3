package server

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/heraldhq/herald/internal/agent"
	"github.com/heraldhq/herald/internal/scheduler"
)

// TriggerResponse acknowledges a manual firing. The firing itself is
// fire-and-forget; its outcome lands in the job status and the metrics.
type TriggerResponse struct {
	Accepted bool   `json:"accepted"`
	Message  string `json:"message"`
}

type JobsHandler struct {
	Sched *scheduler.Scheduler
}

func (h *JobsHandler) Register(g *echo.Group) {
	g.GET("", h.list)
	g.POST("/:kind/trigger", h.trigger)
}

// List registered jobs with schedule, state and last outcome
//
//	@Summary	List jobs
//	@Tags		jobs
//	@Security	BearerAuth
//	@Produce	json
//	@Success	200	{array}	scheduler.JobStatus
//	@Router		/api/jobs [get]
func (h *JobsHandler) list(c echo.Context) error {
	return c.JSON(http.StatusOK, h.Sched.Jobs())
}

// Trigger one firing of a job outside its schedule
//
//	@Summary	Trigger job
//	@Tags		jobs
//	@Security	BearerAuth
//	@Param		kind	path	string	true	"Job kind"
//	@Produce	json
//	@Success	202	{object}	TriggerResponse	"Firing accepted"
//	@Failure	404	{object}	HTTPError
//	@Router		/api/jobs/{kind}/trigger [post]
func (h *JobsHandler) trigger(c echo.Context) error {
	kind := agent.JobKind(c.Param("kind"))
	if !kind.Valid() {
		return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("unknown job kind %q", kind))
	}
	if err := h.Sched.RunNow(kind); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.JSON(http.StatusAccepted, TriggerResponse{
		Accepted: true,
		Message:  fmt.Sprintf("%s firing started", kind),
	})
}
