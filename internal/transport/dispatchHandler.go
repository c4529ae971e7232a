package transport

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/postline/postline/internal/entity"
	"github.com/postline/postline/internal/service"
	"github.com/postline/postline/pkg/deadletter"

	"github.com/gin-gonic/gin"
)

// MinDispatchInterval is the floor for the self-rescheduling mode.
const MinDispatchInterval = 10 * time.Second

// Rescheduler is the in-process ticker behind the /dispatch/schedule
// endpoint; pkg/scheduler implements it.
type Rescheduler interface {
	SetInterval(d time.Duration)
}

type DispatchHandler struct {
	dispatchService service.DispatchService
	rescheduler     Rescheduler
	journal         *deadletter.Journal
}

func NewDispatchHandler(dispatchService service.DispatchService, rescheduler Rescheduler, journal *deadletter.Journal) *DispatchHandler {
	return &DispatchHandler{
		dispatchService: dispatchService,
		rescheduler:     rescheduler,
		journal:         journal,
	}
}

// RunTick is the one-shot trigger, suitable for external cron.
func (h *DispatchHandler) RunTick(c *gin.Context) {
	summary, err := h.dispatchService.RunTick(c.Request.Context())
	if err != nil {
		switch {
		case errors.Is(err, entity.ErrTickInProgress):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.Is(err, entity.ErrMissingToken):
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		default:
			// Fetch error: no posts were touched.
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "dispatch tick completed",
		"count":   summary.Count,
		"results": summary.Results,
	})
}

type scheduleRequest struct {
	Interval int `json:"interval"`
}

// Schedule re-arms the in-process self-rescheduling ticker. The interval is
// clamped to MinDispatchInterval. This mode has no persistence: it stops
// with the host process, so production deployments should prefer external
// cron against RunTick.
func (h *DispatchHandler) Schedule(c *gin.Context) {
	if h.rescheduler == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "self-scheduling is not enabled"})
		return
	}

	// An absent body is allowed: the interval then defaults to the minimum.
	var req scheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	interval := time.Duration(req.Interval) * time.Second
	if interval < MinDispatchInterval {
		interval = MinDispatchInterval
	}

	h.rescheduler.SetInterval(interval)

	c.JSON(http.StatusOK, gin.H{
		"message":  "dispatch interval updated",
		"interval": interval.Seconds(),
	})
}

// DeadLetters reports how many posts are sitting in the inconsistent-state
// journal (delivery outcome known, status write-back lost).
func (h *DispatchHandler) DeadLetters(c *gin.Context) {
	size, err := h.journal.Size(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"size": size})
}

// PopDeadLetter hands the oldest journal record to the operator resolving
// the inconsistency by hand.
func (h *DispatchHandler) PopDeadLetter(c *gin.Context) {
	record, err := h.journal.Pop(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if record == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "dead letter journal is empty"})
		return
	}

	c.JSON(http.StatusOK, record)
}
