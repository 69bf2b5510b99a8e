// Package api serves the allocator over HTTP with gin.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/celerix-dev/celerix-sensors/pkg/schema"
	"github.com/celerix-dev/celerix-sensors/pkg/sdk"
)

type Handler struct {
	Store sdk.SensorAllocator
	// Events serves the websocket notification stream when set.
	Events http.Handler
	// Metrics serves Prometheus metrics when set.
	Metrics http.Handler
}

// Register mounts every route on r.
func (h *Handler) Register(r gin.IRoutes) {
	r.GET("/workouts", h.ListWorkouts)
	r.GET("/workout/:id", h.GetWorkout)
	r.POST("/workout/:id/allocations", h.AllocateSensors)
	r.PUT("/workout/:id/allocations", h.ReassignSensor)
	r.POST("/workout/:id/allocations/participant", h.AddParticipant)
	r.GET("/sensors", h.ListSensors)
	r.PUT("/sensor/:id", h.DisableSensor)
	if h.Events != nil {
		r.GET("/ws", gin.WrapH(h.Events))
	}
	if h.Metrics != nil {
		r.GET("/metrics", gin.WrapH(h.Metrics))
	}
}

// NotFound answers unknown routes.
func NotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
}

func (h *Handler) ListWorkouts(c *gin.Context) {
	workouts, err := h.Store.ListWorkouts()
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"workouts": workouts})
}

func (h *Handler) GetWorkout(c *gin.Context) {
	w, err := h.Store.GetWorkout(c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"workout": w})
}

func (h *Handler) AllocateSensors(c *gin.Context) {
	var input struct {
		Participants []string `json:"participants" binding:"required,dive,required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	w, err := h.Store.AllocateSensors(c.Param("id"), input.Participants)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"workout": w})
}

type participantInput struct {
	UserID string `json:"user_id" binding:"required"`
}

func (h *Handler) ReassignSensor(c *gin.Context) {
	var input participantInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	w, sensorID, err := h.Store.ReassignSensor(c.Param("id"), input.UserID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"workout": w, "sensor_id": sensorID})
}

func (h *Handler) AddParticipant(c *gin.Context) {
	var input participantInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	w, err := h.Store.AddParticipant(c.Param("id"), input.UserID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"workout": w})
}

func (h *Handler) ListSensors(c *gin.Context) {
	sensors, err := h.Store.ListSensors()
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sensors": sensors})
}

// DisableSensor only accepts a falsey is_allocatable: sensors can be
// disabled through the API, never re-enabled.
func (h *Handler) DisableSensor(c *gin.Context) {
	sensorID := c.Param("id")

	sensor, err := h.findSensor(sensorID)
	if err != nil {
		fail(c, err)
		return
	}
	if !sensor.IsAllocatable {
		fail(c, sdk.ErrSensorAlreadyDisabled)
		return
	}

	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	value, present := body["is_allocatable"]
	if !present || !falsey(value) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "`is_allocatable` is required and should be falsey"})
		return
	}

	disabled, err := h.Store.DisableSensor(sensorID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sensor": disabled})
}

func (h *Handler) findSensor(sensorID string) (schema.Sensor, error) {
	sensors, err := h.Store.ListSensors()
	if err != nil {
		return schema.Sensor{}, err
	}
	for _, s := range sensors {
		if s.ID == sensorID {
			return s, nil
		}
	}
	return schema.Sensor{}, sdk.ErrSensorNotFound
}

func falsey(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case bool:
		return !t
	case string:
		return t == ""
	case float64:
		return t == 0
	}
	return false
}

func fail(c *gin.Context, err error) {
	c.JSON(statusOf(err), gin.H{"error": err.Error()})
}

func statusOf(err error) int {
	switch sdk.ErrorCode(err) {
	case sdk.CodeWorkoutNotFound, sdk.CodeSensorNotFound:
		return http.StatusNotFound
	case sdk.CodeInternal:
		return http.StatusInternalServerError
	}
	return http.StatusBadRequest
}
