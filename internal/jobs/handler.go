package jobs

import (
	"errors"
	"io"
	"net/http"
	"sort"
	"strconv"

	"github.com/gin-gonic/gin"

	"wasteops-backend/internal/audit"
	"wasteops-backend/internal/documents"
	"wasteops-backend/internal/shared/server/middleware"
	"wasteops-backend/internal/shared/server/respond"
)

// sectionActions maps the POST routes of each section onto actions.
var sectionActions = map[Phase]map[string]Action{
	PhaseQuoting: {
		"provide": ActionProvideQuote,
		"accept":  ActionAcceptQuote,
		"reject":  ActionRejectQuote,
	},
	PhaseCollection: {
		"request":  ActionRequestCollection,
		"decline":  ActionDeclineRequest,
		"schedule": ActionSchedule,
		"postpone": ActionPostpone,
		"collect":  ActionMarkCollected,
		"receive":  ActionReceiveAtFacility,
	},
	PhaseProcessing: {
		"start":    ActionStartProcessing,
		"complete": ActionComplete,
	},
}

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

type transitionRequest struct {
	Action          string  `json:"action"`
	Payload         Payload `json:"payload"`
	ExpectedVersion *int64  `json:"expectedVersion"`
}

type sectionRequest struct {
	Payload
	ExpectedVersion *int64 `json:"expectedVersion"`
}

// RegisterRoutes attaches the unguarded job routes to a /jobs group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.create)
	rg.GET("/:id", h.get)
	rg.POST("/:id/transitions", h.transition)
}

// RegisterSection attaches the view and actions of one phase to rg, which
// is expected to be the guarded /jobs/:id/{segment} group.
func (h *Handler) RegisterSection(rg *gin.RouterGroup, phase Phase) {
	rg.GET("", func(c *gin.Context) { h.section(c, phase) })
	for name, action := range sectionActions[phase] {
		action := action
		rg.POST("/"+name, func(c *gin.Context) { h.sectionAction(c, action) })
	}
	if phase == PhaseCompleted {
		rg.POST("/certificates", h.issueCertificate)
	}
}

func (h *Handler) create(c *gin.Context) {
	var in NewJob
	if err := c.ShouldBindJSON(&in); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	job, err := h.Svc.RequestQuote(c.Request.Context(), in, actorFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.Set(middleware.JobIDKey, job.ID)
	c.Set(middleware.StatusTransitionKey, "->"+job.Status.String())
	respond.Created(c, jobView(job))
}

func (h *Handler) get(c *gin.Context) {
	jobID, ok := jobIDParam(c)
	if !ok {
		return
	}
	job, err := h.Svc.Get(c.Request.Context(), jobID)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, jobView(job))
}

func (h *Handler) section(c *gin.Context, phase Phase) {
	jobID, ok := jobIDParam(c)
	if !ok {
		return
	}
	job, err := h.Svc.Get(c.Request.Context(), jobID)
	if err != nil {
		writeError(c, err)
		return
	}
	actions := make([]string, 0, len(sectionActions[phase]))
	for name, action := range sectionActions[phase] {
		if action.Permits(job.Status) {
			actions = append(actions, name)
		}
	}
	sort.Strings(actions)
	respond.OK(c, gin.H{
		"phase":          phase.String(),
		"job":            job,
		"allowedActions": AllowedActions(job.Status),
		"sectionActions": actions,
	})
}

func (h *Handler) transition(c *gin.Context) {
	jobID, ok := jobIDParam(c)
	if !ok {
		return
	}
	var body transitionRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	action, err := ParseAction(body.Action)
	if err != nil {
		writeError(c, err)
		return
	}
	h.run(c, TransitionRequest{
		JobID:           jobID,
		Action:          action,
		Payload:         body.Payload,
		ExpectedVersion: body.ExpectedVersion,
	})
}

func (h *Handler) sectionAction(c *gin.Context, action Action) {
	jobID, ok := jobIDParam(c)
	if !ok {
		return
	}
	var body sectionRequest
	if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	h.run(c, TransitionRequest{
		JobID:           jobID,
		Action:          action,
		Payload:         body.Payload,
		ExpectedVersion: body.ExpectedVersion,
	})
}

func (h *Handler) run(c *gin.Context, req TransitionRequest) {
	req.Actor = actorFrom(c)
	req.RequestID = middleware.RequestIDFromContext(c)
	c.Set(middleware.JobIDKey, req.JobID)

	res, err := h.Svc.Transition(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Set(middleware.StatusTransitionKey, res.From.String()+"->"+res.Job.Status.String())
	if len(res.Documents) > 0 {
		c.Set(middleware.DocumentKindKey, res.Documents[0].Kind.String())
	}
	respond.OK(c, gin.H{
		"status":    res.Job.Status,
		"version":   res.Job.Version,
		"job":       jobView(res.Job),
		"documents": res.Documents,
	})
}

func (h *Handler) issueCertificate(c *gin.Context) {
	jobID, ok := jobIDParam(c)
	if !ok {
		return
	}
	c.Set(middleware.JobIDKey, jobID)
	doc, err := h.Svc.IssueCertificate(c.Request.Context(), jobID, actorFrom(c), middleware.RequestIDFromContext(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.Set(middleware.DocumentKindKey, doc.Kind.String())
	respond.Created(c, doc)
}

type view struct {
	Job
	AllowedActions []Action `json:"allowedActions"`
	Phase          string   `json:"phase"`
}

func jobView(job Job) view {
	return view{Job: job, AllowedActions: AllowedActions(job.Status), Phase: job.Status.Phase().String()}
}

func actorFrom(c *gin.Context) audit.Actor {
	return audit.Actor{
		StaffID:   middleware.StaffIDFromContext(c),
		StaffName: middleware.StaffNameFromContext(c),
	}
}

func jobIDParam(c *gin.Context) (int64, bool) {
	jobID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || jobID <= 0 {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid job id", gin.H{"field": "id"})
		return 0, false
	}
	return jobID, true
}

func writeError(c *gin.Context, err error) {
	var te *TransitionError
	message := err.Error()
	if errors.As(err, &te) && te.Detail != "" && te.Field == "" {
		message = te.Detail
	}

	switch {
	case errors.Is(err, ErrValidation):
		respond.Error(c, http.StatusBadRequest, "validation_error", message, gin.H{"field": FieldOf(err)})
	case errors.Is(err, ErrInvalidTransition):
		respond.Error(c, http.StatusConflict, "invalid_transition", message, nil)
	case errors.Is(err, ErrConflict):
		respond.Error(c, http.StatusConflict, "conflict", message, gin.H{"retryable": true})
	case errors.Is(err, ErrNotFound), errors.Is(err, documents.ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "job not found", nil)
	case errors.Is(err, ErrRender):
		respond.Error(c, http.StatusInternalServerError, "render_error", "failed to render document", nil)
	case errors.Is(err, ErrStorage):
		respond.Error(c, http.StatusServiceUnavailable, "storage_error", "failed to store job changes", gin.H{"retryable": true})
	case errors.Is(err, ErrTimeout):
		respond.Error(c, http.StatusGatewayTimeout, "timeout", "transition timed out", gin.H{"retryable": true})
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "unexpected error", nil)
	}
}
