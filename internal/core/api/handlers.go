package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openbenefits/medscreen/internal/catalog"
	"github.com/openbenefits/medscreen/internal/types"
	"github.com/openbenefits/medscreen/internal/wizard"
)

// Screen evaluates an applicant against every program of their state.
func (s *Service) Screen(c *gin.Context) {
	var in types.ApplicantInput
	if err := c.ShouldBindJSON(&in); err != nil {
		s.badRequest(c, err)
		return
	}

	result, err := s.engine.EvaluateAll(c.Request.Context(), in)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

type visibleQuestionsRequest struct {
	StateCode string         `json:"stateCode" binding:"required,statecode"`
	Answers   map[string]any `json:"answers"`
}

// VisibleQuestions returns the subset of a state's question catalog whose
// visibility gates pass against the submitted answers.
func (s *Service) VisibleQuestions(c *gin.Context) {
	var req visibleQuestionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	questions, err := s.store.QuestionsByState(ctx, req.StateCode)
	if err != nil {
		s.fail(c, err)
		return
	}
	rules, err := s.store.ConditionalRulesByState(ctx, req.StateCode)
	if err != nil {
		s.fail(c, err)
		return
	}

	visible, err := catalog.VisibleQuestions(questions, types.AnswerSnapshot(req.Answers), rules)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"questions": visible})
}

type wizardNextRequest struct {
	StateCode   string         `json:"stateCode" binding:"required,statecode"`
	CurrentStep string         `json:"currentStep" binding:"required"`
	Answers     map[string]any `json:"answers"`
}

// WizardNext resolves the step that follows currentStep under the submitted
// answers. A terminal step yields done=true with no nextStep.
func (s *Service) WizardNext(c *gin.Context) {
	var req wizardNextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}

	nav, err := s.navigator(c, req.StateCode)
	if err != nil {
		s.fail(c, err)
		return
	}

	next, err := nav.NextStep(req.CurrentStep, types.AnswerSnapshot(req.Answers))
	if err != nil {
		s.fail(c, err)
		return
	}

	if next == nil {
		c.JSON(http.StatusOK, gin.H{"done": true})
		return
	}
	c.JSON(http.StatusOK, gin.H{"done": false, "nextStep": next})
}

type wizardInvalidateRequest struct {
	StateCode        string `json:"stateCode" binding:"required,statecode"`
	StepID           string `json:"stepId" binding:"required"`
	PreviousAnswers  any    `json:"previousAnswers"`
	SubmittedAnswers any    `json:"submittedAnswers"`
}

// WizardInvalidate reports which downstream steps must be re-entered after
// a step's answers change. Resubmitting identical answers invalidates nothing.
func (s *Service) WizardInvalidate(c *gin.Context) {
	var req wizardInvalidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}

	nav, err := s.navigator(c, req.StateCode)
	if err != nil {
		s.fail(c, err)
		return
	}

	invalidated, err := nav.InvalidationsFor(req.StepID, req.PreviousAnswers, req.SubmittedAnswers)
	if err != nil {
		s.fail(c, err)
		return
	}
	if invalidated == nil {
		invalidated = []string{}
	}

	c.JSON(http.StatusOK, gin.H{"invalidatedSteps": invalidated})
}

// CacheStats reports hit/miss/entry counters for both injected caches.
func (s *Service) CacheStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"rules": s.ruleCache.Stats(),
		"fpl":   s.fplCache.Stats(),
	})
}

type cacheInvalidateRequest struct {
	Scope string `json:"scope" binding:"omitempty,oneof=rules fpl all"`
}

// CacheInvalidate drops cached entries. Scope defaults to all; counters
// survive invalidation so operators keep hit-rate history.
func (s *Service) CacheInvalidate(c *gin.Context) {
	var req cacheInvalidateRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		s.badRequest(c, err)
		return
	}

	scope := req.Scope
	if scope == "" {
		scope = "all"
	}
	if scope == "rules" || scope == "all" {
		s.ruleCache.InvalidateAll()
	}
	if scope == "fpl" || scope == "all" {
		s.fplCache.InvalidateAll()
	}

	c.JSON(http.StatusOK, gin.H{"invalidated": scope})
}

// Healthz is the liveness probe.
func (s *Service) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Service) navigator(c *gin.Context, stateCode string) (*wizard.Navigator, error) {
	steps, err := s.store.StepsByState(c.Request.Context(), stateCode)
	if err != nil {
		return nil, err
	}
	return wizard.NewNavigator(steps)
}

func (s *Service) badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":     err.Error(),
		"requestId": requestID(c),
	})
}

// fail maps sentinel errors from the evaluation core to HTTP status codes.
func (s *Service) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, types.ErrUnknownStep):
		status = http.StatusNotFound
	case errors.Is(err, types.ErrMalformedExpression),
		errors.Is(err, types.ErrUnknownOperator),
		errors.Is(err, types.ErrExpressionTooDeep),
		errors.Is(err, types.ErrTooManyInValues),
		errors.Is(err, types.ErrUnknownQuestion),
		errors.Is(err, types.ErrMissingRule):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, types.ErrReferenceDataMissing):
		status = http.StatusServiceUnavailable
	}

	// Internal failures are logged with the request id; the client gets a
	// generic message so driver and repository details never leak.
	message := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed",
			"request_id", requestID(c),
			"path", c.Request.URL.Path,
			"error", err,
		)
		message = "internal server error"
	}

	c.JSON(status, gin.H{
		"error":     message,
		"requestId": requestID(c),
	})
}
