package controller

import (
	"strings"

	"judgeboard/internal/judge/service"
	"judgeboard/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// JudgeController handles problem and run HTTP endpoints.
type JudgeController struct {
	judgeService *service.Service
}

// NewJudgeController creates a new JudgeController.
func NewJudgeController(judgeService *service.Service) *JudgeController {
	return &JudgeController{judgeService: judgeService}
}

// Register mounts the judge routes on the group.
func (h *JudgeController) Register(r gin.IRoutes) {
	r.GET("", h.Health)
	r.GET("/problems", h.ListProblems)
	r.GET("/problem/:id", h.GetProblem)
	r.POST("/run", h.Run)
}

// Health reports that the API is up.
func (h *JudgeController) Health(c *gin.Context) {
	response.Success(c, HealthResponse{Status: "ok"})
}

// ListProblems returns the ids of all problems with test data.
func (h *JudgeController) ListProblems(c *gin.Context) {
	ids, err := h.judgeService.ListProblems(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	response.Success(c, ProblemListResponse{Problems: ids})
}

// GetProblem returns the public tests and hidden test count of a problem.
func (h *JudgeController) GetProblem(c *gin.Context) {
	problemID := strings.TrimSpace(c.Param("id"))
	if problemID == "" {
		response.BadRequest(c, "Invalid problem id")
		return
	}
	details, err := h.judgeService.ProblemDetails(c.Request.Context(), problemID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, details)
}

// Run executes the public tests of a problem without recording anything.
func (h *JudgeController) Run(c *gin.Context) {
	var req RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request parameters")
		return
	}
	report, err := h.judgeService.RunPublic(c.Request.Context(), req.ProblemID, req.Code)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, report)
}

// HealthResponse defines health response payload.
type HealthResponse struct {
	Status string `json:"status"`
}

// ProblemListResponse defines problem list payload.
type ProblemListResponse struct {
	Problems []string `json:"problems"`
}

// RunRequest defines run payload.
type RunRequest struct {
	ProblemID string `json:"problem_id" binding:"required"`
	Code      string `json:"code" binding:"required"`
}
