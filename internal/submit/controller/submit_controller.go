package controller

import (
	"judgeboard/internal/submit/service"
	"judgeboard/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// SubmitController handles submission HTTP endpoints.
type SubmitController struct {
	submitService *service.SubmitService
}

// NewSubmitController creates a new SubmitController.
func NewSubmitController(submitService *service.SubmitService) *SubmitController {
	return &SubmitController{submitService: submitService}
}

// Register mounts the submit routes on the group.
func (h *SubmitController) Register(r gin.IRoutes) {
	r.POST("/submit", h.Create)
}

// Create grades a submission and records it on the leaderboard.
func (h *SubmitController) Create(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request parameters")
		return
	}

	result, err := h.submitService.Submit(c.Request.Context(), service.SubmitInput{
		UserID:    req.UserID,
		ProblemID: req.ProblemID,
		Code:      req.Code,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// SubmitRequest defines submission payload.
type SubmitRequest struct {
	UserID    string `json:"user_id" binding:"required"`
	ProblemID string `json:"problem_id" binding:"required"`
	Code      string `json:"code" binding:"required"`
}
