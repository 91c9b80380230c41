package controller

import (
	"judgeboard/internal/leaderboard/service"
	"judgeboard/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// LeaderboardController serves the ranking.
type LeaderboardController struct {
	store *service.Store
}

// NewLeaderboardController creates a new LeaderboardController.
func NewLeaderboardController(store *service.Store) *LeaderboardController {
	return &LeaderboardController{store: store}
}

// Register mounts the leaderboard routes on the group.
func (h *LeaderboardController) Register(r gin.IRoutes) {
	r.GET("/leaderboard", h.Get)
}

// Get returns the per-problem and flattened rankings.
func (h *LeaderboardController) Get(c *gin.Context) {
	response.Success(c, h.store.View())
}
