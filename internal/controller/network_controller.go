package controller

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"affiliate-api/internal/service"
)

type NetworkController struct {
	networkService service.NetworkService
}

func NewNetworkController(networkService service.NetworkService) *NetworkController {
	return &NetworkController{
		networkService: networkService,
	}
}

// @Summary Get network tree
// @Description Get the sponsorship tree beneath an affiliate
// @Tags network
// @Produce json
// @Param id path string true "Affiliate ID"
// @Param depth query int false "Maximum depth" default(10)
// @Success 200 {object} service.TreeNode
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /api/affiliates/{id}/network [get]
func (c *NetworkController) GetNetworkTree(ctx *gin.Context) {
	id, ok := objectIDFromPath(ctx, "id")
	if !ok {
		return
	}

	depth, _ := strconv.Atoi(ctx.DefaultQuery("depth", "0"))

	tree, err := c.networkService.BuildTree(ctx.Request.Context(), id, depth)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, tree)
}

// @Summary Get per-level network statistics
// @Tags network
// @Produce json
// @Param id path string true "Affiliate ID"
// @Success 200 {array} service.LevelStat
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /api/affiliates/{id}/network/stats [get]
func (c *NetworkController) GetLevelStats(ctx *gin.Context) {
	id, ok := objectIDFromPath(ctx, "id")
	if !ok {
		return
	}

	stats, err := c.networkService.LevelStats(ctx.Request.Context(), id)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, stats)
}
