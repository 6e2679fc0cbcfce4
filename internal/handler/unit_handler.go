package handler

import (
	"net/http"

	"procurement/internal/middleware"
	"procurement/internal/model"
	"procurement/internal/service"
	"procurement/pkg/pagination"
	"procurement/pkg/response"

	"github.com/gin-gonic/gin"
)

type UnitHandler struct {
	unitService service.UnitService
}

func NewUnitHandler(unitService service.UnitService) *UnitHandler {
	return &UnitHandler{unitService: unitService}
}

func (h *UnitHandler) RegisterRoutes(router *gin.RouterGroup) {
	units := router.Group("/api/units")
	{
		units.GET("", middleware.RequireRole(model.RoleAdmin, model.RoleManager, model.RoleStaff), h.GetUnits)
		units.POST("", middleware.RequireRole(model.RoleAdmin, model.RoleManager), h.CreateUnit)
		units.PUT("/:id", middleware.RequireRole(model.RoleAdmin, model.RoleManager), h.UpdateUnit)
		units.DELETE("/:id", middleware.RequireRole(model.RoleAdmin), h.DeleteUnit)
	}
}

// GetUnits lists measurement units with paging and text search
// @Summary      List units
// @Description  Retrieves a paginated list of units of measure, optionally filtered by code or name
// @Tags         units
// @Security     BearerAuth
// @Produce      json
// @Param        q      query     string  false  "Substring match on code or name"
// @Param        page   query     int     false  "Page number (default 1)"
// @Param        limit  query     int     false  "Number of items per page (default 20)"
// @Success      200    {object}  response.Response{data=object}
// @Router       /api/units [get]
func (h *UnitHandler) GetUnits(c *gin.Context) {
	params := pagination.Parse(c)
	search := c.Query("q")

	units, total, err := h.unitService.GetUnits(c.Request.Context(), params.Page, params.Limit, search)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, "Failed to fetch units"))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{
		"units": units,
		"total": total,
		"page":  params.Page,
		"limit": params.Limit,
	}))
}

// CreateUnit adds a unit of measure
// @Summary      Create unit
// @Description  Creates a unit of measure with a unique code
// @Tags         units
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateUnitRequest  true  "Create Unit Payload"
// @Success      201      {object}  response.Response{data=service.UnitResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/units [post]
func (h *UnitHandler) CreateUnit(c *gin.Context) {
	var req service.CreateUnitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	unit, err := h.unitService.CreateUnit(c.Request.Context(), c.GetString("userID"), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, unit))
}

// UpdateUnit updates a unit of measure
// @Summary      Update unit
// @Description  Updates a unit's code and name
// @Tags         units
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                     true  "Unit ID"
// @Param        payload  body      service.UpdateUnitRequest  true  "Update Unit Payload"
// @Success      200      {object}  response.Response{data=service.UnitResponse}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /api/units/{id} [put]
func (h *UnitHandler) UpdateUnit(c *gin.Context) {
	var req service.UpdateUnitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	unit, err := h.unitService.UpdateUnit(c.Request.Context(), c.GetString("userID"), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, unit))
}

// DeleteUnit soft-deletes a unit of measure
// @Summary      Delete unit
// @Description  Soft deletes a unit by ID
// @Tags         units
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Unit ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/units/{id} [delete]
func (h *UnitHandler) DeleteUnit(c *gin.Context) {
	if err := h.unitService.DeleteUnit(c.Request.Context(), c.GetString("userID"), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, "Unit deleted successfully"))
}
