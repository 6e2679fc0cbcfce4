package handler

import (
	"errors"
	"net/http"

	"procurement/internal/middleware"
	"procurement/internal/model"
	"procurement/internal/service"
	"procurement/pkg/pagination"
	"procurement/pkg/response"

	"github.com/gin-gonic/gin"
)

type PurchaseRequestHandler struct {
	requestService service.PurchaseRequestService
}

func NewPurchaseRequestHandler(requestService service.PurchaseRequestService) *PurchaseRequestHandler {
	return &PurchaseRequestHandler{requestService: requestService}
}

func (h *PurchaseRequestHandler) RegisterRoutes(router *gin.RouterGroup) {
	requests := router.Group("/api/purchase-requests")
	{
		requests.GET("", middleware.RequireRole(model.RoleAdmin, model.RoleManager, model.RoleStaff), h.ListPurchaseRequests)
		requests.POST("", middleware.RequireRole(model.RoleAdmin, model.RoleManager, model.RoleStaff), h.CreatePurchaseRequest)
		requests.GET("/:id", middleware.RequireRole(model.RoleAdmin, model.RoleManager, model.RoleStaff), h.GetPurchaseRequest)
		requests.PUT("/:id/submit", middleware.RequireRole(model.RoleAdmin, model.RoleManager, model.RoleStaff), h.SubmitPurchaseRequest)
		requests.PUT("/:id/approve", middleware.RequireRole(model.RoleAdmin, model.RoleManager), h.ApprovePurchaseRequest)
		requests.PUT("/:id/reject", middleware.RequireRole(model.RoleAdmin, model.RoleManager), h.RejectPurchaseRequest)
		requests.PUT("/:id/cancel", middleware.RequireRole(model.RoleAdmin, model.RoleManager, model.RoleStaff), h.CancelPurchaseRequest)
	}
}

// statusForError maps the typed domain errors onto HTTP status codes.
// Store errors fall through as 500.
func statusForError(err error) int {
	var validationErr *model.ValidationError
	var referenceErr *model.ReferenceNotFoundError
	var notFoundErr *model.NotFoundError
	var transitionErr *model.InvalidTransitionError

	switch {
	case errors.As(err, &validationErr), errors.As(err, &referenceErr):
		return http.StatusBadRequest
	case errors.As(err, &notFoundErr):
		return http.StatusNotFound
	case errors.As(err, &transitionErr):
		return http.StatusConflict
	case errors.Is(err, model.ErrAllocationFailed):
		return http.StatusServiceUnavailable
	case errors.Is(err, model.ErrSequenceExhausted):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	status := statusForError(err)
	c.JSON(status, response.Error(status, err.Error()))
}

// CreatePurchaseRequest creates a multi-line purchase request in Draft
// @Summary      Create purchase request
// @Description  Creates a Draft purchase request, validating lines against the product/unit catalogs and assigning a sequential PR number
// @Tags         purchase-requests
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreatePurchaseRequestDTO  true  "Create Purchase Request Payload"
// @Success      201      {object}  response.Response{data=service.PurchaseRequestView}
// @Failure      400      {object}  response.Response
// @Failure      503      {object}  response.Response
// @Router       /api/purchase-requests [post]
func (h *PurchaseRequestHandler) CreatePurchaseRequest(c *gin.Context) {
	var req service.CreatePurchaseRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	requesterID := c.GetString("userID")

	result, err := h.requestService.Create(c.Request.Context(), requesterID, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, result))
}

// GetPurchaseRequest returns a single purchase request with line details
// @Summary      Get purchase request
// @Description  Retrieves a purchase request by id with denormalized product/unit names
// @Tags         purchase-requests
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Purchase Request ID"
// @Success      200  {object}  response.Response{data=service.PurchaseRequestView}
// @Failure      404  {object}  response.Response
// @Router       /api/purchase-requests/{id} [get]
func (h *PurchaseRequestHandler) GetPurchaseRequest(c *gin.Context) {
	result, err := h.requestService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// ListPurchaseRequests returns a filtered, sorted, paginated page envelope
// @Summary      List purchase requests
// @Description  Filters by text, status, requester, requester name and request-date range; sorts by a whitelisted key; paginates with a hard page-size ceiling
// @Tags         purchase-requests
// @Security     BearerAuth
// @Produce      json
// @Param        q             query     string  false  "Substring match on request number or description"
// @Param        status        query     string  false  "Exact status match"
// @Param        requested_by  query     string  false  "Requester user id"
// @Param        user_name     query     string  false  "Substring match on requester name"
// @Param        from_date     query     string  false  "Inclusive lower bound on request date (YYYY-MM-DD)"
// @Param        to_date       query     string  false  "Inclusive upper bound on request date (YYYY-MM-DD)"
// @Param        sort          query     string  false  "Sort key (requestNumber, -requestNumber, requestDate, -requestDate, status, -status, createdAt)"
// @Param        page          query     int     false  "Page number (default 1)"
// @Param        limit         query     int     false  "Page size (default 20, max 100)"
// @Success      200  {object}  response.Response{data=service.RequestPage}
// @Failure      400  {object}  response.Response
// @Router       /api/purchase-requests [get]
func (h *PurchaseRequestHandler) ListPurchaseRequests(c *gin.Context) {
	params := pagination.Parse(c)

	filter := service.RequestFilter{
		Search:      c.Query("q"),
		Status:      c.Query("status"),
		RequestedBy: c.Query("requested_by"),
		UserName:    c.Query("user_name"),
		FromDate:    c.Query("from_date"),
		ToDate:      c.Query("to_date"),
		Sort:        c.Query("sort"),
		Page:        params.Page,
		PageSize:    params.Limit,
	}

	page, err := h.requestService.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, page))
}

// SubmitPurchaseRequest moves a Draft request to Submitted
// @Summary      Submit purchase request
// @Description  Transitions a Draft purchase request to Submitted, stamping submitted_at
// @Tags         purchase-requests
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Purchase Request ID"
// @Success      200  {object}  response.Response{data=service.PurchaseRequestView}
// @Failure      404  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /api/purchase-requests/{id}/submit [put]
func (h *PurchaseRequestHandler) SubmitPurchaseRequest(c *gin.Context) {
	result, err := h.requestService.Submit(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// ApprovePurchaseRequest approves a Submitted request
// @Summary      Approve purchase request
// @Description  Transitions a Submitted purchase request to Approved, stamping the approver and approved_at
// @Tags         purchase-requests
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Purchase Request ID"
// @Success      200  {object}  response.Response{data=service.PurchaseRequestView}
// @Failure      404  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /api/purchase-requests/{id}/approve [put]
func (h *PurchaseRequestHandler) ApprovePurchaseRequest(c *gin.Context) {
	approverID := c.GetString("userID")

	result, err := h.requestService.Approve(c.Request.Context(), c.Param("id"), approverID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

type rejectRequestDTO struct {
	Reason string `json:"reason"`
}

// RejectPurchaseRequest rejects a Submitted request with a reason
// @Summary      Reject purchase request
// @Description  Transitions a Submitted purchase request to Rejected; a non-empty reason is required
// @Tags         purchase-requests
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string            true  "Purchase Request ID"
// @Param        payload  body      rejectRequestDTO  true  "Rejection Reason"
// @Success      200      {object}  response.Response{data=service.PurchaseRequestView}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/purchase-requests/{id}/reject [put]
func (h *PurchaseRequestHandler) RejectPurchaseRequest(c *gin.Context) {
	var req rejectRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	result, err := h.requestService.Reject(c.Request.Context(), c.Param("id"), req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// CancelPurchaseRequest cancels a Submitted request
// @Summary      Cancel purchase request
// @Description  Transitions a Submitted purchase request to Cancelled
// @Tags         purchase-requests
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Purchase Request ID"
// @Success      200  {object}  response.Response{data=service.PurchaseRequestView}
// @Failure      404  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /api/purchase-requests/{id}/cancel [put]
func (h *PurchaseRequestHandler) CancelPurchaseRequest(c *gin.Context) {
	result, err := h.requestService.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}
