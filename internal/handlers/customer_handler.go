package handlers

import (
	"net/http"

	"sms-support-server/internal/models"
	"sms-support-server/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// CustomerHandler handles customer directory requests
type CustomerHandler struct {
	customerService CustomerServiceInterface
}

// NewCustomerHandler creates a new customer handler
func NewCustomerHandler(customerService CustomerServiceInterface) *CustomerHandler {
	return &CustomerHandler{customerService: customerService}
}

// Create handles POST /api/customers
func (h *CustomerHandler) Create(c *gin.Context) {
	var req models.CreateCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid customer request", zap.Error(err))
		respondMessage(c, http.StatusBadRequest, bindError(err))
		return
	}

	customer, err := h.customerService.Create(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusCreated, customer)
}

// List handles GET /api/customers
func (h *CustomerHandler) List(c *gin.Context) {
	customers, err := h.customerService.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	respondList(c, customers, len(customers))
}

// Get handles GET /api/customers/:id
func (h *CustomerHandler) Get(c *gin.Context) {
	customer, err := h.customerService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, customer)
}

// Update handles PUT /api/customers/:id
func (h *CustomerHandler) Update(c *gin.Context) {
	var update models.CustomerUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		respondMessage(c, http.StatusBadRequest, bindError(err))
		return
	}

	customer, err := h.customerService.Update(c.Request.Context(), c.Param("id"), update)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, customer)
}

// Delete handles DELETE /api/customers/:id
func (h *CustomerHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.customerService.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}

	logger.Info("Customer deleted", zap.String("customer_id", id))
	respondOK(c, http.StatusOK, gin.H{"id": id})
}
