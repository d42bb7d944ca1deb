package api

import (
	"net/http"

	"github.com/Jooldo/zarify-sub003/internal/services"

	"github.com/gin-gonic/gin"
)

// ManufacturingController заказы на производство, переделки и этапы
type ManufacturingController struct {
	manufacturingService *services.ManufacturingService
	stepService          *services.StepInstanceService
	lineageService       *services.LineageService
}

// NewManufacturingController создает новый контроллер производства
func NewManufacturingController(ms *services.ManufacturingService, ss *services.StepInstanceService, ls *services.LineageService) *ManufacturingController {
	return &ManufacturingController{
		manufacturingService: ms,
		stepService:          ss,
		lineageService:       ls,
	}
}

// CreateOrder создает заказ на производство
// POST /api/v1/manufacturing/orders
func (mc *ManufacturingController) CreateOrder(c *gin.Context) {
	var req services.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Неверный формат запроса",
			"kind":    services.KindValidation,
			"details": err.Error(),
		})
		return
	}

	order, err := mc.manufacturingService.CreateOrder(c.Request.Context(), tenantFrom(c), req)
	if err != nil {
		respondError(c, "Ошибка создания заказа", err)
		return
	}

	c.JSON(http.StatusCreated, order)
}

// CreateReworkOrder создает заказ на переделку
// POST /api/v1/manufacturing/orders/:id/rework
func (mc *ManufacturingController) CreateReworkOrder(c *gin.Context) {
	var req services.CreateReworkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Неверный формат запроса",
			"kind":    services.KindValidation,
			"details": err.Error(),
		})
		return
	}
	req.ParentOrderID = c.Param("id")

	result, err := mc.manufacturingService.CreateReworkOrder(c.Request.Context(), tenantFrom(c), req)
	if err != nil {
		status, body := errorResponse("Ошибка создания переделки", err)
		// Заказ переделки уже создан, клиенту нужен его номер
		if result != nil {
			body["result"] = result
		}
		c.JSON(status, body)
		return
	}

	c.JSON(http.StatusCreated, result)
}

// CreateStepInstance запускает экземпляр этапа
// POST /api/v1/manufacturing/orders/:id/steps
func (mc *ManufacturingController) CreateStepInstance(c *gin.Context) {
	var req services.CreateStepInstanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Неверный формат запроса",
			"kind":    services.KindValidation,
			"details": err.Error(),
		})
		return
	}
	req.OrderID = c.Param("id")

	instance, err := mc.stepService.CreateStepInstance(c.Request.Context(), tenantFrom(c), req)
	if err != nil {
		respondError(c, "Ошибка создания этапа", err)
		return
	}

	c.JSON(http.StatusCreated, instance)
}

// GetLineage возвращает граф этапов и переделок заказа
// GET /api/v1/manufacturing/orders/:id/lineage
func (mc *ManufacturingController) GetLineage(c *gin.Context) {
	lineage, err := mc.lineageService.LineageEdges(c.Request.Context(), tenantFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, "Ошибка построения графа", err)
		return
	}

	c.JSON(http.StatusOK, lineage)
}
