package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/Jooldo/zarify-sub003/internal/services"

	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// MRPController управляет API endpoints потребностей в сырье
type MRPController struct {
	mrpService *services.MRPService
}

// NewMRPController создает новый контроллер MRP
func NewMRPController(mrpService *services.MRPService) *MRPController {
	return &MRPController{mrpService: mrpService}
}

// GetRequirements возвращает потребности и дефицит
// GET /api/v1/mrp/requirements?force=true
func (mc *MRPController) GetRequirements(c *gin.Context) {
	force, _ := strconv.ParseBool(c.DefaultQuery("force", "false"))

	view, err := mc.mrpService.GetRequirements(c.Request.Context(), tenantFrom(c), force)
	if err != nil {
		respondError(c, "Ошибка расчета потребностей", err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// ExportRequirements выгружает потребности в Excel
// GET /api/v1/mrp/requirements/export
func (mc *MRPController) ExportRequirements(c *gin.Context) {
	view, err := mc.mrpService.GetRequirements(c.Request.Context(), tenantFrom(c), false)
	if err != nil {
		respondError(c, "Ошибка расчета потребностей", err)
		return
	}

	buf, err := services.ExportRequirementsXLSX(view)
	if err != nil {
		respondError(c, "Ошибка формирования файла", err)
		return
	}

	filename := fmt.Sprintf("mrp-requirements-%s.xlsx", time.Now().UTC().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// InvalidateCache сбрасывает кэш пересчета мерчанта
// POST /api/v1/mrp/cache/invalidate
func (mc *MRPController) InvalidateCache(c *gin.Context) {
	if err := mc.mrpService.Invalidate(c.Request.Context(), tenantFrom(c)); err != nil {
		respondError(c, "Ошибка сброса кэша", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "invalidated"})
}
