package handler

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"

	"github.com/yourusername/innercircle-api/internal/handler/dto"
	apperrors "github.com/yourusername/innercircle-api/internal/pkg/errors"
	"github.com/yourusername/innercircle-api/internal/service"
)

// AdminHandler serves the key-gated admin endpoints.
type AdminHandler struct {
	adminService *service.AdminService
}

func NewAdminHandler(adminService *service.AdminService) *AdminHandler {
	return &AdminHandler{
		adminService: adminService,
	}
}

// CreateCompanyCode handles POST /api/admin/company-codes.
func (h *AdminHandler) CreateCompanyCode(c *gin.Context) {
	var req dto.CreateCompanyCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "details": err.Error()})
		return
	}

	code, err := h.adminService.CreateCompanyCode(service.CreateCompanyCodeInput{
		Code:           req.CompanyCode,
		Name:           req.CompanyName,
		AllowedDomain:  req.AllowedDomain,
		ExpiresAt:      req.ExpiresAt,
		MaxActivations: req.MaxActivations,
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrValidation) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		log.Printf("[AdminHandler] failed to create company code: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create company code"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": fmt.Sprintf("Company code %s created for %s", code.Code, code.Name),
	})
}

// ListCompanyCodes handles GET /api/admin/company-codes.
func (h *AdminHandler) ListCompanyCodes(c *gin.Context) {
	codes, err := h.adminService.ListCompanyCodes()
	if err != nil {
		log.Printf("[AdminHandler] failed to list company codes: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list company codes"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"company_codes": codes})
}

// GetStats handles GET /api/admin/stats.
func (h *AdminHandler) GetStats(c *gin.Context) {
	stats, err := h.adminService.GetStats()
	if err != nil {
		log.Printf("[AdminHandler] failed to aggregate stats: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get stats"})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// ExportStats handles GET /api/admin/stats/export and streams the stats
// report as an .xlsx download.
func (h *AdminHandler) ExportStats(c *gin.Context) {
	stats, err := h.adminService.GetStats()
	if err != nil {
		log.Printf("[AdminHandler] failed to aggregate stats for export: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get stats"})
		return
	}

	filename := fmt.Sprintf("inner-circle-stats-%s.xlsx", time.Now().Format("2006-01-02"))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Companies"
	f.SetSheetName("Sheet1", sheetName)

	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		log.Printf("[AdminHandler] failed to create stream writer: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create Excel file"})
		return
	}

	headers := []interface{}{"Company code", "Company", "Activations", "Max activations"}
	if err := sw.SetRow("A1", headers); err != nil {
		log.Printf("[AdminHandler] failed to write headers: %v", err)
	}

	for i, company := range stats.Companies {
		rowNum := i + 2
		cell := fmt.Sprintf("A%d", rowNum)

		max := "unlimited"
		if company.Max != nil {
			max = fmt.Sprintf("%d", *company.Max)
		}

		row := []interface{}{sanitizeForExcel(company.Code), sanitizeForExcel(company.Name), company.Activations, max}
		if err := sw.SetRow(cell, row); err != nil {
			log.Printf("[AdminHandler] failed to write row %d: %v", rowNum, err)
		}
	}

	summaryRow := len(stats.Companies) + 3
	if err := sw.SetRow(fmt.Sprintf("A%d", summaryRow), []interface{}{
		"Verified members", stats.TotalVerifications,
	}); err != nil {
		log.Printf("[AdminHandler] failed to write summary: %v", err)
	}
	if err := sw.SetRow(fmt.Sprintf("A%d", summaryRow+1), []interface{}{
		"Pending members", stats.PendingVerifications,
	}); err != nil {
		log.Printf("[AdminHandler] failed to write summary: %v", err)
	}

	if err := sw.Flush(); err != nil {
		log.Printf("[AdminHandler] failed to flush stream writer: %v", err)
	}

	if err := f.Write(c.Writer); err != nil {
		log.Printf("[AdminHandler] failed to write Excel response: %v", err)
	}
}

// sanitizeForExcel escapes values that would start a formula in Excel/CSV.
func sanitizeForExcel(s string) string {
	if len(s) == 0 {
		return s
	}
	if s[0] == '=' || s[0] == '+' || s[0] == '-' || s[0] == '@' || s[0] == '\t' || s[0] == '\r' {
		return "'" + s
	}
	return s
}
