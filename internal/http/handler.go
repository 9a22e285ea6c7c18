package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/nurpe/wcpms-billing/internal/billing"
	"github.com/nurpe/wcpms-billing/internal/excel"
	"github.com/nurpe/wcpms-billing/internal/http/middleware"
	"github.com/nurpe/wcpms-billing/internal/lifecycle"
	"github.com/nurpe/wcpms-billing/internal/model"
	"github.com/nurpe/wcpms-billing/internal/pdf"
	"github.com/nurpe/wcpms-billing/internal/service"
)

type Handler struct {
	contracts *service.ContractService
	approvals *service.ApprovalService
	billing   *service.BillingService
	excel     *excel.Generator
	pdf       *pdf.Generator
	log       zerolog.Logger
}

func NewHandler(
	contracts *service.ContractService,
	approvals *service.ApprovalService,
	billingSvc *service.BillingService,
	excelGen *excel.Generator,
	pdfGen *pdf.Generator,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		contracts: contracts,
		approvals: approvals,
		billing:   billingSvc,
		excel:     excelGen,
		pdf:       pdfGen,
		log:       log,
	}
}

func (h *Handler) Register(router *gin.Engine, authMiddleware gin.HandlerFunc) {
	protected := router.Group("/")
	protected.Use(authMiddleware)

	protected.POST("/contracts", h.createContract)
	protected.GET("/contracts/:id", h.getContract)
	protected.GET("/contracts/:id/audit", h.contractAudit)
	protected.POST("/contracts/:id/submit-survey", h.submitForSurvey)
	protected.POST("/contracts/:id/survey-completed", h.surveyCompleted)
	protected.POST("/contracts/:id/approve", h.approveSurvey)
	protected.POST("/contracts/:id/reject-survey", h.rejectSurvey)
	protected.POST("/contracts/:id/official", h.generateOfficial)
	protected.POST("/contracts/:id/send-sign", h.sendToSign)
	protected.POST("/contracts/:id/sign-callback", h.signCallback)
	protected.POST("/contracts/:id/send-installation", h.sendToInstallation)
	protected.POST("/contracts/:id/installation-completed", h.installationCompleted)
	protected.POST("/contracts/:id/suspend", h.suspendContract)
	protected.POST("/contracts/:id/terminate", h.terminateContract)
	protected.POST("/contracts/:id/reactivate", h.reactivateContract)
	protected.POST("/contracts/:id/renew", h.renewContract)
	protected.POST("/contracts/:id/installation-invoice", h.installationInvoice)
	protected.GET("/contracts/:id/unbilled-readings", h.unbilledReadings)

	protected.POST("/requests", h.submitRequest)
	protected.POST("/requests/:id/approve", h.approveRequest)
	protected.POST("/requests/:id/reject", h.rejectRequest)

	protected.POST("/readings/:id/invoice", h.waterInvoice)
	protected.POST("/fees/:id/invoice", h.serviceInvoice)
	protected.GET("/invoices/:id", h.getInvoice)
	protected.POST("/invoices/:id/cancel", h.cancelInvoice)
	protected.POST("/invoices/:id/pay", h.payInvoice)
	protected.GET("/invoices/:id/pdf", h.invoicePDF)
	protected.POST("/invoices/export", h.exportInvoices)
}

type createContractRequest struct {
	CustomerID    *uint  `json:"customer_id"`
	GuestName     string `json:"guest_name"`
	GuestPhone    string `json:"guest_phone"`
	PriceTypeCode string `json:"price_type_code" binding:"required"`
	StartDate     string `json:"start_date"`
	EndDate       string `json:"end_date"`
	PaymentMethod string `json:"payment_method"`
	ContractValue string `json:"contract_value"`
	Notes         string `json:"notes"`
}

func (h *Handler) createContract(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	var req createContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	input := service.CreateContractInput{
		CustomerID:    req.CustomerID,
		GuestName:     req.GuestName,
		GuestPhone:    req.GuestPhone,
		PriceTypeCode: req.PriceTypeCode,
		PaymentMethod: model.PaymentMethod(req.PaymentMethod),
		Notes:         req.Notes,
	}
	if req.StartDate != "" {
		start, err := parseDate(req.StartDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start_date"})
			return
		}
		input.StartDate = &start
	}
	if req.EndDate != "" {
		end, err := parseDate(req.EndDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end_date"})
			return
		}
		input.EndDate = &end
	}
	if req.ContractValue != "" {
		value, err := decimal.NewFromString(req.ContractValue)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid contract_value"})
			return
		}
		input.ContractValue = value
	}

	contract, err := h.contracts.CreateDraft(c.Request.Context(), input, principal)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, contract)
}

func (h *Handler) getContract(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	contract, err := h.contracts.Get(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, contract)
}

func (h *Handler) contractAudit(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	entries, err := h.contracts.AuditTrail(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": entries, "total": len(entries)})
}

func (h *Handler) submitForSurvey(c *gin.Context) {
	var req struct {
		TechnicalStaffID uint `json:"technical_staff_id"`
	}
	h.contractAction(c, &req, func(id uint, principal model.Principal) (*model.Contract, error) {
		return h.contracts.SubmitForSurvey(c.Request.Context(), id, req.TechnicalStaffID, principal)
	})
}

func (h *Handler) surveyCompleted(c *gin.Context) {
	var req struct {
		SurveyDate      string `json:"survey_date" binding:"required"`
		TechnicalDesign string `json:"technical_design"`
		EstimatedCost   string `json:"estimated_cost"`
	}
	h.contractAction(c, &req, func(id uint, principal model.Principal) (*model.Contract, error) {
		surveyDate, err := parseDate(req.SurveyDate)
		if err != nil {
			return nil, service.ErrInvalidInput
		}
		cost := decimal.Zero
		if req.EstimatedCost != "" {
			if cost, err = decimal.NewFromString(req.EstimatedCost); err != nil {
				return nil, service.ErrInvalidInput
			}
		}
		return h.contracts.CompleteSurvey(c.Request.Context(), id, service.SurveyResult{
			SurveyDate:      surveyDate,
			TechnicalDesign: req.TechnicalDesign,
			EstimatedCost:   cost,
		}, principal)
	})
}

func (h *Handler) approveSurvey(c *gin.Context) {
	h.contractAction(c, nil, func(id uint, principal model.Principal) (*model.Contract, error) {
		return h.contracts.ApproveSurvey(c.Request.Context(), id, principal)
	})
}

func (h *Handler) rejectSurvey(c *gin.Context) {
	var req struct {
		Reason string `json:"reason"`
	}
	h.contractAction(c, &req, func(id uint, principal model.Principal) (*model.Contract, error) {
		return h.contracts.RejectSurvey(c.Request.Context(), id, req.Reason, principal)
	})
}

func (h *Handler) generateOfficial(c *gin.Context) {
	h.contractAction(c, nil, func(id uint, principal model.Principal) (*model.Contract, error) {
		return h.contracts.GenerateOfficialContract(c.Request.Context(), id, principal)
	})
}

func (h *Handler) sendToSign(c *gin.Context) {
	h.contractAction(c, nil, func(id uint, principal model.Principal) (*model.Contract, error) {
		return h.contracts.SendToSign(c.Request.Context(), id, principal)
	})
}

// signCallback is the document-signature collaborator's webhook: the
// customer either signed or rejected with a reason.
func (h *Handler) signCallback(c *gin.Context) {
	var req struct {
		Signed bool   `json:"signed"`
		Reason string `json:"reason"`
	}
	h.contractAction(c, &req, func(id uint, principal model.Principal) (*model.Contract, error) {
		if req.Signed {
			return h.contracts.CustomerSigns(c.Request.Context(), id, principal)
		}
		return h.contracts.CustomerRejectsSign(c.Request.Context(), id, req.Reason, principal)
	})
}

func (h *Handler) sendToInstallation(c *gin.Context) {
	h.contractAction(c, nil, func(id uint, principal model.Principal) (*model.Contract, error) {
		return h.contracts.SendToInstallation(c.Request.Context(), id, principal)
	})
}

func (h *Handler) installationCompleted(c *gin.Context) {
	var req struct {
		InstallationDate string `json:"installation_date" binding:"required"`
	}
	h.contractAction(c, &req, func(id uint, principal model.Principal) (*model.Contract, error) {
		installedAt, err := parseDate(req.InstallationDate)
		if err != nil {
			return nil, service.ErrInvalidInput
		}
		return h.contracts.CompleteInstallation(c.Request.Context(), id, installedAt, principal)
	})
}

func (h *Handler) suspendContract(c *gin.Context) {
	var req struct {
		Reason string `json:"reason"`
	}
	h.contractAction(c, &req, func(id uint, principal model.Principal) (*model.Contract, error) {
		return h.contracts.Suspend(c.Request.Context(), id, req.Reason, principal)
	})
}

func (h *Handler) terminateContract(c *gin.Context) {
	var req struct {
		Reason string `json:"reason"`
	}
	h.contractAction(c, &req, func(id uint, principal model.Principal) (*model.Contract, error) {
		return h.contracts.Terminate(c.Request.Context(), id, req.Reason, principal)
	})
}

func (h *Handler) reactivateContract(c *gin.Context) {
	h.contractAction(c, nil, func(id uint, principal model.Principal) (*model.Contract, error) {
		return h.contracts.Reactivate(c.Request.Context(), id, principal)
	})
}

func (h *Handler) renewContract(c *gin.Context) {
	var req struct {
		EndDate string `json:"end_date" binding:"required"`
	}
	h.contractAction(c, &req, func(id uint, principal model.Principal) (*model.Contract, error) {
		endDate, err := parseDate(req.EndDate)
		if err != nil {
			return nil, service.ErrInvalidInput
		}
		return h.contracts.Renew(c.Request.Context(), id, endDate, principal)
	})
}

type submitRequestBody struct {
	Type         string `json:"type" binding:"required"`
	ContractID   uint   `json:"contract_id" binding:"required"`
	RequesterID  *uint  `json:"requester_id"`
	ToCustomerID *uint  `json:"to_customer_id"`
	Reason       string `json:"reason" binding:"required"`
	Evidence     string `json:"evidence"`
}

func (h *Handler) submitRequest(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	var req submitRequestBody
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	request, err := h.approvals.Submit(c.Request.Context(), service.SubmitRequestInput{
		Type:         model.RequestType(strings.ToLower(req.Type)),
		ContractID:   req.ContractID,
		RequesterID:  req.RequesterID,
		ToCustomerID: req.ToCustomerID,
		Reason:       req.Reason,
		Evidence:     req.Evidence,
	}, principal)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, request)
}

func (h *Handler) approveRequest(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}
	request, err := h.approvals.Approve(c.Request.Context(), id, principal)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, request)
}

func (h *Handler) rejectRequest(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req struct {
		Note string `json:"note"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	request, err := h.approvals.Reject(c.Request.Context(), id, req.Note, principal)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, request)
}

func (h *Handler) waterInvoice(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}
	invoice, err := h.billing.GenerateWaterInvoice(c.Request.Context(), id, principal)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, invoice)
}

func (h *Handler) serviceInvoice(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req struct {
		Subtotal string `json:"subtotal"`
		DueDate  string `json:"due_date" binding:"required"`
		Notes    string `json:"notes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	dueDate, err := parseDate(req.DueDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid due_date"})
		return
	}
	input := service.ServiceInvoiceInput{DueDate: dueDate, Notes: req.Notes}
	if req.Subtotal != "" {
		subtotal, err := decimal.NewFromString(req.Subtotal)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid subtotal"})
			return
		}
		input.Subtotal = &subtotal
	}
	invoice, err := h.billing.GenerateServiceInvoice(c.Request.Context(), id, input, principal)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, invoice)
}

func (h *Handler) installationInvoice(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req struct {
		DueDate string `json:"due_date" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	dueDate, err := parseDate(req.DueDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid due_date"})
		return
	}
	invoice, err := h.billing.GenerateInstallationInvoice(c.Request.Context(), id, dueDate, principal)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, invoice)
}

func (h *Handler) unbilledReadings(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	readings, err := h.billing.ListUnbilledReadings(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": readings, "total": len(readings)})
}

func (h *Handler) getInvoice(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	invoice, err := h.billing.GetInvoice(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoice)
}

func (h *Handler) cancelInvoice(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	_ = c.ShouldBindJSON(&req)
	invoice, err := h.billing.CancelInvoice(c.Request.Context(), id, req.Reason, principal)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoice)
}

func (h *Handler) payInvoice(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req struct {
		PaidDate string `json:"paid_date"`
	}
	_ = c.ShouldBindJSON(&req)
	paidAt := time.Now()
	if req.PaidDate != "" {
		parsed, err := parseDate(req.PaidDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid paid_date"})
			return
		}
		paidAt = parsed
	}
	invoice, err := h.billing.MarkInvoicePaid(c.Request.Context(), id, paidAt, principal)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoice)
}

func (h *Handler) invoicePDF(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	invoice, err := h.billing.GetInvoice(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	contract, err := h.contracts.Get(c.Request.Context(), invoice.ContractID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	content, err := h.pdf.Generate(pdf.InvoiceDocument{Invoice: *invoice, Contract: *contract})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename=\""+invoice.InvoiceNumber+".pdf\"")
	c.Data(http.StatusOK, "application/pdf", content)
}

type exportInvoicesRequest struct {
	PeriodStart string `json:"period_start" binding:"required"`
	PeriodEnd   string `json:"period_end" binding:"required"`
}

func (h *Handler) exportInvoices(c *gin.Context) {
	var req exportInvoicesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	start, err := parseDate(req.PeriodStart)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid period_start"})
		return
	}
	end, err := parseDate(req.PeriodEnd)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid period_end"})
		return
	}
	if start.After(end) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "period_start must be before or equal to period_end"})
		return
	}

	invoices, err := h.billing.ListInvoicesByPeriod(c.Request.Context(), start, end)
	if err != nil {
		h.handleError(c, err)
		return
	}
	content, err := h.excel.Generate(model.BillingReport{
		PeriodStart: start,
		PeriodEnd:   end,
		Invoices:    invoices,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	fileName := "invoices-" + start.Format("20060102") + "-" + end.Format("20060102") + ".xlsx"
	c.Header("Content-Disposition", "attachment; filename=\""+fileName+"\"")
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", content)
}

// contractAction factors the shared shape of the transition endpoints:
// principal, path id, optional JSON body, typed error mapping.
func (h *Handler) contractAction(c *gin.Context, body interface{}, action func(id uint, principal model.Principal) (*model.Contract, error)) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}
	if body != nil {
		if err := c.ShouldBindJSON(body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	contract, err := action(id, principal)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, contract)
}

func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, lifecycle.ErrIllegalTransition),
		errors.Is(err, service.ErrAlreadyResolved),
		errors.Is(err, service.ErrInvalidState),
		errors.Is(err, service.ErrReadingNotEligible):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrGuardViolation),
		errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, billing.ErrInvalidTariff),
		errors.Is(err, billing.ErrInvalidReading):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		h.log.Error().Err(err).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func parseID(c *gin.Context) (uint, bool) {
	raw := strings.TrimSpace(c.Param("id"))
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return uint(id), true
}

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, service.ErrInvalidInput
	}
	layouts := []string{
		time.RFC3339,
		"2006-01-02",
		"2006-01-02T15:04:05",
	}
	for _, layout := range layouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, service.ErrInvalidInput
}
