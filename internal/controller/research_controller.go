package controller

import (
	"ai-research-be/internal/dto"
	"ai-research-be/internal/pkg/serverutils"
	"ai-research-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IResearchController interface {
	RegisterRoutes(r fiber.Router)
	Turn(ctx *fiber.Ctx) error
	Regenerate(ctx *fiber.Ctx) error
	ResetSession(ctx *fiber.Ctx) error
	ShowSession(ctx *fiber.Ctx) error
	ListCompanies(ctx *fiber.Ctx) error
	ShowReport(ctx *fiber.Ctx) error
	DeleteCompany(ctx *fiber.Ctx) error
	UploadDocuments(ctx *fiber.Ctx) error
}

type researchController struct {
	researchService service.IResearchService
}

func NewResearchController(researchService service.IResearchService) IResearchController {
	return &researchController{
		researchService: researchService,
	}
}

func (c *researchController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/research/v1")
	h.Use(serverutils.JwtMiddleware)
	h.Post("turn", c.Turn)
	h.Post("regenerate", c.Regenerate)
	h.Post("session/reset", c.ResetSession)
	h.Get("session/:id", c.ShowSession)
	h.Get("companies", c.ListCompanies)
	h.Get("companies/:name/report", c.ShowReport)
	h.Delete("companies/:name", c.DeleteCompany)
	h.Post("documents", c.UploadDocuments)
}

func (c *researchController) Turn(ctx *fiber.Ctx) error {
	var req dto.TurnRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.researchService.HandleTurn(ctx.Context(), req.SessionID, req.Message)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success process turn", res))
}

func (c *researchController) Regenerate(ctx *fiber.Ctx) error {
	var req dto.RegenerateRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.researchService.Regenerate(ctx.Context(), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success regenerate report sections", res))
}

func (c *researchController) ResetSession(ctx *fiber.Ctx) error {
	var req dto.ResetSessionRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	c.researchService.ResetSession(req.SessionID)

	return ctx.JSON(serverutils.SuccessResponse("Success reset session", nil))
}

func (c *researchController) ShowSession(ctx *fiber.Ctx) error {
	sessionID := ctx.Params("id")

	res, err := c.researchService.GetSession(sessionID)
	if err != nil {
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	}

	return ctx.JSON(serverutils.SuccessResponse("Success show session", res))
}

func (c *researchController) ListCompanies(ctx *fiber.Ctx) error {
	companies, err := c.researchService.ListCompanies(ctx.Context())
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success list companies", dto.CompanyListResponse{
		Companies: companies,
	}))
}

func (c *researchController) ShowReport(ctx *fiber.Ctx) error {
	company := ctx.Params("name")

	report, err := c.researchService.GetReport(ctx.Context(), company)
	if err != nil {
		return err
	}
	if report == nil {
		return fiber.NewError(fiber.StatusNotFound, "no report for company "+company)
	}

	return ctx.JSON(serverutils.SuccessResponse("Success show report", report))
}

func (c *researchController) DeleteCompany(ctx *fiber.Ctx) error {
	company := ctx.Params("name")

	if err := c.researchService.DeleteCompanyData(ctx.Context(), company); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success delete company data", nil))
}

func (c *researchController) UploadDocuments(ctx *fiber.Ctx) error {
	var req dto.UploadDocumentsRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	stored, err := c.researchService.UploadDocuments(ctx.Context(), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success upload documents", dto.UploadDocumentsResponse{
		Company: req.Company,
		Stored:  stored,
	}))
}
