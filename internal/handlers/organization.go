package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/mo-task-monitor/internal/dto"
	apierrors "github.com/yukikurage/mo-task-monitor/internal/errors"
	"github.com/yukikurage/mo-task-monitor/internal/middleware"
	"github.com/yukikurage/mo-task-monitor/internal/models"
	"github.com/yukikurage/mo-task-monitor/internal/services"
)

type OrganizationHandler struct {
	orgService *services.OrganizationService
}

func NewOrganizationHandler(orgService *services.OrganizationService) *OrganizationHandler {
	return &OrganizationHandler{
		orgService: orgService,
	}
}

// ListOrganizations returns every organization sorted by name
func (h *OrganizationHandler) ListOrganizations(c *gin.Context) {
	orgs, err := h.orgService.ListOrganizations(c.Request.Context())
	if err != nil {
		apierrors.RespondWithServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"organizations": dto.ToOrganizationDTOs(orgs)})
}

// GetOrganization returns an organization with its rollup and tasks
// Organization is already loaded by LoadOrganization middleware
func (h *OrganizationHandler) GetOrganization(c *gin.Context) {
	org, ok := middleware.GetOrganization(c)
	if !ok {
		apierrors.InternalError(c, "Organization not found in context")
		return
	}

	ctx := c.Request.Context()
	detail, err := h.orgService.GetOrganizationDetail(ctx, org.ID)
	if err != nil {
		apierrors.RespondWithServiceError(c, err)
		return
	}

	orgs, err := h.orgService.ListOrganizations(ctx)
	if err != nil {
		apierrors.RespondWithServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToOrganizationDetailDTO(*detail, dto.NewOrganizationNames(orgs), h.orgService.Now()))
}

// Stats returns per-organization rollups
// Query: search, type, with_tasks, sort, order
func (h *OrganizationHandler) Stats(c *gin.Context) {
	query := services.StatsQuery{
		Search: c.Query("search"),
		SortBy: c.Query("sort"),
		Desc:   c.Query("order") == "desc",
	}

	if raw := c.Query("type"); raw != "" && raw != "all" {
		typ, ok := models.ParseOrganizationType(raw)
		if !ok {
			apierrors.BadRequest(c, "Invalid organization type")
			return
		}
		query.Type = typ
	}

	if raw := c.Query("with_tasks"); raw != "" {
		withTasks, err := strconv.ParseBool(raw)
		if err != nil {
			apierrors.BadRequest(c, "Invalid with_tasks")
			return
		}
		query.OnlyWithTasks = withTasks
	}

	stats, err := h.orgService.Stats(c.Request.Context(), query)
	if err != nil {
		apierrors.RespondWithServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"organizations": dto.ToOrganizationStatsDTOs(stats)})
}
