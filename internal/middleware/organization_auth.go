package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/mo-task-monitor/internal/constants"
	apierrors "github.com/yukikurage/mo-task-monitor/internal/errors"
	"github.com/yukikurage/mo-task-monitor/internal/models"
	"github.com/yukikurage/mo-task-monitor/internal/services"
)

// LoadOrganization resolves the :id parameter to an organization and stores
// it in context.
func LoadOrganization(orgService *services.OrganizationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			apierrors.BadRequest(c, "Invalid organization ID")
			c.Abort()
			return
		}

		org, err := orgService.GetOrganization(c.Request.Context(), orgID)
		if err != nil {
			apierrors.RespondWithServiceError(c, err)
			c.Abort()
			return
		}

		c.Set(constants.ContextKeyOrg, *org)
		c.Next()
	}
}

// GetOrganization retrieves the organization loaded by LoadOrganization
func GetOrganization(c *gin.Context) (models.Organization, bool) {
	v, exists := c.Get(constants.ContextKeyOrg)
	if !exists {
		return models.Organization{}, false
	}
	org, ok := v.(models.Organization)
	return org, ok
}
