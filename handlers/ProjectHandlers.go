package handlers

import (
	"net/http"
	"strings"
	"time"

	"backend/models"
	"backend/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// loadProjectForCaller fetches a project and enforces visibility: admins and
// partners see everything, clients only their own or the project their magic
// session was scoped to. Writes the error response itself.
func loadProjectForCaller(c *gin.Context, db *gorm.DB) (*models.Project, bool) {
	var project models.Project
	if err := db.First(&project, c.Param("project_id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Project not found"})
		return nil, false
	}

	session, user, err := GetSessionDetails(db, c.GetHeader("Authorization"))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return nil, false
	}
	if user.Role == models.RoleAdmin || user.Role == models.RolePartner {
		return &project, true
	}
	if session.ProjectID != nil && *session.ProjectID == project.ID {
		return &project, true
	}

	var order models.Order
	if err := db.First(&order, project.OrderID).Error; err == nil && order.UserID == user.ID {
		return &project, true
	}

	c.JSON(http.StatusForbidden, gin.H{"error": "You are not allowed to view this project"})
	return nil, false
}

// ListProjects returns the caller's projects; admins and partners see all.
// @Summary List projects
// @Tags Projects
// @Produce json
// @Success 200 {array} models.Project
// @Failure 401 {object} models.ErrorResponse
// @Router /api/projects [get]
func ListProjects(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, user, err := GetSessionDetails(db, c.GetHeader("Authorization"))
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		var projects []models.Project
		query := db.Order("projects.created_at DESC")
		if user.Role != models.RoleAdmin && user.Role != models.RolePartner {
			if session.ProjectID != nil {
				query = query.Where("id = ?", *session.ProjectID)
			} else {
				query = query.Joins("JOIN orders ON orders.id = projects.order_id").
					Where("orders.user_id = ?", user.ID)
			}
		}
		if err := query.Find(&projects).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, projects)
	}
}

// GetProject returns a project with its phases and payment schedule.
// @Summary Get a project with its plan
// @Tags Projects
// @Produce json
// @Param project_id path int true "Project ID"
// @Success 200 {object} models.ProjectDetailResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /api/projects/{project_id} [get]
func GetProject(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		project, ok := loadProjectForCaller(c, db)
		if !ok {
			return
		}

		var phases []models.ProjectPhase
		db.Where("project_id = ?", project.ID).Order("phase_order ASC").Find(&phases)

		var payments []models.MilestonePayment
		db.Where("project_id = ?", project.ID).Order("id ASC").Find(&payments)

		c.JSON(http.StatusOK, models.ProjectDetailResponse{
			Project:  *project,
			Phases:   phases,
			Payments: payments,
		})
	}
}

// UpdatePhaseStatus moves a phase to another group. The project status tracks
// the group just assigned, in either direction: moving a phase back also moves
// the project back.
// @Summary Update a phase's group
// @Tags Projects
// @Accept json
// @Produce json
// @Param project_id path int true "Project ID"
// @Param phase_id path int true "Phase ID"
// @Param body body models.UpdatePhaseStatusRequest true "New group"
// @Success 200 {object} models.ProjectPhase
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /api/projects/{project_id}/phases/{phase_id}/status [put]
func UpdatePhaseStatus(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.UpdatePhaseStatusRequest
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
			return
		}
		group := strings.ToUpper(strings.TrimSpace(input.Group))
		if !models.ValidPhaseGroup(group) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown phase group", "field": "group"})
			return
		}

		var phase models.ProjectPhase
		if err := db.Where("id = ? AND project_id = ?", c.Param("phase_id"), c.Param("project_id")).
			First(&phase).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Phase not found"})
			return
		}

		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(&phase).Updates(map[string]interface{}{
				"phase_group": group,
				"updated_at":  time.Now(),
			}).Error; err != nil {
				return err
			}
			return tx.Model(&models.Project{}).Where("id = ?", phase.ProjectID).
				Updates(map[string]interface{}{"status": group, "updated_at": time.Now()}).Error
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		db.First(&phase, phase.ID)
		c.JSON(http.StatusOK, phase)
	}
}

// MarkPaymentPaid settles a milestone payment and records the event.
// @Summary Mark a milestone payment as paid
// @Tags Projects
// @Produce json
// @Param project_id path int true "Project ID"
// @Param payment_id path int true "Payment ID"
// @Success 200 {object} models.MilestonePayment
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /api/projects/{project_id}/payments/{payment_id}/paid [post]
func MarkPaymentPaid(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var payment models.MilestonePayment
		if err := db.Where("id = ? AND project_id = ?", c.Param("payment_id"), c.Param("project_id")).
			First(&payment).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Payment not found"})
			return
		}
		if payment.Status == models.PaymentStatusPaid {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Payment already settled"})
			return
		}

		now := time.Now()
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(&payment).Updates(map[string]interface{}{
				"status":     models.PaymentStatusPaid,
				"paid_at":    now,
				"updated_at": now,
			}).Error; err != nil {
				return err
			}
			return services.SaveAuditLog(tx, actorIDFromContext(c, db), models.ActionPaymentMarked,
				models.TargetPayment, payment.ID, map[string]interface{}{
					"amount": payment.Amount,
					"label":  payment.Label,
				})
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		db.First(&payment, payment.ID)
		c.JSON(http.StatusOK, payment)
	}
}
