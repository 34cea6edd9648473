package api

import (
	"errors"
	"net/http"

	"github.com/Domenick1991/smartaccess/internal/backend"
	"github.com/Domenick1991/smartaccess/internal/domain"
	"github.com/Domenick1991/smartaccess/internal/service/bookings"
	"github.com/gin-gonic/gin"
)

// admin loads every booking each time the panel is opened.
func (h *PortalHandler) admin(c *gin.Context) {
	s := current(c)
	panel := s.Admin()
	_ = panel.Load(c.Request.Context())

	if wantsJSON(c) {
		c.JSON(http.StatusOK, panel.View())
		return
	}
	c.HTML(http.StatusOK, "admin.tmpl", page{
		Title:    "Admin",
		Brand:    brand,
		Section:  "Admin",
		Refresh:  int(h.adminRefresh.Seconds()),
		Alert:    c.Query("alert"),
		Identity: s.Identity(),
		Admin:    panel.View(),
	})
}

func (h *PortalHandler) adminRefreshList(c *gin.Context) {
	panel := current(c).Admin()
	err := panel.Load(c.Request.Context())

	if wantsJSON(c) {
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": backend.Message(err)})
			return
		}
		c.JSON(http.StatusOK, panel.View())
		return
	}
	c.Redirect(http.StatusSeeOther, "/admin")
}

func (h *PortalHandler) adminAct(c *gin.Context) {
	panel := current(c).Admin()
	action := domain.AdminAction(c.Param("action"))

	err := panel.Act(c.Request.Context(), c.Param("id"), action)
	if errors.Is(err, bookings.ErrInvalidAction) {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	if wantsJSON(c) {
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": backend.Message(err)})
			return
		}
		c.JSON(http.StatusOK, panel.View())
		return
	}
	if err != nil {
		redirectAlert(c, "/admin", err)
		return
	}
	c.Redirect(http.StatusSeeOther, "/admin")
}
