package api

import (
	"errors"
	"net/http"

	"github.com/Domenick1991/smartaccess/internal/backend"
	"github.com/Domenick1991/smartaccess/internal/domain"
	"github.com/Domenick1991/smartaccess/internal/service/availability"
	"github.com/Domenick1991/smartaccess/internal/service/bookings"
	"github.com/gin-gonic/gin"
	"github.com/skip2/go-qrcode"
)

const qrSize = 256

var errFacilityNotFound = errors.New("facility not found")

type createBookingRequest struct {
	Start   string `form:"start" json:"start"`
	End     string `form:"end" json:"end"`
	Purpose string `form:"purpose" json:"purpose"`
}

type userRequest struct {
	UserID string `form:"user_id" json:"user_id"`
}

type bookingsResponse struct {
	UserID string           `json:"user_id"`
	Rows   []domain.Booking `json:"rows"`
}

func newBookingsResponse(userID string, rows []domain.Booking) bookingsResponse {
	if rows == nil {
		rows = []domain.Booking{}
	}
	return bookingsResponse{UserID: userID, Rows: rows}
}

func (h *PortalHandler) submit(c *gin.Context) {
	code := c.Param("code")
	s := current(c)
	shell, ok := shellOf(c)
	if !ok {
		return
	}
	card, ok := shell.Card(code)
	if !ok {
		respondError(c, http.StatusNotFound, errFacilityNotFound)
		return
	}

	var req createBookingRequest
	if err := c.ShouldBind(&req); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	booking, err := card.Submit(c.Request.Context(), s.Identity(), availability.Form{
		Start:   req.Start,
		End:     req.End,
		Purpose: req.Purpose,
	})

	if wantsJSON(c) {
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": backend.Message(err)})
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"booking": booking,
			"notice":  shell.Notice(c.Request.Context()),
		})
		return
	}
	// the card keeps the form and the inline error for the next render
	c.Redirect(http.StatusSeeOther, "/#card-"+code)
}

func (h *PortalHandler) listMine(c *gin.Context) {
	if !wantsJSON(c) {
		c.Redirect(http.StatusSeeOther, "/#my-bookings")
		return
	}
	mine, ok := mineOf(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, newBookingsResponse(mine.UserID(), mine.Rows()))
}

func (h *PortalHandler) reloadMine(c *gin.Context) {
	mine, ok := mineOf(c)
	if !ok {
		return
	}
	h.respondMine(c, mine, mine.Reload(c.Request.Context()))
}

// setMineUser backs the Load button: it always fetches, whether or not the
// identifier changed.
func (h *PortalHandler) setMineUser(c *gin.Context) {
	var req userRequest
	if err := c.ShouldBind(&req); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	mine, ok := mineOf(c)
	if !ok {
		return
	}
	h.respondMine(c, mine, mine.Load(c.Request.Context(), req.UserID))
}

func (h *PortalHandler) respondMine(c *gin.Context, mine *bookings.MyBookings, err error) {
	if wantsJSON(c) {
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": backend.Message(err)})
			return
		}
		c.JSON(http.StatusOK, newBookingsResponse(mine.UserID(), mine.Rows()))
		return
	}
	if err != nil {
		redirectAlert(c, "/", err)
		return
	}
	c.Redirect(http.StatusSeeOther, "/#my-bookings")
}

// accessCodeQR renders the access code of one of the caller's bookings.
func (h *PortalHandler) accessCodeQR(c *gin.Context) {
	mine, ok := mineOf(c)
	if !ok {
		return
	}
	row, ok := mine.Find(c.Param("id"))
	if !ok || row.AccessCode == "" {
		c.Status(http.StatusNotFound)
		return
	}

	png, err := qrcode.Encode(row.AccessCode, qrcode.Medium, qrSize)
	if err != nil {
		c.Status(http.StatusInternalServerError)
		return
	}
	c.Header("Cache-Control", "private, max-age=300")
	c.Data(http.StatusOK, "image/png", png)
}
