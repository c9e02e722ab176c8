package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/voicerooms/internal/app/orch"
	"github.com/dkeye/voicerooms/internal/domain"
)

// Handlers serves the REST surface: peer room listing and operator controls.
type Handlers struct {
	Orch *orch.Orchestrator
}

type LockRequest struct {
	By     string `json:"by"`
	Reason string `json:"reason"`
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

func statusFor(err error) int {
	switch domain.KindOf(err) {
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindCapacityExceeded:
		return http.StatusTooManyRequests
	case domain.KindTransientExternal:
		return http.StatusBadGateway
	}
	de := domain.AsError(err)
	if de == domain.ErrShuttingDown {
		return http.StatusServiceUnavailable
	}
	if de == domain.ErrInternal {
		return http.StatusInternalServerError
	}
	return http.StatusConflict
}

func fail(c *gin.Context, err error) {
	de := domain.AsError(err)
	c.JSON(statusFor(err), gin.H{"success": false, "error": de})
}

// FederationRooms lists local listed rooms only so peers never echo each
// other's external lists.
func (h *Handlers) FederationRooms(c *gin.Context) {
	rooms, err := h.Orch.ListedRooms(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, rooms)
}

// ListRooms returns local and external rooms; ?refresh=true queries peers first.
func (h *Handlers) ListRooms(c *gin.Context) {
	if refresh, _ := strconv.ParseBool(c.Query("refresh")); refresh && h.Orch.Federation != nil {
		h.Orch.Federation.FetchExternalRooms(c.Request.Context())
	}
	list, err := h.Orch.RoomList(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, list)
}

func (h *Handlers) GetRoom(c *gin.Context) {
	view, err := h.Orch.RoomStatus(c.Request.Context(), domain.RoomID(c.Param("id")))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, view)
}

func (h *Handlers) LockRoom(c *gin.Context) {
	var req LockRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, domain.ErrBadPayload)
			return
		}
	}
	if req.By == "" {
		req.By = "admin"
	}
	if req.Reason == "" {
		req.Reason = "manual"
	}
	view, err := h.Orch.AdminLock(c.Request.Context(), domain.RoomID(c.Param("id")), req.By, req.Reason)
	if err != nil {
		fail(c, err)
		return
	}
	log.Info().Str("module", "adapters.http").Str("room_id", string(view.ID)).Str("by", req.By).Msg("room locked")
	ok(c, view)
}

func (h *Handlers) UnlockRoom(c *gin.Context) {
	view, err := h.Orch.AdminUnlock(c.Request.Context(), domain.RoomID(c.Param("id")), "admin")
	if err != nil {
		fail(c, err)
		return
	}
	log.Info().Str("module", "adapters.http").Str("room_id", string(view.ID)).Msg("room unlocked")
	ok(c, view)
}

func (h *Handlers) DeleteRoom(c *gin.Context) {
	id := domain.RoomID(c.Param("id"))
	if err := h.Orch.AdminDelete(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	log.Info().Str("module", "adapters.http").Str("room_id", string(id)).Msg("room deleted")
	ok(c, gin.H{"roomId": id})
}

func (h *Handlers) RelayStats(c *gin.Context) {
	ok(c, h.Orch.RelayStats())
}
