package http

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"time"

	"github.com/dkeye/meetclient/internal/app/admission"
	"github.com/dkeye/meetclient/internal/app/media"
	"github.com/dkeye/meetclient/internal/app/orch"
	"github.com/dkeye/meetclient/internal/core"
	"github.com/dkeye/meetclient/internal/domain"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cast"
)

const (
	callRateWindow = time.Minute
	historyDefault = 20
	historyMax     = 200
)

// Coordinator is the part of the session coordinator the control API drives.
type Coordinator interface {
	Snapshot() orch.Snapshot
	InitiateCall(ctx context.Context, callee domain.UserID, kind domain.CallKind) (*domain.Call, error)
	AnswerCall(ctx context.Context) (*domain.Call, error)
	RejectCall(ctx context.Context, reason string) error
	CancelCall(ctx context.Context) error
	EndCall(ctx context.Context) error
	CallHistory(ctx context.Context, limit int) ([]domain.Call, error)
	JoinMeeting(ctx context.Context, id domain.MeetingID) (admission.Snapshot, error)
	LeaveMeeting() error
	Publish(ctx context.Context, slot domain.Slot) (domain.ProducerID, error)
	Unpublish(slot domain.Slot) error
	ListWaiting(ctx context.Context, id domain.MeetingID) (domain.WaitingRoom, error)
	WaitingRoom(id domain.MeetingID) domain.WaitingRoom
	Admit(ctx context.Context, id domain.MeetingID, user domain.UserID) error
	RejectWaiting(ctx context.Context, id domain.MeetingID, user domain.UserID) error
}

var _ Coordinator = (*orch.Coordinator)(nil)

type loginRequest struct {
	Secret string `json:"secret"`
}

type callRequest struct {
	CalleeID domain.UserID   `json:"callee_id"`
	Kind     domain.CallKind `json:"call_type"`
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, media.ErrInvalidSlot):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrInvalidTransition),
		errors.Is(err, core.ErrBusy),
		errors.Is(err, core.ErrNotJoined),
		errors.Is(err, core.ErrPreviewMode),
		errors.Is(err, core.ErrClosed):
		return http.StatusConflict
	case errors.Is(err, core.ErrDevice):
		return http.StatusServiceUnavailable
	case errors.Is(err, core.ErrConnectivity):
		return http.StatusBadGateway
	case errors.Is(err, core.ErrNegotiationTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func fail(c *gin.Context, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		log.Error().Err(err).Str("module", "adapters.http").Str("path", c.FullPath()).Str("request_id", c.GetString("request_id")).Msg("request failed")
	}
	c.AbortWithStatusJSON(code, gin.H{"error": err.Error()})
}

func (h *Handler) requireSession(c *gin.Context) {
	if h.secret == "" {
		c.Next()
		return
	}
	if ok, _ := sessions.Default(c).Get("authorized").(bool); !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "login required"})
		return
	}
	c.Next()
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid secret"})
		return
	}
	if h.secret != "" && subtle.ConstantTimeCompare([]byte(req.Secret), []byte(h.secret)) != 1 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "wrong secret"})
		return
	}
	sess := sessions.Default(c)
	sess.Set("authorized", true)
	if err := sess.Save(); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) logout(c *gin.Context) {
	sess := sessions.Default(c)
	sess.Clear()
	_ = sess.Save()
	c.Status(http.StatusNoContent)
}

func (h *Handler) status(c *gin.Context) {
	c.JSON(http.StatusOK, h.Coord.Snapshot())
}

func (h *Handler) initiateCall(c *gin.Context) {
	var req callRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.CalleeID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid callee_id"})
		return
	}
	if req.Kind == "" {
		req.Kind = domain.CallAudio
	}
	if !req.Kind.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "call_type must be audio or video"})
		return
	}
	if !h.Limiter.Allow(req.CalleeID) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many calls to this user"})
		return
	}
	call, err := h.Coord.InitiateCall(c.Request.Context(), req.CalleeID, req.Kind)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, call)
}

func (h *Handler) answerCall(c *gin.Context) {
	call, err := h.Coord.AnswerCall(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, call)
}

func (h *Handler) rejectCall(c *gin.Context) {
	var req rejectRequest
	_ = c.ShouldBindJSON(&req)
	if err := h.Coord.RejectCall(c.Request.Context(), req.Reason); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) cancelCall(c *gin.Context) {
	if err := h.Coord.CancelCall(c.Request.Context()); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) endCall(c *gin.Context) {
	if err := h.Coord.EndCall(c.Request.Context()); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) callHistory(c *gin.Context) {
	limit := cast.ToInt(c.DefaultQuery("limit", ""))
	if limit <= 0 {
		limit = historyDefault
	}
	limit = min(limit, historyMax)
	calls, err := h.Coord.CallHistory(c.Request.Context(), limit)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, calls)
}

func (h *Handler) joinMeeting(c *gin.Context) {
	snap, err := h.Coord.JoinMeeting(c.Request.Context(), domain.MeetingID(c.Param("id")))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *Handler) leaveMeeting(c *gin.Context) {
	if err := h.Coord.LeaveMeeting(); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) publish(c *gin.Context) {
	slot := domain.Slot(c.Param("slot"))
	id, err := h.Coord.Publish(c.Request.Context(), slot)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"slot": slot, "producer_id": id})
}

func (h *Handler) unpublish(c *gin.Context) {
	if err := h.Coord.Unpublish(domain.Slot(c.Param("slot"))); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// waitingRoom serves the pushed view; refresh=true fetches it from the backend first.
func (h *Handler) waitingRoom(c *gin.Context) {
	id := domain.MeetingID(c.Param("id"))
	if cast.ToBool(c.Query("refresh")) {
		room, err := h.Coord.ListWaiting(c.Request.Context(), id)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, room)
		return
	}
	c.JSON(http.StatusOK, h.Coord.WaitingRoom(id))
}

func (h *Handler) admit(c *gin.Context) {
	err := h.Coord.Admit(c.Request.Context(), domain.MeetingID(c.Param("id")), domain.UserID(c.Param("user")))
	if err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) rejectWaiting(c *gin.Context) {
	err := h.Coord.RejectWaiting(c.Request.Context(), domain.MeetingID(c.Param("id")), domain.UserID(c.Param("user")))
	if err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) muteAll(c *gin.Context) {
	if err := h.Host.MuteAll(c.Request.Context(), domain.MeetingID(c.Param("id"))); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) addCoHost(c *gin.Context) {
	err := h.Host.AddCoHost(c.Request.Context(), domain.MeetingID(c.Param("id")), domain.UserID(c.Param("user")))
	if err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) removeCoHost(c *gin.Context) {
	err := h.Host.RemoveCoHost(c.Request.Context(), domain.MeetingID(c.Param("id")), domain.UserID(c.Param("user")))
	if err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) participants(c *gin.Context) {
	ps, err := h.Host.ListParticipants(c.Request.Context(), domain.MeetingID(c.Param("id")))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ps)
}

func (h *Handler) removeParticipant(c *gin.Context) {
	err := h.Host.RemoveParticipant(c.Request.Context(), domain.MeetingID(c.Param("id")), domain.UserID(c.Param("user")))
	if err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
