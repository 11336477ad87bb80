package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/lectigo/lectigo/internal/common"
	"github.com/lectigo/lectigo/internal/dialogue"
)

func (h *Handler) CreateSession(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	// Guard finalize-at-start against parallel creations for this user.
	if h.Redis != nil {
		release, got, err := h.Redis.AcquireUserLock(c.Request.Context(), uid)
		if err != nil {
			common.Fail(c, http.StatusInternalServerError, 20010, "lock error")
			return
		}
		if !got {
			common.Fail(c, http.StatusConflict, 40900, "session creation already in progress")
			return
		}
		defer release()
	}

	sess, err := h.Dialogue.StartSession(c.Request.Context(), uid)
	if err != nil {
		if errors.Is(err, dialogue.ErrNotFound) {
			common.Fail(c, http.StatusNotFound, 40401, "user not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50001, "failed to create session")
		return
	}

	common.OK(c, sess)
}

func (h *Handler) ListSessions(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	sessions, err := h.Repo.ListSessions(c.Request.Context(), uid)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}
	common.OK(c, sessions)
}

func (h *Handler) GetSession(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	sess, err := h.Repo.GetSession(c.Request.Context(), uid, c.Param("session_id"))
	if err != nil {
		if errors.Is(err, dialogue.ErrNotFound) {
			common.Fail(c, http.StatusNotFound, 40402, "session not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}
	common.OK(c, sess)
}

func (h *Handler) ListSessionMessages(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	sess, err := h.Repo.GetSession(c.Request.Context(), uid, c.Param("session_id"))
	if err != nil {
		if errors.Is(err, dialogue.ErrNotFound) {
			common.Fail(c, http.StatusNotFound, 40402, "session not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}

	msgs, err := h.Repo.ListMessages(c.Request.Context(), sess.SessionID, 0)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}
	common.OK(c, msgs)
}

// turnReq accepts both client payload shapes: the web app posts the fields
// directly, the Unity client wraps them in a "form" object. Both normalize
// to one canonical turn input.
type turnReq struct {
	Content string `json:"content"`
	Emotion string `json:"emotion"`

	Form *struct {
		Content string `json:"content"`
		Emotion string `json:"emotion"`
	} `json:"form"`
}

func (r *turnReq) normalize() (content, emotion string, ok bool) {
	if r.Form != nil {
		content, emotion = r.Form.Content, r.Form.Emotion
	} else {
		content, emotion = r.Content, r.Emotion
	}
	content = strings.TrimSpace(content)
	return content, emotion, content != ""
}

// SendMessage runs one dialogue turn under the per-session lock.
func (h *Handler) SendMessage(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req turnReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	content, emotion, okReq := req.normalize()
	if !okReq {
		common.Fail(c, http.StatusBadRequest, 10002, "content required")
		return
	}

	sessionID := c.Param("session_id")

	// Turns for one session are strictly serialized.
	if h.Redis != nil {
		release, got, err := h.Redis.AcquireTurnLock(c.Request.Context(), sessionID)
		if err != nil {
			common.Fail(c, http.StatusInternalServerError, 20010, "lock error")
			return
		}
		if !got {
			common.Fail(c, http.StatusConflict, 40901, "another turn is in progress for this session")
			return
		}
		defer release()
	}

	res, err := h.Dialogue.HandleTurn(c.Request.Context(), uid, sessionID, content, emotion)
	if err != nil {
		if errors.Is(err, dialogue.ErrNotFound) {
			common.Fail(c, http.StatusNotFound, 40402, "user or session not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50002, "failed to process turn")
		return
	}

	common.OK(c, gin.H{
		"userMessage": res.UserMessage,
		"agentResponse": gin.H{
			"texto":     res.Reply,
			"animacion": dialogue.ClassifyAnimation(res.Reply),
		},
	})
}
