package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/lectigo/lectigo/internal/auth"
	"github.com/lectigo/lectigo/internal/common"
	"github.com/lectigo/lectigo/internal/httpapi/middleware"
	"github.com/lectigo/lectigo/internal/models"
)

type createUserReq struct {
	ExternalID string   `json:"us_id" binding:"required"`
	Name       string   `json:"nombre"`
	LastName   string   `json:"nombre_p"`
	Sex        string   `json:"sexo"`
	Age        *int     `json:"edad"`
	Username   string   `json:"usuario" binding:"required"`
	Password   string   `json:"contrasena" binding:"required"`
	Interests  []string `json:"intereses"`
	Avatar     string   `json:"avatar"`
	Scenario   string   `json:"escenario"`
}

func (h *Handler) CreateUser(c *gin.Context) {
	var req createUserReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 20002, "failed to hash password")
		return
	}

	user := models.User{
		ExternalID:   req.ExternalID,
		Name:         req.Name,
		LastName:     req.LastName,
		Sex:          req.Sex,
		Age:          req.Age,
		Username:     req.Username,
		PasswordHash: hash,
		Interests:    req.Interests,
		Avatar:       req.Avatar,
		Scenario:     req.Scenario,
		RegisteredAt: time.Now(),
	}
	if err := h.DB.Create(&user).Error; err != nil {
		common.Fail(c, http.StatusBadRequest, 10003, "failed to create user (maybe us_id already exists)")
		return
	}

	token, err := auth.SignJWT(user.ID, h.Cfg.JWTSecret, 24*time.Hour)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 20003, "failed to sign token")
		return
	}

	common.OK(c, gin.H{
		"id":      user.ID,
		"us_id":   user.ExternalID,
		"usuario": user.Username,
		"token":   token,
	})
}

type loginReq struct {
	Username string `json:"usuario" binding:"required"`
	Password string `json:"contrasena" binding:"required"`
}

func (h *Handler) Login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	var user models.User
	if err := h.DB.Where("username = ?", req.Username).First(&user).Error; err != nil {
		common.Fail(c, http.StatusUnauthorized, 40102, "invalid credentials")
		return
	}
	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		common.Fail(c, http.StatusUnauthorized, 40102, "invalid credentials")
		return
	}

	token, err := auth.SignJWT(user.ID, h.Cfg.JWTSecret, 24*time.Hour)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 20003, "failed to sign token")
		return
	}
	common.OK(c, gin.H{"id": user.ID, "token": token})
}

func (h *Handler) GetUserByID(c *gin.Context) {
	idStr := c.Param("id")
	id, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10004, "invalid user id")
		return
	}

	var user models.User
	if err := h.DB.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40401, "user not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}

	common.OK(c, user)
}

func (h *Handler) Me(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}
	var user models.User
	if err := h.DB.First(&user, uid).Error; err != nil {
		common.Fail(c, http.StatusNotFound, 40401, "user not found")
		return
	}
	common.OK(c, user)
}

func userIDFromContext(c *gin.Context) (uint64, bool) {
	v, ok := c.Get(middleware.UserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint64)
	return id, ok
}
