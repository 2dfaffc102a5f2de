package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/oralexam/internal/model"
	"github.com/stemsi/oralexam/internal/response"
	"github.com/stemsi/oralexam/internal/service"
	"github.com/stemsi/oralexam/internal/validator"
)

type SettingHandler struct {
	settingService *service.SettingService
}

func NewSettingHandler(settingService *service.SettingService) *SettingHandler {
	return &SettingHandler{settingService: settingService}
}

// GetNotifyChats godoc
// GET /api/v1/admin/settings/notify-chats
func (h *SettingHandler) GetNotifyChats(c *gin.Context) {
	chatIDs, err := h.settingService.NotifyChatIDs(c.Request.Context())
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if chatIDs == nil {
		chatIDs = []string{}
	}
	response.Success(c, http.StatusOK, gin.H{"chat_ids": chatIDs})
}

// UpdateNotifyChats godoc
// PUT /api/v1/admin/settings/notify-chats
// A null chat_ids falls back to TELEGRAM_CHAT_IDS; an empty list disables notifications.
func (h *SettingHandler) UpdateNotifyChats(c *gin.Context) {
	var req model.UpdateNotifyChatsRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.settingService.UpdateNotifyChatIDs(c.Request.Context(), req.ChatIDs); err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "settings updated successfully"})
}
