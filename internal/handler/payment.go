package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"cryptopay/internal/middleware"
	"cryptopay/internal/service"
	"cryptopay/internal/util"
)

// PaymentHandler 商户支付API
type PaymentHandler struct {
	intents *service.IntentService
}

func NewPaymentHandler(intents *service.IntentService) *PaymentHandler {
	return &PaymentHandler{intents: intents}
}

// CreateIntent 创建支付意向
// POST /api/v1/intents
func (h *PaymentHandler) CreateIntent(c *gin.Context) {
	merchant, err := h.intents.Authenticate(middleware.APIKey(c))
	if err != nil {
		util.Unauthorized(c, "invalid api key")
		return
	}

	var req service.CreateIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.ValidationError(c, err.Error())
		return
	}

	view, err := h.intents.CreateIntent(merchant, &req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	util.Success(c, view)
}

// GetIntent 查询支付意向
// GET /api/v1/intents/:intent_id
func (h *PaymentHandler) GetIntent(c *gin.Context) {
	merchant, err := h.intents.Authenticate(middleware.APIKey(c))
	if err != nil {
		util.Unauthorized(c, "invalid api key")
		return
	}

	view, err := h.intents.GetIntent(merchant.ID, c.Param("intent_id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	util.Success(c, view)
}

// writeError 业务错误映射到统一响应
func (h *PaymentHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrUnauthorized):
		util.Unauthorized(c, err.Error())
	case errors.Is(err, service.ErrIntentNotFound):
		util.NotFound(c, err.Error())
	case errors.Is(err, service.ErrInvalidRequest):
		util.ValidationError(c, err.Error())
	case errors.Is(err, service.ErrAmountExhausted):
		util.ErrorWithCode(c, util.CodeTransient, err.Error())
	// 无可用收款地址是配置问题, 重试无济于事
	case errors.Is(err, service.ErrNoAddress):
		util.ErrorWithCode(c, util.CodeServerError, err.Error())
	default:
		util.ServerError(c, "internal error")
	}
}
