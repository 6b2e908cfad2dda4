package util

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// 统一错误码定义
const (
	CodeSuccess      = 1    // 成功
	CodeError        = -1   // 通用错误
	CodeUnauthorized = -401 // 未授权
	CodeNotFound     = -404 // 资源不存在
	CodeValidation   = -422 // 参数验证失败
	CodeRateLimit    = -429 // 请求过于频繁
	CodeServerError  = -500 // 服务器内部错误
	CodeTransient    = -503 // 临时性失败, 可重试
)

// Response 统一响应结构
type Response struct {
	Code int         `json:"code"`
	Msg  string      `json:"msg"`
	Data interface{} `json:"data,omitempty"`
}

// PageResponse 分页响应结构
type PageResponse struct {
	Code  int         `json:"code"`
	Msg   string      `json:"msg"`
	Data  interface{} `json:"data,omitempty"`
	Total int64       `json:"total"`
	Page  int         `json:"page"`
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code: CodeSuccess,
		Msg:  "success",
		Data: data,
	})
}

// SuccessPage 分页成功响应
func SuccessPage(c *gin.Context, data interface{}, total int64, page int) {
	c.JSON(http.StatusOK, PageResponse{
		Code:  CodeSuccess,
		Msg:   "success",
		Data:  data,
		Total: total,
		Page:  page,
	})
}

// Error 错误响应
func Error(c *gin.Context, msg string) {
	c.JSON(http.StatusOK, Response{
		Code: CodeError,
		Msg:  msg,
	})
}

// ErrorWithCode 带错误码的错误响应
func ErrorWithCode(c *gin.Context, code int, msg string) {
	c.JSON(http.StatusOK, Response{
		Code: code,
		Msg:  msg,
	})
}

// Unauthorized 未授权响应
func Unauthorized(c *gin.Context, msg string) {
	if msg == "" {
		msg = "unauthorized"
	}
	c.JSON(http.StatusUnauthorized, Response{
		Code: CodeUnauthorized,
		Msg:  msg,
	})
}

// NotFound 资源不存在响应
func NotFound(c *gin.Context, msg string) {
	if msg == "" {
		msg = "not found"
	}
	c.JSON(http.StatusOK, Response{
		Code: CodeNotFound,
		Msg:  msg,
	})
}

// ValidationError 参数验证失败响应
func ValidationError(c *gin.Context, msg string) {
	if msg == "" {
		msg = "invalid parameters"
	}
	c.JSON(http.StatusOK, Response{
		Code: CodeValidation,
		Msg:  msg,
	})
}

// RateLimitError 请求过于频繁响应
func RateLimitError(c *gin.Context) {
	c.JSON(http.StatusTooManyRequests, Response{
		Code: CodeRateLimit,
		Msg:  "too many requests",
	})
}

// ServerError 服务器内部错误响应
func ServerError(c *gin.Context, msg string) {
	if msg == "" {
		msg = "internal server error"
	}
	c.JSON(http.StatusOK, Response{
		Code: CodeServerError,
		Msg:  msg,
	})
}
