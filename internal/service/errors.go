package service

import "errors"

// 业务错误, handler层据此映射HTTP状态码
var (
	ErrUnauthorized     = errors.New("invalid api key")
	ErrInvalidRequest   = errors.New("invalid request")
	ErrIntentNotFound   = errors.New("payment intent not found")
	ErrMerchantNotFound = errors.New("merchant not found")
	ErrNoAddress        = errors.New("no payment address available")
	ErrAmountExhausted  = errors.New("no distinct amount available, try again later")
)
