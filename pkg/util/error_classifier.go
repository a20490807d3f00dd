package util

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/url"
)

// 错误类型，用于日志和指标标签
const (
	ErrTypeNone            = ""
	ErrTypeNetworkTimeout  = "network_timeout"
	ErrTypeNetworkError    = "network_error"
	ErrTypeTimeout         = "timeout"
	ErrTypeContextCanceled = "context_canceled"
	ErrTypeDecode          = "decode_error"
	ErrTypeUnknown         = "unknown_error"
)

// ClassifyError 把底层错误归类成稳定的错误类型字符串
func ClassifyError(err error) string {
	if err == nil {
		return ErrTypeNone
	}

	// Context 超时/取消优先判断，url.Error 会包住它们
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTypeTimeout
	}
	if errors.Is(err, context.Canceled) {
		return ErrTypeContextCanceled
	}

	// JSON decode errors
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return ErrTypeDecode
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return ErrTypeDecode
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return ErrTypeDecode
	}

	// Network errors
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return ErrTypeNetworkTimeout
		}
		return ErrTypeNetworkError
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ErrTypeNetworkTimeout
		}
		return ErrTypeNetworkError
	}

	return ErrTypeUnknown
}
