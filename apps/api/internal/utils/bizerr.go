package utils

import (
	"errors"

	"DietServer/consts"
)

// BizError 业务错误，携带 consts 中定义的错误码。
// service 层返回 BizError，handler 层通过 ExtractErrorCode 还原错误码。
type BizError struct {
	Code int
	Msg  string
}

func (e *BizError) Error() string {
	return e.Msg
}

// NewBizError 创建业务错误，消息取错误码的默认文案。
func NewBizError(code int) *BizError {
	return &BizError{Code: code, Msg: consts.GetMessage(int32(code))}
}

// NewBizErrorWithMsg 创建业务错误并覆盖默认文案。
func NewBizErrorWithMsg(code int, msg string) *BizError {
	return &BizError{Code: code, Msg: msg}
}

// ExtractErrorCode 提取业务错误码。
// 非 BizError 一律视为服务器内部错误。
func ExtractErrorCode(err error) int {
	if err == nil {
		return 0
	}

	var bizErr *BizError
	if errors.As(err, &bizErr) {
		return bizErr.Code
	}

	return consts.CodeInternalError
}
