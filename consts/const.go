package consts

// 通用错误码
const (
	CodeSuccess = 0 // 成功
)

// 客户端错误 (1xxxx)
const (
	CodeParamError       = 10001 // 参数验证失败
	CodeBodyError        = 10002 // 请求体格式错误
	CodeResourceNotFound = 10003 // 资源不存在
	CodeMethodNotAllowed = 10004 // 请求方法不允许
	CodeTooManyRequests  = 10005 // 请求过于频繁
	CodeBodyTooLarge     = 10006 // 请求体过大
	CodeTimeoutError     = 10007 // 请求处理超时
)

// 认证错误 (2xxxx)
const (
	CodeUnauthorized   = 20001 // 未认证
	CodeInvalidToken   = 20002 // Token 无效
	CodeTokenExpired   = 20003 // Token 已过期
	CodePermissionDeny = 20004 // 权限不足
)

// 用户模块错误 (11xxx)
const (
	CodeUserNotFound     = 11001 // 用户不存在
	CodeUserAlreadyExist = 11002 // 用户已存在
	CodePasswordError    = 11003 // 密码错误
	CodeVerifyCodeError  = 11004 // 验证码错误
	CodeVerifyCodeExpire = 11005 // 验证码已过期
)

// 配对模块错误 (14xxx)
const (
	CodeSelfPairing                = 14001 // 不能和自己配对
	CodeAlreadyPaired              = 14002 // 一方已有伴侣
	CodePairRequestAlreadySent     = 14003 // 你已发送过配对请求，等待对方处理
	CodePairRequestAlreadyReceived = 14004 // 对方已向你发送配对请求，请直接处理
	CodeRelationNotFound           = 14005 // 配对请求不存在
	CodeRelationNotPending         = 14006 // 配对请求已被处理或已失效
	CodePairForbidden              = 14007 // 无权操作该配对请求
	CodeNoActiveRelation           = 14008 // 当前没有生效的配对关系
	CodePartialDisconnect          = 14009 // 解除配对未完全生效，请联系客服
)

// 饮食模块错误 (15xxx)
const (
	CodeMealNotFound      = 15001 // 饮食记录不存在
	CodeMealPhotoInvalid  = 15002 // 图片格式或大小不合法
	CodeMealPhotoTooLarge = 15003 // 图片超过大小限制
	CodeRecognizeFailed   = 15004 // 食物识别失败
)

// 服务端错误 (3xxxx)
const (
	CodeInternalError      = 30001 // 服务器内部错误
	CodeServiceUnavailable = 30002 // 服务暂不可用，请稍后重试
)

// 错误消息映射
var CodeMessage = map[int32]string{
	CodeSuccess: "success",

	// 客户端错误
	CodeParamError:       "参数验证失败",
	CodeBodyError:        "请求体格式错误",
	CodeResourceNotFound: "资源不存在",
	CodeMethodNotAllowed: "请求方法不允许",
	CodeTooManyRequests:  "请求过于频繁",
	CodeBodyTooLarge:     "请求体过大",
	CodeTimeoutError:     "请求处理超时",

	// 认证错误
	CodeUnauthorized:   "未认证",
	CodeInvalidToken:   "Token 无效",
	CodeTokenExpired:   "Token 已过期",
	CodePermissionDeny: "权限不足",

	// 用户模块
	CodeUserNotFound:     "用户不存在",
	CodeUserAlreadyExist: "用户已存在",
	CodePasswordError:    "密码错误",
	CodeVerifyCodeError:  "验证码错误",
	CodeVerifyCodeExpire: "验证码已过期",

	// 配对模块
	CodeSelfPairing:                "不能和自己配对",
	CodeAlreadyPaired:              "一方已有伴侣",
	CodePairRequestAlreadySent:     "配对请求已发送，等待对方处理",
	CodePairRequestAlreadyReceived: "对方已向你发送配对请求，请直接处理",
	CodeRelationNotFound:           "配对请求不存在",
	CodeRelationNotPending:         "配对请求已被处理或已失效",
	CodePairForbidden:              "无权操作该配对请求",
	CodeNoActiveRelation:           "当前没有生效的配对关系",
	CodePartialDisconnect:          "解除配对未完全生效，请联系客服",

	// 饮食模块
	CodeMealNotFound:      "饮食记录不存在",
	CodeMealPhotoInvalid:  "图片格式不合法",
	CodeMealPhotoTooLarge: "图片超过大小限制",
	CodeRecognizeFailed:   "食物识别失败",

	// 服务端错误
	CodeInternalError:      "服务器内部错误",
	CodeServiceUnavailable: "服务暂不可用，请稍后重试",
}

// GetMessage 根据错误码获取错误消息
func GetMessage(code int32) string {
	if msg, ok := CodeMessage[code]; ok {
		return msg
	}
	return "未知错误"
}

// IsNonServerError 判断是否为业务错误（非 3xxxx 服务端错误）
// 业务错误直接返回给客户端，不记录 Error 日志
func IsNonServerError(code int) bool {
	return code > 0 && code < 30000
}
