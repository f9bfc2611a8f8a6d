package utils

import (
	"strings"
	"unicode/utf8"
)

// MaskEmail 对邮箱进行脱敏处理
// 示例: example@gmail.com -> e*****e@gmail.com
func MaskEmail(email string) string {
	if email == "" {
		return ""
	}
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return email
	}
	username := parts[0]
	if utf8.RuneCountInString(username) <= 2 {
		return email
	}
	return string(username[0]) + "*****" + string(username[len(username)-1]) + "@" + parts[1]
}

// MaskUUID 对UUID进行脱敏处理
// 只处理标准 36 位格式，其余长度原样返回
// 示例: 550e8400-e29b-41d4-a716-446655440000 -> 550e****-****-****-****-****440000
func MaskUUID(uuid string) string {
	if len(uuid) != 36 {
		return uuid
	}
	return uuid[:4] + "****-" + uuid[9:13] + "-****-" + uuid[19:23] + "-****-" + uuid[len(uuid)-6:]
}
