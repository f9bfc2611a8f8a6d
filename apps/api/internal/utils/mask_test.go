package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskEmail(t *testing.T) {
	assert.Equal(t, "", MaskEmail(""))
	assert.Equal(t, "not-an-email", MaskEmail("not-an-email"))
	// 用户名过短不脱敏
	assert.Equal(t, "ab@test.com", MaskEmail("ab@test.com"))
	assert.Equal(t, "a*****e@gmail.com", MaskEmail("alice@gmail.com"))
}

func TestMaskUUID(t *testing.T) {
	t.Run("canonical_uuid_masked", func(t *testing.T) {
		got := MaskUUID("550e8400-e29b-41d4-a716-446655440000")
		assert.Equal(t, "550e****-****-****-****-****440000", got)
	})

	t.Run("non_canonical_returned_as_is", func(t *testing.T) {
		// 非 36 位的标识不能触碰切片边界，原样返回
		for _, id := range []string{
			"",
			"short",
			"uuid-alice",
			"12345678",
			"1234567890123456789012",
			"550e8400-e29b-41d4-a716-4466554400001",
		} {
			assert.Equal(t, id, MaskUUID(id))
		}
	})
}
