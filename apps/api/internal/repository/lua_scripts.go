package repository

const (
	// luaIncrementWithExpire 递增计数器，仅在首次创建时设置过期时间
	// KEYS[1]: 计数器 key
	// ARGV[1]: 过期时间（秒）
	// 返回: 递增后的值
	luaIncrementWithExpire = `
local key = KEYS[1]
local expire = tonumber(ARGV[1])
local current = redis.call('INCR', key)

-- 如果是第一次创建值为1,则设置过期时间
if current == 1 then
	redis.call('EXPIRE', key, expire)
end

return current
`

	// luaCompareAndDelete 校验值匹配后删除（验证码消耗，防止并发重放）
	// KEYS[1]: 验证码 key
	// ARGV[1]: 客户端提交的验证码
	// 返回: 1 表示匹配且已删除，0 表示不匹配或 key 不存在
	luaCompareAndDelete = `
local stored = redis.call('GET', KEYS[1])
if stored and stored == ARGV[1] then
	redis.call('DEL', KEYS[1])
	return 1
end
return 0
`
)
