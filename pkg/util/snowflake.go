package util

import (
	"sync"

	"github.com/bwmarrin/snowflake"
)

var (
	snowNode *snowflake.Node
	snowOnce sync.Once
)

// InitSnowflake 初始化雪花节点（进程启动时调用一次）。
// nodeId 需在部署实例间唯一，否则会产生重复 id。
func InitSnowflake(nodeId int64) error {
	var err error
	snowOnce.Do(func() {
		snowNode, err = snowflake.NewNode(nodeId)
	})
	return err
}

// NextID 生成下一个雪花 id（关系 id、饮食记录 id）。
func NextID() int64 {
	return snowNode.Generate().Int64()
}
