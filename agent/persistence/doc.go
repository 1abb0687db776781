// 版权所有 2024 AgentTeam Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 persistence 提供团队运行轨迹（Trace 快照）的持久化存储抽象及多后端实现。

# 核心接口

TraceStore 是一个按键存取字节的极简接口：Get、Put、Remove、Close。
引擎以会话 ID 为键写入 trace.Snapshot 的 JSON 编码，GetTrace 与 Resume
在内存中找不到活跃会话时回落到这里读取。键不存在时 Get 返回 ErrNotFound；
Remove 对不存在的键是幂等的。

# 后端实现

  - memory：进程内 map，适合开发与测试，重启后数据丢失。
  - file：每个键一个 JSON 文件，先写临时文件再原子重命名，适合单节点部署。
  - redis：基于 go-redis，可选 TTL，适合分布式部署。
  - sql：基于 GORM，支持 sqlite（glebarez 纯 Go 驱动）、postgres、mysql。
  - mongo：基于 mongo-driver v2，按 _id upsert。

# 使用方式

	store, err := persistence.NewTraceStore(cfg,
		persistence.WithLogger(logger),
		persistence.WithMetrics(collector))

传入 WithMetrics 时返回的存储会为每次操作记录 Prometheus 计数与耗时。
*/
package persistence
