// 版权所有 2024 AgentTeam Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 database 提供基于 GORM 的数据库打开与连接池管理，供 SQL 轨迹存储使用。

# 核心类型

  - PoolManager：持有 GORM DB 与底层 sql.DB，提供 DB(ctx)、Ping、Stats、Close。
  - PoolConfig：最大空闲/打开连接数、连接生命周期与健康检查间隔。
  - Config / Open：按驱动（sqlite、postgres、mysql）选择方言并建立连接池。

# 事务

WithTransaction 执行单次事务；WithTransactionRetry 对死锁、序列化失败、
sqlite 锁等瞬时错误做指数退避重试。
*/
package database
