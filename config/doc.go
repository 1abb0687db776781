// Package config 提供 AgentTeam 运行器的配置管理功能。
//
// 配置按 默认值 → YAML 文件 → AGENTTEAM_* 环境变量 的顺序叠加，
// 覆盖团队默认参数、模型提供方、Trace 存储、日志、遥测与指标。
package config
