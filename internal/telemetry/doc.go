// Package telemetry 封装 OpenTelemetry SDK 初始化逻辑，
// 为 AgentTeam 提供集中式的 TracerProvider 和 MeterProvider 配置。
// 引擎与决策任务通过 otel.Tracer 创建 span；遥测禁用时使用 noop 实现，
// 不连接任何外部服务。
package telemetry
