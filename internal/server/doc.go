// 版权所有 2024 AgentTeam Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 server 管理 CLI 运行期间的指标 HTTP 服务器。

# 概述

Manager 封装 net/http.Server，提供非阻塞启动、优雅关闭与
异步错误传播；NewMetricsHandler 通过 promhttp 暴露 Prometheus
Registry，并附带 /healthz 探针。
*/
package server
