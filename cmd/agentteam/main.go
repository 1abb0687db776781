// =============================================================================
// AgentTeam 主入口
// =============================================================================
// 使用方法:
//
//	agentteam run --team team.yaml --task "write a parser"
//	agentteam run --team team.yaml --resume <session-id>
//	agentteam validate team.yaml
//	agentteam version
//
// 全局参数 --config 指定运行器配置文件（YAML），AGENTTEAM_* 环境变量覆盖文件值。
// =============================================================================

package main

import (
	"os"
)

// =============================================================================
// 📦 版本信息（构建时注入）
// =============================================================================

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if err := newRootCmd(newApp()).Execute(); err != nil {
		os.Exit(1)
	}
}
