package main

import (
	"fmt"
	"io"
	"os"

	"github.com/BaSui01/agentteam/config"
	"github.com/BaSui01/agentteam/llm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// app 持有命令共享的依赖，测试可替换 provider 构造与输入输出
type app struct {
	in         io.Reader
	out        io.Writer
	configPath string

	newProvider func(cfg config.LLMConfig, logger *zap.Logger) (llm.Provider, error)
}

func newApp() *app {
	return &app{
		in:          os.Stdin,
		out:         os.Stdout,
		newProvider: newProvider,
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "agentteam",
		Short: "AgentTeam runs teams of agents over a workflow graph",
		Long: `AgentTeam drives a team of agents across a workflow graph. A decision
task picks the next agent according to a coordination protocol until the
team produces a final answer.`,
		SilenceUsage: true,
	}
	root.SetOut(a.out)
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "Path to the runner config file (YAML)")

	root.AddCommand(
		newRunCmd(a),
		newValidateCmd(a),
		newVersionCmd(a),
	)
	return root
}

// loadConfig 加载并校验运行器配置
func (a *app) loadConfig() (*config.Config, error) {
	cfg, err := config.NewLoader().WithConfigPath(a.configPath).Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "AgentTeam %s\n", Version)
			fmt.Fprintf(cmd.OutOrStdout(), "  Build Time: %s\n", BuildTime)
			fmt.Fprintf(cmd.OutOrStdout(), "  Git Commit: %s\n", GitCommit)
		},
	}
}
