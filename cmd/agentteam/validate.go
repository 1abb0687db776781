package main

import (
	"fmt"

	"github.com/BaSui01/agentteam/agent/declarative"
	"github.com/spf13/cobra"
)

func newValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <team.yaml>...",
		Short: "Check team definitions without running them",
		Long: `Loads each team definition and reports every problem found: unknown
protocols, dangling graph edges, malformed guard expressions and missing
members.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loader := declarative.NewYAMLLoader()
			factory := declarative.NewTeamFactory(
				declarative.WithApprover(approverPrompt, newPromptApprover(a.in, cmd.OutOrStdout(), nil)),
			)

			failed := 0
			for _, path := range args {
				def, err := loader.LoadFile(path)
				if err == nil {
					err = factory.Validate(def)
				}
				if err != nil {
					failed++
					fmt.Fprintf(cmd.OutOrStdout(), "✗ %s\n  %v\n", path, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✓ %s (%s, %d agents)\n", path, def.Name, len(def.Agents))
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d team definitions are invalid", failed, len(args))
			}
			return nil
		},
	}
}
