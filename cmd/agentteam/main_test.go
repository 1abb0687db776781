package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/BaSui01/agentteam/agent/declarative"
	"github.com/BaSui01/agentteam/agent/hitl"
	"github.com/BaSui01/agentteam/config"
	"github.com/BaSui01/agentteam/llm"
	"github.com/BaSui01/agentteam/testutil/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const soloTeamYAML = `
name: solo
protocol: none
agents:
  - name: Writer
    description: writes things
graph:
  nodes:
    - {name: start, kind: start, edges: [{to: Writer}]}
    - {name: Writer, kind: activity, edges: [{to: end}]}
    - {name: end, kind: end}
`

// ============================================================
// helpers
// ============================================================

type harness struct {
	app      *app
	out      *bytes.Buffer
	provider *mocks.MockProvider
	dir      string
}

func newHarness(t *testing.T, response string) *harness {
	t.Helper()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "agentteam.yaml")
	cfgYAML := "log:\n  level: error\n  output_paths: [stderr]\nstore:\n  type: file\n  base_dir: " +
		filepath.Join(dir, "traces") + "\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfgYAML), 0644))

	provider := mocks.NewMockProvider().WithResponse(response)
	out := &bytes.Buffer{}
	return &harness{
		app: &app{
			in:         strings.NewReader(""),
			out:        out,
			configPath: cfgPath,
			newProvider: func(config.LLMConfig, *zap.Logger) (llm.Provider, error) {
				return provider, nil
			},
		},
		out:      out,
		provider: provider,
		dir:      dir,
	}
}

func (h *harness) execute(args ...string) error {
	root := newRootCmd(h.app)
	root.SetArgs(append([]string{"--config", h.app.configPath}, args...))
	root.SetErr(&bytes.Buffer{})
	return root.Execute()
}

func (h *harness) writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(h.dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// ============================================================
// run
// ============================================================

func TestRunCommand(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "hello world")
	team := h.writeFile(t, "team.yaml", soloTeamYAML)

	require.NoError(t, h.execute("run", "--team", team, "--task", "greet", "--session", "s1"))
	assert.Equal(t, "hello world\n", h.out.String())
	assert.Equal(t, 1, h.provider.GetCallCount())

	// finished sessions are answered from the file store without new model calls
	h.out.Reset()
	require.NoError(t, h.execute("run", "--team", team, "--resume", "s1", "--trace"))
	lines := strings.SplitN(h.out.String(), "\n", 2)
	assert.Equal(t, "hello world", lines[0])
	assert.Contains(t, lines[1], `"Writer"`)
	assert.Equal(t, 1, h.provider.GetCallCount())
}

func TestRunCommand_FlagErrors(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "unused")
	team := h.writeFile(t, "team.yaml", soloTeamYAML)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing team", []string{"run", "--task", "x"}, `"team" not set`},
		{"missing task", []string{"run", "--team", team}, "either --task or --resume"},
		{"both task and resume", []string{"run", "--team", team, "--task", "x", "--resume", "s"}, "mutually exclusive"},
		{"missing definition", []string{"run", "--team", filepath.Join(h.dir, "nope.yaml"), "--task", "x"}, "read team definition file"},
	}
	for _, tt := range tests {
		err := h.execute(tt.args...)
		require.Error(t, err, tt.name)
		assert.Contains(t, err.Error(), tt.want, tt.name)
	}
	assert.Zero(t, h.provider.GetCallCount())
}

func TestRunCommand_Timeout(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "late")
	h.provider.WithDelay(time.Second)
	team := h.writeFile(t, "team.yaml", soloTeamYAML)

	err := h.execute("run", "--team", team, "--task", "x", "--timeout", "20ms")
	require.Error(t, err)
}

// ============================================================
// validate
// ============================================================

func TestValidateCommand(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "")
	good := h.writeFile(t, "good.yaml", soloTeamYAML)
	bad := h.writeFile(t, "bad.yaml", `
name: broken
protocol: hierarchical
agents:
  - name: Writer
graph:
  nodes:
    - {name: start, kind: start, edges: [{to: Writer}]}
    - {name: Writer, kind: activity, edges: [{to: end, when: "route =="}]}
    - {name: end, kind: end}
`)

	require.NoError(t, h.execute("validate", good))
	assert.Contains(t, h.out.String(), "✓ "+good+" (solo, 1 agents)")

	h.out.Reset()
	err := h.execute("validate", good, bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 team definitions are invalid")
	assert.Contains(t, h.out.String(), "✗ "+bad)
	assert.Contains(t, h.out.String(), "needs a mediator")
}

func TestVersionCommand(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "")
	require.NoError(t, h.execute("version"))
	assert.Contains(t, h.out.String(), "AgentTeam dev")
}

// ============================================================
// defaults and approvals
// ============================================================

func TestApplyTeamDefaults(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.LLM.Model = "gpt-4o"

	def := &declarative.TeamDefinition{
		Name:     "outer",
		Mediator: &declarative.MediatorDefinition{FinishMarker: "SHIP"},
		Agents: []declarative.AgentDefinition{
			{Name: "Coder"},
			{Name: "Pinned", Model: "claude-sonnet-4"},
			{Name: "Bids", Type: declarative.AgentTypeBidding},
			{Name: "Inner", Type: declarative.AgentTypeTeam, Team: &declarative.TeamDefinition{
				Agents: []declarative.AgentDefinition{{Name: "Leaf"}},
			}},
		},
	}
	applyTeamDefaults(def, cfg)

	assert.Equal(t, "hierarchical", def.Protocol)
	assert.Equal(t, 10, def.MaxIterations)
	assert.Equal(t, "SHIP", def.Mediator.FinishMarker)
	assert.Equal(t, "gpt-4o", def.Mediator.Model)
	assert.Equal(t, 3, def.Mediator.MaxRetries)
	assert.Equal(t, time.Second, def.Mediator.RetryDelay)

	assert.Equal(t, "gpt-4o", def.Agents[0].Model)
	assert.Equal(t, "claude-sonnet-4", def.Agents[1].Model)
	assert.Empty(t, def.Agents[2].Model)

	inner := def.Agents[3].Team
	assert.Empty(t, inner.Protocol, "teams without a mediator stay on the none protocol")
	assert.Equal(t, "gpt-4o", inner.Agents[0].Model)
}

func TestPromptApprover(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	approver := newPromptApprover(strings.NewReader("y\nno\n"), out, nil)
	ctx := t.Context()

	ok, err := approver.Approve(ctx, approvalRequest("Coder"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = approver.Approve(ctx, approvalRequest("Reviewer"))
	require.NoError(t, err)
	assert.False(t, ok)

	// input exhausted
	ok, err = approver.Approve(ctx, approvalRequest("Coder"))
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Contains(t, out.String(), `routes to "Reviewer"`)
}

func TestPromptApprover_CancelReleasesWait(t *testing.T) {
	t.Parallel()

	pr, pw := io.Pipe()
	t.Cleanup(func() { _ = pw.Close() })
	approver := newPromptApprover(pr, io.Discard, nil)

	ctx, cancel := context.WithCancel(t.Context())
	errCh := make(chan error, 1)
	go func() {
		_, err := approver.Approve(ctx, approvalRequest("Coder"))
		errCh <- err
	}()
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("approver still waiting for input after cancel")
	}

	// 被取消的问题不会吞掉下一行回答
	go func() { _, _ = io.WriteString(pw, "yes\n") }()
	ok, err := approver.Approve(t.Context(), approvalRequest("Reviewer"))
	require.NoError(t, err)
	assert.True(t, ok)
}

func approvalRequest(route string) hitl.ApprovalRequest {
	return hitl.ApprovalRequest{
		SessionID: "s1",
		Node:      "Mediator",
		Route:     route,
		Decision:  route,
		Iteration: 1,
	}
}
