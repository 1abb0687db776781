package declarative

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================
// YAMLLoader tests
// ============================================================

const reviewTeamYAML = `
name: review-team
description: writes and reviews code
version: "1.0"
protocol: hierarchical
protocol_options:
  supervisor: Mediator
max_iterations: 6
mediator:
  finish_marker: DONE
  max_retries: 2
  retry_delay: 5ms
  history_window: 4
  interceptors:
    - type: loop_breaker
      threshold: 3
    - type: approval
      approver: auto_approve
      routes: [Reviewer]
      timeout: 2s
agents:
  - name: Coder
    description: writes code
    system_prompt: You write Go.
    model: gpt-4o
    history_window: 3
  - name: Reviewer
    description: reviews code
graph:
  nodes:
    - name: start
      kind: start
      edges: [{to: Mediator}]
    - name: Mediator
      kind: activity
    - name: Coder
      kind: activity
      edges: [{to: Mediator}]
    - name: Reviewer
      kind: activity
      edges: [{to: Mediator}]
    - name: end
      kind: end
metadata:
  owner: platform
`

func TestYAMLLoader_LoadFile_YAML(t *testing.T) {
	t.Parallel()

	path := writeTemp(t, "team.yaml", reviewTeamYAML)
	def, err := NewYAMLLoader().LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "review-team", def.Name)
	assert.Equal(t, "writes and reviews code", def.Description)
	assert.Equal(t, "1.0", def.Version)
	assert.Equal(t, "hierarchical", def.Protocol)
	assert.Equal(t, "Mediator", def.ProtocolOptions.Supervisor)
	assert.Equal(t, 6, def.MaxIterations)
	assert.Equal(t, "platform", def.Metadata["owner"])

	require.NotNil(t, def.Mediator)
	assert.Equal(t, "DONE", def.Mediator.FinishMarker)
	assert.Equal(t, 2, def.Mediator.MaxRetries)
	assert.Equal(t, 5*time.Millisecond, def.Mediator.RetryDelay)
	require.Len(t, def.Mediator.Interceptors, 2)
	assert.Equal(t, "approval", def.Mediator.Interceptors[1].Type)
	assert.Equal(t, []string{"Reviewer"}, def.Mediator.Interceptors[1].Routes)
	assert.Equal(t, 2*time.Second, def.Mediator.Interceptors[1].Timeout)

	require.Len(t, def.Agents, 2)
	assert.Equal(t, "Coder", def.Agents[0].Name)
	assert.Equal(t, "gpt-4o", def.Agents[0].Model)
	assert.Equal(t, 3, def.Agents[0].HistoryWindow)
	assert.Equal(t, AgentTypeLLM, agentType(def.Agents[1]))

	require.Len(t, def.Graph.Nodes, 5)
	assert.Equal(t, []EdgeDefinition{{To: "Mediator"}}, def.Graph.Nodes[0].Edges)
}

func TestYAMLLoader_LoadFile_JSON(t *testing.T) {
	t.Parallel()

	content := `{
  "name": "pair",
  "protocol": "none",
  "agents": [{"name": "Writer", "type": "llm", "bid": true}],
  "graph": {"nodes": [
    {"name": "start", "kind": "start", "edges": [{"to": "Writer"}]},
    {"name": "Writer", "kind": "activity", "edges": [{"to": "end", "when": "last_output != \"\""}]},
    {"name": "end", "kind": "end"}
  ]}
}`
	path := writeTemp(t, "team.json", content)
	def, err := NewYAMLLoader().LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "pair", def.Name)
	assert.True(t, def.Agents[0].Bid)
	assert.Equal(t, `last_output != ""`, def.Graph.Nodes[1].Edges[0].When)
}

func TestYAMLLoader_EnvExpansion(t *testing.T) {
	t.Setenv("AGENTTEAM_TEST_MODEL", "claude-sonnet")

	content := "name: t\nagents:\n  - name: A\n    model: ${AGENTTEAM_TEST_MODEL}\n"

	def, err := NewYAMLLoader().LoadBytes([]byte(content), "yaml")
	require.NoError(t, err)
	assert.Equal(t, "claude-sonnet", def.Agents[0].Model)

	def, err = NewYAMLLoader().WithoutEnvExpansion().LoadBytes([]byte(content), "yaml")
	require.NoError(t, err)
	assert.Equal(t, "${AGENTTEAM_TEST_MODEL}", def.Agents[0].Model)
}

func TestYAMLLoader_Errors(t *testing.T) {
	t.Parallel()

	loader := NewYAMLLoader()

	_, err := loader.LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "read team definition file")

	_, err = loader.LoadFile(writeTemp(t, "team.toml", "name = 'x'"))
	assert.ErrorContains(t, err, "unsupported file extension")

	_, err = loader.LoadBytes([]byte("name: [unclosed"), "yaml")
	assert.ErrorContains(t, err, "parse YAML")

	_, err = loader.LoadBytes([]byte("{"), "json")
	assert.ErrorContains(t, err, "parse JSON")

	_, err = loader.LoadBytes([]byte("name: x"), "xml")
	assert.ErrorContains(t, err, "unsupported format")
}

func TestDetectFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		want string
	}{
		{"team.yaml", "yaml"},
		{"team.YML", "yaml"},
		{"dir/team.json", "json"},
		{"team.txt", ""},
		{"team", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, detectFormat(tt.path), tt.path)
	}
}

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}
