package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/BaSui01/agentteam/agent/hitl"
	"github.com/BaSui01/agentteam/config"
	"github.com/BaSui01/agentteam/llm"
	"github.com/BaSui01/agentteam/llm/providers"
	"github.com/BaSui01/agentteam/llm/providers/anthropic"
	"github.com/BaSui01/agentteam/llm/providers/openai"
	"go.uber.org/zap"
)

// approverPrompt 在终端逐条询问审批的 approver 名称
const approverPrompt = "prompt"

// newProvider 按配置构造默认 Provider
func newProvider(cfg config.LLMConfig, logger *zap.Logger) (llm.Provider, error) {
	base := providers.BaseProviderConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Timeout: cfg.Timeout,
	}
	switch cfg.DefaultProvider {
	case "openai":
		return openai.NewOpenAIProvider(providers.OpenAIConfig{BaseProviderConfig: base}, logger), nil
	case "anthropic":
		return anthropic.NewClaudeProvider(providers.ClaudeConfig{BaseProviderConfig: base}, logger), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.DefaultProvider)
	}
}

// promptConsole 在终端回答审批中断：处理器打印问题，读到的下一行经
// ResolveInterrupt 提交。中断超时或运行被取消时处理器随之退出。
type promptConsole struct {
	manager *hitl.InterruptManager
	in      io.Reader
	out     io.Writer
	mu      sync.Mutex // 同一时刻只问一个问题
	once    sync.Once
	lines   <-chan string
	held    *string // 问题关闭后才读到的一行，留给下一个问题
}

// newPromptApprover 构造基于 InterruptManager 的终端审批器，输入读尽后一律拒绝
func newPromptApprover(in io.Reader, out io.Writer, logger *zap.Logger) hitl.Approver {
	manager := hitl.NewInterruptManager(nil, logger)
	c := &promptConsole{manager: manager, in: in, out: out}
	manager.RegisterHandler(hitl.InterruptTypeApproval, c.ask)
	return hitl.NewManagerApprover(manager, 0)
}

// readLines 在后台逐行读取输入，读尽或出错时关闭通道
func readLines(in io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	return lines
}

func (c *promptConsole) ask(ctx context.Context, in *hitl.Interrupt) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ctx.Err() != nil {
		return nil
	}
	// 第一次提问时才开始读输入，validate 之类不提问的命令不占用 stdin
	c.once.Do(func() { c.lines = readLines(c.in) })
	fmt.Fprintf(c.out, "[%s] iteration %v: %s routes to %q\n%s\napprove? [y/N] ",
		in.SessionID, in.Metadata["iteration"], in.Node, in.Route, in.Description)

	line, ok := c.next(ctx)
	if !ok {
		return nil
	}
	if ctx.Err() != nil {
		c.held = &line
		return nil
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return c.manager.ResolveInterrupt(ctx, in.ID, &hitl.Response{
		Approved: answer == "y" || answer == "yes",
		Input:    line,
	})
}

func (c *promptConsole) next(ctx context.Context) (string, bool) {
	if c.held != nil {
		line := *c.held
		c.held = nil
		return line, true
	}
	select {
	case <-ctx.Done():
		return "", false
	case line := <-c.lines:
		return line, true
	}
}
