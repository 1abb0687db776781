package mediator

import (
	"slices"

	"github.com/BaSui01/agentteam/agent/trace"
)

// TerminationReason 说明决策前检查为何终止。
type TerminationReason string

const (
	ReasonNone          TerminationReason = ""
	ReasonCancelled     TerminationReason = "cancelled"
	ReasonMaxIterations TerminationReason = "max_iterations"
	ReasonLoopDetected  TerminationReason = "loop_detected"
	ReasonFinalAnswer   TerminationReason = "final_answer_set"
	ReasonFinishMarker  TerminationReason = "finish_marker_seen"
)

// LoopDetector 检测路由历史尾部的重复子序列：
// 长度 >= MinPeriod 的片段连续出现 >= MinRepeats 次即视为循环。
type LoopDetector struct {
	MinPeriod  int
	MinRepeats int
}

// DefaultLoopDetector 返回周期 >= 2、重复 >= 2 次的检测器。
func DefaultLoopDetector() LoopDetector {
	return LoopDetector{MinPeriod: 2, MinRepeats: 2}
}

// Detect 返回检测到的循环片段，未检测到时返回 nil。
func (d LoopDetector) Detect(history []string) []string {
	minPeriod := max(d.MinPeriod, 2)
	repeats := max(d.MinRepeats, 2)

	for period := minPeriod; period*repeats <= len(history); period++ {
		tail := history[len(history)-period*repeats:]
		block := tail[len(tail)-period:]
		looping := true
		for r := 0; r < repeats-1 && looping; r++ {
			looping = slices.Equal(tail[r*period:(r+1)*period], block)
		}
		if looping {
			return slices.Clone(block)
		}
	}
	return nil
}

// Guard 在每个决策周期之前按固定顺序检查终止条件。
type Guard struct {
	FinishMarker string
	Loop         LoopDetector
}

// NewGuard 创建使用默认循环检测器的 Guard。
func NewGuard(finishMarker string) Guard {
	return Guard{FinishMarker: finishMarker, Loop: DefaultLoopDetector()}
}

// Check 依次检查：取消、迭代上限、路由循环、最终答案已设置、步骤中出现结束标记。
func (g Guard) Check(tr *trace.Trace) (bool, TerminationReason) {
	switch {
	case tr.Cancelled():
		return true, ReasonCancelled
	case tr.Iteration() >= tr.MaxIterations():
		return true, ReasonMaxIterations
	case g.Loop.Detect(tr.RouteHistory()) != nil:
		return true, ReasonLoopDetected
	}
	if _, ok := tr.FinalAnswer(); ok {
		return true, ReasonFinalAnswer
	}
	// 区分大小写，避免 "finished" 之类的普通措辞误触发
	if tr.StepsContain(g.FinishMarker, false) {
		return true, ReasonFinishMarker
	}
	return false, ReasonNone
}
