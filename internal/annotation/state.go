package annotation

import (
	"fmt"

	"github.com/banshee-data/progress.report/internal/geometry"
)

// Tool is the active annotation tool.
type Tool string

const (
	ToolNone      Tool = ""
	ToolLength    Tool = "length"
	ToolGirth     Tool = "girth"
	ToolArea      Tool = "area"
	ToolHighlight Tool = "highlight"
	ToolReference Tool = "reference"
)

// ParseTool validates s as a Tool.
func ParseTool(s string) (Tool, error) {
	switch t := Tool(s); t {
	case ToolNone, ToolLength, ToolGirth, ToolArea, ToolHighlight, ToolReference:
		return t, nil
	}
	return ToolNone, fmt.Errorf("unknown tool %q", s)
}

// twoClick reports whether t completes on a second click.
func (t Tool) twoClick() bool {
	return t == ToolLength || t == ToolGirth || t == ToolArea
}

// State is the engine's gesture state. It is either Idle or
// AwaitingSecondPoint; the engine is the only thing that moves between them.
type State interface {
	isState()
	Name() string
}

// Idle means no gesture is in progress.
type Idle struct{}

func (Idle) isState() {}
func (Idle) Name() string { return "idle" }

// AwaitingSecondPoint means a two-click tool has recorded its first point.
type AwaitingSecondPoint struct {
	Tool  Tool
	Start geometry.Point
}

func (AwaitingSecondPoint) isState() {}
func (AwaitingSecondPoint) Name() string { return "awaiting_second_point" }
