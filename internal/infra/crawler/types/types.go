package types

import (
	"fmt"
	"strings"
)

// FramePath 是从顶层文档开始的子框架下标序列,顶层为空
type FramePath []int

func (p FramePath) Child(i int) FramePath {
	out := make(FramePath, len(p)+1)
	copy(out, p)
	out[len(p)] = i
	return out
}

func (p FramePath) IsRoot() bool {
	return len(p) == 0
}

func (p FramePath) Equal(o FramePath) bool {
	if len(p) != len(o) {
		return false
	}
	for i := range p {
		if p[i] != o[i] {
			return false
		}
	}
	return true
}

// Ancestors 从自身开始由深到浅返回各级祖先,不含顶层
func (p FramePath) Ancestors() []FramePath {
	out := make([]FramePath, 0, len(p))
	for i := len(p); i > 0; i-- {
		out = append(out, p[:i:i])
	}
	return out
}

// String 形如 top>frame[0]>frame[2]
func (p FramePath) String() string {
	var b strings.Builder
	b.WriteString("top")
	for _, i := range p {
		fmt.Fprintf(&b, ">frame[%d]", i)
	}
	return b.String()
}

// Frame 是一次枚举得到的框架快照,不能跨越等待复用
type Frame struct {
	Path FramePath
	URL  string
	HTML string
	// 仅用于查找,不持有
	Parent *Frame
}
