package model

import (
	"fmt"
	"time"
)

// RunState 是分批导出的断点,每完成一批写入一次
type RunState struct {
	RunID         string    `json:"runId"`
	Active        bool      `json:"active"`
	Start         int       `json:"start"`
	Next          int       `json:"next"`
	End           int       `json:"end"`
	BatchSize     int       `json:"batchSize"`
	ReloadBetween bool      `json:"reloadBetween"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Validate 要求 start <= next <= end 且批大小为正
func (s *RunState) Validate() error {
	if s.Start < 0 || s.Start > s.Next || s.Next > s.End {
		return fmt.Errorf("cursor out of range: start=%d next=%d end=%d", s.Start, s.Next, s.End)
	}
	if s.BatchSize <= 0 {
		return fmt.Errorf("invalid batch size %d", s.BatchSize)
	}
	return nil
}

// Done 游标是否已到达范围末尾
func (s *RunState) Done() bool {
	return s.Next >= s.End
}

// NextBatch 下一批的大小:min(batchSize, end-next)
func (s *RunState) NextBatch() int {
	if s.Done() {
		return 0
	}
	return min(s.BatchSize, s.End-s.Next)
}

// Advance 推进游标,不能后退也不能越过 End
func (s *RunState) Advance(next int) error {
	if next < s.Next || next > s.End {
		return fmt.Errorf("cannot advance cursor from %d to %d (end %d)", s.Next, next, s.End)
	}
	s.Next = next
	return nil
}
