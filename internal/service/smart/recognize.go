package smart

// Strategy 是一个独立的识别策略,识别失败返回 ok=false
type Strategy[In, Out any] struct {
	Name      string
	Recognize func(in In) (Out, bool)
}

// Chain 按顺序尝试各个策略,取第一个成功的结果
type Chain[In, Out any] []Strategy[In, Out]

func (c Chain[In, Out]) Apply(in In) (out Out, name string, ok bool) {
	for _, s := range c {
		if v, ok := s.Recognize(in); ok {
			return v, s.Name, true
		}
	}
	return out, "", false
}
