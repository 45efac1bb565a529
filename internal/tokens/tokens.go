// Package tokens estimates prompt sizes for the context indicator.
package tokens

import "github.com/pkoukk/tiktoken-go"

// Counter counts tokens with the model's encoding when tiktoken knows it,
// falling back to a characters/4 heuristic otherwise.
type Counter struct {
	enc *tiktoken.Tiktoken
}

func NewCounter(model string) *Counter {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, _ = tiktoken.GetEncoding("cl100k_base")
	}
	return &Counter{enc: enc}
}

func (c *Counter) Count(text string) int {
	if c == nil || c.enc == nil {
		return len(text) / 4
	}
	return len(c.enc.Encode(text, nil, nil))
}
