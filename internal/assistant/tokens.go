package assistant

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter returns the number of model tokens in text.
type TokenCounter func(text string) int

// ApproxCounter estimates four characters per token.
func ApproxCounter(text string) int {
	return (len(text) + 3) / 4
}

// NewTiktokenCounter counts with the model's BPE encoding, falling back to
// cl100k_base and then to ApproxCounter when no encoding can be loaded.
func NewTiktokenCounter(model string) TokenCounter {
	var (
		once sync.Once
		enc  *tiktoken.Tiktoken
	)
	return func(text string) int {
		once.Do(func() {
			var err error
			enc, err = tiktoken.EncodingForModel(model)
			if err != nil {
				enc, _ = tiktoken.GetEncoding("cl100k_base")
			}
		})
		if enc == nil {
			return ApproxCounter(text)
		}
		return len(enc.Encode(text, nil, nil))
	}
}
