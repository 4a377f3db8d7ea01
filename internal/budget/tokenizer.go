package budget

import (
	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"
)

// CharsPerToken is the rough ratio used when no encoding is available.
const CharsPerToken = 4

const fallbackEncoding = "cl100k_base"

// Tokenizer counts the tokens a piece of text costs.
type Tokenizer interface {
	Count(text string) int
}

// CharEstimator approximates token counts from the text length.
type CharEstimator struct{}

func (CharEstimator) Count(text string) int {
	return len(text) / CharsPerToken
}

type tiktokenizer struct {
	enc *tiktoken.Tiktoken
}

func (t tiktokenizer) Count(text string) int {
	return len(t.enc.Encode(text, nil, nil))
}

// NewTokenizer returns the model's tiktoken encoding, falling back to
// cl100k_base and finally to CharEstimator when no encoding can be loaded.
func NewTokenizer(model string, logger *zap.Logger) Tokenizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	enc, err := tiktoken.EncodingForModel(model)
	if err == nil {
		return tiktokenizer{enc: enc}
	}
	logger.Debug("no encoding for model, using fallback",
		zap.String("model", model),
		zap.String("encoding", fallbackEncoding),
	)
	enc, err = tiktoken.GetEncoding(fallbackEncoding)
	if err == nil {
		return tiktokenizer{enc: enc}
	}
	logger.Warn("token encodings unavailable, estimating from length", zap.Error(err))
	return CharEstimator{}
}
