package evaluation

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// fieldTokenBudget caps free-text product fields before prompt assembly so a
// pasted review dump cannot crowd the completion out of its token window.
const fieldTokenBudget = 512

var (
	encodingOnce sync.Once
	encoding     *tiktoken.Tiktoken
)

func tokenEncoding() *tiktoken.Tiktoken {
	encodingOnce.Do(func() {
		// Errors leave encoding nil and truncation falls back to characters.
		enc, err := tiktoken.EncodingForModel("gpt-4o")
		if err != nil {
			enc, err = tiktoken.GetEncoding("cl100k_base")
		}
		if err == nil {
			encoding = enc
		}
	})
	return encoding
}

// truncateToTokens trims text to at most budget tokens. When the encoder is
// unavailable it approximates with four characters per token.
func truncateToTokens(text string, budget int) string {
	if budget <= 0 || text == "" {
		return text
	}

	if enc := tokenEncoding(); enc != nil {
		ids := enc.Encode(text, nil, nil)
		if len(ids) <= budget {
			return text
		}
		return enc.Decode(ids[:budget])
	}

	runes := []rune(text)
	maxRunes := budget * 4
	if len(runes) <= maxRunes {
		return text
	}
	return string(runes[:maxRunes])
}
