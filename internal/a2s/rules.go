package a2s

import (
	"time"

	"github.com/blukai/steamquery/internal/bytebuf"
)

// Rules is a parsed A2S_RULES reply. The protocol does not guarantee
// unique keys, so the pairs are exposed as a map with last write winning
// on duplicates.
type Rules struct {
	Ping  time.Duration
	Rules map[string]string
}

// ParseRules decodes a rules payload positioned just past the response
// type byte.
func ParseRules(r *bytebuf.Reader) (*Rules, error) {
	count, err := r.ReadUint16()
	if err != nil {
		return nil, malformed("rule count", err)
	}

	rules := &Rules{Rules: make(map[string]string, count)}
	for i := 0; i < int(count); i++ {
		key, err := r.ReadCString()
		if err != nil {
			return nil, malformed("rule key", err)
		}
		value, err := r.ReadCString()
		if err != nil {
			return nil, malformed("rule value", err)
		}
		rules.Rules[key] = value
	}
	return rules, nil
}
