package llm

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var reFence = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")

// ErrNoJSON reports model output that carries no recognizable JSON document.
var ErrNoJSON = errors.New("no json document in model output")

// ExtractEnvelope pulls the {"claims": [...]} document out of model text. It
// tolerates code fences, prose around the JSON and a bare top-level array, which
// is wrapped into the envelope.
func ExtractEnvelope(content string) ([]byte, error) {
	s := strings.TrimSpace(content)
	if m := reFence.FindStringSubmatch(s); m != nil {
		s = strings.TrimSpace(m[1])
	}
	if s == "" {
		return nil, ErrNoJSON
	}

	if doc, ok := firstDocument(s); ok {
		if bytes.HasPrefix(doc, []byte("[")) {
			return wrapClaims(doc)
		}
		return doc, nil
	}
	return nil, ErrNoJSON
}

// firstDocument finds the first '{' or '[' that starts a complete JSON value.
func firstDocument(s string) ([]byte, bool) {
	for i := 0; i < len(s); i++ {
		if s[i] != '{' && s[i] != '[' {
			continue
		}
		dec := json.NewDecoder(strings.NewReader(s[i:]))
		var raw json.RawMessage
		if err := dec.Decode(&raw); err == nil {
			return raw, true
		}
	}
	return nil, false
}

func wrapClaims(arr []byte) ([]byte, error) {
	out, err := json.Marshal(map[string]json.RawMessage{"claims": arr})
	if err != nil {
		return nil, fmt.Errorf("wrap claims: %w", err)
	}
	return out, nil
}
