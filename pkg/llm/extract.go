package llm

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

var errNoJSONObject = errors.New("no JSON object found in reply")

// fencePattern matches Markdown code fences such as ```json ... ``` anywhere in
// the reply.
var fencePattern = regexp.MustCompile("(?s)```[a-zA-Z0-9_-]*[ \t]*\n?(.*?)```")

// ExtractJSONObject returns the JSON object contained in a model reply.
//
// Replies are tried in this order: the whole text, the content of each Markdown
// code fence, then every balanced {...} span in the text. The first candidate
// that parses as a JSON object wins.
func ExtractJSONObject(reply string) (json.RawMessage, error) {
	s := strings.TrimSpace(reply)

	if obj, ok := asObject(s); ok {
		return obj, nil
	}

	for _, m := range fencePattern.FindAllStringSubmatch(s, -1) {
		if obj, ok := asObject(strings.TrimSpace(m[1])); ok {
			return obj, nil
		}
	}

	for start := strings.IndexByte(s, '{'); start >= 0; {
		if end := matchBrace(s, start); end > start {
			if obj, ok := asObject(s[start : end+1]); ok {
				return obj, nil
			}
		}
		next := strings.IndexByte(s[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}

	return nil, errNoJSONObject
}

func asObject(s string) (json.RawMessage, bool) {
	if !strings.HasPrefix(s, "{") || !json.Valid([]byte(s)) {
		return nil, false
	}
	return json.RawMessage(s), true
}

// matchBrace returns the index of the brace closing the one at start, skipping
// braces inside JSON strings, or -1.
func matchBrace(s string, start int) int {
	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
