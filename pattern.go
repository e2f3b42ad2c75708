package boreas

import (
	"errors"

	"github.com/grafana/regexp"
)

// Pattern represents a compiled route pattern used for matching request paths.
// Patterns are made of literal text and named placeholders ('/users/{id}').
// A placeholder matches one or more non-slash characters. When strict slashes
// are disabled each placeholder also tolerates a single trailing slash. Use
// NewPattern to create patterns from template strings.
type Pattern struct {
	template      string
	strictSlashes bool
	chunks        []patternChunk
	regExp        *regexp.Regexp
}

// NewPattern compiles a path template into a pattern. Templates must begin
// with a leading slash and may contain any number of named placeholders in
// curly braces ('/users/{id}', '/repos/{owner}/{name}'). The resulting
// matcher is anchored to the full path. Duplicate placeholder names within
// one template are not guarded against; the underlying matcher keeps the
// last capture and the behavior should not be relied upon.
func NewPattern(template string, strictSlashes bool) (*Pattern, error) {
	chunks, err := parseTemplateChunks(template)
	if err != nil {
		return nil, err
	}

	patternRegExp, err := regExpFromChunks(chunks, strictSlashes)
	if err != nil {
		return nil, err
	}

	pattern := &Pattern{
		template:      template,
		strictSlashes: strictSlashes,
		chunks:        chunks,
		regExp:        patternRegExp,
	}

	return pattern, nil
}

// Match compares a path to the pattern and returns the values captured by
// the pattern's placeholders. If the path matches the pattern, the second
// return value will be true. If the path does not match the pattern, the
// second return value will be false.
func (p *Pattern) Match(path string) (map[string]string, bool) {
	matches := p.regExp.FindStringSubmatch(path)
	if len(matches) == 0 {
		return nil, false
	}

	keys := p.regExp.SubexpNames()

	captures := make(map[string]string, len(keys))
	for i := 1; i < len(keys); i += 1 {
		if keys[i] != "" {
			captures[keys[i]] = matches[i]
		}
	}

	return captures, true
}

// MatchInto is like Match but reuses an existing map instead of allocating a
// new one. The map is cleared before being populated. Returns true if the
// path matches the pattern. This is used internally for performance.
func (p *Pattern) MatchInto(path string, captures *map[string]string) bool {
	matchIndices := p.regExp.FindStringSubmatchIndex(path)
	if len(matchIndices) == 0 {
		return false
	}

	keys := p.regExp.SubexpNames()

	if *captures == nil {
		*captures = make(map[string]string, len(keys))
	}

	for key := range *captures {
		delete(*captures, key)
	}
	for i := 1; i < len(keys); i += 1 {
		if keys[i] != "" {
			startIdx := matchIndices[i*2]
			endIdx := matchIndices[i*2+1]
			if startIdx >= 0 && endIdx >= 0 {
				(*captures)[keys[i]] = path[startIdx:endIdx]
			} else {
				(*captures)[keys[i]] = ""
			}
		}
	}

	return true
}

// PathFor builds a concrete path from the pattern by substituting the given
// values for the pattern's placeholders. If a value is missing for a
// placeholder an error is returned. Values for names the pattern does not
// contain are ignored.
func (p *Pattern) PathFor(params map[string]string) (string, error) {
	path := ""

	for _, currentChunk := range p.chunks {
		switch currentChunk.kind {
		case literalChunk:
			path += currentChunk.text
		case placeholderChunk:
			value, exists := params[currentChunk.key]
			if !exists {
				return "", errors.New("missing required parameter: " + currentChunk.key)
			}
			path += value
		}
	}

	if path == "" {
		path = "/"
	}

	return path, nil
}

// Keys returns the placeholder names in template order.
func (p *Pattern) Keys() []string {
	keys := make([]string, 0, len(p.chunks))
	for _, currentChunk := range p.chunks {
		if currentChunk.kind == placeholderChunk {
			keys = append(keys, currentChunk.key)
		}
	}
	return keys
}

// String returns the template the pattern was compiled from.
func (p *Pattern) String() string {
	return p.template
}

// Source returns the compiled expression. Two patterns with the same source
// match the same paths; route tables use it to detect duplicates.
func (p *Pattern) Source() string {
	return p.regExp.String()
}

type patternChunkKind int

const (
	literalChunk patternChunkKind = iota
	placeholderChunk
)

type patternChunk = struct {
	kind patternChunkKind
	text string
	key  string
}

func isPlaceholderNameRune(r rune) bool {
	return r == '_' ||
		(r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9')
}

func parseTemplateChunks(template string) ([]patternChunk, error) {
	templateRunes := []rune(template)
	templateRunesLen := len(templateRunes)

	if templateRunesLen == 0 || templateRunes[0] != '/' {
		return nil, errors.New("pattern must start with a leading slash")
	}

	var currentChunk *patternChunk
	chunks := make([]patternChunk, 0)
	for i := 0; i < templateRunesLen; i += 1 {
		currentRune := templateRunes[i]

		if currentRune == '{' {
			if currentChunk != nil {
				chunks = append(chunks, *currentChunk)
				currentChunk = nil
			}

			placeholder := patternChunk{kind: placeholderChunk}
			closed := false
			for j := i + 1; j < templateRunesLen; j += 1 {
				if templateRunes[j] == '}' {
					closed = true
					i = j
					break
				}
				if !isPlaceholderNameRune(templateRunes[j]) {
					return nil, errors.New("placeholder names may only contain letters, digits and underscores")
				}
				placeholder.key += string(templateRunes[j])
			}
			if !closed {
				return nil, errors.New("unterminated placeholder in pattern")
			}
			if placeholder.key == "" {
				return nil, errors.New("placeholders must have a name")
			}

			chunks = append(chunks, placeholder)
			continue
		}

		if currentRune == '}' {
			return nil, errors.New("unexpected '}' in pattern")
		}

		if currentChunk == nil {
			currentChunk = &patternChunk{kind: literalChunk}
		}
		currentChunk.text += string(currentRune)
	}
	if currentChunk != nil {
		chunks = append(chunks, *currentChunk)
	}

	return chunks, nil
}

// regExpFromChunks converts parsed template chunks to a regular expression.
// The expression is anchored at both ends. Placeholders match one or more
// non-slash characters; without strict slashes they also swallow a single
// trailing slash, which then appears in the captured value.
func regExpFromChunks(chunks []patternChunk, strictSlashes bool) (*regexp.Regexp, error) {
	regExpStr := "^"
	for _, currentChunk := range chunks {
		switch currentChunk.kind {
		case literalChunk:
			regExpStr += regexp.QuoteMeta(currentChunk.text)
		case placeholderChunk:
			if strictSlashes {
				regExpStr += "(?P<" + currentChunk.key + ">[^\\/]+)"
			} else {
				regExpStr += "(?P<" + currentChunk.key + ">[^\\/]+\\/?)"
			}
		}
	}
	regExpStr += "$"

	regExp, err := regexp.Compile(regExpStr)
	if err != nil {
		return nil, err
	}

	return regExp, nil
}
