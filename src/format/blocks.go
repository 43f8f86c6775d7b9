package format

import (
	"regexp"
	"strings"
)

// Kind classifies a display block.
type Kind int

const (
	Text Kind = iota
	Numbered
	Bulleted
	Code
)

// Block is one unit of presenter output.
type Block struct {
	Kind Kind
	Text string
}

var numbered = regexp.MustCompile(`^\d+\.\s`)

// Blocks splits plain text into display blocks: one per non-empty line, with
// everything between CodeStart and CodeEnd forming a single Code block.
func Blocks(plain string) []Block {
	var (
		out    []Block
		code   []string
		inCode bool
	)
	for _, raw := range strings.Split(plain, "\n") {
		line := strings.TrimSpace(raw)
		if inCode {
			if line == CodeEnd {
				out = append(out, Block{Kind: Code, Text: strings.Join(code, "\n")})
				code, inCode = nil, false
				continue
			}
			code = append(code, strings.TrimRight(raw, " \t"))
			continue
		}
		switch {
		case line == "":
		case line == CodeStart:
			inCode = true
		case numbered.MatchString(line):
			out = append(out, Block{Kind: Numbered, Text: line})
		case strings.HasPrefix(line, Bullet):
			out = append(out, Block{Kind: Bulleted, Text: line})
		default:
			out = append(out, Block{Kind: Text, Text: line})
		}
	}
	if inCode {
		out = append(out, Block{Kind: Code, Text: strings.Join(code, "\n")})
	}
	return out
}
