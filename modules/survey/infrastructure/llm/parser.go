package llm

import (
	"regexp"
	"strings"
)

// blockRE matches one "QuestionN / CommentN / ThemeN" answer block. Blocks
// are separated by a blank line; the last block may end at end of input.
var blockRE = regexp.MustCompile(
	`(?is)question\s*\d+\s*:\s*(.+?)\s*[\r\n]+comment\s*\d+\s*:\s*(.+?)\s*[\r\n]+theme\s*\d+\s*:\s*(.+?)\s*(?:[\r\n]\s*[\r\n]|\z)`,
)

// ParseBlocks extracts answer blocks from raw model output. Text outside the
// expected shape is ignored; a block line without at least three " - "
// separated fields contributes no finding.
func ParseBlocks(raw string) []Block {
	var blocks []Block
	for _, m := range blockRE.FindAllStringSubmatch(strings.TrimSpace(raw), -1) {
		block := Block{
			Question: strings.TrimSpace(m[1]),
			Comment:  strings.TrimSpace(m[2]),
		}
		for _, chunk := range strings.Split(m[3], "|") {
			part := strings.TrimRight(strings.TrimSpace(chunk), ".")
			if part == "" {
				continue
			}
			bits := strings.Split(part, " - ")
			if len(bits) < 3 {
				continue
			}
			for i := range bits {
				bits[i] = strings.Trim(strings.TrimSpace(bits[i]), `'"`)
			}
			block.Findings = append(block.Findings, Finding{
				Theme:    bits[0],
				Intent:   bits[1],
				Clipping: strings.Join(bits[2:], " - "),
			})
		}
		blocks = append(blocks, block)
	}
	return blocks
}
