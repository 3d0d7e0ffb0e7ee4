// Package highlight colors generated SQL and JSON for terminal output.
package highlight

import (
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/charmbracelet/lipgloss"

	"github.com/sheenazien8/mysql2mongo/ui/theme"
)

// SQL highlights MySQL statements.
func SQL(text string) string {
	return render(lexer("mysql"), text)
}

// JSON highlights a JSON document, such as a collection validator.
func JSON(text string) string {
	return render(lexer("json"), text)
}

func lexer(name string) chroma.Lexer {
	l := lexers.Get(name)
	if l == nil {
		l = lexers.Fallback
	}
	return chroma.Coalesce(l)
}

func styles(t *theme.Theme) map[chroma.TokenType]lipgloss.Style {
	c := t.Colors
	return map[chroma.TokenType]lipgloss.Style{
		chroma.Keyword:         lipgloss.NewStyle().Foreground(c.Primary).Bold(true),
		chroma.KeywordType:     lipgloss.NewStyle().Foreground(c.Secondary),
		chroma.KeywordConstant: lipgloss.NewStyle().Foreground(c.Warning),
		chroma.LiteralString:   lipgloss.NewStyle().Foreground(c.Success),
		chroma.LiteralNumber:   lipgloss.NewStyle().Foreground(c.Warning),
		chroma.NameTag:         lipgloss.NewStyle().Foreground(c.Info),
		chroma.NameBuiltin:     lipgloss.NewStyle().Foreground(c.Primary),
		chroma.Comment:         lipgloss.NewStyle().Foreground(c.ForegroundDim).Italic(true),
		chroma.Operator:        lipgloss.NewStyle().Foreground(c.Warning),
		chroma.Punctuation:     lipgloss.NewStyle().Foreground(c.ForegroundDim),
	}
}

// style finds the closest styled ancestor category of tt.
func style(m map[chroma.TokenType]lipgloss.Style, tt chroma.TokenType) (lipgloss.Style, bool) {
	for _, candidate := range []chroma.TokenType{tt, tt.SubCategory(), tt.Category()} {
		if s, ok := m[candidate]; ok {
			return s, true
		}
	}
	return lipgloss.Style{}, false
}

func render(l chroma.Lexer, text string) string {
	if text == "" {
		return text
	}
	iterator, err := l.Tokenise(nil, text)
	if err != nil {
		return text
	}

	m := styles(theme.Current)
	var b strings.Builder
	for token := iterator(); token != chroma.EOF; token = iterator() {
		s, ok := style(m, token.Type)
		if !ok {
			b.WriteString(token.Value)
			continue
		}
		// Multi-line values are styled line by line so lipgloss does not pad them.
		for i, line := range strings.Split(token.Value, "\n") {
			if i > 0 {
				b.WriteByte('\n')
			}
			if line != "" {
				b.WriteString(s.Render(line))
			}
		}
	}
	return b.String()
}
