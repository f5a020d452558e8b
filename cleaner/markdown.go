// Package cleaner turns scraped HTML into text fit for a completion prompt.
package cleaner

import (
	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
)

// Markdown converts HTML fragments to Markdown. It is safe for concurrent use.
type Markdown struct {
	conv *converter.Converter
}

// NewMarkdown builds a converter with minimal table padding.
func NewMarkdown() *Markdown {
	return &Markdown{conv: converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(
				table.WithCellPaddingBehavior(table.CellPaddingBehaviorMinimal),
			),
		),
	)}
}

// Convert renders fragment as Markdown. domain resolves relative links.
func (m *Markdown) Convert(fragment, domain string) (string, error) {
	return m.conv.ConvertString(fragment, converter.WithDomain(domain))
}
