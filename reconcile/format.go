package reconcile

import (
	"strings"

	"github.com/warp/contract-engine/generic"
	"golang.org/x/text/message"
)

// FormatAmount renders whole currency units with the locale's digit
// grouping: 17901600 -> "17.901.600" for the default locale.
func FormatAmount(m generic.Money, loc Locale) string {
	p := message.NewPrinter(loc.tag())
	out := p.Sprintf("%d", m.Int64())

	if loc.ThousandsSeparator == "" {
		return out
	}
	if group := groupSymbol(p); group != "" && group != loc.ThousandsSeparator {
		out = strings.ReplaceAll(out, group, loc.ThousandsSeparator)
	}
	return out
}

// groupSymbol is the separator the printer puts between digit groups.
func groupSymbol(p *message.Printer) string {
	s := p.Sprintf("%d", 1000)
	if len(s) <= 4 {
		return ""
	}
	return strings.Trim(s, "0123456789")
}
