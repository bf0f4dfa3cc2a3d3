// Package render substitutes trade data into operator-authored message
// templates. Tokens use single-brace {name} syntax; only the fixed set of
// known placeholder names is ever substituted or stripped, anything else in
// the body is treated as literal text.
package render

import (
	"fmt"
	"html"
	"strconv"
	"strings"

	"signalTrackerBot/internal/domain"
	"signalTrackerBot/internal/ports"
)

// knownFields is the closed set of placeholder names, in documentation order.
var knownFields = []string{
	"pair",
	"side",
	"price",
	"leverage",
	"stop_loss",
	"safebook",
	"target_1",
	"target_2",
	"target_3",
	"notes",
	"time",
}

const timeLayout = "02 Jan 2006 15:04 MST"

// Fields builds the placeholder dictionary for a trade snapshot. Prices are
// rendered with a dollar sign and 4 decimals, leverage as "Nx", free text is
// HTML-escaped. Unset trigger prices map to empty strings and are stripped
// from the rendered output.
func Fields(trade *domain.Trade) map[string]string {
	if trade == nil {
		return map[string]string{}
	}
	return map[string]string{
		"pair":      trade.Pair,
		"side":      string(trade.Side),
		"price":     formatPrice(trade.Price),
		"leverage":  formatLeverage(trade.Leverage),
		"stop_loss": formatPrice(trade.StopLossPrice),
		"safebook":  formatPrice(trade.SafebookPrice),
		"target_1":  formatPrice(trade.Target1Price),
		"target_2":  formatPrice(trade.Target2Price),
		"target_3":  formatPrice(trade.Target3Price),
		"notes":     html.EscapeString(trade.Notes),
		"time":      formatTime(trade),
	}
}

// Render substitutes known placeholders into body. When include is non-empty
// it restricts substitution to its members; afterwards every known token
// still present (empty value or excluded by the allow-list) is stripped so
// no {field} artifact reaches the reader. Unknown tokens are left untouched.
func Render(body string, include []string, fields map[string]string) string {
	allowed := allowSet(include)
	for _, name := range knownFields {
		val := fields[name]
		if val == "" || !allowed[name] {
			continue
		}
		body = strings.ReplaceAll(body, "{"+name+"}", val)
	}
	for _, name := range knownFields {
		body = strings.ReplaceAll(body, "{"+name+"}", "")
	}
	return body
}

// RenderButtons runs the button matrix through the same dictionary,
// preserving the row/column structure.
func RenderButtons(buttons [][]domain.Button, include []string, fields map[string]string) [][]domain.Button {
	if len(buttons) == 0 {
		return nil
	}
	out := make([][]domain.Button, len(buttons))
	for i, row := range buttons {
		out[i] = make([]domain.Button, len(row))
		for j, b := range row {
			out[i][j] = domain.Button{
				Text:         Render(b.Text, include, fields),
				URL:          Render(b.URL, include, fields),
				CallbackData: Render(b.CallbackData, include, fields),
			}
		}
	}
	return out
}

// ValidateTemplate enforces definition-time rules: a simple template must not
// contain any known placeholder token, in its body or its buttons.
func ValidateTemplate(tpl *domain.MessageTemplate) error {
	if tpl.Kind != domain.TemplateSimple {
		return nil
	}
	if name, ok := firstKnownToken(tpl.Body); ok {
		return fmt.Errorf("simple template %q contains placeholder {%s}: %w", tpl.Name, name, ports.ErrValidation)
	}
	for _, row := range tpl.Buttons {
		for _, b := range row {
			for _, s := range []string{b.Text, b.URL, b.CallbackData} {
				if name, ok := firstKnownToken(s); ok {
					return fmt.Errorf("simple template %q button contains placeholder {%s}: %w", tpl.Name, name, ports.ErrValidation)
				}
			}
		}
	}
	return nil
}

func firstKnownToken(s string) (string, bool) {
	for _, name := range knownFields {
		if strings.Contains(s, "{"+name+"}") {
			return name, true
		}
	}
	return "", false
}

func allowSet(include []string) map[string]bool {
	set := make(map[string]bool, len(knownFields))
	if len(include) == 0 {
		for _, name := range knownFields {
			set[name] = true
		}
		return set
	}
	for _, name := range include {
		set[name] = true
	}
	return set
}

func formatPrice(p float64) string {
	if p <= 0 {
		return ""
	}
	return "$" + strconv.FormatFloat(p, 'f', 4, 64)
}

func formatLeverage(lev float64) string {
	if lev <= 0 {
		return ""
	}
	return strconv.FormatFloat(lev, 'f', -1, 64) + "x"
}

func formatTime(trade *domain.Trade) string {
	if trade.CreatedAt.IsZero() {
		return ""
	}
	return trade.CreatedAt.Format(timeLayout)
}
