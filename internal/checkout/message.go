package checkout

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const greeting = "Hello! I would like to order:"

// MessageOptions controls how an order message is rendered.
type MessageOptions struct {
	Currency currency.Unit
	Language language.Tag
}

func (o MessageOptions) printer() *message.Printer {
	tag := o.Language
	if tag == language.Und {
		tag = language.English
	}
	return message.NewPrinter(tag)
}

func (o MessageOptions) money(p *message.Printer, amount float64) string {
	return fmt.Sprintf("%s %s", o.Currency.String(), p.Sprintf("%.2f", amount))
}

// BuildMessage renders the cart as the plain-text order a customer sends to the
// shop. Amounts are rounded to cents here and nowhere earlier.
func BuildMessage(snap domain.Snapshot, opts MessageOptions) string {
	p := opts.printer()

	var b strings.Builder
	b.WriteString(greeting)
	b.WriteString("\n")
	for _, item := range snap.Items {
		name := item.Name
		if item.Category != "" {
			name = fmt.Sprintf("%s (%s)", item.Name, item.Category)
		}
		fmt.Fprintf(&b, "- %d x %s: %s\n", item.Quantity, name, opts.money(p, item.Subtotal()))
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "Total items: %d\n", snap.TotalItems)
	fmt.Fprintf(&b, "Total: %s", opts.money(p, snap.TotalPrice))
	return b.String()
}

// ChatLink builds a wa.me deep link that opens a chat with phone and the text
// prefilled. Non-digit characters in phone are dropped.
func ChatLink(phone, text string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, phone)

	escaped := strings.ReplaceAll(url.QueryEscape(text), "+", "%20")
	return fmt.Sprintf("https://wa.me/%s?text=%s", digits, escaped)
}
