package checkout

import (
	"net/url"
	"strings"
	"testing"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/currency"
)

func sampleSnapshot() domain.Snapshot {
	items := []domain.LineItem{
		{ID: "A", Name: "Mug", Category: "kitchen", Price: 20, Quantity: 2},
		{ID: "B", Name: "Tea", Price: 15, Quantity: 1},
	}
	return domain.Snapshot{Items: items, Totals: domain.ComputeTotals(items)}
}

func TestBuildMessage(t *testing.T) {
	msg := BuildMessage(sampleSnapshot(), MessageOptions{Currency: currency.USD})

	want := strings.Join([]string{
		"Hello! I would like to order:",
		"- 2 x Mug (kitchen): USD 40.00",
		"- 1 x Tea: USD 15.00",
		"",
		"Total items: 3",
		"Total: USD 55.00",
	}, "\n")
	assert.Equal(t, want, msg)
}

func TestBuildMessage_RoundsOnlyForDisplay(t *testing.T) {
	items := []domain.LineItem{{ID: "1", Name: "Pen", Price: 3.333, Quantity: 3}}
	snap := domain.Snapshot{Items: items, Totals: domain.ComputeTotals(items)}

	msg := BuildMessage(snap, MessageOptions{Currency: currency.EUR})
	assert.Contains(t, msg, "Total: EUR 10.00")
}

func TestChatLink(t *testing.T) {
	link := ChatLink("+1 (555) 010-9999", "Hi & bye?\nTotal: 5")

	u, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "wa.me", u.Host)
	assert.Equal(t, "/15550109999", u.Path)
	assert.Equal(t, "Hi & bye?\nTotal: 5", u.Query().Get("text"))
	assert.NotContains(t, link, "+")
}
