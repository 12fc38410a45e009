// Package display keeps the public stock message in step with the ledger.
package display

import (
	"fmt"

	"github.com/ZIKOpl/ZIKO-SHOP/internal/domain/chat"
	dominv "github.com/ZIKOpl/ZIKO-SHOP/internal/domain/inventory"
	domorder "github.com/ZIKOpl/ZIKO-SHOP/internal/domain/order"
)

// Branding is the shop-specific text around rendered messages.
type Branding struct {
	ShopName string
	Currency string
}

// WithDefaults fills empty fields with the shop defaults.
func (b Branding) WithDefaults() Branding {
	if b.ShopName == "" {
		b.ShopName = "ZIKO SHOP"
	}
	if b.Currency == "" {
		b.Currency = "€"
	}
	return b
}

// Money formats an amount with the shop currency.
func (b Branding) Money(amount fmt.Stringer) string {
	return amount.String() + b.WithDefaults().Currency
}

const stockHeading = "📦 **Current product stock**"

// RenderStock builds the public stock message: one embed per catalog product,
// in catalog order. It is a pure function of its inputs, so two renders of
// the same snapshot are identical.
func RenderStock(catalog *dominv.Catalog, snap dominv.Tables, b Branding) chat.Message {
	b = b.WithDefaults()
	products := catalog.Products()
	embeds := make([]chat.Embed, 0, len(products))

	for _, p := range products {
		qty := snap.Quantity(p.ID)
		price, ok := snap.Price(p.ID)
		if !ok {
			price = p.Price
		}
		color := chat.ColorGreen
		if qty == 0 {
			color = chat.ColorRed
		}
		embeds = append(embeds, chat.Embed{
			Title:       p.Name,
			Description: fmt.Sprintf("Price: **%s**\nStock: **%d**", b.Money(price), qty),
			Color:       color,
			Thumbnail:   p.Image,
		})
	}
	if n := len(embeds); n > 0 {
		embeds[n-1].Footer = b.ShopName + " - stock updated automatically"
	}

	return chat.Message{Content: stockHeading, Embeds: embeds}
}

// RenderOrder builds the order record embed shared by the fulfillment channel
// and the staff log. greeting names the requester (a mention or display name).
func RenderOrder(o domorder.Order, greeting string, b Branding) chat.Embed {
	b = b.WithDefaults()
	if greeting == "" {
		greeting = o.Requester.DisplayName
	}
	fields := make([]chat.Field, 0, len(o.Lines)+1)
	for _, l := range o.Lines {
		fields = append(fields, chat.Field{
			Name:  l.Name,
			Value: fmt.Sprintf("Quantity: **%d** | Total: **%s**", l.Quantity, b.Money(l.Subtotal())),
		})
	}
	fields = append(fields, chat.Field{Name: "Total", Value: "**" + b.Money(o.Total) + "**"})

	return chat.Embed{
		Title:       "🛒 New order",
		Description: fmt.Sprintf("Thanks %s for your order! 🎉", greeting),
		Color:       chat.ColorRed,
		Fields:      fields,
		Footer:      fmt.Sprintf("%s | order %s", b.ShopName, o.ID),
		Timestamp:   o.CreatedAt,
	}
}
