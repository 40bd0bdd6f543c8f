package service

import (
	"context"
	"fmt"
	"strings"

	"webstore-backend/internal/models"

	"github.com/shopspring/decimal"
)

// sendPurchaseConfirmation renders and sends the purchase confirmation for a
// committed checkout.
func (s *cartService) sendPurchaseConfirmation(ctx context.Context, user *models.User, items []models.LineItemView, total decimal.Decimal) error {

	req := &models.EmailNotificationRequest{
		To:          user.Email,
		Subject:     "Your purchase confirmation",
		Content:     renderPurchaseText(user, items, total),
		HTMLContent: renderPurchaseHTML(user, items, total),
	}

	return s.email.Send(ctx, req)
}

func renderPurchaseText(user *models.User, items []models.LineItemView, total decimal.Decimal) string {

	var b strings.Builder

	fmt.Fprintf(&b, "Hi %s,\n\nThank you for your purchase!\n\n", user.Name)

	for _, item := range items {
		fmt.Fprintf(&b, "- %s x%d: %s %s\n", item.ProductName, item.Quantity, item.Cost.StringFixed(2), item.Currency)
	}

	fmt.Fprintf(&b, "\nTotal: %s %s\n", total.StringFixed(2), user.RegionalCurrency)

	return b.String()
}

func renderPurchaseHTML(user *models.User, items []models.LineItemView, total decimal.Decimal) string {

	var b strings.Builder

	fmt.Fprintf(&b, "<p>Hi %s,</p><p>Thank you for your purchase!</p><ul>", user.Name)

	for _, item := range items {
		fmt.Fprintf(&b, "<li>%s x%d: %s %s</li>", item.ProductName, item.Quantity, item.Cost.StringFixed(2), item.Currency)
	}

	fmt.Fprintf(&b, "</ul><p><strong>Total: %s %s</strong></p>", total.StringFixed(2), user.RegionalCurrency)

	return b.String()
}
