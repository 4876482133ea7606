package notifications

import (
	"fmt"

	"github.com/keepsakeprints/backend/db"
	"github.com/keepsakeprints/backend/internal"
)

// OrderConfirmation builds the purchase confirmation mail for a paid order.
func OrderConfirmation(order *db.Order) *Notification {
	amount := internal.FormatDisplay(order.AmountPaid, "$")
	plain := fmt.Sprintf("Thanks for your order! Your %s of %q is on its way to production. Amount charged: %s.",
		order.ProductName, order.MemoryTitle, amount)
	return &Notification{
		ToName:    order.CustomerName,
		ToAddress: order.CustomerEmail,
		Subject:   "Your keepsake order is confirmed",
		Body: fmt.Sprintf("<p>Thanks for your order!</p><p>Your <b>%s</b> of <i>%s</i> is on its way to production.</p><p>Amount charged: %s.</p>",
			order.ProductName, order.MemoryTitle, amount),
		PlainBody: plain,
	}
}

// SubscriptionActivated builds the welcome mail for a newly active plan.
func SubscriptionActivated(sub *db.Subscription, toName, toAddress string) *Notification {
	return &Notification{
		ToName:    toName,
		ToAddress: toAddress,
		Subject:   fmt.Sprintf("Welcome to the %s plan", sub.PackageName),
		Body: fmt.Sprintf("<p>Your <b>%s</b> plan is now active, billed %s.</p>",
			sub.PackageName, sub.BillingCycle),
		PlainBody: fmt.Sprintf("Your %s plan is now active, billed %s.",
			sub.PackageName, sub.BillingCycle),
	}
}
