// Package notifications defines the outbound notification surface the
// payment pipeline consumes. Template content and real delivery transports
// live with the storefront, outside this core.
package notifications

import "context"

type Notification struct {
	ToName    string
	ToAddress string
	Subject   string
	Body      string
	PlainBody string
}

type NotificationService interface {
	Init(conf any) error
	SendNotification(context.Context, *Notification) error
}
