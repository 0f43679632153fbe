package messaging

import (
	"context"
	"fmt"
	"log/slog"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// PushSender delivers a push message to a device token.
type PushSender interface {
	SendPush(ctx context.Context, token, title, body string, data map[string]string) error
}

var _ PushSender = (*FCMSender)(nil)

// FCMSender sends push notifications through Firebase Cloud Messaging.
type FCMSender struct {
	client *messaging.Client
	logger *slog.Logger
}

// NewFCMSender initializes the Firebase app from a credentials file.
func NewFCMSender(ctx context.Context, credentialsFile string, logger *slog.Logger) (*FCMSender, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("failed to init firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to init fcm client: %w", err)
	}
	return &FCMSender{client: client, logger: logger}, nil
}

func (f *FCMSender) SendPush(ctx context.Context, token, title, body string, data map[string]string) error {
	msg := &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
	}
	id, err := f.client.Send(ctx, msg)
	if err != nil {
		return fmt.Errorf("failed to send push message: %w", err)
	}
	f.logger.Debug("push message sent", slog.String("message_id", id))
	return nil
}
