package app

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"

	"inkwatch/internal/webhook"
	logx "inkwatch/pkg/logx"
)

var errNoWebhookClient = errors.New("webhook client not configured")

// webhookSender forwards to the current webhook client. Reloads swap the
// client without touching the dispatcher.
type webhookSender struct {
	client atomic.Pointer[webhook.Client]
}

func newWebhookSender(cfg webhook.Config) *webhookSender {
	s := &webhookSender{}
	s.client.Store(webhook.NewClient(cfg))
	return s
}

func (s *webhookSender) Apply(cfg webhook.Config) {
	s.client.Store(webhook.NewClient(cfg))
}

func (s *webhookSender) Send(ctx context.Context, msg webhook.Message) error {
	c := s.client.Load()
	if c == nil {
		return errNoWebhookClient
	}
	return c.Send(ctx, msg)
}

// dryRunSender logs the rendered message instead of posting it.
type dryRunSender struct {
	log logx.Logger
}

func (s dryRunSender) Send(ctx context.Context, msg webhook.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	title := ""
	if len(msg.Embeds) > 0 {
		title = msg.Embeds[0].Title
	}
	s.log.Info("dry run: message not posted",
		logx.String("title", title),
		logx.String("content", msg.Content),
		logx.String("body", string(body)),
	)
	return nil
}
