package notify

import (
	"context"
	"fmt"

	slacklib "github.com/slack-go/slack"

	"github.com/tenantd/tenantd/internal/domain"
)

// SlackAPI abstracts the subset of the Slack client used by SlackNotifier.
// This allows testing without real HTTP calls.
type SlackAPI interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slacklib.MsgOption) (string, string, error)
}

// SlackNotifier posts terminal certificate outcomes to an operations
// channel. Notification failures never affect the provisioning outcome;
// callers log and move on.
type SlackNotifier struct {
	api     SlackAPI
	channel string
}

// NewSlackNotifier creates a SlackNotifier posting to the given channel.
func NewSlackNotifier(api SlackAPI, channel string) *SlackNotifier {
	return &SlackNotifier{api: api, channel: channel}
}

// CertIssued announces a successful issuance.
func (n *SlackNotifier) CertIssued(ctx context.Context, tenant *domain.Tenant) error {
	text := fmt.Sprintf(":lock: Certificate issued for *%s* (tenant %s)", tenant.Domain, tenant.Slug)
	if tenant.CertExpiresAt != nil {
		text += fmt.Sprintf(", expires %s", tenant.CertExpiresAt.Format("2006-01-02"))
	}

	_, _, err := n.api.PostMessageContext(ctx, n.channel, slacklib.MsgOptionText(text, false))
	if err != nil {
		return fmt.Errorf("notify.SlackNotifier.CertIssued: %w", err)
	}

	return nil
}

// CertFailed announces a permanent issuance failure.
func (n *SlackNotifier) CertFailed(ctx context.Context, tenant *domain.Tenant, reason string) error {
	text := fmt.Sprintf(":warning: Certificate issuance failed for *%s* (tenant %s) after %d attempts: %s",
		tenant.Domain, tenant.Slug, tenant.CertAttempts, reason)

	_, _, err := n.api.PostMessageContext(ctx, n.channel, slacklib.MsgOptionText(text, false))
	if err != nil {
		return fmt.Errorf("notify.SlackNotifier.CertFailed: %w", err)
	}

	return nil
}
