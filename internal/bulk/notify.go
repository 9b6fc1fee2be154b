package bulk

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/foxseedlab/callinsight/internal/discord"
	"github.com/foxseedlab/callinsight/internal/logger"
	"github.com/foxseedlab/callinsight/internal/report"
	"github.com/foxseedlab/callinsight/internal/repository"
	"github.com/foxseedlab/callinsight/internal/webhook"
)

// Notifier announces finished batches over the webhook and Discord. Both are
// best effort; failures are logged.
type Notifier struct {
	webhook          webhook.Sender
	discord          discord.Client
	discordChannelID string
	log              *logger.Logger
}

func NewNotifier(sender webhook.Sender, discordClient discord.Client, discordChannelID string, log *logger.Logger) *Notifier {
	return &Notifier{
		webhook:          sender,
		discord:          discordClient,
		discordChannelID: discordChannelID,
		log:              log.Component("notifier"),
	}
}

func (n *Notifier) BatchCompleted(ctx context.Context, session repository.BulkAnalysisSession, results []repository.BulkFileResult) {
	if n == nil {
		return
	}
	text, err := report.SummaryText(session, results)
	if err != nil {
		n.log.WithError(err).WithField("bulk_session_id", session.ID).Error("failed to render batch summary text")
		return
	}
	filename := report.Filename(session, "summary", "txt")
	entry := n.log.WithField("bulk_session_id", session.ID)

	if n.webhook != nil {
		payload := webhook.BatchWebhookPayload{
			BulkSessionID: session.ID,
			UserID:        session.UserID,
			SessionName:   session.SessionName,
			Language:      session.SourceLanguage,
			TotalFiles:    session.TotalFiles,
			Summary:       session.BatchSummary,
			CompletedAt:   time.Now().UTC(),
		}
		if session.CompletedAt != nil {
			payload.CompletedAt = *session.CompletedAt
		}
		if err := n.webhook.SendBatchSummary(ctx, payload, &webhook.Attachment{Filename: filename, Body: []byte(text)}); err != nil {
			entry.WithField("error", err.Error()).Warn("failed to send batch webhook")
		}
	}

	if n.discord != nil && n.discordChannelID != "" {
		err := n.discord.SendChannelMessageWithFile(discord.FileMessage{
			ChannelID: n.discordChannelID,
			Content:   discordHeadline(session),
			Filename:  filename,
			FileBody:  []byte(text),
		})
		switch {
		case errors.Is(err, discord.ErrChannelNotFound):
			entry.WithField("channel_id", n.discordChannelID).Warn("discord channel not found; check DISCORD_CHANNEL_ID")
		case err != nil:
			entry.WithField("error", err.Error()).Warn("failed to post batch summary to discord")
		}
	}
}

func discordHeadline(s repository.BulkAnalysisSession) string {
	if s.Status == repository.BulkStatusFailed {
		return fmt.Sprintf("Batch **%s** failed: none of %d files could be analyzed.", s.SessionName, s.TotalFiles)
	}
	return fmt.Sprintf("Batch **%s** finished: %d/%d files analyzed, average score %.1f/10. Strongest: %s. Weakest: %s.",
		s.SessionName, s.CompletedFiles, s.TotalFiles, s.AverageOverallScore, s.StrongestArea, s.WeakestArea)
}
