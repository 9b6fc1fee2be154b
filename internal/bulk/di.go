package bulk

import (
	"github.com/foxseedlab/callinsight/internal/analysis"
	"github.com/foxseedlab/callinsight/internal/config"
	"github.com/foxseedlab/callinsight/internal/discord"
	"github.com/foxseedlab/callinsight/internal/events"
	"github.com/foxseedlab/callinsight/internal/language"
	"github.com/foxseedlab/callinsight/internal/logger"
	"github.com/foxseedlab/callinsight/internal/metrics"
	"github.com/foxseedlab/callinsight/internal/repository"
	"github.com/foxseedlab/callinsight/internal/webhook"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Tracker, error) {
		return NewTracker(), nil
	})

	do.Provide(injector, func(i do.Injector) (*Notifier, error) {
		cfg := do.MustInvoke[*config.Config](i)
		wh := do.MustInvoke[webhook.Sender](i)
		dc := do.MustInvoke[discord.Client](i)
		return NewNotifier(wh, dc, cfg.DiscordChannelID, do.MustInvoke[*logger.Logger](i)), nil
	})

	do.Provide(injector, func(i do.Injector) (*Orchestrator, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return NewOrchestrator(
			Config{InterFileDelay: cfg.BulkInterFileDelay},
			do.MustInvoke[repository.Repository](i),
			do.MustInvoke[*analysis.Task](i),
			do.MustInvoke[*Tracker](i),
			do.MustInvoke[events.Publisher](i),
			do.MustInvoke[*Notifier](i),
			do.MustInvoke[*language.Catalog](i),
			do.MustInvoke[*metrics.Metrics](i),
			do.MustInvoke[*logger.Logger](i),
		), nil
	})
}
