package scheduler

import (
	"github.com/foxseedlab/callinsight/internal/config"
	"github.com/foxseedlab/callinsight/internal/logger"
	"github.com/foxseedlab/callinsight/internal/metrics"
	"github.com/foxseedlab/callinsight/internal/repository"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Reaper, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return NewReaper(
			do.MustInvoke[repository.Repository](i),
			cfg.ReaperSchedule,
			cfg.ReaperStaleAfter,
			do.MustInvoke[*metrics.Metrics](i),
			do.MustInvoke[*logger.Logger](i),
		), nil
	})
}
