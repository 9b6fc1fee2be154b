package httpapi

import (
	"github.com/foxseedlab/callinsight/internal/analysis"
	"github.com/foxseedlab/callinsight/internal/bulk"
	"github.com/foxseedlab/callinsight/internal/config"
	"github.com/foxseedlab/callinsight/internal/language"
	"github.com/foxseedlab/callinsight/internal/logger"
	"github.com/foxseedlab/callinsight/internal/repository"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Server, error) {
		return NewServer(
			do.MustInvoke[*config.Config](i),
			do.MustInvoke[repository.Repository](i),
			do.MustInvoke[*analysis.Task](i),
			do.MustInvoke[*bulk.Orchestrator](i),
			do.MustInvoke[*bulk.Tracker](i),
			do.MustInvoke[*language.Catalog](i),
			do.MustInvoke[*logger.Logger](i),
		), nil
	})
}
