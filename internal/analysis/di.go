package analysis

import (
	"github.com/foxseedlab/callinsight/internal/ai"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Task, error) {
		transcriber := do.MustInvoke[ai.Transcriber](i)
		analyzer := do.MustInvoke[ai.TextAnalyzer](i)
		return NewTask(transcriber, analyzer), nil
	})
}
