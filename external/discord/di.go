package discord

import (
	"github.com/foxseedlab/callinsight/internal/config"
	discordpkg "github.com/foxseedlab/callinsight/internal/discord"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (discordpkg.Client, error) {
		c := do.MustInvoke[*config.Config](i)
		if !c.DiscordEnabled() {
			return NoopClient{}, nil
		}
		return NewClient(c.DiscordToken)
	})
}
