package events

import (
	"github.com/foxseedlab/callinsight/internal/config"
	"github.com/foxseedlab/callinsight/internal/events"
	"github.com/foxseedlab/callinsight/internal/logger"
	"github.com/foxseedlab/callinsight/internal/metrics"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (events.Publisher, error) {
		c := do.MustInvoke[*config.Config](i)
		return NewKafkaPublisher(KafkaConfig{
			Brokers:             c.KafkaBrokers,
			TopicFileCompleted:  c.KafkaTopicFileCompleted,
			TopicBatchCompleted: c.KafkaTopicBatchCompleted,
		}, do.MustInvoke[*metrics.Metrics](i), do.MustInvoke[*logger.Logger](i)), nil
	})
}
