package kafka

import (
	"errors"

	"PPSocket/tools/errs"

	"github.com/Shopify/sarama"
	"go.uber.org/zap"
)

// EnsureTopic 不存在就创建；已存在不做修改
func EnsureTopic(admin sarama.ClusterAdmin, c Config, log *zap.Logger) error {
	desc, err := admin.DescribeTopics([]string{c.Topic})
	if err == nil && len(desc) == 1 && desc[0].Err == sarama.ErrNoError {
		log.Info("[Topic] exists", zap.String("topic", c.Topic), zap.Int("partitions", len(desc[0].Partitions)))
		return nil
	}

	partitions, rf := c.Partitions, c.ReplicationFactor
	if partitions <= 0 {
		partitions = 1
	}
	if rf <= 0 {
		rf = 1
	}
	td := &sarama.TopicDetail{
		NumPartitions:     partitions,
		ReplicationFactor: rf,
		ConfigEntries: map[string]*string{
			"cleanup.policy":                 strPtr("delete"),
			"unclean.leader.election.enable": strPtr("false"),
		},
	}
	if err := admin.CreateTopic(c.Topic, td, false); err != nil {
		var te *sarama.TopicError
		if errors.Is(err, sarama.ErrTopicAlreadyExists) || (errors.As(err, &te) && te.Err == sarama.ErrTopicAlreadyExists) {
			log.Info("[Topic] exists (race)", zap.String("topic", c.Topic))
			return nil
		}
		return errs.WrapMsg(err, "create topic", "topic", c.Topic)
	}
	log.Info("[Topic] created", zap.String("topic", c.Topic), zap.Int32("partitions", partitions), zap.Int16("rf", rf))
	return nil
}

func strPtr(s string) *string { return &s }
