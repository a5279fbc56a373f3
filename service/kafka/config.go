package kafka

import (
	"strings"
	"time"

	"PPSocket/tools/errs"

	"github.com/Shopify/sarama"
)

type Config struct {
	Brokers           []string
	GroupID           string
	Topic             string
	Version           string // 例如 2.1.0
	InitialOffset     string // newest/oldest
	AutoCreateTopic   bool
	Partitions        int32
	ReplicationFactor int16
}

func BuildConfig(c Config) (*sarama.Config, error) {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_1_0_0
	if c.Version != "" {
		v, err := sarama.ParseKafkaVersion(c.Version)
		if err != nil {
			return nil, errs.ErrArgs.WrapMsg("kafka version", "version", c.Version, "err", err)
		}
		cfg.Version = v
	}

	switch strings.ToLower(c.InitialOffset) {
	case "oldest":
		cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	default:
		cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	}
	cfg.Consumer.Return.Errors = true

	// Net
	cfg.Net.DialTimeout = 10 * time.Second
	cfg.Net.ReadTimeout = 30 * time.Second
	cfg.Net.WriteTimeout = 30 * time.Second
	return cfg, nil
}
