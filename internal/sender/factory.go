package sender

import (
	"fmt"
	"strings"

	"cycleagent/internal/logger"
	"cycleagent/internal/settings"
)

// NewSender creates a Sender based on the configuration.
func NewSender(cfg settings.SenderConfig) (Sender, error) {
	senderType := strings.ToLower(cfg.Type)
	if senderType == "" {
		senderType = "file"
	}

	log := logger.WithComponent("sender-factory")
	log.Info().
		Str("sender_type", senderType).
		Msg("Creating sender")

	switch senderType {
	case "kafka":
		return NewKafkaSender(cfg.Kafka, cfg.SOCKSProxy)
	case "redis":
		return NewRedisSender(cfg.Redis, cfg.SOCKSProxy)
	case "file":
		return NewFileSender(cfg.File)
	default:
		return nil, fmt.Errorf("unknown sender type: %s (supported: file, kafka, redis)", senderType)
	}
}
