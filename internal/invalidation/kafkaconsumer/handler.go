package kafkaconsumer

import (
	"context"

	"github.com/IBM/sarama"
)

type groupHandler struct {
	process func(ctx context.Context, msg *sarama.ConsumerMessage) error
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *groupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		// processing errors are logged inside process; the offset is
		// committed either way so a poison message cannot wedge the group
		_ = h.process(sess.Context(), msg)
		sess.MarkMessage(msg, "")
	}
	return nil
}
