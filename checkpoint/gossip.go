package checkpoint

import (
	"context"
	"errors"

	dtcbor "github.com/datatrails/go-datatrails-common/cbor"
	"github.com/datatrails/go-datatrails-common/logger"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/peer"
)

const topicPrefix = "/mountainrange/checkpoints/1.0.0/"

// TopicName is the pubsub topic commitments for logID are gossiped on
func TopicName(logID string) string {
	return topicPrefix + logID
}

// JoinTopic registers a validator for the commitment topic of logID and
// joins it. Messages that don't decode, or that are for another log, are
// rejected and not propagated.
func JoinTopic(ps *pubsub.PubSub, codec dtcbor.CBORCodec, logID string) (*pubsub.Topic, error) {
	name := TopicName(logID)
	err := ps.RegisterTopicValidator(name, func(_ context.Context, _ peer.ID, msg *pubsub.Message) bool {
		var state MMRState
		if err := codec.UnmarshalInto(msg.Data, &state); err != nil {
			return false
		}
		return state.LogID == logID
	})
	if err != nil {
		return nil, err
	}
	return ps.Join(name)
}

// GossipPublisher announces each commitment on a pubsub topic.
type GossipPublisher struct {
	log   logger.Logger
	codec dtcbor.CBORCodec
	topic *pubsub.Topic
}

func NewGossipPublisher(log logger.Logger, codec dtcbor.CBORCodec, topic *pubsub.Topic) *GossipPublisher {
	return &GossipPublisher{
		log:   log,
		codec: codec,
		topic: topic,
	}
}

func (p *GossipPublisher) SetCommitment(ctx context.Context, state MMRState) error {
	data, err := p.codec.MarshalCBOR(state)
	if err != nil {
		return err
	}
	if err = p.topic.Publish(ctx, data); err != nil {
		return err
	}
	p.log.Debugf("gossiped %s at %d", state.LogID, state.MMRSize)
	return nil
}

// Follow subscribes to topic and passes every commitment received to sink,
// typically a Ledger, until ctx is done.
func Follow(ctx context.Context, log logger.Logger, codec dtcbor.CBORCodec, topic *pubsub.Topic, sink Publisher) error {
	sub, err := topic.Subscribe()
	if err != nil {
		return err
	}
	defer sub.Cancel()

	for {
		msg, err := sub.Next(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}

		var state MMRState
		if err := codec.UnmarshalInto(msg.Data, &state); err != nil {
			// the validator should have rejected it
			log.Infof("undecodable commitment from %s: %v", msg.ReceivedFrom, err)
			continue
		}
		if err := sink.SetCommitment(ctx, state); err != nil {
			log.Infof("commitment from %s at %d: %v", msg.ReceivedFrom, state.MMRSize, err)
		}
	}
}
