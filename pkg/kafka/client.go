// Package kafka 提供了向 Kafka 发布合并事件的功能。
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"corpus-dedup/internal/config"
	"corpus-dedup/pkg/log"
	"corpus-dedup/pkg/tasks"

	"github.com/segmentio/kafka-go"
)

// Publisher 是合并事件的 Kafka 生产者。
type Publisher struct {
	writer *kafka.Writer
}

// NewPublisher 初始化 Kafka 生产者。
func NewPublisher(cfg config.KafkaConfig) *Publisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(strings.Split(cfg.Brokers, ",")...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}
	log.Infof("Kafka 生产者初始化成功, topic=%s", cfg.Topic)
	return &Publisher{writer: w}
}

// EncodeMergeEvent 返回消息的 key（聚类 ID，同一聚类的事件落在同一分区）与 JSON 值。
func EncodeMergeEvent(event tasks.MergeEvent) ([]byte, []byte, error) {
	value, err := json.Marshal(event)
	if err != nil {
		return nil, nil, err
	}
	return []byte(fmt.Sprintf("cluster-%d", event.ClusterID)), value, nil
}

// PublishMerge 发送一条合并事件。
func (p *Publisher) PublishMerge(ctx context.Context, event tasks.MergeEvent) error {
	key, value, err := EncodeMergeEvent(event)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{Key: key, Value: value})
}

// Close 刷新并关闭生产者。
func (p *Publisher) Close() error {
	return p.writer.Close()
}
