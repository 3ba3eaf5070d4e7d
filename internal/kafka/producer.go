package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/aihub/rag-service/internal/logger"
	"go.uber.org/zap"
)

// Producer 会话轮次审计的Kafka生产者
type Producer struct {
	producer sarama.SyncProducer
	topic    string
}

// TurnMessage 落入审计主题的一轮问答
type TurnMessage struct {
	SessionID       string    `json:"session_id"`
	Question        string    `json:"question"`
	Answer          string    `json:"answer"`
	UsedVectorStore bool      `json:"used_vector_store"`
	SourceCount     int       `json:"source_count"`
	Timestamp       time.Time `json:"timestamp"`
}

// NewProducer 创建同步生产者
func NewProducer(brokers []string, topic string) (*Producer, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Timeout = 10 * time.Second

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("创建Kafka生产者失败: %w", err)
	}

	logger.Info("Kafka生产者初始化成功",
		zap.Strings("brokers", brokers),
		zap.String("topic", topic))

	return &Producer{
		producer: producer,
		topic:    topic,
	}, nil
}

// SendTurn 发送一轮问答到审计主题，按session_id分区保持会话内有序
func (p *Producer) SendTurn(msg *TurnMessage) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("Kafka生产者未初始化")
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("序列化消息失败: %w", err)
	}

	kafkaMsg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(msg.SessionID),
		Value: sarama.ByteEncoder(data),
	}

	partition, offset, err := p.producer.SendMessage(kafkaMsg)
	if err != nil {
		return fmt.Errorf("发送消息失败: %w", err)
	}

	logger.Debug("session turn sent to Kafka",
		zap.String("session_id", msg.SessionID),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset))

	return nil
}

// Close 关闭生产者
func (p *Producer) Close() error {
	if p == nil || p.producer == nil {
		return nil
	}
	return p.producer.Close()
}
