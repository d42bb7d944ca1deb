package events

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl/plain"
)

// KafkaPublisher пишет события в топик в формате JSON.
// Отправка асинхронная: запрос не ждет брокер
type KafkaPublisher struct {
	writer    *kafka.Writer
	sentCount int64
	failCount int64
}

// NewKafkaPublisher создает producer для списка брокеров через запятую
func NewKafkaPublisher(brokers, topic, username, password, caCert string) (*KafkaPublisher, error) {
	brokerList := ParseKafkaBrokers(brokers)
	if len(brokerList) == 0 {
		return nil, fmt.Errorf("no Kafka brokers provided")
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokerList...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{}, // События одной сущности попадают в одну партицию
		Transport:              CreateKafkaTransport(username, password, caCert),
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
	}
	log.Printf("✅ Kafka producer подключен к %s (topic: %s)", brokers, topic)
	return &KafkaPublisher{writer: writer}, nil
}

// Publish сериализует событие и отправляет его в фоне с собственным таймаутом
// (ctx запроса может быть отменен раньше, чем брокер ответит)
func (p *KafkaPublisher) Publish(_ context.Context, event Event) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("ошибка сериализации события %s: %w", event.Type, err)
	}

	msg := kafka.Message{
		Key:   []byte(event.MerchantID + ":" + event.Key),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	}

	go func() {
		bgCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := p.writer.WriteMessages(bgCtx, msg); err != nil {
			atomic.AddInt64(&p.failCount, 1)
			log.Printf("⚠️ Kafka error при отправке события %s (%s): %v", event.Type, event.Key, err)
			return
		}
		if atomic.AddInt64(&p.sentCount, 1) <= 10 {
			log.Printf("📡 Kafka: отправлено событие %s (%s)", event.Type, event.Key)
		}
	}()
	return nil
}

// Close закрывает Kafka writer
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// CreateKafkaTransport создает транспорт с поддержкой SASL/PLAIN и TLS (для Aiven)
func CreateKafkaTransport(username, password, caCert string) *kafka.Transport {
	transport := &kafka.Transport{
		DialTimeout: 10 * time.Second,
	}

	if username != "" && password != "" {
		transport.SASL = plain.Mechanism{
			Username: username,
			Password: password,
		}
		log.Printf("🔐 Kafka: SASL/PLAIN аутентификация включена (username: %s)", username)
	}

	// Aiven требует TLS для SASL; с CA сертификатом TLS включаем всегда
	if transport.SASL != nil || caCert != "" {
		tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}
		if caCert != "" {
			pool := x509.NewCertPool()
			if pool.AppendCertsFromPEM([]byte(caCert)) {
				tlsConfig.RootCAs = pool
				log.Printf("🔒 Kafka: TLS с CA сертификатом включен")
			} else {
				log.Printf("⚠️ Kafka: не удалось распарсить CA сертификат, используем системные сертификаты")
			}
		}
		transport.TLS = tlsConfig
	}

	return transport
}

// ParseKafkaBrokers парсит строку с брокерами (может быть через запятую)
func ParseKafkaBrokers(brokers string) []string {
	var result []string
	for _, broker := range strings.Split(strings.ReplaceAll(brokers, " ", ""), ",") {
		if broker != "" {
			result = append(result, broker)
		}
	}
	return result
}
