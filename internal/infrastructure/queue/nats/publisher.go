package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/kirillkom/knowledge-pipeline/internal/core/domain"
	"github.com/kirillkom/knowledge-pipeline/internal/infrastructure/resilience"
)

// RecordFiledEvent is published once per record that reaches the knowledge
// directory.
type RecordFiledEvent struct {
	EventID     string              `json:"event_id"`
	RecordID    string              `json:"entry_id"`
	Title       string              `json:"title"`
	Category    string              `json:"category"`
	SubCategory string              `json:"sub_category"`
	Priority    string              `json:"priority"`
	Tags        []string            `json:"tags"`
	Status      domain.RecordStatus `json:"status"`
	Path        string              `json:"path"`
	SourceFile  string              `json:"source_file"`
	FiledAt     time.Time           `json:"filed_at"`
}

type Publisher struct {
	conn     *nats.Conn
	subject  string
	executor *resilience.Executor
	logger   *slog.Logger
	now      func() time.Time
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
	Logger               *slog.Logger
}

func New(url, subject string, options Options) (*Publisher, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 10
	}
	retryOnFailedConnect := false
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := nats.Connect(
		url,
		nats.Name("knowledge-pipeline"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, domain.WrapError(domain.ErrEnvironment, "connect nats", err)
	}
	return &Publisher{
		conn:     conn,
		subject:  subject,
		executor: options.ResilienceExecutor,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// Close flushes pending publishes before closing the connection.
func (p *Publisher) Close() {
	if p.conn == nil {
		return
	}
	if err := p.conn.FlushTimeout(5 * time.Second); err != nil {
		p.logger.Warn("nats_flush_failed", "error", err)
	}
	p.conn.Close()
}

func (p *Publisher) PublishRecordFiled(ctx context.Context, record domain.KnowledgeRecord) error {
	msg, err := newRecordFiledMsg(p.subject, record, p.now())
	if err != nil {
		return err
	}

	call := func(_ context.Context) error {
		if err := p.conn.PublishMsg(msg); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	if p.executor != nil {
		err = p.executor.Execute(ctx, "nats.publish", call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return wrapTemporaryIfNeeded(err)
	}
	return nil
}

// newRecordFiledMsg builds the message; the event id doubles as the
// JetStream dedup header.
func newRecordFiledMsg(subject string, record domain.KnowledgeRecord, now time.Time) (*nats.Msg, error) {
	event := RecordFiledEvent{
		EventID:     uuid.NewString(),
		RecordID:    record.ID,
		Title:       record.Title,
		Category:    record.Category,
		SubCategory: record.SubCategory,
		Priority:    record.Priority,
		Tags:        record.Tags,
		Status:      record.Status,
		Path:        record.Path,
		SourceFile:  record.SourceFile,
		FiledAt:     now.UTC(),
	}
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal record event: %w", err)
	}
	msg := nats.NewMsg(subject)
	msg.Header.Set(nats.MsgIdHdr, event.EventID)
	msg.Header.Set("Entry-Id", record.ID)
	msg.Data = data
	return msg, nil
}
