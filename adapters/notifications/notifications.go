// Package notifications 对外通知适配器
package notifications

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"allocation/logging"
)

// INotifier 向目的地址发送一条文本通知
type INotifier interface {
	Send(ctx context.Context, destination, message string) error
}

// Config 通知配置；APIKey 为空时使用 LogNotifier
type Config struct {
	APIKey           string `yaml:"sendgrid_api_key"`
	FromAddress      string `yaml:"from_address"`
	FromName         string `yaml:"from_name"`
	StockDestination string `yaml:"stock_destination"`
}

// New 根据配置选择实现
func New(cfg Config) INotifier {
	if cfg.APIKey == "" {
		return NewLogNotifier()
	}
	return NewEmailNotifier(cfg)
}

type mailSender interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// EmailNotifier 通过 SendGrid 发送邮件
type EmailNotifier struct {
	client mailSender
	from   *mail.Email
	logger logging.Logger
}

func NewEmailNotifier(cfg Config) *EmailNotifier {
	return newEmailNotifier(sendgrid.NewSendClient(cfg.APIKey), cfg)
}

func newEmailNotifier(client mailSender, cfg Config) *EmailNotifier {
	from := cfg.FromAddress
	if from == "" {
		from = "allocations@example.com"
	}
	name := cfg.FromName
	if name == "" {
		name = "Allocation Service"
	}
	return &EmailNotifier{
		client: client,
		from:   mail.NewEmail(name, from),
		logger: logging.ComponentLogger("notifications.email"),
	}
}

// Send 状态码 >= 400 视为失败
func (n *EmailNotifier) Send(ctx context.Context, destination, message string) error {
	if destination == "" {
		return fmt.Errorf("email notifier: empty destination")
	}
	email := mail.NewSingleEmailPlainText(n.from, subjectOf(message), mail.NewEmail("", destination), message)
	resp, err := n.client.SendWithContext(ctx, email)
	if err != nil {
		return fmt.Errorf("sendgrid send to %s: %w", destination, err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid send to %s failed: status=%d body=%s", destination, resp.StatusCode, resp.Body)
	}
	n.logger.Info(ctx, "notification sent", logging.String("to", destination), logging.Int("status", resp.StatusCode))
	return nil
}

// 主题取正文首行
func subjectOf(message string) string {
	subject, _, _ := strings.Cut(message, "\n")
	return subject
}

// SentHistory LogNotifier 保留的最近通知条数
const SentHistory = 100

// LogNotifier 只写日志，同时保留最近 SentHistory 条已发送记录供查询
type LogNotifier struct {
	logger logging.Logger
	mu     sync.Mutex
	sent   []Sent
}

// Sent 一条已发送的通知
type Sent struct {
	Destination string
	Message     string
}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{logger: logging.ComponentLogger("notifications.log")}
}

func (n *LogNotifier) Send(ctx context.Context, destination, message string) error {
	n.mu.Lock()
	n.sent = append(n.sent, Sent{Destination: destination, Message: message})
	if len(n.sent) > SentHistory {
		n.sent = append(n.sent[:0:0], n.sent[len(n.sent)-SentHistory:]...)
	}
	n.mu.Unlock()
	n.logger.Info(ctx, "notification", logging.String("to", destination), logging.String("message", message))
	return nil
}

// Sent 按发送顺序返回最近通知的副本
func (n *LogNotifier) Sent() []Sent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Sent(nil), n.sent...)
}
