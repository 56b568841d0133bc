// Package notify delivers notification e-mail over SMTP.
package notify

import (
	"errors"
	"log"
	"sync"

	"gopkg.in/gomail.v2"

	"github.com/CUknot/realty_crm/config"
)

// ErrQueueFull is returned when the outgoing queue cannot take more mail.
var ErrQueueFull = errors.New("mail queue is full")

const defaultQueueSize = 100

// Sender delivers composed messages. *gomail.Dialer satisfies it.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// Mailer queues messages and sends them from a single background worker so
// request handlers never wait on SMTP.
type Mailer struct {
	from   string
	sender Sender
	queue  chan *gomail.Message

	closeOnce sync.Once
	done      chan struct{}
}

// New builds a mailer from configuration. Without SMTP_HOST mail is logged
// and dropped.
func New(cfg config.Config) *Mailer {
	if cfg.SMTPHost == "" {
		log.Println("SMTP_HOST not set, notification e-mail disabled")
		return NewMailer(nil, cfg.SMTPSender, 0)
	}
	dialer := gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword)
	return NewMailer(dialer, cfg.SMTPSender, defaultQueueSize)
}

func NewMailer(sender Sender, from string, queueSize int) *Mailer {
	m := &Mailer{
		from:   from,
		sender: sender,
		done:   make(chan struct{}),
	}
	if sender == nil {
		close(m.done)
		return m
	}
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	m.queue = make(chan *gomail.Message, queueSize)
	go m.run()
	return m
}

func (m *Mailer) run() {
	defer close(m.done)
	for msg := range m.queue {
		if err := m.sender.DialAndSend(msg); err != nil {
			log.Printf("Failed to send email to %v: %v", msg.GetHeader("To"), err)
			continue
		}
		log.Printf("Email successfully sent to %v", msg.GetHeader("To"))
	}
}

// Send queues a plain-text message.
func (m *Mailer) Send(to, subject, body string) error {
	if m.sender == nil {
		log.Printf("mail disabled, dropping %q to %s", subject, to)
		return nil
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	select {
	case m.queue <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting mail and waits for the queue to drain. Send must not
// be called after Close.
func (m *Mailer) Close() {
	m.closeOnce.Do(func() {
		if m.queue != nil {
			close(m.queue)
		}
	})
	<-m.done
}
