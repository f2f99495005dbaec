package worker

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"offertpilot/models"
	"offertpilot/utils"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/mail"
	"github.com/sirupsen/logrus"
)

// InboundProcessor handles one normalized inbound email.
type InboundProcessor interface {
	ProcessInbound(ctx context.Context, env models.InboundEnvelope, now time.Time) (*models.InboundResult, error)
}

// IMAPConfig points the inbox worker at the catch-all inbound mailbox.
type IMAPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	Mailbox  string
}

// InboxWorker polls the inbound mailbox and feeds unseen mail to the reply
// handler. A message is flagged \Seen once handled or once it is known it
// can never be handled; other failures are picked up again on the next poll.
type InboxWorker struct {
	cfg       IMAPConfig
	processor InboundProcessor
	logger    *logrus.Entry
}

func NewInboxWorker(cfg IMAPConfig, processor InboundProcessor, logger *logrus.Entry) *InboxWorker {
	if cfg.Mailbox == "" {
		cfg.Mailbox = "INBOX"
	}
	return &InboxWorker{cfg: cfg, processor: processor, logger: logger}
}

func (iw *InboxWorker) Start(ctx context.Context, interval time.Duration) {
	iw.logger.Info("Starting inbox worker...")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := iw.poll(ctx); err != nil {
				utils.LogError("inbox_poll_failed", err, map[string]interface{}{"host": iw.cfg.Host})
			}
		case <-ctx.Done():
			iw.logger.Info("Stopping inbox worker...")
			return
		}
	}
}

// mailbox is the part of an IMAP session the worker drives.
type mailbox interface {
	UidSearch(criteria *imap.SearchCriteria) ([]uint32, error)
	UidFetch(seqset *imap.SeqSet, items []imap.FetchItem, ch chan *imap.Message) error
	UidStore(seqset *imap.SeqSet, item imap.StoreItem, value interface{}, ch chan *imap.Message) error
}

// errUnparseable marks a message that can never become an envelope.
var errUnparseable = errors.New("unparseable inbound message")

// isPermanentInboundError reports whether retrying the message can never
// succeed. Such messages are flagged \Seen so they are not fetched again.
func isPermanentInboundError(err error) bool {
	return errors.Is(err, errUnparseable) || errors.Is(err, models.ErrWorkspaceNotFound)
}

func (iw *InboxWorker) poll(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", iw.cfg.Host, iw.cfg.Port)
	c, err := client.DialTLS(addr, &tls.Config{ServerName: iw.cfg.Host})
	if err != nil {
		return fmt.Errorf("failed to connect to IMAP server: %w", err)
	}
	defer c.Logout()

	if err := c.Login(iw.cfg.Username, iw.cfg.Password); err != nil {
		return fmt.Errorf("failed to login to IMAP server: %w", err)
	}
	if _, err := c.Select(iw.cfg.Mailbox, false); err != nil {
		return fmt.Errorf("failed to select mailbox: %w", err)
	}
	return iw.drain(ctx, c)
}

// drain handles every unseen message in the selected mailbox. Handled and
// permanently failed messages are flagged \Seen; transient failures stay
// unseen for the next poll.
func (iw *InboxWorker) drain(ctx context.Context, mb mailbox) error {
	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	uids, err := mb.UidSearch(criteria)
	if err != nil {
		return fmt.Errorf("failed to search messages: %w", err)
	}
	if len(uids) == 0 {
		return nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)
	section := &imap.BodySectionName{Peek: true}

	messages := make(chan *imap.Message, 10)
	done := make(chan error, 1)
	go func() {
		done <- mb.UidFetch(seqset, []imap.FetchItem{imap.FetchUid, section.FetchItem()}, messages)
	}()

	seen := new(imap.SeqSet)
	for msg := range messages {
		body := msg.GetBody(section)
		if body == nil {
			iw.logger.WithField("uid", msg.Uid).Warn("Message body not returned by server")
			continue
		}
		err := iw.handle(ctx, body)
		switch {
		case err == nil:
			seen.AddNum(msg.Uid)
		case isPermanentInboundError(err):
			iw.logger.WithError(err).WithField("uid", msg.Uid).Warn("Dropping inbound message")
			seen.AddNum(msg.Uid)
		default:
			utils.LogError("inbound_message_failed", err, map[string]interface{}{"uid": msg.Uid})
		}
	}
	if err := <-done; err != nil {
		return fmt.Errorf("error during fetch: %w", err)
	}

	if seen.Empty() {
		return nil
	}
	flags := []interface{}{imap.SeenFlag}
	if err := mb.UidStore(seen, imap.FormatFlagsOp(imap.AddFlags, true), flags, nil); err != nil {
		return fmt.Errorf("failed to flag handled messages: %w", err)
	}
	return nil
}

func (iw *InboxWorker) handle(ctx context.Context, r io.Reader) error {
	env, err := ParseInboundMessage(r)
	if err != nil {
		return fmt.Errorf("%w: %v", errUnparseable, err)
	}
	result, err := iw.processor.ProcessInbound(ctx, *env, time.Now())
	if err != nil {
		return err
	}
	iw.logger.WithFields(logrus.Fields{
		"status":  result.Status,
		"lead_id": result.LeadID,
	}).Info("Inbound email handled")
	return nil
}

// ParseInboundMessage turns a raw RFC 5322 message into an envelope. The
// recipient is taken from Delivered-To when present, else the first To
// address. The plain-text part wins over the HTML part.
func ParseInboundMessage(r io.Reader) (*models.InboundEnvelope, error) {
	mr, err := mail.CreateReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create message reader: %w", err)
	}

	from, err := mr.Header.AddressList("From")
	if err != nil || len(from) == 0 {
		return nil, errors.New("message has no From address")
	}

	to := utils.NormalizeAddress(mr.Header.Get("Delivered-To"))
	if to == "" {
		recipients, err := mr.Header.AddressList("To")
		if err != nil || len(recipients) == 0 {
			return nil, errors.New("message has no recipient")
		}
		to = utils.NormalizeEmail(recipients[0].Address)
	}

	subject, err := mr.Header.Subject()
	if err != nil {
		subject = mr.Header.Get("Subject")
	}

	var text, html string
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("failed to read next part: %w", err)
		}

		h, ok := p.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, _ := h.ContentType()
		b, err := io.ReadAll(p.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read body: %w", err)
		}
		switch {
		case strings.HasPrefix(contentType, "text/plain") && text == "":
			text = string(b)
		case strings.HasPrefix(contentType, "text/html") && html == "":
			html = string(b)
		}
	}
	if text == "" {
		text = html
	}

	return &models.InboundEnvelope{
		From:    utils.NormalizeEmail(from[0].Address),
		To:      to,
		Subject: subject,
		Text:    strings.TrimSpace(text),
	}, nil
}
