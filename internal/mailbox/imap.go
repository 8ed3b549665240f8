package mailbox

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-message/textproto"

	"github.com/znz-systems/mailsift/internal/models"
)

var (
	draftFolders = []string{"Drafts", "[Gmail]/Drafts", "INBOX.Drafts"}
	spamFolders  = []string{"Junk", "Spam", "[Gmail]/Spam", "INBOX.Junk"}
	trashFolders = []string{"Trash", "[Gmail]/Trash", "Deleted Items", "INBOX.Trash"}
)

const dialTimeout = 30 * time.Second

type IMAPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	TLS      bool
}

// IMAPProvider opens a fresh connection per call.
type IMAPProvider struct {
	cfg IMAPConfig
}

func NewIMAPProvider(cfg IMAPConfig) *IMAPProvider {
	if cfg.Port == 0 {
		cfg.Port = 993
	}
	return &IMAPProvider{cfg: cfg}
}

// session is a logged-in client bound to a request context. The connection
// is closed when the context ends, which fails any command still waiting on
// the server.
type session struct {
	*imapclient.Client
	ctx  context.Context
	stop func() bool
}

func (s *session) close() {
	if s.ctx.Err() == nil {
		_ = s.Logout().Wait()
	}
	s.stop()
	_ = s.Client.Close()
}

// err prefers the context error over the closed-connection error it causes.
func (s *session) err(err error) error {
	if ctxErr := s.ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

func (p *IMAPProvider) connect(ctx context.Context) (*session, error) {
	addr := net.JoinHostPort(p.cfg.Host, strconv.Itoa(p.cfg.Port))
	tlsConfig := &tls.Config{ServerName: p.cfg.Host, NextProtos: []string{"imap"}}
	dialer := &net.Dialer{Timeout: dialTimeout}

	var (
		conn net.Conn
		err  error
	)
	if p.cfg.TLS {
		conn, err = (&tls.Dialer{NetDialer: dialer, Config: tlsConfig}).DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return nil, fmt.Errorf("connect to IMAP %s: %w", addr, err)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })

	var client *imapclient.Client
	if p.cfg.TLS {
		client = imapclient.New(conn, nil)
	} else {
		client, err = imapclient.NewStartTLS(conn, &imapclient.Options{TLSConfig: tlsConfig})
		if err != nil {
			stop()
			return nil, fmt.Errorf("starttls with IMAP %s: %w", addr, firstErr(ctx.Err(), err))
		}
	}
	s := &session{Client: client, ctx: ctx, stop: stop}

	if err := client.Login(p.cfg.Username, p.cfg.Password).Wait(); err != nil {
		stop()
		_ = client.Close()
		return nil, fmt.Errorf("imap login as %s: %w", p.cfg.Username, s.err(err))
	}
	return s, nil
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func unsubscribeSection() *imap.FetchItemBodySection {
	return &imap.FetchItemBodySection{
		Specifier:    imap.PartSpecifierHeader,
		HeaderFields: []string{"List-Unsubscribe"},
		Peek:         true,
	}
}

func (p *IMAPProvider) FetchInbox(ctx context.Context, limit int) ([]models.EmailRecord, error) {
	if limit <= 0 || limit > DefaultLimit {
		limit = DefaultLimit
	}
	s, err := p.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer s.close()

	if _, err := s.Select("INBOX", &imap.SelectOptions{ReadOnly: true}).Wait(); err != nil {
		return nil, fmt.Errorf("select INBOX: %w", s.err(err))
	}
	return fetchFolder(s, limit)
}

func (p *IMAPProvider) FetchDrafts(ctx context.Context) ([]models.EmailRecord, error) {
	s, err := p.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer s.close()

	for _, folder := range draftFolders {
		if _, err := s.Select(folder, &imap.SelectOptions{ReadOnly: true}).Wait(); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		return fetchFolder(s, 0)
	}
	slog.Debug("no drafts folder found", "tried", draftFolders)
	return nil, nil
}

func (p *IMAPProvider) Counters(ctx context.Context) (models.ProviderCounters, error) {
	s, err := p.connect(ctx)
	if err != nil {
		return models.ProviderCounters{}, err
	}
	defer s.close()

	counters := models.ProviderCounters{
		SpamCount:  countFirst(s.Client, spamFolders),
		TrashCount: countFirst(s.Client, trashFolders),
	}
	if err := ctx.Err(); err != nil {
		return models.ProviderCounters{}, err
	}
	return counters, nil
}

// countFirst returns the message count of the first folder that exists.
func countFirst(client *imapclient.Client, folders []string) int {
	for _, folder := range folders {
		data, err := client.Status(folder, &imap.StatusOptions{NumMessages: true}).Wait()
		if err != nil || data.NumMessages == nil {
			continue
		}
		return int(*data.NumMessages)
	}
	return 0
}

// fetchFolder reads the newest limit messages of the selected folder. A limit
// of zero reads all of them.
func fetchFolder(s *session, limit int) ([]models.EmailRecord, error) {
	search, err := s.UIDSearch(&imap.SearchCriteria{}, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("search messages: %w", s.err(err))
	}
	uids := search.AllUIDs()
	if len(uids) == 0 {
		return nil, nil
	}
	if limit > 0 && len(uids) > limit {
		uids = uids[len(uids)-limit:]
	}

	section := unsubscribeSection()
	fetchCmd := s.Fetch(imap.UIDSetNum(uids...), &imap.FetchOptions{
		Envelope:      true,
		Flags:         true,
		UID:           true,
		InternalDate:  true,
		RFC822Size:    true,
		BodyStructure: &imap.FetchItemBodyStructure{},
		BodySection:   []*imap.FetchItemBodySection{section},
	})
	defer fetchCmd.Close()

	var records []models.EmailRecord
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}
		buf, err := msg.Collect()
		if err != nil {
			slog.Warn("imap fetch item failed", "error", err)
			continue
		}
		date := buf.InternalDate
		if buf.Envelope != nil && !buf.Envelope.Date.IsZero() {
			date = buf.Envelope.Date
		}
		records = append(records, imapRecord(
			buf.UID,
			buf.Envelope,
			buf.Flags,
			date,
			buf.RFC822Size,
			hasAttachmentPart(buf.BodyStructure),
			buf.FindBodySection(section),
		))
	}
	if err := fetchCmd.Close(); err != nil {
		return records, fmt.Errorf("fetch messages: %w", s.err(err))
	}
	return records, nil
}

func imapRecord(uid imap.UID, env *imap.Envelope, flags []imap.Flag, date time.Time, size int64, attachment bool, rawHeader []byte) models.EmailRecord {
	rec := models.EmailRecord{
		ID:            strconv.FormatUint(uint64(uid), 10),
		Size:          size,
		HasAttachment: attachment,
	}
	if env != nil {
		rec.Subject = env.Subject
		if len(env.From) > 0 {
			rec.From = formatAddress(env.From[0])
		}
	}
	if !date.IsZero() {
		rec.Date = date.UTC().Format(time.RFC1123Z)
	}
	for _, f := range flags {
		if f == imap.FlagSeen {
			rec.IsRead = true
		}
	}
	if value := listUnsubscribe(rawHeader); value != "" {
		rec.HasUnsubscribe = true
		rec.UnsubscribeLink = UnsubscribeLink(value)
	}
	return rec
}

func formatAddress(a imap.Address) string {
	addr := a.Addr()
	if a.Name == "" {
		return addr
	}
	return fmt.Sprintf("%q <%s>", a.Name, addr)
}

func listUnsubscribe(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	h, err := textproto.ReadHeader(bufio.NewReader(bytes.NewReader(raw)))
	if err != nil {
		return ""
	}
	return h.Get("List-Unsubscribe")
}

func hasAttachmentPart(bs imap.BodyStructure) bool {
	if bs == nil {
		return false
	}
	found := false
	bs.Walk(func(_ []int, part imap.BodyStructure) bool {
		if single, ok := part.(*imap.BodyStructureSinglePart); ok && single.Filename() != "" {
			found = true
		}
		return !found
	})
	return found
}
