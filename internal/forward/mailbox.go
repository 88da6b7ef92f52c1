package forward

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-message/mail"

	"github.com/nhle/pmcore/internal/kvstore"
	"github.com/nhle/pmcore/internal/model"
)

// Mailbox appends each flushed batch as one message to an IMAP folder.
type Mailbox struct {
	cfg     model.IMAPConfig
	secrets kvstore.Store
	now     func() time.Time
}

// NewMailbox creates a forwarder for cfg. The password is read from
// secrets under cfg.PasswordKey on every flush.
func NewMailbox(cfg model.IMAPConfig, secrets kvstore.Store) *Mailbox {
	return &Mailbox{cfg: cfg, secrets: secrets, now: time.Now}
}

// Forward connects, appends one message holding the batch and logs out.
func (f *Mailbox) Forward(ctx context.Context, entries []model.OfflineEntry) error {
	msg, err := ComposeMessage(f.cfg.From, f.cfg.Username, entries, f.now())
	if err != nil {
		return err
	}

	password, ok, err := f.secrets.Get(ctx, f.cfg.PasswordKey)
	if err != nil {
		return fmt.Errorf("reading IMAP password: %w", err)
	}
	if !ok {
		return fmt.Errorf("IMAP password %q not set: %w", f.cfg.PasswordKey, ErrNotConfigured)
	}

	client, release, err := f.connect(ctx, password)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Logout().Wait()
		release()
	}()

	cmd := client.Append(f.cfg.Mailbox, int64(len(msg)), &imap.AppendOptions{
		Time: f.now(),
	})
	if _, err := cmd.Write(msg); err != nil {
		_ = cmd.Close()
		return fmt.Errorf("writing message to %s: %w", f.cfg.Mailbox, err)
	}
	if err := cmd.Close(); err != nil {
		return fmt.Errorf("closing append to %s: %w", f.cfg.Mailbox, err)
	}
	if _, err := cmd.Wait(); err != nil {
		return fmt.Errorf("appending to %s: %w", f.cfg.Mailbox, err)
	}
	return nil
}

// connect dials the server and logs in. The connection is closed when
// ctx is done, so a hung server cannot outlive the forward timeout.
// The returned release detaches it from ctx.
func (f *Mailbox) connect(ctx context.Context, password string) (*imapclient.Client, func(), error) {
	addr := net.JoinHostPort(f.cfg.Host, f.cfg.Port)

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to IMAP %s: %w", addr, err)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	release := func() { stop() }

	var client *imapclient.Client
	if f.cfg.TLS {
		client = imapclient.New(tls.Client(conn, &tls.Config{ServerName: f.cfg.Host}), nil)
	} else {
		client, err = imapclient.NewStartTLS(conn, &imapclient.Options{
			TLSConfig: &tls.Config{ServerName: f.cfg.Host},
		})
		if err != nil {
			release()
			_ = conn.Close()
			return nil, nil, fmt.Errorf("starting TLS with %s: %w", addr, err)
		}
	}

	if err := client.Login(f.cfg.Username, password).Wait(); err != nil {
		release()
		_ = client.Close()
		return nil, nil, fmt.Errorf("logging in as %s: %w", f.cfg.Username, err)
	}
	return client, release, nil
}

// Close is a no-op; each Forward opens its own connection.
func (f *Mailbox) Close() error {
	return nil
}

// ComposeMessage builds an RFC 5322 message whose body is the batch as
// a JSON array.
func ComposeMessage(from, to string, entries []model.OfflineEntry, at time.Time) ([]byte, error) {
	body, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding offline entries: %w", err)
	}

	if from == "" {
		from = to
	}

	var h mail.Header
	h.SetDate(at)
	h.SetAddressList("From", []*mail.Address{{Address: from}})
	h.SetAddressList("To", []*mail.Address{{Address: to}})
	h.SetSubject(fmt.Sprintf("pmcore offline sync: %d items", len(entries)))
	h.SetContentType("application/json", map[string]string{"charset": "utf-8"})

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("creating message writer: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return nil, fmt.Errorf("writing message body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("closing message writer: %w", err)
	}
	return buf.Bytes(), nil
}
