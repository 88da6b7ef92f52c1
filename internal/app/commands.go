package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/nhle/pmcore/internal/model"
	"github.com/nhle/pmcore/internal/ui/compose"
)

// ErrUsage is returned for an unknown command or wrong argument count.
var ErrUsage = errors.New("invalid command usage")

// RunCommand executes one non-interactive command against rt and
// writes its output to w.
func RunCommand(ctx context.Context, rt *Runtime, w io.Writer, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("no command given: %w", ErrUsage)
	}
	name, rest := args[0], args[1:]

	need := func(n int) error {
		if len(rest) != n {
			return fmt.Errorf("%s takes %d argument(s), got %d: %w", name, n, len(rest), ErrUsage)
		}
		return nil
	}

	n := rt.Notifications
	q := rt.Queue

	switch name {
	case "add":
		if err := need(3); err != nil {
			return err
		}
		kind, err := model.ParseKind(rest[0])
		if err != nil {
			return err
		}
		added := n.Add(ctx, rest[1], rest[2], kind)
		fmt.Fprintln(w, added.ID)

	case "list":
		if err := need(0); err != nil {
			return err
		}
		return writeNotifications(w, n.List(), time.Now())

	case "read":
		if err := need(1); err != nil {
			return err
		}
		n.MarkRead(ctx, rest[0])

	case "read-all":
		if err := need(0); err != nil {
			return err
		}
		n.MarkAllRead(ctx)

	case "rm":
		if err := need(1); err != nil {
			return err
		}
		n.Remove(ctx, rest[0])

	case "clear":
		if err := need(0); err != nil {
			return err
		}
		n.Clear(ctx)

	case "unread":
		if err := need(0); err != nil {
			return err
		}
		fmt.Fprintln(w, n.UnreadCount())

	case "enqueue":
		if len(rest) == 0 {
			return fmt.Errorf("enqueue needs a payload: %w", ErrUsage)
		}
		q.Enqueue(ctx, compose.ParsePayload(strings.Join(rest, " ")))
		fmt.Fprintln(w, q.Len())

	case "queue":
		if err := need(0); err != nil {
			return err
		}
		enc := json.NewEncoder(w)
		for _, e := range q.Entries() {
			if err := enc.Encode(e); err != nil {
				return fmt.Errorf("encoding queue entry: %w", err)
			}
		}

	case "flush":
		if err := need(0); err != nil {
			return err
		}
		fmt.Fprintf(w, "flushed %d, %d remaining\n", q.Flush(ctx), q.Len())

	case "imap-password":
		if err := need(1); err != nil {
			return err
		}
		secrets, err := rt.Secrets()
		if err != nil {
			return err
		}
		key := rt.Config.Forward.IMAP.PasswordKey
		if err := secrets.Set(ctx, key, rest[0]); err != nil {
			return fmt.Errorf("storing IMAP password: %w", err)
		}

	default:
		return fmt.Errorf("unknown command %q: %w", name, ErrUsage)
	}

	return nil
}

func writeNotifications(w io.Writer, ns []model.Notification, now time.Time) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tREAD\tAGE\tTITLE\tMESSAGE")
	for _, n := range ns {
		read := "no"
		if n.Read {
			read = "yes"
		}
		age := now.Sub(n.Timestamp).Truncate(time.Second)
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", n.ID, n.Kind, read, age, n.Title, n.Message)
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("writing notifications: %w", err)
	}
	return nil
}
