// Package deliver gets a finished job's EPUBs to the reader: saved as a zip
// or mailed to a Kindle address.
package deliver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/mail"
	"os"
	"path/filepath"
	"strings"

	"github.com/GChainey/substackToKindle/internal/client"
)

// Downloader streams a job's zip archive.
type Downloader interface {
	Download(ctx context.Context, jobID string, w io.Writer) (int64, error)
}

// Sender mails a job's EPUBs.
type Sender interface {
	SendToKindle(ctx context.Context, jobID, kindleEmail string) (*client.SendToKindleResponse, error)
}

// ErrInvalidEmail is returned for addresses that do not parse.
var ErrInvalidEmail = errors.New("invalid email address")

// FileName is the zip name used for a job: "<subdomain>-<first 8 of id>.zip".
func FileName(subdomain, jobID string) string {
	id := jobID
	if len(id) > 8 {
		id = id[:8]
	}
	if subdomain == "" {
		subdomain = "substack"
	}
	return fmt.Sprintf("%s-%s.zip", subdomain, id)
}

// SaveZip downloads jobID into path, creating parent directories. A partial
// file is removed on failure.
func SaveZip(ctx context.Context, d Downloader, jobID, path string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("create download dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", path, err)
	}
	n, err := d.Download(ctx, jobID, f)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("close %s: %w", path, cerr)
	}
	if err != nil {
		_ = os.Remove(path)
		return 0, err
	}
	return n, nil
}

// ValidEmail normalizes addr and checks that it is a bare address.
func ValidEmail(addr string) (string, error) {
	addr = strings.TrimSpace(addr)
	parsed, err := mail.ParseAddress(addr)
	if err != nil || parsed.Address != addr {
		return "", fmt.Errorf("%w: %q", ErrInvalidEmail, addr)
	}
	return addr, nil
}

// Send mails jobID to email and returns the backend's message. A refused
// send (Success=false) is turned into an error.
func Send(ctx context.Context, s Sender, jobID, email string) (string, error) {
	addr, err := ValidEmail(email)
	if err != nil {
		return "", err
	}
	resp, err := s.SendToKindle(ctx, jobID, addr)
	if err != nil {
		return "", err
	}
	if !resp.Success {
		msg := resp.Error
		if msg == "" {
			msg = resp.Message
		}
		if msg == "" {
			msg = "send refused"
		}
		return "", errors.New(msg)
	}
	return resp.Message, nil
}
