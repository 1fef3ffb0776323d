// Package room names the shared lists: generating ids, building share
// links and reading an id back out of one.
package room

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/google/uuid"

	"github.com/Makepad-fr/basket/internal/errs"
	"github.com/Makepad-fr/basket/internal/store"
)

// CopyFallbackPrefix precedes the link when the clipboard is unavailable.
const CopyFallbackPrefix = "Copy this link: "

// writeClipboard is swapped in tests.
var writeClipboard = clipboard.WriteAll

// NewID returns a fresh 12-character room id.
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// ShareLink is the URL another participant opens to join room. The server
// answers it with a page naming the room and the command that joins it;
// the CLI accepts it anywhere a room id goes.
func ShareLink(base, room string) string {
	return strings.TrimRight(base, "/") + "/?room=" + url.QueryEscape(room)
}

// Parse accepts either a bare room id or a share link and returns the id.
func Parse(input string) (string, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return "", errs.Validation("empty room")
	}
	if strings.Contains(s, "://") || strings.Contains(s, "?") {
		u, err := url.Parse(s)
		if err != nil {
			return "", errs.New(errs.KindValidation, "invalid share link", err)
		}
		s = u.Query().Get("room")
		if s == "" {
			return "", errs.Validation("share link has no room: " + input)
		}
	}
	if !store.ValidKey(s) {
		return "", errs.Validation(fmt.Sprintf("room %q: use 1-64 letters, digits, '-' or '_'", s))
	}
	return s, nil
}

// ToClipboard puts link on the system clipboard.
func ToClipboard(link string) error {
	if err := writeClipboard(link); err != nil {
		return fmt.Errorf("clipboard: %w", err)
	}
	return nil
}

// CopyLink puts link on the system clipboard. When that fails the link is
// printed to w for the user to copy by hand. It reports whether the
// clipboard was used.
func CopyLink(w io.Writer, link string) bool {
	if err := ToClipboard(link); err != nil {
		fmt.Fprintln(w, CopyFallbackPrefix+link)
		return false
	}
	return true
}
