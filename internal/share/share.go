// Package share hands a wishlist summary to the platform: a native share
// sheet when one exists, otherwise the clipboard.
package share

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Title is the share sheet title.
const Title = "My Lola Drip Wishlist"

// WishlistPath is appended to the storefront origin to build the share link.
const WishlistPath = "/wishlist?shared=true"

// ErrUnavailable means the platform offers neither a sharer nor a clipboard.
var ErrUnavailable = errors.New("no share mechanism available")

// Payload is what gets shared.
type Payload struct {
	Title string `json:"title"`
	Text  string `json:"text"`
	URL   string `json:"url"`
}

// ClipboardText is the text copied when native share is unavailable.
func (p Payload) ClipboardText() string {
	return p.Text + "\n\n" + p.URL
}

// NewPayload builds the wishlist payload for origin and the saved item names.
func NewPayload(origin string, names []string) Payload {
	return Payload{
		Title: Title,
		Text:  summary(names),
		URL:   strings.TrimRight(origin, "/") + WishlistPath,
	}
}

func summary(names []string) string {
	switch len(names) {
	case 0:
		return "Check out my wishlist on Lola Drip!"
	case 1:
		return "Check out my wishlist on Lola Drip: " + names[0]
	default:
		return fmt.Sprintf("Check out my wishlist on Lola Drip (%d items): %s",
			len(names), strings.Join(names, ", "))
	}
}

// Sharer is a native share mechanism. Share returns an error when the user
// dismisses the sheet or the platform rejects the payload.
type Sharer interface {
	Share(ctx context.Context, p Payload) error
}

// Clipboard writes text to the user's clipboard.
type Clipboard interface {
	WriteText(ctx context.Context, text string) error
}

// SharerFunc adapts a function to Sharer.
type SharerFunc func(ctx context.Context, p Payload) error

// Share calls f.
func (f SharerFunc) Share(ctx context.Context, p Payload) error { return f(ctx, p) }

// ClipboardFunc adapts a function to Clipboard.
type ClipboardFunc func(ctx context.Context, text string) error

// WriteText calls f.
func (f ClipboardFunc) WriteText(ctx context.Context, text string) error { return f(ctx, text) }

// Platform bundles what the caller's environment supports. Either field may
// be nil.
type Platform struct {
	Sharer    Sharer
	Clipboard Clipboard
}

// Method records how a payload was delivered.
type Method string

const (
	MethodNative    Method = "native"
	MethodClipboard Method = "clipboard"
)

// Result describes a successful share.
type Result struct {
	Method  Method  `json:"method"`
	Payload Payload `json:"payload"`
	// Text is the clipboard text when Method is MethodClipboard.
	Text string `json:"text,omitempty"`
}

// Do shares p on the platform. Native share wins when available and its
// failure is returned as is: a dismissed share sheet is not retried on the
// clipboard.
func Do(ctx context.Context, platform Platform, p Payload) (Result, error) {
	if platform.Sharer != nil {
		if err := platform.Sharer.Share(ctx, p); err != nil {
			return Result{}, fmt.Errorf("native share: %w", err)
		}
		return Result{Method: MethodNative, Payload: p}, nil
	}

	if platform.Clipboard != nil {
		text := p.ClipboardText()
		if err := platform.Clipboard.WriteText(ctx, text); err != nil {
			return Result{}, fmt.Errorf("clipboard write: %w", err)
		}
		return Result{Method: MethodClipboard, Payload: p, Text: text}, nil
	}

	return Result{}, ErrUnavailable
}

// Buffer is a Clipboard that keeps the last text written. The HTTP surface
// uses it so the browser can copy the returned text itself.
type Buffer struct {
	mu   sync.Mutex
	text string
}

// WriteText stores text. It fails only if ctx is already done.
func (b *Buffer) WriteText(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.text = text
	return nil
}

// String returns the last text written.
func (b *Buffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.text
}
