package focus

import (
	"context"
	"strings"

	"github.com/pkg/errors"
)

// Focuser brings something to the front.
type Focuser interface {
	Focus(ctx context.Context) error
}

// Chain runs every focuser in order. The browser tab is raised before its
// window so the right tab is visible once the window comes up.
type Chain []Focuser

func (c Chain) Focus(ctx context.Context) error {
	var firstErr error
	for _, f := range c {
		if f == nil {
			continue
		}
		if err := f.Focus(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Func adapts a function to Focuser.
type Func func(ctx context.Context) error

func (f Func) Focus(ctx context.Context) error {
	return f(ctx)
}

var ErrWindowNotFound = errors.New("no matching window")

type window struct {
	id    uint32
	title string
}

// pickWindow returns the first window whose title contains match, ignoring
// case. Windows are given in stacking order, bottom first, so the search runs
// from the top.
func pickWindow(windows []window, match string) (uint32, error) {
	needle := strings.ToLower(match)
	for i := len(windows) - 1; i >= 0; i-- {
		if strings.Contains(strings.ToLower(windows[i].title), needle) {
			return windows[i].id, nil
		}
	}
	return 0, errors.Wrapf(ErrWindowNotFound, "title containing %q", match)
}
