package focus

import (
	"context"
	"encoding/binary"
	"strings"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// sourcePager tells the window manager the request comes from a pager-like
// client, which most managers honor without focus-stealing prevention.
const sourcePager = 2

// X11 raises the top-level window whose title contains Title using the
// EWMH _NET_ACTIVE_WINDOW request.
type X11 struct {
	Title  string
	Logger zerolog.Logger
}

func NewX11(title string, logger zerolog.Logger) *X11 {
	return &X11{Title: title, Logger: logger}
}

func (x *X11) Focus(ctx context.Context) error {
	if x.Title == "" {
		return nil
	}

	client, err := newX11Client()
	if err != nil {
		return errors.Wrap(err, "failed to connect to X server")
	}
	defer client.close()

	if err := ctx.Err(); err != nil {
		return err
	}

	windows, err := client.clientList()
	if err != nil {
		return err
	}
	id, err := pickWindow(windows, x.Title)
	if err != nil {
		return err
	}

	x.Logger.Debug().Uint32("window_id", id).Msg("activating window")
	return client.activate(xproto.Window(id))
}

type x11Client struct {
	conn  *xgb.Conn
	root  xproto.Window
	atoms map[string]xproto.Atom
}

func newX11Client() (*x11Client, error) {
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, err
	}

	setup := xproto.Setup(conn)
	client := &x11Client{
		conn:  conn,
		root:  setup.DefaultScreen(conn).Root,
		atoms: make(map[string]xproto.Atom),
	}

	for _, name := range []string{
		"_NET_ACTIVE_WINDOW",
		"_NET_CLIENT_LIST_STACKING",
		"_NET_WM_NAME",
		"WM_NAME",
		"UTF8_STRING",
	} {
		reply, err := xproto.InternAtom(conn, false, uint16(len(name)), name).Reply()
		if err != nil {
			conn.Close()
			return nil, err
		}
		client.atoms[name] = reply.Atom
	}

	return client, nil
}

func (c *x11Client) close() {
	c.conn.Close()
}

func (c *x11Client) getProperty(win xproto.Window, atom, atomType xproto.Atom, length uint32) ([]byte, error) {
	reply, err := xproto.GetProperty(c.conn, false, win, atom, atomType, 0, length).Reply()
	if err != nil {
		return nil, err
	}
	return reply.Value, nil
}

func (c *x11Client) clientList() ([]window, error) {
	data, err := c.getProperty(c.root, c.atoms["_NET_CLIENT_LIST_STACKING"], xproto.AtomWindow, 1024)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read client list")
	}

	windows := make([]window, 0, len(data)/4)
	for i := 0; i+4 <= len(data); i += 4 {
		id := binary.LittleEndian.Uint32(data[i:])
		windows = append(windows, window{id: id, title: c.windowName(xproto.Window(id))})
	}
	return windows, nil
}

func (c *x11Client) windowName(win xproto.Window) string {
	data, err := c.getProperty(win, c.atoms["_NET_WM_NAME"], c.atoms["UTF8_STRING"], 256)
	if err == nil && len(data) > 0 {
		return strings.TrimRight(string(data), "\x00")
	}

	data, err = c.getProperty(win, c.atoms["WM_NAME"], xproto.AtomString, 256)
	if err == nil && len(data) > 0 {
		return strings.TrimRight(string(data), "\x00")
	}

	return ""
}

func (c *x11Client) activate(win xproto.Window) error {
	ev := xproto.ClientMessageEvent{
		Format: 32,
		Window: win,
		Type:   c.atoms["_NET_ACTIVE_WINDOW"],
		Data:   xproto.ClientMessageDataUnionData32New([]uint32{sourcePager, xproto.TimeCurrentTime, 0, 0, 0}),
	}

	mask := uint32(xproto.EventMaskSubstructureNotify | xproto.EventMaskSubstructureRedirect)
	err := xproto.SendEventChecked(c.conn, false, c.root, mask, string(ev.Bytes())).Check()
	return errors.Wrap(err, "failed to send _NET_ACTIVE_WINDOW")
}
