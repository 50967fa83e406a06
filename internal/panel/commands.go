package panel

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/digipin/internal/geocode"
	"github.com/fyrsmithlabs/digipin/internal/history"
	"github.com/fyrsmithlabs/digipin/internal/location"
)

// LocateTimeout bounds a "use current location" request.
const LocateTimeout = 10 * time.Second

// Message types
type historyMsg struct {
	items []history.Item
	limit int
}

type historyErrMsg struct{ err error }

type encodedMsg struct{ code string }

type encodeFailedMsg struct{ err error }

type decodedMsg struct{ coords geocode.Coordinates }

type decodeFailedMsg struct{ err error }

type locatedMsg struct{ pos location.Position }

type locateFailedMsg struct{ err error }

type watchMsg struct{ changes <-chan struct{} }

type storageChangedMsg struct{}

type statusMsg struct {
	text string
	err  bool
}

func (m Model) loadHistory() tea.Cmd {
	ctx, store := m.ctx, m.deps.History
	return func() tea.Msg {
		items, limit, err := store.Load(ctx)
		if err != nil {
			return historyErrMsg{err: err}
		}
		return historyMsg{items: items, limit: limit}
	}
}

func (m Model) setLimit(n int) tea.Cmd {
	ctx, store := m.ctx, m.deps.History
	return func() tea.Msg {
		items, limit, err := store.SetLimit(ctx, n)
		if err != nil {
			return historyErrMsg{err: err}
		}
		return historyMsg{items: items, limit: limit}
	}
}

func (m Model) clearHistory() tea.Cmd {
	ctx, store := m.ctx, m.deps.History
	return func() tea.Msg {
		if err := store.Clear(ctx); err != nil {
			return historyErrMsg{err: err}
		}
		items, limit, err := store.Load(ctx)
		if err != nil {
			return historyErrMsg{err: err}
		}
		return historyMsg{items: items, limit: limit}
	}
}

func (m Model) encode(lat, lng string) tea.Cmd {
	ctx, wf := m.ctx, m.deps.Converter
	return func() tea.Msg {
		code, err := wf.RunEncode(ctx, lat, lng)
		if err != nil {
			return encodeFailedMsg{err: err}
		}
		return encodedMsg{code: code}
	}
}

func (m Model) decode(code string) tea.Cmd {
	ctx, wf := m.ctx, m.deps.Converter
	return func() tea.Msg {
		coords, err := wf.RunDecode(ctx, code)
		if err != nil {
			return decodeFailedMsg{err: err}
		}
		return decodedMsg{coords: coords}
	}
}

func (m Model) locate() tea.Cmd {
	ctx, locator := m.ctx, m.deps.Locator
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, LocateTimeout)
		defer cancel()

		pos, err := locator.Locate(ctx)
		if err != nil {
			return locateFailedMsg{err: err}
		}
		return locatedMsg{pos: pos.Rounded()}
	}
}

func (m Model) copyText(text string) tea.Cmd {
	ctx, clip := m.ctx, m.deps.Clipboard
	return func() tea.Msg {
		if err := clip.Copy(ctx, text); err != nil {
			return statusMsg{text: "Copy failed: " + err.Error(), err: true}
		}
		return statusMsg{text: "Copied " + text}
	}
}

func (m Model) openMap(coords string) tea.Cmd {
	ctx, maps := m.ctx, m.deps.Maps
	return func() tea.Msg {
		opened, err := maps.Open(ctx, coords)
		switch {
		case err != nil:
			return statusMsg{text: "Could not open map: " + err.Error(), err: true}
		case !opened:
			return nil
		default:
			return statusMsg{text: "Opened " + coords + " in map"}
		}
	}
}

func (m Model) watch() tea.Cmd {
	ctx, store, logger := m.ctx, m.deps.History, m.deps.Logger
	return func() tea.Msg {
		changes, err := store.Watch(ctx)
		if err != nil {
			logger.Debug(ctx, "history watch unavailable", zap.Error(err))
			return nil
		}
		return watchMsg{changes: changes}
	}
}

func waitForChange(changes <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-changes; !ok {
			return nil
		}
		return storageChangedMsg{}
	}
}
