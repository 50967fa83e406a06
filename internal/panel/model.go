// Package panel implements the interactive terminal panel: encode and
// decode forms, "use current location", and the recent-conversions list.
package panel

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/fyrsmithlabs/digipin/internal/clipboard"
	"github.com/fyrsmithlabs/digipin/internal/conversion"
	"github.com/fyrsmithlabs/digipin/internal/geocode"
	"github.com/fyrsmithlabs/digipin/internal/history"
	"github.com/fyrsmithlabs/digipin/internal/location"
	"github.com/fyrsmithlabs/digipin/internal/logging"
)

// Converter runs conversions.
type Converter interface {
	RunEncode(ctx context.Context, latText, lngText string) (string, error)
	RunDecode(ctx context.Context, code string) (geocode.Coordinates, error)
}

// History is the history store as seen by the panel.
type History interface {
	Load(ctx context.Context) ([]history.Item, int, error)
	SetLimit(ctx context.Context, n int) ([]history.Item, int, error)
	Clear(ctx context.Context) error
	Watch(ctx context.Context) (<-chan struct{}, error)
}

// MapOpener opens "lat,lng" pairs in a map viewer.
type MapOpener interface {
	Open(ctx context.Context, coords string) (bool, error)
}

// Deps are the components the panel drives.
type Deps struct {
	Converter Converter
	History   History
	Locator   location.Locator
	Clipboard clipboard.Clipboard
	Maps      MapOpener
	Logger    *logging.Logger
}

// Focus targets, in tab order.
const (
	focusLat = iota
	focusLng
	focusCode
	focusList
	focusCount
)

// Model is the panel state.
type Model struct {
	ctx  context.Context
	deps Deps

	inputs [3]textinput.Model
	focus  int

	items   []history.Item
	limit   int
	cursor  int
	loadErr string

	code      string
	encodeErr string

	decoded   string
	decodeErr string

	locating    bool
	locationErr string
	locationFix string

	status    string
	statusErr bool

	changes  <-chan struct{}
	quitting bool
}

// New creates the panel model.
func New(ctx context.Context, deps Deps) (Model, error) {
	if deps.Converter == nil {
		return Model{}, errors.New("converter is required")
	}
	if deps.History == nil {
		return Model{}, errors.New("history is required")
	}
	if deps.Locator == nil {
		deps.Locator = location.Unsupported{}
	}
	if deps.Clipboard == nil {
		deps.Clipboard = clipboard.Nop{}
	}
	if deps.Maps == nil {
		return Model{}, errors.New("map opener is required")
	}
	if deps.Logger == nil {
		deps.Logger = logging.NewNop()
	}

	m := Model{
		ctx:   logging.WithSource(ctx, logging.SourcePanel),
		deps:  deps,
		limit: history.DefaultLimit,
	}

	placeholders := [3]string{"Latitude", "Longitude", "e.g. 39J-438-TJC7"}
	for i := range m.inputs {
		ti := textinput.New()
		ti.Placeholder = placeholders[i]
		ti.CharLimit = 32
		ti.Width = 20
		m.inputs[i] = ti
	}
	m.inputs[focusLat].Focus()

	return m, nil
}

// Init loads the history and starts watching for external changes.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.loadHistory(),
		m.watch(),
	)
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case historyMsg:
		m.items = msg.items
		m.limit = msg.limit
		m.loadErr = ""
		if m.cursor >= len(m.items) {
			m.cursor = max(len(m.items)-1, 0)
		}
		return m, nil

	case historyErrMsg:
		m.loadErr = "History unavailable: " + msg.err.Error()
		return m, nil

	case encodedMsg:
		m.code = msg.code
		m.encodeErr = ""
		return m, m.loadHistory()

	case encodeFailedMsg:
		m.code = ""
		m.encodeErr = encodeMessage(msg.err)
		return m, nil

	case decodedMsg:
		m.decoded = conversion.FormatPair(msg.coords.Latitude, msg.coords.Longitude)
		m.decodeErr = ""
		return m, m.loadHistory()

	case decodeFailedMsg:
		m.decoded = ""
		m.decodeErr = decodeMessage(msg.err)
		return m, nil

	case locatedMsg:
		m.locating = false
		m.locationErr, m.locationFix = "", ""
		lat := strconv.FormatFloat(msg.pos.Latitude, 'f', -1, 64)
		lng := strconv.FormatFloat(msg.pos.Longitude, 'f', -1, 64)
		m.inputs[focusLat].SetValue(lat)
		m.inputs[focusLng].SetValue(lng)
		return m, m.encode(lat, lng)

	case locateFailedMsg:
		m.locating = false
		m.locationErr = location.Message(msg.err)
		m.locationFix = location.Remediation(msg.err)
		return m, nil

	case watchMsg:
		m.changes = msg.changes
		return m, waitForChange(m.changes)

	case storageChangedMsg:
		return m, tea.Batch(m.loadHistory(), waitForChange(m.changes))

	case statusMsg:
		m.status = msg.text
		m.statusErr = msg.err
		return m, nil
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		m.quitting = true
		return m, tea.Quit

	case "tab":
		return m.setFocus((m.focus + 1) % focusCount)

	case "shift+tab":
		return m.setFocus((m.focus + focusCount - 1) % focusCount)

	case "ctrl+l":
		if m.locating {
			return m, nil
		}
		m.locating = true
		m.locationErr, m.locationFix = "", ""
		return m, m.locate()

	case "ctrl+x":
		m.cursor = 0
		return m, m.clearHistory()

	case "[":
		return m, m.setLimit(stepLimit(m.limit, -1))

	case "]":
		return m, m.setLimit(stepLimit(m.limit, 1))

	case "ctrl+o":
		return m, m.openMap(m.decoded)

	case "enter":
		switch m.focus {
		case focusLat, focusLng:
			return m, m.encode(m.inputs[focusLat].Value(), m.inputs[focusLng].Value())
		case focusCode:
			if strings.TrimSpace(m.inputs[focusCode].Value()) == "" {
				return m, nil
			}
			return m, m.decode(m.inputs[focusCode].Value())
		case focusList:
			if item, ok := m.selected(); ok {
				return m, m.copyText(item.Output)
			}
		}
		return m, nil
	}

	if m.focus == focusList {
		return m.handleListKey(msg)
	}

	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

func (m Model) handleListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.items)-1 {
			m.cursor++
		}
	case "y":
		if item, ok := m.selected(); ok {
			return m, m.copyText(item.Output)
		}
	case "o":
		if item, ok := m.selected(); ok {
			return m, m.openMap(coordinatesOf(item))
		}
		return m, m.openMap(m.decoded)
	}
	return m, nil
}

func (m Model) setFocus(target int) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	for i := range m.inputs {
		if i == target {
			cmd = m.inputs[i].Focus()
		} else {
			m.inputs[i].Blur()
		}
	}
	m.focus = target
	return m, cmd
}

func (m Model) selected() (history.Item, bool) {
	if m.cursor < 0 || m.cursor >= len(m.items) {
		return history.Item{}, false
	}
	return m.items[m.cursor], true
}

// coordinatesOf returns the "lat,lng" side of an item.
func coordinatesOf(item history.Item) string {
	if item.Kind == history.KindDecode {
		return item.Output
	}
	return item.Input
}

// stepLimit moves to the neighbouring retention option in direction dir.
func stepLimit(current, dir int) int {
	opts := history.LimitOptions
	if dir > 0 {
		for _, n := range opts {
			if n > current {
				return n
			}
		}
		return opts[len(opts)-1]
	}
	for i := len(opts) - 1; i >= 0; i-- {
		if opts[i] < current {
			return opts[i]
		}
	}
	return opts[0]
}

func encodeMessage(err error) string {
	switch {
	case errors.Is(err, conversion.ErrInvalidInput):
		return "Enter coordinates within India (lat 2.5-38.5, lng 63.5-99.5)."
	case errors.Is(err, conversion.ErrStorage):
		return "Converted, but history could not be saved."
	default:
		return "Conversion failed."
	}
}

func decodeMessage(err error) string {
	if errors.Is(err, conversion.ErrStorage) {
		return "Decoded, but history could not be saved."
	}
	return "Invalid DIGIPIN"
}
