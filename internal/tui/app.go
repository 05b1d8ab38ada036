// Package tui is the terminal admin for the sheet library: a bubbletea
// program with a library picker and a grid editor wired to the engine.
package tui

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/orimhanre/distrinaranjos-sub001/internal/sheet"
	"github.com/orimhanre/distrinaranjos-sub001/internal/store"
)

// styles
var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("8"))
	cursorStyle   = lipgloss.NewStyle().Background(lipgloss.Color("4")).Foreground(lipgloss.Color("15"))
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	invalidStyle  = lipgloss.NewStyle().Background(lipgloss.Color("1")).Foreground(lipgloss.Color("15"))
)

type view int

const (
	viewLibrary view = iota
	viewGrid
)

type mode int

const (
	modeNormal mode = iota
	modeEdit
	modeSearch
	modeConfirm
	modeFields
	modeViewer
	modePrompt
)

// flushTick drains pending persistence on the update cycle after the
// mutation, never inside the handler that caused it.
type flushTick struct{}

func requestFlush() tea.Msg { return flushTick{} }

// promptKind says what the generic text prompt is collecting.
type promptKind int

const (
	promptNewSheet promptKind = iota
	promptNewColumn
	promptRenameColumn
	promptRenameAttachment
)

// confirmKind says what destructive action is awaiting confirmation.
type confirmKind int

const (
	confirmDeleteRows confirmKind = iota
	confirmDeleteColumn
	confirmDeleteSheet
)

// Model is the whole TUI state. One engine is live at a time; switching back
// to the library flushes and drops it.
type Model struct {
	st     *store.Store
	logger *slog.Logger

	view   view
	mode   mode
	width  int
	height int
	err    error

	// library
	infos     []store.Info
	libCursor int
	libScroll int

	// grid
	eng     *sheet.Engine
	cx, cy  int
	scrollX int
	scrollY int

	input   textinput.Model
	prompt  promptKind
	confirm confirmKind

	// fields menu
	fieldCursor int

	viewer *sheet.Viewer
}

// New builds the program model over an open store.
func New(st *store.Store, logger *slog.Logger) Model {
	if logger == nil {
		logger = slog.Default()
	}
	ti := textinput.New()
	ti.CharLimit = 256
	m := Model{st: st, logger: logger, view: viewLibrary, input: ti}
	m.reloadLibrary()
	return m
}

// Run starts the program in the alternate screen.
func Run(st *store.Store, logger *slog.Logger) error {
	if f, err := tea.LogToFile("distri-tui.log", "tui"); err == nil {
		defer f.Close()
	}
	p := tea.NewProgram(New(st, logger), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

func (m *Model) reloadLibrary() {
	infos, err := m.st.List()
	if err != nil {
		m.err = err
		return
	}
	m.infos = infos
	if m.libCursor >= len(infos) {
		m.libCursor = len(infos) - 1
	}
	if m.libCursor < 0 {
		m.libCursor = 0
	}
}

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case flushTick:
		if m.eng != nil {
			m.eng.Flush()
		}
		return m, nil
	case tea.KeyMsg:
		if m.view == viewLibrary {
			return m.updateLibrary(msg)
		}
		switch m.mode {
		case modeEdit:
			return m.updateEdit(msg)
		case modeSearch:
			return m.updateSearch(msg)
		case modeConfirm:
			return m.updateConfirm(msg)
		case modeFields:
			return m.updateFields(msg)
		case modeViewer:
			return m.updateViewer(msg)
		case modePrompt:
			return m.updatePrompt(msg)
		default:
			return m.updateGrid(msg)
		}
	}
	return m, nil
}

func (m Model) View() string {
	if m.width == 0 {
		return "loading..."
	}
	if m.view == viewLibrary {
		return m.viewLibrary()
	}
	if m.viewer != nil {
		return m.viewAttachments()
	}
	return m.viewGrid()
}

// openSheet loads a document and hands it to a fresh engine whose persistence
// callback writes back to the store.
func (m Model) openSheet(id string) (tea.Model, tea.Cmd) {
	s, err := m.st.Load(id)
	if err != nil {
		m.err = err
		return m, nil
	}
	st, logger := m.st, m.logger
	m.eng = sheet.NewEngine(s, sheet.Options{
		Persist: func(sh *sheet.Sheet) {
			if err := st.Save(sh); err != nil {
				logger.Error("save failed", "sheet", sh.ID, "err", err)
			}
		},
		Measurer:  sheet.RuneMeasurer{},
		Clipboard: sheet.SystemClipboard{},
	})
	m.eng.AutoFit()
	m.view = viewGrid
	m.mode = modeNormal
	m.cx, m.cy = 0, 0
	m.scrollX, m.scrollY = 0, 0
	m.err = nil
	return m, nil
}

// closeSheet flushes outstanding work and returns to the library.
func (m Model) closeSheet() (tea.Model, tea.Cmd) {
	if m.eng != nil {
		m.eng.Flush()
	}
	m.eng = nil
	m.view = viewLibrary
	m.mode = modeNormal
	m.err = nil
	m.reloadLibrary()
	return m, nil
}

// --- Library ---

func (m Model) updateLibrary(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.mode == modePrompt {
		return m.updatePrompt(msg)
	}
	if m.mode == modeConfirm {
		return m.updateConfirm(msg)
	}
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "up", "k":
		if m.libCursor > 0 {
			m.libCursor--
		}
	case "down", "j":
		if m.libCursor < len(m.infos)-1 {
			m.libCursor++
		}
	case "enter":
		if m.libCursor < len(m.infos) {
			return m.openSheet(m.infos[m.libCursor].ID)
		}
	case "n":
		m.mode = modePrompt
		m.prompt = promptNewSheet
		m.input.SetValue("")
		m.input.Placeholder = "sheet name"
		m.input.Focus()
	case "d":
		if m.libCursor < len(m.infos) {
			m.mode = modeConfirm
			m.confirm = confirmDeleteSheet
		}
	case "r":
		m.reloadLibrary()
	}
	return m, nil
}

func (m Model) viewLibrary() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(" DistriNaranjos sheets"))
	b.WriteString("\n")

	if m.err != nil {
		b.WriteString(errorStyle.Render(" error: " + m.err.Error()))
		b.WriteString("\n")
	}
	if len(m.infos) == 0 {
		b.WriteString(dimStyle.Render(" no sheets yet - press n to create one"))
		b.WriteString("\n")
	}

	visible := m.height - 5
	if visible < 1 {
		visible = 1
	}
	if m.libCursor < m.libScroll {
		m.libScroll = m.libCursor
	}
	if m.libCursor >= m.libScroll+visible {
		m.libScroll = m.libCursor - visible + 1
	}

	for i := m.libScroll; i < len(m.infos) && i < m.libScroll+visible; i++ {
		info := m.infos[i]
		cursor := "  "
		if i == m.libCursor {
			cursor = "> "
		}
		line := fmt.Sprintf("%s%-24s %3dx%-4d v%-4d %s",
			cursor, truncate(info.Name, 24), info.Cols, info.Rows,
			info.Version, info.UpdatedAt.Format("Jan 02 15:04"))
		if i == m.libCursor {
			b.WriteString(cursorStyle.Render(line))
		} else {
			b.WriteString(line)
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	switch m.mode {
	case modePrompt:
		b.WriteString(" name: " + m.input.View())
	case modeConfirm:
		b.WriteString(errorStyle.Render(" delete this sheet? (y/n)"))
	default:
		b.WriteString(dimStyle.Render(" j/k navigate  enter open  n new  d delete  q quit"))
	}
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 2 {
		return s[:n]
	}
	return s[:n-2] + ".."
}
