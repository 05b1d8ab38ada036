package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/orimhanre/distrinaranjos-sub001/internal/sheet"
)

// columnTypeCycle is the order the fields menu steps a column's type through.
var columnTypeCycle = []sheet.ColumnType{
	sheet.TypeText, sheet.TypeLongText, sheet.TypeNumber, sheet.TypeBoolean,
	sheet.TypeSelect, sheet.TypeMultipleSelect, sheet.TypeDate,
	sheet.TypePhone, sheet.TypeEmail, sheet.TypeImage,
}

func (m *Model) visibleCols() []*sheet.Column {
	return m.eng.Sheet().VisibleColumns()
}

func (m *Model) clampCursor() {
	rows := m.eng.VisibleRows()
	cols := m.visibleCols()
	if m.cy >= len(rows) {
		m.cy = len(rows) - 1
	}
	if m.cy < 0 {
		m.cy = 0
	}
	if m.cx >= len(cols) {
		m.cx = len(cols) - 1
	}
	if m.cx < 0 {
		m.cx = 0
	}
}

func (m *Model) currentRow() *sheet.Row {
	rows := m.eng.VisibleRows()
	if m.cy < 0 || m.cy >= len(rows) {
		return nil
	}
	return rows[m.cy]
}

func (m *Model) currentCol() *sheet.Column {
	cols := m.visibleCols()
	if m.cx < 0 || m.cx >= len(cols) {
		return nil
	}
	return cols[m.cx]
}

// --- Grid (normal mode) ---

func (m Model) updateGrid(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	rows := m.eng.VisibleRows()
	cols := m.visibleCols()

	switch msg.String() {
	case "q", "esc":
		return m.closeSheet()
	case "ctrl+c":
		m.eng.Flush()
		return m, tea.Quit
	case "left", "h":
		if m.cx > 0 {
			m.cx--
		}
	case "right", "l":
		if m.cx < len(cols)-1 {
			m.cx++
		}
	case "up", "k":
		if m.cy > 0 {
			m.cy--
		}
	case "down", "j":
		if m.cy < len(rows)-1 {
			m.cy++
		}
	case "g", "ctrl+home":
		m.cy = 0
	case "G", "ctrl+end":
		m.cy = len(rows) - 1
		if m.cy < 0 {
			m.cy = 0
		}
	case "home":
		m.cx = 0
	case "end":
		m.cx = len(cols) - 1
		if m.cx < 0 {
			m.cx = 0
		}
	case "enter":
		return m.enterCell()
	case " ":
		if r := m.currentRow(); r != nil {
			m.eng.ToggleSelect(r.ID)
		}
	case "a":
		if _, err := m.eng.AddRow(); err != nil {
			m.err = err
			return m, nil
		}
		m.cy = len(m.eng.VisibleRows()) - 1
		return m, requestFlush
	case "A":
		m.mode = modePrompt
		m.prompt = promptNewColumn
		m.input.SetValue("")
		m.input.Placeholder = "column label"
		m.input.Focus()
	case "D":
		if m.eng.SelectionCount() == 0 {
			if r := m.currentRow(); r != nil {
				m.eng.ToggleSelect(r.ID)
			}
		}
		if m.eng.SelectionCount() > 0 {
			m.mode = modeConfirm
			m.confirm = confirmDeleteRows
		}
	case "s":
		if c := m.currentCol(); c != nil && c.Sortable {
			m.eng.ToggleSort(c.Key)
			m.clampCursor()
		}
	case "/":
		m.mode = modeSearch
		m.input.SetValue(m.eng.Query())
		m.input.Placeholder = "filter"
		m.input.Focus()
	case "f":
		m.mode = modeFields
		m.fieldCursor = 0
	case "<":
		return m.moveColumn(-1)
	case ">":
		return m.moveColumn(+1)
	case "-":
		return m.resizeColumn(-2 * 8)
	case "+", "=":
		return m.resizeColumn(+2 * 8)
	case "y":
		m.copyRows()
	case "P":
		return m.pasteCell()
	}
	return m, nil
}

// enterCell routes enter by column type: booleans toggle, image cells open
// the viewer, everything else starts a text edit.
func (m Model) enterCell() (tea.Model, tea.Cmd) {
	row, col := m.currentRow(), m.currentCol()
	if row == nil || col == nil {
		return m, nil
	}
	switch col.Type {
	case sheet.TypeBoolean:
		if err := m.eng.ToggleBool(row.ID, col.Key); err != nil {
			m.err = err
			return m, nil
		}
		return m, requestFlush
	case sheet.TypeImage:
		v, err := m.eng.OpenViewer(row.ID, col.Key, 0)
		if err != nil {
			m.err = err
			return m, nil
		}
		if !v.Open() {
			return m, nil
		}
		m.viewer = v
		m.mode = modeViewer
		return m, nil
	default:
		ed, err := m.eng.BeginEdit(row.ID, col.Key)
		if err != nil {
			m.err = err
			return m, nil
		}
		m.mode = modeEdit
		m.input.SetValue(ed.Buffer())
		m.input.Placeholder = ""
		m.input.CursorEnd()
		m.input.Focus()
		m.err = nil
	}
	return m, nil
}

func (m Model) moveColumn(delta int) (tea.Model, tea.Cmd) {
	col := m.currentCol()
	if col == nil {
		return m, nil
	}
	all := m.eng.Sheet().Columns
	from := -1
	for i, c := range all {
		if c.Key == col.Key {
			from = i
			break
		}
	}
	to := from + delta
	if from < 0 || to < 0 || to >= len(all) {
		return m, nil
	}
	if err := m.eng.MoveColumn(from, to); err != nil {
		m.err = err
		return m, nil
	}
	// follow the column
	for i, c := range m.visibleCols() {
		if c.Key == col.Key {
			m.cx = i
			break
		}
	}
	return m, requestFlush
}

func (m Model) resizeColumn(deltaPx int) (tea.Model, tea.Cmd) {
	col := m.currentCol()
	if col == nil {
		return m, nil
	}
	if err := m.eng.ResizeColumnCommit(col.Key, col.Width+deltaPx); err != nil {
		m.err = err
		return m, nil
	}
	return m, requestFlush
}

func (m *Model) copyRows() {
	added := false
	if m.eng.SelectionCount() == 0 {
		r := m.currentRow()
		if r == nil {
			return
		}
		m.eng.ToggleSelect(r.ID)
		added = true
	}
	if err := m.eng.CopySelected(); err != nil {
		m.err = err
	}
	if added {
		m.eng.ClearSelection()
	}
}

// pasteCell pushes the clipboard token through the editor so type parsing and
// validation apply exactly as if it had been typed.
func (m Model) pasteCell() (tea.Model, tea.Cmd) {
	row, col := m.currentRow(), m.currentCol()
	if row == nil || col == nil {
		return m, nil
	}
	token, err := m.eng.PasteToken()
	if err != nil {
		m.err = err
		return m, nil
	}
	ed, err := m.eng.BeginEdit(row.ID, col.Key)
	if err != nil {
		m.err = err
		return m, nil
	}
	ed.SetBuffer(token)
	if err := m.eng.CommitEdit(); err != nil {
		m.eng.CancelEdit()
		m.err = err
		return m, nil
	}
	return m, requestFlush
}

// --- Edit mode ---

func (m Model) updateEdit(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		if err := m.eng.CommitEdit(); err != nil {
			// invalid value blocks the commit; the editor stays open
			m.err = err
			return m, nil
		}
		m.mode = modeNormal
		m.err = nil
		m.input.Blur()
		if m.cy < len(m.eng.VisibleRows())-1 {
			m.cy++
		}
		return m, requestFlush
	case "esc":
		m.eng.CancelEdit()
		m.mode = modeNormal
		m.err = nil
		m.input.Blur()
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if ed := m.eng.Editing(); ed != nil {
		ed.SetBuffer(m.input.Value())
	}
	return m, cmd
}

// --- Search mode ---

func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.mode = modeNormal
		m.input.Blur()
		m.clampCursor()
		return m, nil
	case "esc":
		m.eng.SetQuery("")
		m.mode = modeNormal
		m.input.Blur()
		m.clampCursor()
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.eng.SetQuery(m.input.Value())
	m.clampCursor()
	return m, cmd
}

// --- Confirm mode ---

func (m Model) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		return m.confirmed()
	case "n", "N", "esc":
		m.mode = modeNormal
		if m.confirm == confirmDeleteRows {
			m.eng.ClearSelection()
		}
	}
	return m, nil
}

func (m Model) confirmed() (tea.Model, tea.Cmd) {
	m.mode = modeNormal
	switch m.confirm {
	case confirmDeleteRows:
		if err := m.eng.DeleteSelected(); err != nil {
			m.err = err
			return m, nil
		}
		m.clampCursor()
		return m, requestFlush
	case confirmDeleteColumn:
		col := m.currentCol()
		if col == nil {
			return m, nil
		}
		if err := m.eng.DeleteColumn(col.Key); err != nil {
			m.err = err
			return m, nil
		}
		m.clampCursor()
		return m, requestFlush
	case confirmDeleteSheet:
		if m.libCursor < len(m.infos) {
			if err := m.st.Delete(m.infos[m.libCursor].ID); err != nil {
				m.err = err
				return m, nil
			}
			m.reloadLibrary()
		}
	}
	return m, nil
}

// --- Prompt mode ---

func (m Model) updatePrompt(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		value := strings.TrimSpace(m.input.Value())
		m.input.Blur()
		return m.promptDone(value)
	case "esc":
		m.input.Blur()
		if m.prompt == promptRenameAttachment {
			m.mode = modeViewer
		} else {
			m.mode = modeNormal
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) promptDone(value string) (tea.Model, tea.Cmd) {
	m.mode = modeNormal
	if value == "" {
		return m, nil
	}
	switch m.prompt {
	case promptNewSheet:
		s, err := m.st.Create(value)
		if err != nil {
			m.err = err
			return m, nil
		}
		return m.openSheet(s.ID)
	case promptNewColumn:
		if _, err := m.eng.AddColumn(value, sheet.TypeText); err != nil {
			m.err = err
			return m, nil
		}
		m.eng.AutoFit()
		return m, requestFlush
	case promptRenameColumn:
		m.mode = modeFields
		cols := m.eng.Sheet().Columns
		if m.fieldCursor < len(cols) {
			if err := m.eng.SetColumnLabel(cols[m.fieldCursor].Key, value); err != nil {
				m.err = err
				return m, nil
			}
		}
		return m, requestFlush
	case promptRenameAttachment:
		m.mode = modeViewer
		if m.viewer != nil {
			if err := m.viewer.RenameCurrent(value); err != nil {
				m.err = err
				return m, nil
			}
		}
		return m, requestFlush
	}
	return m, nil
}

// --- Fields menu ---

func (m Model) updateFields(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	cols := m.eng.Sheet().Columns
	switch msg.String() {
	case "esc", "q", "f":
		m.mode = modeNormal
		m.clampCursor()
	case "up", "k":
		if m.fieldCursor > 0 {
			m.fieldCursor--
		}
	case "down", "j":
		if m.fieldCursor < len(cols)-1 {
			m.fieldCursor++
		}
	case "r":
		if m.fieldCursor < len(cols) {
			m.mode = modePrompt
			m.prompt = promptRenameColumn
			m.input.SetValue(cols[m.fieldCursor].Label)
			m.input.Placeholder = "column label"
			m.input.CursorEnd()
			m.input.Focus()
		}
	case "t":
		if m.fieldCursor < len(cols) {
			c := cols[m.fieldCursor]
			next := columnTypeCycle[0]
			for i, t := range columnTypeCycle {
				if t == c.Type {
					next = columnTypeCycle[(i+1)%len(columnTypeCycle)]
					break
				}
			}
			if err := m.eng.SetColumnType(c.Key, next); err != nil {
				m.err = err
				return m, nil
			}
			return m, requestFlush
		}
	case "h":
		if m.fieldCursor < len(cols) {
			c := cols[m.fieldCursor]
			if err := m.eng.SetColumnHidden(c.Key, !c.Hidden); err != nil {
				m.err = err
				return m, nil
			}
			m.clampCursor()
			return m, requestFlush
		}
	case "X":
		if m.fieldCursor < len(cols) {
			// point the grid cursor at the doomed column so confirm targets it
			for i, vc := range m.visibleCols() {
				if vc.Key == cols[m.fieldCursor].Key {
					m.cx = i
					break
				}
			}
			m.mode = modeConfirm
			m.confirm = confirmDeleteColumn
		}
	}
	return m, nil
}

// --- Viewer mode ---

func (m Model) updateViewer(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.viewer == nil {
		m.mode = modeNormal
		return m, nil
	}
	switch msg.String() {
	case "esc", "q":
		m.viewer.Close()
		m.viewer = nil
		m.mode = modeNormal
	case "right", "l", "n":
		m.viewer.Next()
	case "left", "h", "p":
		m.viewer.Prev()
	case "d":
		if err := m.viewer.DeleteCurrent(); err != nil {
			m.err = err
			return m, nil
		}
		if !m.viewer.Open() {
			m.viewer = nil
			m.mode = modeNormal
		}
		return m, requestFlush
	case "r":
		if a, ok := m.viewer.Current(); ok {
			m.mode = modePrompt
			m.prompt = promptRenameAttachment
			m.input.SetValue(a.DisplayName())
			m.input.Placeholder = "filename"
			m.input.CursorEnd()
			m.input.Focus()
		}
	case "o":
		if a, ok := m.viewer.Current(); ok {
			if _, err := downloadAttachment(a); err != nil {
				m.err = err
			}
		}
	}
	return m, nil
}

// --- Views ---

func (m Model) viewGrid() string {
	if m.mode == modeFields {
		return m.viewFields()
	}
	var b strings.Builder
	s := m.eng.Sheet()

	title := truncate(s.Name, 30)
	b.WriteString(titleStyle.Render(" " + title))
	if m.eng.Dirty() {
		b.WriteString(" *")
	}
	if q := m.eng.Query(); q != "" {
		b.WriteString(dimStyle.Render("  filter:" + q))
	}
	b.WriteString("\n")

	if m.err != nil {
		b.WriteString(errorStyle.Render(" " + m.err.Error()))
		b.WriteString("\n")
	}

	cols := m.visibleCols()
	rows := m.eng.VisibleRows()
	if len(cols) == 0 {
		b.WriteString(dimStyle.Render(" (no columns - press A to add one)\n"))
		b.WriteString(dimStyle.Render(" A col  f fields  q back"))
		return b.String()
	}

	widths := make([]int, len(cols))
	for i, c := range cols {
		widths[i] = sheet.CellsForWidth(c.Width)
	}

	gutter := len(fmt.Sprint(len(rows))) + 2
	dataHeight := m.height - 6
	if m.err != nil {
		dataHeight--
	}
	if dataHeight < 1 {
		dataHeight = 1
	}
	if m.cy < m.scrollY {
		m.scrollY = m.cy
	}
	if m.cy >= m.scrollY+dataHeight {
		m.scrollY = m.cy - dataHeight + 1
	}

	visStart, visEnd := m.visibleColRange(widths, gutter)
	sortKey, sortDir := m.eng.Sort()

	// header
	b.WriteString(strings.Repeat(" ", gutter))
	for ci := visStart; ci < visEnd; ci++ {
		w := widths[ci]
		label := cols[ci].Label
		if cols[ci].Key == sortKey {
			switch sortDir {
			case sheet.SortAsc:
				label += " ^"
			case sheet.SortDesc:
				label += " v"
			}
		}
		b.WriteString(headerStyle.Render(fmt.Sprintf(" %-*s ", w, truncate(label, w))))
		if ci < visEnd-1 {
			b.WriteString(dimStyle.Render("|"))
		}
	}
	b.WriteString("\n")

	// rows
	endRow := m.scrollY + dataHeight
	if endRow > len(rows) {
		endRow = len(rows)
	}
	for ri := m.scrollY; ri < endRow; ri++ {
		row := rows[ri]
		mark := " "
		if m.eng.Selected(row.ID) {
			mark = "*"
		}
		gut := fmt.Sprintf("%s%*d ", mark, gutter-2, ri+1)
		if m.eng.Selected(row.ID) {
			b.WriteString(selectedStyle.Render(gut))
		} else {
			b.WriteString(dimStyle.Render(gut))
		}
		for ci := visStart; ci < visEnd; ci++ {
			w := widths[ci]
			c := cols[ci]
			b.WriteString(m.renderCell(row, c, w, ri == m.cy && ci == m.cx))
			if ci < visEnd-1 {
				b.WriteString(dimStyle.Render("│"))
			}
		}
		b.WriteString("\n")
	}

	// status + help
	modeStr := "NORMAL"
	if m.mode == modeEdit {
		modeStr = "EDIT"
	} else if m.mode == modeSearch {
		modeStr = "SEARCH"
	} else if m.mode == modeConfirm {
		modeStr = "CONFIRM"
	} else if m.mode == modePrompt {
		modeStr = "PROMPT"
	}
	status := fmt.Sprintf(" [%d,%d] %s  %dx%d", m.cx, m.cy, modeStr, len(cols), len(rows))
	if n := m.eng.SelectionCount(); n > 0 {
		status += fmt.Sprintf("  %d selected", n)
	}
	b.WriteString(statusStyle.Render(status))
	b.WriteString("\n")

	switch m.mode {
	case modeSearch:
		b.WriteString(" /" + m.input.View())
	case modePrompt:
		b.WriteString(" " + m.input.View())
	case modeConfirm:
		switch m.confirm {
		case confirmDeleteRows:
			b.WriteString(errorStyle.Render(fmt.Sprintf(" delete %d row(s)? (y/n)", m.eng.SelectionCount())))
		case confirmDeleteColumn:
			b.WriteString(errorStyle.Render(" delete this column and all its data? (y/n)"))
		}
	case modeEdit:
		b.WriteString(dimStyle.Render(" enter commit  esc cancel"))
	default:
		b.WriteString(dimStyle.Render(" hjkl move  enter edit  space select  a row  A col  D del  s sort  / filter  f fields  y copy  P paste  q back"))
	}
	return b.String()
}

func (m Model) renderCell(row *sheet.Row, c *sheet.Column, w int, underCursor bool) string {
	cell := row.Cells[c.Key]
	var display string
	invalid := false
	if underCursor && m.mode == modeEdit {
		ed := m.eng.Editing()
		if ed != nil {
			display = ed.Buffer() + "_"
			invalid = ed.Invalid()
		}
	} else if cell != nil {
		display = sheet.FormatValue(cell.Value, c)
	}
	if len(display) > w {
		display = truncate(display, w)
	}
	var aligned string
	if c.Type == sheet.TypeNumber && !(underCursor && m.mode == modeEdit) {
		aligned = fmt.Sprintf(" %*s ", w, display)
	} else {
		aligned = fmt.Sprintf(" %-*s ", w, display)
	}
	switch {
	case underCursor && invalid:
		return invalidStyle.Render(aligned)
	case underCursor:
		return cursorStyle.Render(aligned)
	default:
		return aligned
	}
}

func (m Model) visibleColRange(widths []int, gutter int) (int, int) {
	avail := m.width - gutter - 1
	start := m.scrollX
	if start >= len(widths) {
		start = 0
	}
	used := 0
	end := start
	for end < len(widths) {
		w := widths[end] + 3
		if used+w > avail && end > start {
			break
		}
		used += w
		end++
	}
	if m.cx >= end {
		end = m.cx + 1
		used = 0
		for i := end - 1; i >= 0; i-- {
			used += widths[i] + 3
			if used > avail {
				start = i + 1
				break
			}
			start = i
		}
	}
	if m.cx < start {
		start = m.cx
	}
	return start, end
}

func (m Model) viewFields() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(" Fields"))
	b.WriteString("\n\n")
	for i, c := range m.eng.Sheet().Columns {
		cursor := "  "
		if i == m.fieldCursor {
			cursor = "> "
		}
		hidden := " "
		if c.Hidden {
			hidden = "H"
		}
		line := fmt.Sprintf("%s%s %-24s %-16s w%d", cursor, hidden, truncate(c.Label, 24), c.Type, c.Width)
		if i == m.fieldCursor {
			b.WriteString(cursorStyle.Render(line))
		} else {
			b.WriteString(line)
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
	if m.err != nil {
		b.WriteString(errorStyle.Render(" " + m.err.Error()))
		b.WriteString("\n")
	}
	b.WriteString(dimStyle.Render(" j/k move  r rename  t type  h hide  X delete  esc back"))
	return b.String()
}

func (m Model) viewAttachments() string {
	var b strings.Builder
	if m.viewer == nil {
		return ""
	}
	a, ok := m.viewer.Current()
	if !ok {
		return dimStyle.Render(" no attachments")
	}
	b.WriteString(titleStyle.Render(" Attachments"))
	b.WriteString(fmt.Sprintf("  %d/%d\n\n", m.viewer.Index+1, m.viewer.Len()))
	b.WriteString("  " + a.DisplayName() + "\n")
	b.WriteString(dimStyle.Render("  "+a.URL) + "\n")
	if a.MimeType != "" || a.Size > 0 {
		b.WriteString(dimStyle.Render(fmt.Sprintf("  %s  %d bytes", a.MimeType, a.Size)) + "\n")
	}
	if a.Legacy {
		b.WriteString(dimStyle.Render("  legacy record (rename unavailable)") + "\n")
	}
	if m.viewer.ShowStrip() {
		b.WriteString("\n  ")
		for i := 0; i < m.viewer.Len(); i++ {
			if i == m.viewer.Index {
				b.WriteString(cursorStyle.Render("[#]"))
			} else {
				b.WriteString(dimStyle.Render("[ ]"))
			}
		}
		b.WriteString("\n")
	}
	if m.err != nil {
		b.WriteString(errorStyle.Render(" " + m.err.Error()))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	if m.mode == modePrompt {
		b.WriteString(" rename: " + m.input.View())
	} else {
		b.WriteString(dimStyle.Render(" h/l navigate  d delete  r rename  o download  esc close"))
	}
	return b.String()
}
