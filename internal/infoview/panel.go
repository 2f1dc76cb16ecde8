package infoview

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/uniseg"

	"github.com/leantools/leanview/internal/lsp"
)

// Action is what a key event asks the application to do.
type Action int

const (
	ActionNone Action = iota
	ActionMoved
	ActionTogglePause
	ActionRestart
	ActionQuit
)

// Panel is the terminal surface: a read-only document viewport on the
// left and the goal display on the right, with a status line below.
// All methods must be called from the UI goroutine.
type Panel struct {
	screen tcell.Screen
	state  *State

	path string
	doc  *lsp.PositionConverter

	cursorLine int // 0-based line
	cursorCol  int // 0-based rune column
	topLine    int // first visible document line

	statusLeft  string
	statusRight string
}

var (
	styleDefault  = tcell.StyleDefault
	styleBorder   = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleCursor   = tcell.StyleDefault.Reverse(true)
	styleStatus   = tcell.StyleDefault.Reverse(true)
	styleHeader   = tcell.StyleDefault.Bold(true)
	styleTurnstil = tcell.StyleDefault.Foreground(tcell.ColorTeal)
	styleAdded    = tcell.StyleDefault.Foreground(tcell.ColorGreen)
	styleRemoved  = tcell.StyleDefault.Foreground(tcell.ColorRed)
	styleError    = tcell.StyleDefault.Foreground(tcell.ColorRed)
	styleLineNum  = tcell.StyleDefault.Foreground(tcell.ColorGray)
)

// NewPanel creates a panel displaying the given document content.
func NewPanel(screen tcell.Screen, state *State, path, content string) *Panel {
	return &Panel{
		screen: screen,
		state:  state,
		path:   path,
		doc:    lsp.NewPositionConverter(content),
	}
}

// Path returns the displayed document path.
func (p *Panel) Path() string {
	return p.path
}

// CursorPosition returns the cursor as an LSP position.
func (p *Panel) CursorPosition() lsp.Position {
	return p.doc.FromRuneColumn(p.cursorLine, p.cursorCol)
}

// SetStatus sets the status line halves.
func (p *Panel) SetStatus(left, right string) {
	p.statusLeft = left
	p.statusRight = right
}

// HandleKey interprets a key event, moving the cursor when applicable,
// and returns the action the application should take.
func (p *Panel) HandleKey(ev *tcell.EventKey) Action {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return ActionQuit
	case tcell.KeyUp:
		return p.moveCursor(-1, 0)
	case tcell.KeyDown:
		return p.moveCursor(1, 0)
	case tcell.KeyLeft:
		return p.moveCursor(0, -1)
	case tcell.KeyRight:
		return p.moveCursor(0, 1)
	case tcell.KeyPgUp:
		_, h := p.screen.Size()
		return p.moveCursor(-(h - 2), 0)
	case tcell.KeyPgDn:
		_, h := p.screen.Size()
		return p.moveCursor(h-2, 0)
	case tcell.KeyHome:
		p.cursorCol = 0
		return ActionMoved
	case tcell.KeyEnd:
		p.cursorCol = p.doc.RuneLen(p.cursorLine)
		return ActionMoved
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'q':
			return ActionQuit
		case 'k':
			return p.moveCursor(-1, 0)
		case 'j':
			return p.moveCursor(1, 0)
		case 'h':
			return p.moveCursor(0, -1)
		case 'l':
			return p.moveCursor(0, 1)
		case 'g':
			p.cursorLine, p.cursorCol = 0, 0
			return ActionMoved
		case 'G':
			p.cursorLine = p.doc.LineCount() - 1
			p.cursorCol = 0
			return ActionMoved
		case 'p':
			return ActionTogglePause
		case 'r':
			return ActionRestart
		}
	}
	return ActionNone
}

func (p *Panel) moveCursor(dLine, dCol int) Action {
	line := p.cursorLine + dLine
	if line < 0 {
		line = 0
	}
	if max := p.doc.LineCount() - 1; line > max {
		line = max
	}
	col := p.cursorCol + dCol
	if col < 0 {
		col = 0
	}
	if max := p.doc.RuneLen(line); col > max {
		col = max
	}
	if line == p.cursorLine && col == p.cursorCol {
		return ActionNone
	}
	p.cursorLine, p.cursorCol = line, col
	return ActionMoved
}

// Draw repaints the whole screen.
func (p *Panel) Draw() {
	width, height := p.screen.Size()
	if width < 4 || height < 2 {
		return
	}
	p.screen.Clear()

	docWidth := width * 55 / 100
	infoX := docWidth + 1
	infoWidth := width - infoX
	bodyHeight := height - 1

	p.scrollIntoView(bodyHeight)
	p.drawDocument(docWidth, bodyHeight)
	for y := 0; y < bodyHeight; y++ {
		p.screen.SetContent(docWidth, y, '│', nil, styleBorder)
	}
	p.drawInfoview(infoX, infoWidth, bodyHeight)
	p.drawStatus(width, height-1)

	p.screen.Show()
}

func (p *Panel) scrollIntoView(bodyHeight int) {
	if p.cursorLine < p.topLine {
		p.topLine = p.cursorLine
	}
	if p.cursorLine >= p.topLine+bodyHeight {
		p.topLine = p.cursorLine - bodyHeight + 1
	}
}

func (p *Panel) drawDocument(width, height int) {
	gutter := len(fmt.Sprintf("%d", p.doc.LineCount())) + 1

	for y := 0; y < height; y++ {
		line := p.topLine + y
		if line >= p.doc.LineCount() {
			break
		}

		num := fmt.Sprintf("%*d ", gutter-1, line+1)
		drawString(p.screen, 0, y, num, styleLineNum)

		x := gutter
		col := 0
		for _, r := range p.doc.Line(line) {
			if x >= width {
				break
			}
			style := styleDefault
			if line == p.cursorLine && col == p.cursorCol {
				style = styleCursor
			}
			p.screen.SetContent(x, y, r, nil, style)
			x += runeWidth(r)
			col++
		}
		// Cursor sits past the end of the line.
		if line == p.cursorLine && col == p.cursorCol && x < width {
			p.screen.SetContent(x, y, ' ', nil, styleCursor)
		}
	}
}

func (p *Panel) drawInfoview(x, width, height int) {
	lines := WrapText(p.state.RenderText(), width)
	for y, line := range lines {
		if y >= height {
			break
		}
		drawString(p.screen, x, y, line, infoLineStyle(line))
	}
}

// infoLineStyle styles a rendered infoview line by its lead marker.
func infoLineStyle(line string) tcell.Style {
	switch {
	case strings.HasPrefix(line, "+ "):
		return styleAdded
	case strings.HasPrefix(line, "- "):
		return styleRemoved
	case strings.HasPrefix(line, "⊢"):
		return styleTurnstil
	case strings.HasPrefix(line, "Error:"), strings.HasPrefix(line, "[error]"):
		return styleError
	case strings.HasSuffix(line, "goal"), strings.HasSuffix(line, "goals"),
		strings.HasPrefix(line, "case "), line == Accomplished:
		return styleHeader
	default:
		return styleDefault
	}
}

func (p *Panel) drawStatus(width, y int) {
	left := Truncate(p.statusLeft, width)
	right := p.statusRight

	for x := 0; x < width; x++ {
		p.screen.SetContent(x, y, ' ', nil, styleStatus)
	}
	drawString(p.screen, 1, y, left, styleStatus)

	rw := uniseg.StringWidth(right)
	if width-rw-1 > uniseg.StringWidth(left)+2 {
		drawString(p.screen, width-rw-1, y, right, styleStatus)
	}
}

func drawString(screen tcell.Screen, x, y int, s string, style tcell.Style) {
	for _, r := range s {
		screen.SetContent(x, y, r, nil, style)
		x += runeWidth(r)
	}
}

func runeWidth(r rune) int {
	w := uniseg.StringWidth(string(r))
	if w < 1 {
		return 1
	}
	return w
}
