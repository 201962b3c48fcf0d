package link

// Assembler splits a byte stream into lines: CR is ignored, LF ends a line,
// CAN discards the partial line, and bytes past MaxLine are dropped until the
// next LF.
type Assembler struct {
	MaxLine int

	line      []byte
	truncated uint32
	over      bool
}

const DefaultMaxLine = 128

// CancelLine (ASCII CAN) drops whatever partial line is buffered.
const CancelLine = 0x18

func NewAssembler(max int) *Assembler {
	if max <= 0 {
		max = DefaultMaxLine
	}
	return &Assembler{MaxLine: max, line: make([]byte, 0, max)}
}

// Feed consumes p and calls emit for each complete line. Empty lines are skipped.
func (a *Assembler) Feed(p []byte, emit func(line string)) {
	for _, b := range p {
		switch b {
		case '\n':
			if len(a.line) > 0 {
				emit(string(a.line))
			}
			a.line = a.line[:0]
			a.over = false
		case '\r':
		case CancelLine:
			a.line = a.line[:0]
			a.over = false
		default:
			if len(a.line) < a.MaxLine {
				a.line = append(a.line, b)
			} else if !a.over {
				a.over = true
				a.truncated++
			}
		}
	}
}

// Truncated counts lines that exceeded MaxLine.
func (a *Assembler) Truncated() uint32 { return a.truncated }
