package newick

import (
	"context"
	"strconv"
	"strings"

	"github.com/canopyviz/canopy/pkg/errors"
	"github.com/canopyviz/canopy/pkg/progress"
	"github.com/canopyviz/canopy/pkg/soa"
)

// SyntheticRootName names the root added when the input holds more than one
// top-level tree.
const SyntheticRootName = "root"

// Option configures Parse.
type Option func(*parser)

// WithProgress reports parse progress by input position.
func WithProgress(fn progress.Func) Option {
	return func(p *parser) { p.onProgress = fn }
}

// WithLimit stops parsing once n nodes exist and returns the partial tree.
// Zero means no limit.
func WithLimit(n int) Option {
	return func(p *parser) { p.limit = n }
}

// WithContext stops parsing with a TIMEOUT error once ctx is done. The
// context is checked at each progress step.
func WithContext(ctx context.Context) Option {
	return func(p *parser) { p.ctx = ctx }
}

// Strict rejects input whose groups are still open at end of text or at ';',
// and unterminated quoted labels or comments. Without it such input yields the
// topology built so far.
func Strict() Option {
	return func(p *parser) { p.strict = true }
}

type parser struct {
	src string
	pos int

	parent   *soa.Vec[int32]
	children *soa.Vec[[]int32]
	names    *soa.Vec[string]
	lengths  *soa.Vec[float64]

	stack []int32
	cur   int32 // innermost open group, -1 at top level
	last  int32 // target of a following ':' (last leaf or last closed group)
	// closed is true when last is a group that was just closed and may still
	// receive a label.
	closed bool

	ctx          context.Context
	onProgress   progress.Func
	nextProgress int
	limit        int
	strict       bool
}

// Parse parses one Newick tree. It stops at the first ';' or at end of text.
// A ')' with no open group and a malformed branch length are NEWICK_SYNTAX
// errors; text with no node at all is INVALID_INPUT.
func Parse(text string, opts ...Option) (*Tree, error) {
	estimate := max(16, strings.Count(text, ",")*2+2)
	p := &parser{
		src:      text,
		parent:   soa.NewVec[int32](estimate),
		children: soa.NewVec[[]int32](estimate),
		names:    soa.NewVec[string](estimate),
		lengths:  soa.NewVec[float64](estimate),
		cur:      -1,
		last:     -1,
	}
	for _, opt := range opts {
		opt(p)
	}
	if err := p.run(); err != nil {
		return nil, err
	}
	return p.finish()
}

func (p *parser) run() error {
	step := max(1, len(p.src)/100)
	p.nextProgress = step
	for p.pos < len(p.src) {
		if p.limit > 0 && p.parent.Len() >= p.limit {
			break
		}
		if p.pos >= p.nextProgress {
			if p.ctx != nil {
				if err := p.ctx.Err(); err != nil {
					return errors.Wrap(errors.ErrCodeTimeout, err, "parse interrupted at offset %d", p.pos)
				}
			}
			p.onProgress.Report("Parsing Newick", 100*float64(p.pos)/float64(len(p.src)))
			p.nextProgress += step
		}

		c := p.src[p.pos]
		switch c {
		case ' ', '\t', '\n', '\r':
			p.pos++
		case '(':
			p.pos++
			u := p.addNode("")
			p.stack = append(p.stack, p.cur)
			p.cur = u
			p.last, p.closed = -1, false
		case ',':
			p.pos++
			p.last, p.closed = -1, false
		case ')':
			if len(p.stack) == 0 {
				return errors.New(errors.ErrCodeNewickSyntax, "unexpected ')' at offset %d", p.pos)
			}
			p.pos++
			p.last, p.closed = p.cur, true
			p.cur = p.stack[len(p.stack)-1]
			p.stack = p.stack[:len(p.stack)-1]
		case ';':
			return p.checkClosed()
		case ':':
			if err := p.branchLength(); err != nil {
				return err
			}
		case '[':
			end := strings.IndexByte(p.src[p.pos:], ']')
			if end < 0 {
				if p.strict {
					return errors.New(errors.ErrCodeNewickSyntax, "unterminated comment at offset %d", p.pos)
				}
				p.pos = len(p.src)
				break
			}
			p.pos += end + 1
		case '\'':
			name, err := p.quoted()
			if err != nil {
				return err
			}
			p.label(name)
		default:
			p.label(p.bare())
		}
	}
	return p.checkClosed()
}

func (p *parser) checkClosed() error {
	if p.strict && len(p.stack) > 0 {
		return errors.New(errors.ErrCodeNewickSyntax, "%d unclosed group(s) at end of tree", len(p.stack))
	}
	return nil
}

func (p *parser) addNode(name string) int32 {
	u := int32(p.parent.Len())
	p.parent.Push(p.cur)
	p.children.Push(nil)
	p.names.Push(name)
	p.lengths.Push(0)
	if p.cur >= 0 {
		p.children.Set(int(p.cur), append(p.children.At(int(p.cur)), u))
	}
	return u
}

// label names the group just closed, or adds a new leaf.
func (p *parser) label(name string) {
	if p.closed && p.last >= 0 && p.names.At(int(p.last)) == "" {
		p.names.Set(int(p.last), name)
		return
	}
	p.last, p.closed = p.addNode(name), false
}

// branchLength parses ":<number>" and applies it to the last node. A length
// with no preceding node creates an anonymous leaf to carry it.
func (p *parser) branchLength() error {
	start := p.pos
	p.pos++
	for p.pos < len(p.src) && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t') {
		p.pos++
	}
	numStart := p.pos
	for p.pos < len(p.src) && isNumberByte(p.src[p.pos]) {
		p.pos++
	}
	v, err := strconv.ParseFloat(p.src[numStart:p.pos], 64)
	if err != nil {
		return errors.Wrap(errors.ErrCodeNewickSyntax, err, "bad branch length at offset %d", start)
	}
	if p.last < 0 {
		p.last, p.closed = p.addNode(""), false
	}
	p.lengths.Set(int(p.last), v)
	return nil
}

func isNumberByte(c byte) bool {
	return (c >= '0' && c <= '9') || c == '.' || c == '-' || c == '+' || c == 'e' || c == 'E'
}

// bare reads an unquoted label up to the next structural character.
func (p *parser) bare() string {
	start := p.pos
	for p.pos < len(p.src) && !strings.ContainsRune("(),:;[", rune(p.src[p.pos])) {
		p.pos++
	}
	return strings.TrimSpace(p.src[start:p.pos])
}

// quoted reads a single-quoted label; '' inside it is a literal quote.
func (p *parser) quoted() (string, error) {
	start := p.pos
	p.pos++
	var sb strings.Builder
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if c == '\'' {
			if p.pos+1 < len(p.src) && p.src[p.pos+1] == '\'' {
				sb.WriteByte('\'')
				p.pos += 2
				continue
			}
			p.pos++
			return sb.String(), nil
		}
		sb.WriteByte(c)
		p.pos++
	}
	if p.strict {
		return "", errors.New(errors.ErrCodeNewickSyntax, "unterminated quoted label at offset %d", start)
	}
	return sb.String(), nil
}

func (p *parser) finish() (*Tree, error) {
	t := &Tree{
		Parent:        p.parent.Trim(),
		Children:      p.children.Trim(),
		Names:         p.names.Trim(),
		BranchLengths: p.lengths.Trim(),
		Root:          -1,
	}
	var roots []int32
	for i, par := range t.Parent {
		if par < 0 {
			roots = append(roots, int32(i))
		}
	}
	switch len(roots) {
	case 0:
		return nil, errors.New(errors.ErrCodeInvalidInput, "no Newick tree found")
	case 1:
		t.Root = roots[0]
	default:
		root := int32(len(t.Parent))
		for _, r := range roots {
			t.Parent[r] = root
		}
		t.Parent = append(t.Parent, -1)
		t.Children = append(t.Children, roots)
		t.Names = append(t.Names, SyntheticRootName)
		t.BranchLengths = append(t.BranchLengths, 0)
		t.Root = root
	}
	p.onProgress.Report("Parsing Newick", 100)
	return t, nil
}
