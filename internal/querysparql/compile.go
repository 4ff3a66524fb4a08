// Package querysparql renders queryir trees as SPARQL 1.1 text.
//
// Compiler is the only place in the module that produces query text. Every
// literal goes through codec.Format, and every name, variable and function
// is checked against the SPARQL grammar before it is written, so a value
// taken from user input can never change the shape of a query.
package querysparql

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/roach88/iadas/internal/codec"
	"github.com/roach88/iadas/internal/queryir"
)

const indentUnit = "  "

var (
	varPattern    = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	pnamePattern  = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]*:[A-Za-z0-9_][A-Za-z0-9_.-]*$`)
	prefixPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]*$`)
	funcPattern   = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*(:[A-Za-z][A-Za-z0-9_]*)?$`)
	iriPattern    = regexp.MustCompile(`^[^<>"{}|^\x60\\\x00-\x20]*$`)
)

var binaryOps = map[string]bool{
	"=": true, "!=": true, "<": true, "<=": true, ">": true, ">=": true,
	"&&": true, "||": true,
}

// Compiler renders queryir queries to SPARQL text.
type Compiler struct{}

// NewCompiler creates a Compiler.
func NewCompiler() *Compiler {
	return &Compiler{}
}

// Compile renders q. It fails on unsupported node types and on names that
// are not valid SPARQL tokens; no partial text is returned on error.
func (c *Compiler) Compile(q queryir.Query) (string, error) {
	if q == nil {
		return "", fmt.Errorf("cannot compile nil query")
	}

	w := &writer{}
	var err error
	switch query := q.(type) {
	case queryir.Select:
		err = w.selectQuery(query)
	case *queryir.Select:
		err = w.selectQuery(*query)
	case queryir.InsertData:
		err = w.prefixed(query.Prefixes, func() error { return w.insertData(query) })
	case *queryir.InsertData:
		err = w.prefixed(query.Prefixes, func() error { return w.insertData(*query) })
	case queryir.Modify:
		err = w.prefixed(query.Prefixes, func() error { return w.modify(query) })
	case *queryir.Modify:
		err = w.prefixed(query.Prefixes, func() error { return w.modify(*query) })
	case queryir.Update:
		err = w.update(query)
	case *queryir.Update:
		err = w.update(*query)
	default:
		return "", fmt.Errorf("unsupported query type: %T", q)
	}
	if err != nil {
		return "", err
	}
	return w.String(), nil
}

// writer accumulates query text line by line.
type writer struct {
	strings.Builder
}

func (w *writer) line(indent int, text string) {
	w.WriteString(strings.Repeat(indentUnit, indent))
	w.WriteString(text)
	w.WriteByte('\n')
}

// prefixed writes the PREFIX block followed by a blank line, then body.
func (w *writer) prefixed(prefixes []queryir.Prefix, body func() error) error {
	if len(prefixes) > 0 {
		for _, p := range prefixes {
			if !prefixPattern.MatchString(p.Name) {
				return fmt.Errorf("invalid prefix name %q", p.Name)
			}
			if !iriPattern.MatchString(p.IRI) {
				return fmt.Errorf("invalid prefix IRI %q", p.IRI)
			}
			w.line(0, fmt.Sprintf("PREFIX %s: <%s>", p.Name, p.IRI))
		}
		w.WriteByte('\n')
	}
	return body()
}

func (w *writer) selectQuery(q queryir.Select) error {
	return w.prefixed(q.Prefixes, func() error {
		if len(q.Projection) == 0 {
			return fmt.Errorf("SELECT without projected variables")
		}
		head := "SELECT "
		if q.Distinct {
			head += "DISTINCT "
		}
		vars, err := varList(q.Projection)
		if err != nil {
			return err
		}
		w.line(0, head+vars+" WHERE {")
		if err := w.patterns(1, q.Where); err != nil {
			return err
		}
		w.line(0, "}")

		if len(q.OrderBy) > 0 {
			order, err := varList(q.OrderBy)
			if err != nil {
				return err
			}
			w.line(0, "ORDER BY "+order)
		}
		if q.Limit < 0 {
			return fmt.Errorf("negative LIMIT %d", q.Limit)
		}
		if q.Limit > 0 {
			w.line(0, "LIMIT "+strconv.Itoa(q.Limit))
		}
		return nil
	})
}

func (w *writer) insertData(q queryir.InsertData) error {
	w.line(0, "INSERT DATA {")
	if err := w.blocks(1, q.Blocks); err != nil {
		return err
	}
	w.line(0, "}")
	return nil
}

func (w *writer) modify(q queryir.Modify) error {
	if len(q.Delete) > 0 {
		w.line(0, "DELETE {")
		if err := w.blocks(1, q.Delete); err != nil {
			return err
		}
		w.line(0, "}")
	}
	if len(q.Insert) > 0 {
		w.line(0, "INSERT {")
		if err := w.blocks(1, q.Insert); err != nil {
			return err
		}
		w.line(0, "}")
	}
	w.line(0, "WHERE {")
	if err := w.patterns(1, q.Where); err != nil {
		return err
	}
	w.line(0, "}")
	return nil
}

// update writes each operation after one shared prefix block, separating
// operations with ";".
func (w *writer) update(q queryir.Update) error {
	if len(q.Operations) == 0 {
		return fmt.Errorf("update request without operations")
	}
	return w.prefixed(q.Prefixes, func() error {
		for i, op := range q.Operations {
			if i > 0 {
				w.line(0, ";")
				w.WriteByte('\n')
			}
			var err error
			switch o := op.(type) {
			case queryir.InsertData:
				err = w.insertData(o)
			case *queryir.InsertData:
				err = w.insertData(*o)
			case queryir.Modify:
				err = w.modify(o)
			case *queryir.Modify:
				err = w.modify(*o)
			default:
				err = fmt.Errorf("unsupported update operation: %T", op)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// blocks writes template blocks separated by blank lines.
func (w *writer) blocks(indent int, blocks []queryir.Block) error {
	for i, b := range blocks {
		if i > 0 {
			w.WriteByte('\n')
		}
		if err := w.block(indent, b); err != nil {
			return err
		}
	}
	return nil
}

// block writes a subject with its predicate-object list:
//
//	s p1 o1 ;
//	    p2 o2 .
func (w *writer) block(indent int, b queryir.Block) error {
	if len(b.Properties) == 0 {
		return fmt.Errorf("block without properties")
	}
	if b.Comment != "" {
		if strings.ContainsAny(b.Comment, "\r\n") {
			return fmt.Errorf("comment spans lines: %q", b.Comment)
		}
		w.line(indent, "# "+b.Comment)
	}
	subject, err := term(b.Subject)
	if err != nil {
		return err
	}
	for i, po := range b.Properties {
		pred, err := term(po.Predicate)
		if err != nil {
			return err
		}
		obj, err := term(po.Object)
		if err != nil {
			return err
		}
		end := " ;"
		if i == len(b.Properties)-1 {
			end = " ."
		}
		if i == 0 {
			w.line(indent, subject+" "+pred+" "+obj+end)
		} else {
			w.line(indent+2, pred+" "+obj+end)
		}
	}
	return nil
}

func (w *writer) patterns(indent int, patterns []queryir.Pattern) error {
	for _, p := range patterns {
		if err := w.pattern(indent, p); err != nil {
			return err
		}
	}
	return nil
}

func (w *writer) pattern(indent int, p queryir.Pattern) error {
	switch pat := p.(type) {
	case queryir.Triple:
		text, err := triple(pat)
		if err != nil {
			return err
		}
		w.line(indent, text+" .")
	case queryir.Block:
		return w.block(indent, pat)
	case queryir.Optional:
		if len(pat.Patterns) == 1 {
			if t, ok := pat.Patterns[0].(queryir.Triple); ok {
				text, err := triple(t)
				if err != nil {
					return err
				}
				w.line(indent, "OPTIONAL { "+text+" }")
				return nil
			}
		}
		w.line(indent, "OPTIONAL {")
		if err := w.patterns(indent+1, pat.Patterns); err != nil {
			return err
		}
		w.line(indent, "}")
	case queryir.Union:
		if len(pat.Groups) == 0 {
			return fmt.Errorf("UNION without groups")
		}
		for i, g := range pat.Groups {
			if i > 0 {
				w.line(indent, "UNION")
			}
			w.line(indent, "{")
			if err := w.patterns(indent+1, g); err != nil {
				return err
			}
			w.line(indent, "}")
		}
	case queryir.Bind:
		e, err := expr(pat.Expr, false)
		if err != nil {
			return err
		}
		v, err := variable(pat.As)
		if err != nil {
			return err
		}
		w.line(indent, "BIND("+e+" AS "+v+")")
	case queryir.Filter:
		e, err := expr(pat.Expr, false)
		if err != nil {
			return err
		}
		w.line(indent, "FILTER("+e+")")
	default:
		return fmt.Errorf("unsupported pattern type: %T", p)
	}
	return nil
}

func triple(t queryir.Triple) (string, error) {
	s, err := term(t.Subject)
	if err != nil {
		return "", err
	}
	p, err := term(t.Predicate)
	if err != nil {
		return "", err
	}
	o, err := term(t.Object)
	if err != nil {
		return "", err
	}
	return s + " " + p + " " + o, nil
}

func term(t queryir.Term) (string, error) {
	switch v := t.(type) {
	case queryir.Var:
		return variable(v)
	case queryir.PName:
		return pname(v)
	case queryir.IRIRef:
		if !iriPattern.MatchString(string(v)) {
			return "", fmt.Errorf("invalid IRI %q", string(v))
		}
		return "<" + string(v) + ">", nil
	case queryir.Lit:
		return codec.Format(v.Literal), nil
	case queryir.Path:
		if len(v.Steps) == 0 {
			return "", fmt.Errorf("empty property path")
		}
		steps := make([]string, len(v.Steps))
		for i, s := range v.Steps {
			name, err := pname(s)
			if err != nil {
				return "", err
			}
			if v.Inverse {
				name = "^" + name
			}
			steps[i] = name
		}
		return strings.Join(steps, "/"), nil
	case nil:
		return "", fmt.Errorf("missing term")
	default:
		return "", fmt.Errorf("unsupported term type: %T", t)
	}
}

func pname(p queryir.PName) (string, error) {
	if p == queryir.RDFType {
		return "a", nil
	}
	if !pnamePattern.MatchString(string(p)) {
		return "", fmt.Errorf("invalid prefixed name %q", string(p))
	}
	return string(p), nil
}

func variable(v queryir.Var) (string, error) {
	if !varPattern.MatchString(string(v)) {
		return "", fmt.Errorf("invalid variable name %q", string(v))
	}
	return "?" + string(v), nil
}

func varList(vars []queryir.Var) (string, error) {
	parts := make([]string, len(vars))
	for i, v := range vars {
		s, err := variable(v)
		if err != nil {
			return "", err
		}
		parts[i] = s
	}
	return strings.Join(parts, " "), nil
}

// expr renders an expression. Nested binary operations are parenthesized;
// the outermost one is not, since FILTER( ) already groups it.
func expr(e queryir.Expr, nested bool) (string, error) {
	switch v := e.(type) {
	case queryir.Var:
		return variable(v)
	case queryir.Lit:
		return codec.Format(v.Literal), nil
	case queryir.Number:
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return "", fmt.Errorf("non-finite number %v", f)
		}
		return strconv.FormatFloat(f, 'f', -1, 64), nil
	case queryir.Call:
		if !funcPattern.MatchString(v.Func) {
			return "", fmt.Errorf("invalid function name %q", v.Func)
		}
		args := make([]string, len(v.Args))
		for i, a := range v.Args {
			s, err := expr(a, false)
			if err != nil {
				return "", err
			}
			args[i] = s
		}
		return v.Func + "(" + strings.Join(args, ", ") + ")", nil
	case queryir.Binary:
		if !binaryOps[v.Op] {
			return "", fmt.Errorf("unsupported operator %q", v.Op)
		}
		left, err := expr(v.Left, true)
		if err != nil {
			return "", err
		}
		right, err := expr(v.Right, true)
		if err != nil {
			return "", err
		}
		text := left + " " + v.Op + " " + right
		if nested {
			text = "(" + text + ")"
		}
		return text, nil
	case nil:
		return "", fmt.Errorf("missing expression")
	default:
		return "", fmt.Errorf("unsupported expression type: %T", e)
	}
}
