package queryir

import (
	"fmt"
	"slices"
)

// ValidationResult lists structural problems found in a query.
type ValidationResult struct {
	// Valid is true when Problems is empty.
	Valid bool

	// Problems describes each violated rule.
	Problems []string
}

// Validate checks the structural rules the serializer relies on:
//
//  1. SELECT projects at least one variable, and every projected variable
//     is introduced somewhere in WHERE
//  2. INSERT DATA is ground (no variables)
//  3. DELETE and INSERT templates of a Modify carry the same predicate set
//     per subject
//  4. Every variable object in a DELETE template is bound by a matching
//     OPTIONAL (or triple) in WHERE
//
// Validate is a pure function with no side effects.
func Validate(query Query) ValidationResult {
	v := &validator{problems: []string{}}
	v.validateQuery(query)

	return ValidationResult{
		Valid:    len(v.problems) == 0,
		Problems: v.problems,
	}
}

// validator accumulates problems during traversal.
type validator struct {
	problems []string
}

func (v *validator) addProblem(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) validateQuery(q Query) {
	if q == nil {
		v.addProblem("nil query")
		return
	}

	switch query := q.(type) {
	case Select:
		v.validateSelect(query)
	case *Select:
		v.validateSelect(*query)
	case InsertData:
		v.validateInsertData(query)
	case *InsertData:
		v.validateInsertData(*query)
	case Modify:
		v.validateModify(query)
	case *Modify:
		v.validateModify(*query)
	case Update:
		v.validateUpdate(query)
	case *Update:
		v.validateUpdate(*query)
	default:
		v.addProblem("unknown query type: %T", q)
	}
}

func (v *validator) validateSelect(sel Select) {
	if len(sel.Projection) == 0 {
		v.addProblem("SELECT without projected variables")
	}
	if sel.Limit < 0 {
		v.addProblem("negative LIMIT %d", sel.Limit)
	}

	bound := make(map[Var]bool)
	collectVars(sel.Where, bound)
	for _, p := range sel.Projection {
		if !bound[p] {
			v.addProblem("projected variable ?%s is not introduced in WHERE", p)
		}
	}
}

func (v *validator) validateInsertData(ins InsertData) {
	if len(ins.Blocks) == 0 {
		v.addProblem("INSERT DATA without triples")
	}
	for _, b := range ins.Blocks {
		if _, ok := b.Subject.(Var); ok {
			v.addProblem("INSERT DATA subject %s is a variable", termKey(b.Subject))
		}
		for _, po := range b.Properties {
			if _, ok := po.Object.(Var); ok {
				v.addProblem("INSERT DATA object of %s is a variable", termKey(po.Predicate))
			}
		}
	}
}

func (v *validator) validateModify(m Modify) {
	if len(m.Delete) == 0 && len(m.Insert) == 0 {
		v.addProblem("Modify without DELETE or INSERT template")
	}
	if len(m.Where) == 0 {
		v.addProblem("Modify without WHERE")
	}

	if len(m.Delete) > 0 && len(m.Insert) > 0 {
		del := predicatesBySubject(m.Delete)
		ins := predicatesBySubject(m.Insert)
		for subject, preds := range del {
			if !slices.Equal(preds, ins[subject]) {
				v.addProblem("subject %s: DELETE predicates %v differ from INSERT predicates %v", subject, preds, ins[subject])
			}
		}
		for subject, preds := range ins {
			if _, ok := del[subject]; !ok {
				v.addProblem("subject %s: INSERT predicates %v have no DELETE counterpart", subject, preds)
			}
		}
	}

	bindings := whereTriples(m.Where)
	for _, b := range m.Delete {
		for _, po := range b.Properties {
			if _, ok := po.Object.(Var); !ok {
				continue
			}
			key := tripleKey(b.Subject, po.Predicate, po.Object)
			if !bindings[key] {
				v.addProblem("DELETE %s has no matching OPTIONAL in WHERE", key)
			}
		}
	}
}

func (v *validator) validateUpdate(u Update) {
	if len(u.Operations) == 0 {
		v.addProblem("update request without operations")
	}
	for _, op := range u.Operations {
		switch op.(type) {
		case Update, *Update, Select, *Select:
			v.addProblem("update request cannot contain %T", op)
		default:
			v.validateQuery(op)
		}
	}
}

// predicatesBySubject returns the sorted predicate set per subject.
func predicatesBySubject(blocks []Block) map[string][]string {
	out := make(map[string][]string)
	for _, b := range blocks {
		subject := termKey(b.Subject)
		out[subject] = append(out[subject], Predicates([]Block{b})...)
	}
	for subject, preds := range out {
		slices.Sort(preds)
		out[subject] = slices.Compact(preds)
	}
	return out
}

func tripleKey(s, p, o Term) string {
	return termKey(s) + " " + termKey(p) + " " + termKey(o)
}

// whereTriples collects every triple reachable in a WHERE clause,
// including inside OPTIONAL and UNION groups.
func whereTriples(patterns []Pattern) map[string]bool {
	out := make(map[string]bool)
	var walk func([]Pattern)
	walk = func(ps []Pattern) {
		for _, p := range ps {
			switch pat := p.(type) {
			case Triple:
				out[tripleKey(pat.Subject, pat.Predicate, pat.Object)] = true
			case Block:
				for _, po := range pat.Properties {
					out[tripleKey(pat.Subject, po.Predicate, po.Object)] = true
				}
			case Optional:
				walk(pat.Patterns)
			case Union:
				for _, g := range pat.Groups {
					walk(g)
				}
			}
		}
	}
	walk(patterns)
	return out
}

// collectVars records every variable a pattern list can bind.
func collectVars(patterns []Pattern, into map[Var]bool) {
	term := func(t Term) {
		if v, ok := t.(Var); ok {
			into[v] = true
		}
	}
	for _, p := range patterns {
		switch pat := p.(type) {
		case Triple:
			term(pat.Subject)
			term(pat.Predicate)
			term(pat.Object)
		case Block:
			term(pat.Subject)
			for _, po := range pat.Properties {
				term(po.Predicate)
				term(po.Object)
			}
		case Optional:
			collectVars(pat.Patterns, into)
		case Union:
			for _, g := range pat.Groups {
				collectVars(g, into)
			}
		case Bind:
			into[pat.As] = true
		}
	}
}
