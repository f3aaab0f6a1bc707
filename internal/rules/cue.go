package rules

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// parseCUE decodes a CUE rule file. Struct fields are visited in
// declaration order, so `connect: {"a": "b", "c": "d"}` keeps its order just
// like the YAML mapping form.
func parseCUE(data []byte) (*Document, error) {
	ctx := cuecontext.New()
	value := ctx.CompileBytes(data)
	if err := value.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeParseFailed, Message: err.Error(), Err: err}
	}

	doc := &Document{}

	iter, err := value.Fields()
	if err != nil {
		return nil, &LoadError{Code: ErrCodeParseFailed, Message: fmt.Sprintf("iterating rule file: %v", err), Err: err}
	}
	for iter.Next() {
		label := iter.Label()

		var dst *[]Spec
		switch label {
		case "connect":
			dst = &doc.Connect
		case "disconnect":
			dst = &doc.Disconnect
		default:
			return nil, &LoadError{Code: ErrCodeUnknownSection, Where: label, Message: "unknown section (want connect or disconnect)"}
		}

		specs, err := cueSection(label, iter.Value())
		if err != nil {
			return nil, err
		}
		*dst = append(*dst, specs...)
	}

	return doc, nil
}

func cueSection(name string, v cue.Value) ([]Spec, error) {
	switch v.Kind() {
	case cue.NullKind:
		return nil, nil
	case cue.StructKind:
		return cueStruct(name, v)
	case cue.ListKind:
		return cueList(name, v)
	default:
		return nil, &LoadError{Code: ErrCodeMalformedSection, Where: name, Message: "section must be a struct or a list"}
	}
}

func cueStruct(name string, v cue.Value) ([]Spec, error) {
	var specs []Spec

	iter, err := v.Fields()
	if err != nil {
		return nil, &LoadError{Code: ErrCodeParseFailed, Where: name, Message: err.Error(), Err: err}
	}
	for iter.Next() {
		from := iter.Label()
		val := iter.Value()
		where := fmt.Sprintf("%s[%q]", name, from)

		if val.Kind() == cue.ListKind {
			items, err := val.List()
			if err != nil {
				return nil, &LoadError{Code: ErrCodeParseFailed, Where: where, Message: err.Error(), Err: err}
			}
			for items.Next() {
				to, err := cueString(items.Value(), where)
				if err != nil {
					return nil, err
				}
				specs = append(specs, Spec{From: from, To: to})
			}
			continue
		}

		to, err := cueString(val, where)
		if err != nil {
			return nil, err
		}
		specs = append(specs, Spec{From: from, To: to})
	}
	return specs, nil
}

func cueList(name string, v cue.Value) ([]Spec, error) {
	var specs []Spec

	items, err := v.List()
	if err != nil {
		return nil, &LoadError{Code: ErrCodeParseFailed, Where: name, Message: err.Error(), Err: err}
	}
	for i := 0; items.Next(); i++ {
		where := fmt.Sprintf("%s[%d]", name, i)
		item := items.Value()
		if item.Kind() != cue.StructKind {
			return nil, &LoadError{Code: ErrCodeMalformedEntry, Where: where, Message: "entry must be a struct with from and to"}
		}

		fromVal := item.LookupPath(cue.ParsePath("from"))
		toVal := item.LookupPath(cue.ParsePath("to"))
		if !fromVal.Exists() || !toVal.Exists() {
			return nil, &LoadError{Code: ErrCodeMalformedEntry, Where: where, Message: "entry needs both from and to"}
		}

		from, err := cueString(fromVal, where+".from")
		if err != nil {
			return nil, err
		}
		to, err := cueString(toVal, where+".to")
		if err != nil {
			return nil, err
		}
		specs = append(specs, Spec{From: from, To: to})
	}
	return specs, nil
}

func cueString(v cue.Value, where string) (string, error) {
	if v.Kind() != cue.StringKind {
		return "", &LoadError{Code: ErrCodeNonString, Where: where, Message: "expected a string pattern"}
	}
	s, err := v.String()
	if err != nil {
		return "", &LoadError{Code: ErrCodeNonString, Where: where, Message: err.Error(), Err: err}
	}
	return s, nil
}
