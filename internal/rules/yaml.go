package rules

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// parseYAML decodes YAML (and therefore JSON) rule files.
//
// The node API is used instead of unmarshalling into maps because map
// iteration order would lose the declaration order of rules.
func parseYAML(data []byte) (*Document, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, &LoadError{Code: ErrCodeParseFailed, Message: err.Error(), Err: err}
	}

	// Empty file: no rules.
	if root.Kind == 0 || len(root.Content) == 0 {
		return &Document{}, nil
	}
	return ParseNode(root.Content[0])
}

// ParseNode decodes a rule document that is already a YAML node, such as
// the rules embedded in another YAML file. A nil or zero node is empty.
func ParseNode(top *yaml.Node) (*Document, error) {
	doc := &Document{}
	if top == nil || top.Kind == 0 {
		return doc, nil
	}
	if top.Kind == yaml.DocumentNode {
		if len(top.Content) == 0 {
			return doc, nil
		}
		top = top.Content[0]
	}

	if top.Kind == yaml.ScalarNode && top.ShortTag() == "!!null" {
		return doc, nil
	}
	if top.Kind != yaml.MappingNode {
		return nil, &LoadError{Code: ErrCodeParseFailed, Message: fmt.Sprintf("line %d: rule file must be a mapping", top.Line)}
	}

	for i := 0; i+1 < len(top.Content); i += 2 {
		key, val := top.Content[i], top.Content[i+1]

		var dst *[]Spec
		switch key.Value {
		case "connect":
			dst = &doc.Connect
		case "disconnect":
			dst = &doc.Disconnect
		default:
			return nil, &LoadError{
				Code:    ErrCodeUnknownSection,
				Where:   key.Value,
				Message: fmt.Sprintf("line %d: unknown section (want connect or disconnect)", key.Line),
			}
		}

		specs, err := yamlSection(key.Value, val)
		if err != nil {
			return nil, err
		}
		*dst = append(*dst, specs...)
	}

	return doc, nil
}

func yamlSection(name string, node *yaml.Node) ([]Spec, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.ShortTag() == "!!null" {
			return nil, nil
		}
	case yaml.MappingNode:
		return yamlMapping(name, node)
	case yaml.SequenceNode:
		return yamlSequence(name, node)
	}
	return nil, &LoadError{
		Code:    ErrCodeMalformedSection,
		Where:   name,
		Message: fmt.Sprintf("line %d: section must be a mapping or a sequence", node.Line),
	}
}

// yamlMapping handles `source: dest` and `source: [dest, dest]` entries.
func yamlMapping(name string, node *yaml.Node) ([]Spec, error) {
	var specs []Spec
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		where := fmt.Sprintf("%s[%q]", name, key.Value)

		from, err := yamlString(key, where)
		if err != nil {
			return nil, err
		}

		if val.Kind == yaml.SequenceNode {
			for _, item := range val.Content {
				to, err := yamlString(item, where)
				if err != nil {
					return nil, err
				}
				specs = append(specs, Spec{From: from, To: to})
			}
			continue
		}

		to, err := yamlString(val, where)
		if err != nil {
			return nil, err
		}
		specs = append(specs, Spec{From: from, To: to})
	}
	return specs, nil
}

// yamlSequence handles `- {from: ..., to: ...}` entries.
func yamlSequence(name string, node *yaml.Node) ([]Spec, error) {
	specs := make([]Spec, 0, len(node.Content))
	for i, item := range node.Content {
		where := fmt.Sprintf("%s[%d]", name, i)
		if item.Kind != yaml.MappingNode {
			return nil, &LoadError{Code: ErrCodeMalformedEntry, Where: where, Message: fmt.Sprintf("line %d: entry must be a mapping with from and to", item.Line)}
		}

		var spec Spec
		var haveFrom, haveTo bool
		for j := 0; j+1 < len(item.Content); j += 2 {
			k, v := item.Content[j], item.Content[j+1]
			s, err := yamlString(v, where+"."+k.Value)
			if err != nil {
				return nil, err
			}
			switch k.Value {
			case "from":
				spec.From, haveFrom = s, true
			case "to":
				spec.To, haveTo = s, true
			default:
				return nil, &LoadError{Code: ErrCodeMalformedEntry, Where: where, Message: fmt.Sprintf("line %d: unknown field %q", k.Line, k.Value)}
			}
		}
		if !haveFrom || !haveTo {
			return nil, &LoadError{Code: ErrCodeMalformedEntry, Where: where, Message: fmt.Sprintf("line %d: entry needs both from and to", item.Line)}
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func yamlString(node *yaml.Node, where string) (string, error) {
	if node.Kind != yaml.ScalarNode || node.ShortTag() != "!!str" {
		return "", &LoadError{
			Code:    ErrCodeNonString,
			Where:   where,
			Message: fmt.Sprintf("line %d: expected a string pattern", node.Line),
		}
	}
	return node.Value, nil
}
