package template

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// decodeNode decodes a YAML node into plain Go values, rewriting
// CloudFormation short-form intrinsics (!Ref, !Sub, !GetAtt, ...)
// into their long form.
func decodeNode(node *yaml.Node) (any, error) {
	if node.Kind == yaml.AliasNode {
		return decodeNode(node.Alias)
	}

	if isShortIntrinsic(node.Tag) {
		return decodeIntrinsic(node)
	}

	switch node.Kind {
	case yaml.MappingNode:
		m := make(map[string]any, len(node.Content)/2)
		for i := 0; i < len(node.Content); i += 2 {
			value, err := decodeNode(node.Content[i+1])
			if err != nil {
				return nil, err
			}
			m[node.Content[i].Value] = value
		}
		return m, nil

	case yaml.SequenceNode:
		s := make([]any, 0, len(node.Content))
		for _, item := range node.Content {
			value, err := decodeNode(item)
			if err != nil {
				return nil, err
			}
			s = append(s, value)
		}
		return s, nil

	default:
		var value any
		if err := node.Decode(&value); err != nil {
			return nil, err
		}
		return value, nil
	}
}

// isShortIntrinsic reports whether tag is a custom short tag like
// !Ref, as opposed to a standard !!str style tag.
func isShortIntrinsic(tag string) bool {
	return strings.HasPrefix(tag, "!") && !strings.HasPrefix(tag, "!!")
}

func decodeIntrinsic(node *yaml.Node) (any, error) {
	name := strings.TrimPrefix(node.Tag, "!")

	// clear the tag so the value decodes as plain yaml
	plain := *node
	plain.Tag = ""
	if plain.Kind == yaml.ScalarNode {
		plain.Tag = "!!str"
	}

	value, err := decodeNode(&plain)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", node.Tag, err)
	}

	switch name {
	case "Ref":
		return map[string]any{"Ref": value}, nil

	case "GetAtt":
		// the short form joins the target and attribute with dots;
		// normalize to the same []any shape the long form decodes to
		if s, ok := value.(string); ok {
			parts := strings.Split(s, ".")
			att := make([]any, len(parts))
			for i, part := range parts {
				att[i] = part
			}
			return map[string]any{"Fn::GetAtt": att}, nil
		}
		return map[string]any{"Fn::GetAtt": value}, nil

	case "Condition":
		return map[string]any{"Condition": value}, nil

	default:
		return map[string]any{"Fn::" + name: value}, nil
	}
}
