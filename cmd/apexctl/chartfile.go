package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Ap3pp3rs94/chartly-apex/pkg/chart"
)

// A chart file is a YAML document:
//
//	type: bar
//	attributes:
//	  title: Sales
//	  categories: [Q1, Q2]
//	data:
//	  - name: revenue
//	    data: [10, 12]
//	options:
//	  chart: {stacked: true}
//
// Nested values become JSON attribute text with their key order kept.
var topLevelKeys = map[string]chart.Attr{
	"type":    chart.AttrType,
	"data":    chart.AttrData,
	"options": chart.AttrOptions,
}

func loadChartFile(path string) (map[string]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read chart file: %w", err)
	}
	attrs, err := parseChartFile(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return attrs, nil
}

func parseChartFile(b []byte) (map[string]string, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("parse chart file: %w", err)
	}
	attrs := map[string]string{}
	if len(doc.Content) == 0 {
		return attrs, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("chart file must be a mapping, got %s", kindName(root))
	}
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, val := root.Content[i].Value, root.Content[i+1]
		if key == "attributes" {
			if err := readAttributes(val, attrs); err != nil {
				return nil, err
			}
			continue
		}
		a, ok := topLevelKeys[key]
		if !ok {
			return nil, fmt.Errorf("line %d: unknown key %q", root.Content[i].Line, key)
		}
		v, err := attributeText(val)
		if err != nil {
			return nil, err
		}
		attrs[string(a)] = v
	}
	return attrs, nil
}

func readAttributes(n *yaml.Node, into map[string]string) error {
	if n.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: attributes must be a mapping", n.Line)
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		name := n.Content[i].Value
		if _, err := chart.ParseAttr(name); err != nil {
			return fmt.Errorf("line %d: %w", n.Content[i].Line, err)
		}
		if isNullNode(n.Content[i+1]) {
			continue
		}
		v, err := attributeText(n.Content[i+1])
		if err != nil {
			return err
		}
		into[name] = v
	}
	return nil
}

// attributeText renders scalars verbatim and collections as JSON.
func attributeText(n *yaml.Node) (string, error) {
	if n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	if n.Kind == yaml.ScalarNode {
		return n.Value, nil
	}
	var buf bytes.Buffer
	if err := writeJSON(&buf, n); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func writeJSON(buf *bytes.Buffer, n *yaml.Node) error {
	switch n.Kind {
	case yaml.AliasNode:
		return writeJSON(buf, n.Alias)
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			buf.WriteString("null")
			return nil
		}
		return writeJSON(buf, n.Content[0])
	case yaml.MappingNode:
		buf.WriteByte('{')
		for i := 0; i+1 < len(n.Content); i += 2 {
			if i > 0 {
				buf.WriteByte(',')
			}
			k, _ := json.Marshal(n.Content[i].Value)
			buf.Write(k)
			buf.WriteByte(':')
			if err := writeJSON(buf, n.Content[i+1]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil
	case yaml.SequenceNode:
		buf.WriteByte('[')
		for i, c := range n.Content {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeJSON(buf, c); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	case yaml.ScalarNode:
		return writeScalar(buf, n)
	default:
		return fmt.Errorf("line %d: unsupported yaml node", n.Line)
	}
}

func writeScalar(buf *bytes.Buffer, n *yaml.Node) error {
	switch n.ShortTag() {
	case "!!null":
		buf.WriteString("null")
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return fmt.Errorf("line %d: %w", n.Line, err)
		}
		buf.WriteString(strconv.FormatBool(b))
	case "!!int", "!!float":
		var f float64
		if err := n.Decode(&f); err != nil {
			return fmt.Errorf("line %d: %w", n.Line, err)
		}
		buf.WriteString(strconv.FormatFloat(f, 'f', -1, 64))
	default:
		s, _ := json.Marshal(n.Value)
		buf.Write(s)
	}
	return nil
}

func isNullNode(n *yaml.Node) bool {
	return n.Kind == yaml.ScalarNode && n.ShortTag() == "!!null"
}

func kindName(n *yaml.Node) string {
	switch n.Kind {
	case yaml.SequenceNode:
		return "sequence"
	case yaml.ScalarNode:
		return "scalar"
	default:
		return strings.ToLower(fmt.Sprint(n.Kind))
	}
}
