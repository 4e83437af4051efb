package feature

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadResult contains the loaded features and source location information.
type LoadResult struct {
	Features []Feature
	// NodeInfos maps a path (e.g. "features[0].scenarios[1]") to its location.
	NodeInfos map[string]NodeInfo
}

// NodeInfo stores source location information for a YAML node.
type NodeInfo struct {
	Line   int
	Column int
}

// LoadFile loads structured features from a YAML file.
// Feature.Path defaults to the file path when the document does not set one.
func LoadFile(path string) (*LoadResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading features file: %w", err)
	}

	result, err := Load(data)
	if err != nil {
		return nil, err
	}
	for i := range result.Features {
		if result.Features[i].Path == "" {
			result.Features[i].Path = path
		}
	}
	return result, nil
}

// Load loads structured features from YAML bytes.
func Load(data []byte) (*LoadResult, error) {
	var rootNode yaml.Node
	if err := yaml.Unmarshal(data, &rootNode); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}

	if rootNode.Kind != yaml.DocumentNode || len(rootNode.Content) == 0 {
		return nil, fmt.Errorf("parsing YAML: empty document")
	}

	result := &LoadResult{NodeInfos: make(map[string]NodeInfo)}
	if err := parseRootNode(rootNode.Content[0], result); err != nil {
		return nil, err
	}
	return result, nil
}

func parseRootNode(node *yaml.Node, result *LoadResult) error {
	if node.Kind != yaml.MappingNode {
		return &ParseError{Line: node.Line, Column: node.Column, Message: "expected mapping node at root"}
	}

	for i := 0; i < len(node.Content); i += 2 {
		keyNode := node.Content[i]
		valueNode := node.Content[i+1]

		if keyNode.Value != "features" {
			continue
		}
		result.NodeInfos["features"] = NodeInfo{Line: valueNode.Line, Column: valueNode.Column}
		if valueNode.Kind != yaml.SequenceNode {
			return &ParseError{Line: valueNode.Line, Column: valueNode.Column, Message: "expected sequence for 'features' field"}
		}
		for j, featureNode := range valueNode.Content {
			f, err := parseFeature(featureNode, fmt.Sprintf("features[%d]", j), result)
			if err != nil {
				return err
			}
			result.Features = append(result.Features, f)
		}
	}

	return nil
}

func parseFeature(node *yaml.Node, prefix string, result *LoadResult) (Feature, error) {
	result.NodeInfos[prefix] = NodeInfo{Line: node.Line, Column: node.Column}

	if node.Kind != yaml.MappingNode {
		return Feature{}, &ParseError{Line: node.Line, Column: node.Column, Message: "expected mapping for feature"}
	}

	f := Feature{Line: node.Line}
	for i := 0; i < len(node.Content); i += 2 {
		keyNode := node.Content[i]
		valueNode := node.Content[i+1]

		switch keyNode.Value {
		case "name":
			result.NodeInfos[prefix+".name"] = NodeInfo{Line: valueNode.Line, Column: valueNode.Column}
			f.Name = valueNode.Value
		case "path":
			f.Path = valueNode.Value
		case "tags":
			f.Tags = parseStringList(valueNode)
		case "scenarios":
			result.NodeInfos[prefix+".scenarios"] = NodeInfo{Line: valueNode.Line, Column: valueNode.Column}
			if valueNode.Kind != yaml.SequenceNode {
				return Feature{}, &ParseError{Line: valueNode.Line, Column: valueNode.Column, Message: "expected sequence for 'scenarios' field"}
			}
			for j, scNode := range valueNode.Content {
				sc, err := parseScenario(scNode, fmt.Sprintf("%s.scenarios[%d]", prefix, j), result)
				if err != nil {
					return Feature{}, err
				}
				f.Scenarios = append(f.Scenarios, sc)
			}
		}
	}

	return f, nil
}

func parseScenario(node *yaml.Node, prefix string, result *LoadResult) (Scenario, error) {
	result.NodeInfos[prefix] = NodeInfo{Line: node.Line, Column: node.Column}

	if node.Kind != yaml.MappingNode {
		return Scenario{}, &ParseError{Line: node.Line, Column: node.Column, Message: "expected mapping for scenario"}
	}

	sc := Scenario{Line: node.Line}
	for i := 0; i < len(node.Content); i += 2 {
		keyNode := node.Content[i]
		valueNode := node.Content[i+1]

		switch keyNode.Value {
		case "name":
			sc.Name = valueNode.Value
		case "tags":
			sc.Tags = parseStringList(valueNode)
		case "steps":
			result.NodeInfos[prefix+".steps"] = NodeInfo{Line: valueNode.Line, Column: valueNode.Column}
			steps, err := parseSteps(valueNode, prefix+".steps", result)
			if err != nil {
				return Scenario{}, err
			}
			sc.Steps = steps
		}
	}

	return sc, nil
}

func parseSteps(node *yaml.Node, prefix string, result *LoadResult) ([]Step, error) {
	if node.Kind != yaml.SequenceNode {
		return nil, &ParseError{Line: node.Line, Column: node.Column, Message: "expected sequence for 'steps' field"}
	}

	var steps []Step
	for i, stepNode := range node.Content {
		result.NodeInfos[fmt.Sprintf("%s[%d]", prefix, i)] = NodeInfo{Line: stepNode.Line, Column: stepNode.Column}

		keyword, text, err := splitStepNode(stepNode)
		if err != nil {
			return nil, err
		}

		kind, ok := ParseStepKind(keyword)
		switch {
		case ok:
		case keyword == "And" || keyword == "But" || keyword == "*":
			if len(steps) == 0 {
				return nil, &ParseError{
					Line: stepNode.Line, Column: stepNode.Column,
					Message: fmt.Sprintf("%q cannot be the first step of a scenario", keyword),
				}
			}
			kind = steps[len(steps)-1].Kind
		default:
			return nil, &ParseError{
				Line: stepNode.Line, Column: stepNode.Column,
				Message: fmt.Sprintf("unknown step keyword %q", keyword),
			}
		}

		steps = append(steps, Step{Keyword: keyword, Kind: kind, Text: text, Line: stepNode.Line})
	}
	return steps, nil
}

// splitStepNode accepts either "Given some text" or {keyword: Given, text: some text}.
func splitStepNode(node *yaml.Node) (keyword, text string, err error) {
	switch node.Kind {
	case yaml.ScalarNode:
		keyword, text, found := strings.Cut(strings.TrimSpace(node.Value), " ")
		if !found || strings.TrimSpace(text) == "" {
			return "", "", &ParseError{Line: node.Line, Column: node.Column, Message: "step must be '<keyword> <text>'"}
		}
		return keyword, strings.TrimSpace(text), nil
	case yaml.MappingNode:
		for i := 0; i < len(node.Content); i += 2 {
			switch node.Content[i].Value {
			case "keyword":
				keyword = node.Content[i+1].Value
			case "text":
				text = node.Content[i+1].Value
			}
		}
		if keyword == "" || text == "" {
			return "", "", &ParseError{Line: node.Line, Column: node.Column, Message: "step mapping requires 'keyword' and 'text'"}
		}
		return keyword, text, nil
	default:
		return "", "", &ParseError{Line: node.Line, Column: node.Column, Message: "expected string or mapping for step"}
	}
}

// parseStringList extracts a list of strings from a YAML sequence node.
func parseStringList(node *yaml.Node) []string {
	if node.Kind != yaml.SequenceNode {
		return nil
	}

	var items []string
	for _, item := range node.Content {
		items = append(items, item.Value)
	}
	return items
}
