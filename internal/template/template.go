// Package template parses, validates and rewrites CloudFormation
// templates holding AppConfig resources. Short-form intrinsics are
// normalized on parse so the rest of the package only ever sees
// the long form.
package template

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// MaxInlineContentBytes is the ceiling CloudFormation puts on the
// inline Content of a hosted configuration version. Larger content
// has to be offloaded to S3 and pulled in with AWS::Include.
const MaxInlineContentBytes = 4096

// AppConfig resource types.
const (
	TypeApplication                = "AWS::AppConfig::Application"
	TypeEnvironment                = "AWS::AppConfig::Environment"
	TypeConfigurationProfile       = "AWS::AppConfig::ConfigurationProfile"
	TypeHostedConfigurationVersion = "AWS::AppConfig::HostedConfigurationVersion"
	TypeDeploymentStrategy         = "AWS::AppConfig::DeploymentStrategy"
	TypeDeployment                 = "AWS::AppConfig::Deployment"
)

// Resource is a single template resource.
type Resource struct {
	// Type is the CloudFormation resource type.
	Type string

	// DependsOn lists explicit dependencies. The short single
	// string form is normalized to a list on parse.
	DependsOn []string

	// Properties holds the resource properties with intrinsics in
	// long form.
	Properties map[string]any
}

// Template is a parsed CloudFormation template.
type Template struct {
	FormatVersion string
	Description   string
	Parameters    map[string]any
	Resources     map[string]*Resource
}

type rawTemplate struct {
	FormatVersion string    `yaml:"AWSTemplateFormatVersion"`
	Description   string    `yaml:"Description"`
	Parameters    yaml.Node `yaml:"Parameters"`
	Resources     yaml.Node `yaml:"Resources"`
}

// Parse parses a YAML CloudFormation template.
func Parse(data []byte) (*Template, error) {
	var raw rawTemplate
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing template: %w", err)
	}

	t := &Template{
		FormatVersion: raw.FormatVersion,
		Description:   raw.Description,
		Parameters:    map[string]any{},
		Resources:     map[string]*Resource{},
	}

	if raw.Parameters.Kind == yaml.MappingNode {
		params, err := decodeNode(&raw.Parameters)
		if err != nil {
			return nil, fmt.Errorf("parsing parameters: %w", err)
		}
		t.Parameters = params.(map[string]any)
	}

	if raw.Resources.Kind == 0 {
		return nil, fmt.Errorf("template has no resources")
	}
	if raw.Resources.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("resources must be a mapping")
	}

	for i := 0; i < len(raw.Resources.Content); i += 2 {
		name := raw.Resources.Content[i].Value

		resource, err := parseResource(raw.Resources.Content[i+1])
		if err != nil {
			return nil, fmt.Errorf("resource %s: %w", name, err)
		}

		t.Resources[name] = resource
	}

	return t, nil
}

func parseResource(node *yaml.Node) (*Resource, error) {
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("resource must be a mapping")
	}

	resource := &Resource{}

	for i := 0; i < len(node.Content); i += 2 {
		key := node.Content[i].Value
		value := node.Content[i+1]

		switch key {
		case "Type":
			resource.Type = value.Value
		case "DependsOn":
			deps, err := parseDependsOn(value)
			if err != nil {
				return nil, err
			}
			resource.DependsOn = deps
		case "Properties":
			props, err := decodeNode(value)
			if err != nil {
				return nil, fmt.Errorf("properties: %w", err)
			}

			m, ok := props.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("properties must be a mapping")
			}
			resource.Properties = m
		}
	}

	if resource.Type == "" {
		return nil, fmt.Errorf("resource has no type")
	}

	return resource, nil
}

// parseDependsOn accepts both the single string and the list form.
func parseDependsOn(node *yaml.Node) ([]string, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		return []string{node.Value}, nil
	case yaml.SequenceNode:
		deps := make([]string, 0, len(node.Content))
		for _, item := range node.Content {
			deps = append(deps, item.Value)
		}
		return deps, nil
	default:
		return nil, fmt.Errorf("DependsOn must be a string or a list of strings")
	}
}

// ResourcesOfType returns the names of all resources of the given
// type, sorted for deterministic output.
func (t *Template) ResourcesOfType(resourceType string) []string {
	var names []string
	for name, resource := range t.Resources {
		if resource.Type == resourceType {
			names = append(names, name)
		}
	}

	sort.Strings(names)

	return names
}
