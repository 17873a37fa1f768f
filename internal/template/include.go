package template

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// S3Location addresses an object holding offloaded content.
type S3Location struct {
	Bucket string
	Key    string
}

func (l S3Location) URI() string {
	return fmt.Sprintf("s3://%s/%s", l.Bucket, l.Key)
}

// InlineContent returns the inline content of the named hosted
// configuration version, if it has one.
func (t *Template) InlineContent(name string) (string, bool) {
	resource, ok := t.Resources[name]
	if !ok || resource.Type != TypeHostedConfigurationVersion {
		return "", false
	}

	content, ok := resource.Properties["Content"].(string)
	return content, ok
}

// OversizedContent returns the hosted configuration versions whose
// inline content exceeds the ceiling.
func (t *Template) OversizedContent() []string {
	var names []string

	for _, name := range t.ResourcesOfType(TypeHostedConfigurationVersion) {
		if content, ok := t.InlineContent(name); ok && len(content) > MaxInlineContentBytes {
			names = append(names, name)
		}
	}

	return names
}

// OffloadContent replaces the inline content of the named hosted
// configuration version with an AWS::Include transform pulling the
// content from S3.
func (t *Template) OffloadContent(name string, location S3Location) error {
	resource, ok := t.Resources[name]
	if !ok {
		return fmt.Errorf("no such resource: %s", name)
	}
	if resource.Type != TypeHostedConfigurationVersion {
		return fmt.Errorf("resource %s is a %s, not a hosted configuration version", name, resource.Type)
	}

	if resource.Properties == nil {
		resource.Properties = map[string]any{}
	}

	resource.Properties["Content"] = map[string]any{
		"Fn::Transform": map[string]any{
			"Name": "AWS::Include",
			"Parameters": map[string]any{
				"Location": location.URI(),
			},
		},
	}

	return nil
}

type encResource struct {
	Type       string         `yaml:"Type"`
	DependsOn  []string       `yaml:"DependsOn,omitempty"`
	Properties map[string]any `yaml:"Properties,omitempty"`
}

type encTemplate struct {
	FormatVersion string                 `yaml:"AWSTemplateFormatVersion,omitempty"`
	Description   string                 `yaml:"Description,omitempty"`
	Parameters    map[string]any         `yaml:"Parameters,omitempty"`
	Resources     map[string]encResource `yaml:"Resources"`
}

// Encode serializes the template back to YAML. Intrinsics stay in
// long form, which CloudFormation accepts as-is.
func (t *Template) Encode() ([]byte, error) {
	out := encTemplate{
		FormatVersion: t.FormatVersion,
		Description:   t.Description,
		Resources:     make(map[string]encResource, len(t.Resources)),
	}

	if len(t.Parameters) > 0 {
		out.Parameters = t.Parameters
	}

	names := make([]string, 0, len(t.Resources))
	for name := range t.Resources {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		resource := t.Resources[name]
		out.Resources[name] = encResource{
			Type:       resource.Type,
			DependsOn:  resource.DependsOn,
			Properties: resource.Properties,
		}
	}

	return yaml.Marshal(out)
}
