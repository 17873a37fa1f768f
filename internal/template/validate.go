package template

import (
	"fmt"
	"sort"
	"strings"
)

// Problem describes a single template defect.
type Problem struct {
	Resource string
	Message  string
}

func (p Problem) String() string {
	return fmt.Sprintf("%s: %s", p.Resource, p.Message)
}

// Validate checks the template for defects that would only surface
// at deploy time: dangling references, missing dependencies and
// oversized inline content.
func (t *Template) Validate() []Problem {
	var problems []Problem

	names := make([]string, 0, len(t.Resources))
	for name := range t.Resources {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		resource := t.Resources[name]

		for _, dep := range resource.DependsOn {
			if _, ok := t.Resources[dep]; !ok {
				problems = append(problems, Problem{
					Resource: name,
					Message:  fmt.Sprintf("depends on unknown resource %q", dep),
				})
			}
		}

		for _, target := range collectRefs(resource.Properties) {
			if !t.resolves(target) {
				problems = append(problems, Problem{
					Resource: name,
					Message:  fmt.Sprintf("references unknown target %q", target),
				})
			}
		}

		switch resource.Type {
		case TypeDeployment:
			problems = append(problems, t.validateDeployment(name, resource)...)
		case TypeHostedConfigurationVersion:
			problems = append(problems, t.validateHostedVersion(name, resource)...)
		}
	}

	return problems
}

// validateDeployment checks that a deployment is tied to a hosted
// configuration version. Without an explicit dependency or a
// reference, the deployment can start before the version exists.
func (t *Template) validateDeployment(name string, resource *Resource) []Problem {
	hosted := t.ResourcesOfType(TypeHostedConfigurationVersion)
	if len(hosted) == 0 {
		return nil
	}

	reachable := make(map[string]bool)
	for _, dep := range resource.DependsOn {
		reachable[dep] = true
	}
	for _, target := range collectRefs(resource.Properties) {
		reachable[target] = true
	}

	for _, versionName := range hosted {
		if reachable[versionName] {
			return nil
		}
	}

	return []Problem{{
		Resource: name,
		Message:  "deployment neither references nor depends on a hosted configuration version",
	}}
}

// validateHostedVersion enforces the inline content ceiling. Content
// that was offloaded via Fn::Transform is exempt.
func (t *Template) validateHostedVersion(name string, resource *Resource) []Problem {
	content, ok := resource.Properties["Content"]
	if !ok {
		return []Problem{{
			Resource: name,
			Message:  "hosted configuration version has no content",
		}}
	}

	inline, ok := content.(string)
	if !ok {
		return nil
	}

	if size := len(inline); size > MaxInlineContentBytes {
		return []Problem{{
			Resource: name,
			Message:  fmt.Sprintf("inline content is %d bytes, the limit is %d", size, MaxInlineContentBytes),
		}}
	}

	return nil
}

// resolves reports whether a reference target is a resource, a
// parameter or a pseudo parameter.
func (t *Template) resolves(target string) bool {
	if strings.HasPrefix(target, "AWS::") {
		return true
	}
	if _, ok := t.Resources[target]; ok {
		return true
	}
	if _, ok := t.Parameters[target]; ok {
		return true
	}
	return false
}

// collectRefs walks a property tree and returns every resource or
// parameter name referenced via Ref or Fn::GetAtt.
func collectRefs(value any) []string {
	var refs []string

	switch v := value.(type) {
	case map[string]any:
		if len(v) == 1 {
			if target, ok := v["Ref"].(string); ok {
				return []string{target}
			}
			if att, ok := v["Fn::GetAtt"]; ok {
				if parts, ok := att.([]any); ok && len(parts) > 0 {
					if target, ok := parts[0].(string); ok {
						return []string{target}
					}
				}
				return nil
			}
		}

		for _, nested := range v {
			refs = append(refs, collectRefs(nested)...)
		}

	case []any:
		for _, nested := range v {
			refs = append(refs, collectRefs(nested)...)
		}
	}

	return refs
}
