package packed

import (
	"encoding/json"

	"gopkg.in/yaml.v3"
)

// ApplicationMirror is a read-only view of an application
type ApplicationMirror struct {
	ID    string           `json:"id" yaml:"id"`
	Name  string           `json:"name" yaml:"name"`
	State string           `json:"state" yaml:"state"`
	Root  *ContainerMirror `json:"root" yaml:"root"`
}

// ContainerMirror is a read-only view of a container
type ContainerMirror struct {
	Name       string             `json:"name" yaml:"name"`
	Path       string             `json:"path" yaml:"path"`
	Extensions []string           `json:"extensions,omitempty" yaml:"extensions,omitempty"`
	Beans      []BeanMirror       `json:"beans,omitempty" yaml:"beans,omitempty"`
	Services   []ServiceMirror    `json:"services,omitempty" yaml:"services,omitempty"`
	Children   []*ContainerMirror `json:"children,omitempty" yaml:"children,omitempty"`
}

// BeanMirror is a read-only view of a bean
type BeanMirror struct {
	Name       string            `json:"name" yaml:"name"`
	Type       string            `json:"type,omitempty" yaml:"type,omitempty"`
	Kind       string            `json:"kind" yaml:"kind"`
	Source     string            `json:"source" yaml:"source"`
	Provides   []string          `json:"provides,omitempty" yaml:"provides,omitempty"`
	Exported   bool              `json:"exported,omitempty" yaml:"exported,omitempty"`
	Operations []OperationMirror `json:"operations,omitempty" yaml:"operations,omitempty"`
}

// OperationMirror is a read-only view of an operation
type OperationMirror struct {
	Name       string `json:"name" yaml:"name"`
	Kind       string `json:"kind" yaml:"kind"`
	Target     string `json:"target" yaml:"target"`
	Annotation string `json:"annotation" yaml:"annotation"`
	Extension  string `json:"extension" yaml:"extension"`
}

// ServiceMirror is a read-only view of a service binding
type ServiceMirror struct {
	Key      string `json:"key" yaml:"key"`
	Source   string `json:"source" yaml:"source"`
	Exported bool   `json:"exported,omitempty" yaml:"exported,omitempty"`
}

// JSON encodes the mirror as indented JSON
func (m *ApplicationMirror) JSON() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

// YAML encodes the mirror as YAML
func (m *ApplicationMirror) YAML() ([]byte, error) {
	return yaml.Marshal(m)
}

// JSON encodes the mirror as indented JSON
func (m *ContainerMirror) JSON() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

// YAML encodes the mirror as YAML
func (m *ContainerMirror) YAML() ([]byte, error) {
	return yaml.Marshal(m)
}

// Find returns the mirror of the container at path, or nil
func (m *ContainerMirror) Find(path string) *ContainerMirror {
	if m.Path == path {
		return m
	}
	for _, child := range m.Children {
		if found := child.Find(path); found != nil {
			return found
		}
	}
	return nil
}

// Bean returns the mirror of the named bean, or nil
func (m *ContainerMirror) Bean(name string) *BeanMirror {
	for i := range m.Beans {
		if m.Beans[i].Name == name {
			return &m.Beans[i]
		}
	}
	return nil
}

// Mirror returns a snapshot of the application
func (a *Application) Mirror() *ApplicationMirror {
	return &ApplicationMirror{
		ID:    a.id.String(),
		Name:  a.name,
		State: a.State().String(),
		Root:  a.root.mirror(),
	}
}

func (c *container) mirror() *ContainerMirror {
	m := &ContainerMirror{
		Name: c.name,
		Path: c.path(),
	}
	for _, t := range c.extensions.Types() {
		m.Extensions = append(m.Extensions, extensionName(t))
	}
	for _, b := range c.beans {
		m.Beans = append(m.Beans, b.mirror())
	}
	for _, key := range c.serviceOrder {
		s := c.services[key]
		m.Services = append(m.Services, ServiceMirror{
			Key:      key.String(),
			Source:   s.source(),
			Exported: s.exported,
		})
	}
	for _, child := range c.children {
		m.Children = append(m.Children, child.mirror())
	}
	return m
}

func (b *Bean) mirror() BeanMirror {
	m := BeanMirror{
		Name:     b.name,
		Kind:     b.kind.String(),
		Source:   b.source.String(),
		Exported: b.exported,
	}
	if b.typ != nil {
		m.Type = b.typ.String()
	}
	for _, key := range b.provides {
		m.Provides = append(m.Provides, key.String())
	}
	for _, op := range b.operations {
		m.Operations = append(m.Operations, OperationMirror{
			Name:       op.name,
			Kind:       op.kind.String(),
			Target:     op.site.Target.String(),
			Annotation: op.site.Annotation.String(),
			Extension:  extensionName(op.extension),
		})
	}
	return m
}
