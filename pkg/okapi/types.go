package okapi

import (
	"time"
)

// TypeMeta identifies the kind and schema version of an API object.
type TypeMeta struct {
	Kind       string `json:"kind,omitempty"       yaml:"kind,omitempty"`
	APIVersion string `json:"apiVersion,omitempty" yaml:"apiVersion,omitempty"`
}

// ObjectMeta is the metadata every persisted resource carries.
type ObjectMeta struct {
	Name              string            `json:"name,omitempty"              yaml:"name,omitempty"`
	Namespace         string            `json:"namespace,omitempty"         yaml:"namespace,omitempty"`
	UID               string            `json:"uid,omitempty"               yaml:"uid,omitempty"`
	ResourceVersion   string            `json:"resourceVersion,omitempty"   yaml:"resourceVersion,omitempty"`
	CreationTimestamp *time.Time        `json:"creationTimestamp,omitempty" yaml:"creationTimestamp,omitempty"`
	Labels            map[string]string `json:"labels,omitempty"            yaml:"labels,omitempty"`
	Annotations       map[string]string `json:"annotations,omitempty"       yaml:"annotations,omitempty"`
}

// ListMeta is the metadata a collection response carries. ResourceVersion is
// the snapshot cursor a watch resumes from; Continue pages a truncated list.
type ListMeta struct {
	ResourceVersion string `json:"resourceVersion,omitempty" yaml:"resourceVersion,omitempty"`
	Continue        string `json:"continue,omitempty"        yaml:"continue,omitempty"`
}

// Object is a schema-agnostic API resource. Spec and Status are kept as raw
// maps so one client serves every registered resource; typed accessors cover
// the fields the library itself needs.
type Object struct {
	TypeMeta `yaml:",inline"`

	Metadata ObjectMeta             `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	Spec     map[string]interface{} `json:"spec,omitempty"     yaml:"spec,omitempty"`
	Status   map[string]interface{} `json:"status,omitempty"   yaml:"status,omitempty"`
}

// Name returns the object's name.
func (o *Object) Name() string {
	return o.Metadata.Name
}

// ResourceVersion returns the object's resource version, or "" if unset.
func (o *Object) ResourceVersion() string {
	return o.Metadata.ResourceVersion
}

// List is a collection of objects plus the snapshot cursor needed to watch
// from the moment the list was taken.
type List struct {
	TypeMeta `yaml:",inline"`

	Metadata ListMeta `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	Items    []Object `json:"items"              yaml:"items"`
}

// ResourceVersion returns the collection's resource version, or "" if unset.
func (l *List) ResourceVersion() string {
	return l.Metadata.ResourceVersion
}
