package okapi

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Static errors for err113 compliance.
var (
	ErrEmptyManifest      = errors.New("manifest contains no objects")
	ErrManifestKindNeeded = errors.New("manifest object is missing kind")
	ErrManifestNameNeeded = errors.New("manifest object is missing metadata.name")
)

// Manifest is an ordered collection of objects parsed from a YAML document
// stream.
type Manifest struct {
	Objects []Object
}

// ParseManifest decodes a YAML stream into a manifest. Documents are
// separated by "---"; empty documents are skipped.
func ParseManifest(data []byte) (*Manifest, error) {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	manifest := &Manifest{}

	for index := 0; ; index++ {
		var obj Object

		err := decoder.Decode(&obj)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}

			return nil, fmt.Errorf("failed to decode manifest document %d: %w", index, err)
		}

		if obj.Kind == "" && obj.Metadata.Name == "" && len(obj.Spec) == 0 {
			continue
		}

		manifest.Objects = append(manifest.Objects, obj)
	}

	if len(manifest.Objects) == 0 {
		return nil, ErrEmptyManifest
	}

	return manifest, nil
}

// Validate checks that every object names a kind the registry knows and
// carries a metadata name.
func (m *Manifest) Validate(registry *Registry) error {
	var errs error

	for index, obj := range m.Objects {
		if obj.Kind == "" {
			errs = errors.Join(errs, fmt.Errorf("%w: document %d", ErrManifestKindNeeded, index))

			continue
		}

		if obj.Metadata.Name == "" {
			errs = errors.Join(errs, fmt.Errorf("%w: document %d (%s)", ErrManifestNameNeeded, index, obj.Kind))
		}

		_, err := registry.LookupKind(obj.Kind)
		if err != nil {
			errs = errors.Join(errs, fmt.Errorf("document %d: %w", index, err))
		}
	}

	return errs
}

// Operations converts the manifest into batch operations of the given type,
// resolving each object's kind to its resource endpoint.
func (m *Manifest) Operations(registry *Registry, opType string) ([]BatchOperation, error) {
	operations := make([]BatchOperation, 0, len(m.Objects))

	for index, obj := range m.Objects {
		endpoint, err := registry.LookupKind(obj.Kind)
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", index, err)
		}

		object := obj

		operations = append(operations, BatchOperation{
			ID:        strconv.Itoa(index) + ":" + endpoint.Name + "/" + obj.Metadata.Name,
			Type:      opType,
			Resource:  endpoint.Name,
			Namespace: obj.Metadata.Namespace,
			Name:      obj.Metadata.Name,
			Object:    &object,
		})
	}

	return operations, nil
}

// EncodeManifest renders objects as a YAML document stream.
func EncodeManifest(objects []Object) ([]byte, error) {
	var buf bytes.Buffer

	encoder := yaml.NewEncoder(&buf)

	for _, obj := range objects {
		err := encoder.Encode(obj)
		if err != nil {
			return nil, fmt.Errorf("failed to encode manifest object %s: %w", obj.Name(), err)
		}
	}

	err := encoder.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to finalize manifest: %w", err)
	}

	return buf.Bytes(), nil
}
