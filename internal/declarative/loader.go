package declarative

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"cubesql/internal/domain"
)

// LoadOptions configures YAML loading behavior.
type LoadOptions struct {
	AllowUnknownFields bool
}

// LoadDirectory reads a model directory:
//
//	model.yaml
//	dimensions/<name>.yaml
//	cubes/<name>.yaml
//	indicators/<code>.yaml
//	entities/<entity>.yaml
//
// Only model.yaml is required.
func LoadDirectory(dir string) (*Bundle, error) {
	return LoadDirectoryWithOptions(dir, LoadOptions{})
}

// LoadDirectoryWithOptions is LoadDirectory with caller-provided options.
func LoadDirectoryWithOptions(dir string, opts LoadOptions) (*Bundle, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("model directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("model directory: %s is not a directory", dir)
	}

	modelFile := filepath.Join(dir, "model.yaml")
	var modelDoc ModelDoc
	found, err := loadYAMLFile(modelFile, &modelDoc, opts)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%s: model.yaml is required", dir)
	}
	if err := validateDocument(modelFile, modelDoc.APIVersion, modelDoc.Kind, KindNameSemanticModel); err != nil {
		return nil, err
	}
	if strings.TrimSpace(modelDoc.Metadata.Name) == "" {
		return nil, fmt.Errorf("%s: metadata.name is required", modelFile)
	}

	b := &Bundle{
		Name:        modelDoc.Metadata.Name,
		Description: modelDoc.Metadata.Description,
		Dialect:     modelDoc.Spec.Dialect,
		Catalog:     modelDoc.Spec.Catalog,
		Files:       map[string]string{KindModel.String() + "/" + modelDoc.Metadata.Name: modelFile},
	}
	b.Schema.Name = b.Name

	err = loadKind(dir, "dimensions", KindNameDimension, opts, func(path, name string, doc *DimensionDoc) error {
		if err := specName(path, name, &doc.Spec.Name); err != nil {
			return err
		}
		b.Schema.Dimensions = append(b.Schema.Dimensions, doc.Spec)
		b.Files[KindDimension.String()+"/"+name] = path
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = loadKind(dir, "cubes", KindNameCube, opts, func(path, name string, doc *CubeDoc) error {
		if err := specName(path, name, &doc.Spec.Name); err != nil {
			return err
		}
		if doc.Spec.Caption == "" {
			doc.Spec.Caption = doc.Metadata.Description
		}
		b.Schema.Cubes = append(b.Schema.Cubes, doc.Spec)
		b.Files[KindCube.String()+"/"+name] = path
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = loadKind(dir, "indicators", KindNameIndicator, opts, func(path, name string, doc *IndicatorDoc) error {
		if err := specName(path, name, &doc.Spec.Code); err != nil {
			return err
		}
		if doc.Spec.Entity == "" {
			return fmt.Errorf("%s: spec.entity is required", path)
		}
		b.Schema.Indicators = append(b.Schema.Indicators, doc.Spec)
		b.Files[KindIndicator.String()+"/"+name] = path
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = loadKind(dir, "entities", KindNameEntitySet, opts, func(path, name string, doc *EntitySetDoc) error {
		if b.Schema.EntitySets == nil {
			b.Schema.EntitySets = map[string]domain.EntityOverride{}
		}
		b.Schema.EntitySets[name] = doc.Spec
		b.Files[KindEntitySet.String()+"/"+name] = path
		return nil
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

// document is implemented by every per-kind document type.
type document interface {
	header() (apiVersion, kind string, meta Metadata)
}

func (d *CubeDoc) header() (string, string, Metadata)      { return d.APIVersion, d.Kind, d.Metadata }
func (d *DimensionDoc) header() (string, string, Metadata) { return d.APIVersion, d.Kind, d.Metadata }
func (d *IndicatorDoc) header() (string, string, Metadata) { return d.APIVersion, d.Kind, d.Metadata }
func (d *EntitySetDoc) header() (string, string, Metadata) { return d.APIVersion, d.Kind, d.Metadata }

// loadKind loads every .yaml file of root/sub in file name order.
func loadKind[T any, PT interface {
	*T
	document
}](root, sub, kind string, opts LoadOptions, add func(path, name string, doc PT) error) error {
	dir := filepath.Join(root, sub)
	if !dirExists(dir) {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read %s directory: %w", sub, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), ".yaml")
		path := filepath.Join(dir, entry.Name())

		doc := PT(new(T))
		if _, err := loadYAMLFile(path, doc, opts); err != nil {
			return err
		}
		apiVersion, docKind, meta := doc.header()
		if err := validateDocument(path, apiVersion, docKind, kind); err != nil {
			return err
		}
		if meta.Name != name {
			return fmt.Errorf("%s: metadata.name %q does not match file name %q", path, meta.Name, name)
		}
		if err := add(path, name, doc); err != nil {
			return err
		}
	}
	return nil
}

// specName fills an empty spec name from the file name and rejects a
// conflicting one.
func specName(path, name string, field *string) error {
	if *field == "" {
		*field = name
		return nil
	}
	if *field != name {
		return fmt.Errorf("%s: spec name %q does not match file name %q", path, *field, name)
	}
	return nil
}

// loadYAMLFile reads and unmarshals a YAML file into target.
// Returns (false, nil) if the file doesn't exist.
func loadYAMLFile(path string, target interface{}, opts LoadOptions) (bool, error) {
	data, err := os.ReadFile(path) //nolint:gosec // intentional: reading user-specified model files
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("read %s: %w", path, err)
	}
	if err := decodeYAML(data, target, opts); err != nil {
		return false, fmt.Errorf("parse %s: %w", path, err)
	}
	return true, nil
}

func decodeYAML(data []byte, target interface{}, opts LoadOptions) error {
	if opts.AllowUnknownFields {
		return yaml.Unmarshal(data, target)
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	return decoder.Decode(target)
}

// DecodeQuery parses a YAML or JSON query document.
func DecodeQuery(data []byte) (domain.Query, error) {
	var q domain.Query
	if err := decodeYAML(data, &q, LoadOptions{}); err != nil {
		return q, domain.ErrValidation("parse query: %s", err.Error())
	}
	return q, nil
}

// validateDocument checks the apiVersion and kind fields.
func validateDocument(path string, apiVersion, kind, expectedKind string) error {
	if apiVersion != SupportedAPIVersion {
		return fmt.Errorf("%s: unsupported apiVersion %q (expected %q)", path, apiVersion, SupportedAPIVersion)
	}
	if kind != expectedKind {
		return fmt.Errorf("%s: unexpected kind %q (expected %q)", path, kind, expectedKind)
	}
	return nil
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
