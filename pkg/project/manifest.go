package project

import (
	"encoding/xml"
	"os"
	"path/filepath"

	"github.com/Masterminds/semver/v3"
	"gitlab.com/tozd/go/errors"
)

// ManifestFile is the name of the project manifest at the project root
const ManifestFile = "Project.xml"

// SupportedVersions is the range of manifest versions this build can read
const SupportedVersions = ">= 1.0.0, < 3.0.0"

// ErrUnsupportedVersion is returned for manifests outside SupportedVersions
var ErrUnsupportedVersion = errors.Base("unsupported project version")

// 📜 Manifest is the on-disk description of a project
type Manifest struct {
	XMLName     xml.Name         `xml:"Project"`
	Name        string           `xml:"Name,attr"`
	Version     string           `xml:"Version,attr"`
	Credentials *CredentialsXML  `xml:"Credentials,omitempty"`
	Parts       []PartDefinition `xml:"Part"`
}

// CredentialsXML holds the storage engine login of a project
type CredentialsXML struct {
	Username string `xml:"Username,attr"`
	Password string `xml:"Password,attr"`
}

// PartDefinition is one part entry; paths are relative to the project root
type PartDefinition struct {
	Kind     PartKind `xml:"Kind,attr"`
	Database string   `xml:"Database,attr"`
	Folder   string   `xml:"Folder,attr"`
}

// ReadManifest reads and validates the manifest of the project at dir
func ReadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, errors.Errorf("reading project manifest: %w", err)
	}

	var m Manifest
	if err := xml.Unmarshal(data, &m); err != nil {
		return nil, errors.Errorf("parsing project manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// WriteManifest writes m as the manifest of the project at dir
func WriteManifest(dir string, m *Manifest) error {
	data, err := xml.MarshalIndent(m, "", "  ")
	if err != nil {
		return errors.Errorf("marshaling project manifest: %w", err)
	}
	data = append([]byte(xml.Header), data...)
	if err := os.WriteFile(filepath.Join(dir, ManifestFile), data, 0644); err != nil {
		return errors.Errorf("writing project manifest: %w", err)
	}
	return nil
}

// Validate checks the name, version range and part kinds
func (m *Manifest) Validate() error {
	if m.Name == "" {
		return errors.New("project manifest has no name")
	}

	v, err := semver.NewVersion(m.Version)
	if err != nil {
		return errors.Errorf("parsing project version %q: %w", m.Version, err)
	}
	c, err := semver.NewConstraint(SupportedVersions)
	if err != nil {
		return errors.Errorf("parsing version constraint: %w", err)
	}
	if !c.Check(v) {
		return errors.Errorf("%w %s, need %s", ErrUnsupportedVersion, v, SupportedVersions)
	}

	seen := map[PartKind]bool{}
	for _, p := range m.Parts {
		if !p.Kind.Valid() {
			return errors.Errorf("unknown part kind %q", p.Kind)
		}
		if seen[p.Kind] {
			return errors.Errorf("part %s is defined twice", p.Kind)
		}
		if p.Database == "" {
			return errors.Errorf("part %s has no database", p.Kind)
		}
		seen[p.Kind] = true
	}
	if !seen[PnId] {
		return errors.Errorf("project has no %s part", PnId)
	}
	return nil
}
