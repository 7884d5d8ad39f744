package engine

import (
	"bytes"
	"io"
	"os"

	"gitlab.com/tozd/go/errors"
	"gopkg.in/yaml.v3"
)

// 🔑 Well-known link parameter names
const (
	ParamDataSource = "Data Source"
	ParamServer     = "Server"
	ParamPort       = "Port"
	ParamDatabase   = "Database"
	ParamInstance   = "Instance"
	ParamSSLMode    = "SSL Mode"
)

// sqliteMagic is the first 16 bytes of every SQLite 3 database file
var sqliteMagic = []byte("SQLite format 3\x00")

// 🔐 Credentials are the storage engine user name and password of a project
type Credentials struct {
	Username string
	Password string
}

// Param is one ordered link parameter
type Param struct {
	Key   string `yaml:"key"`
	Value string `yaml:"value"`
}

// 🔗 Link describes how to reach a database: the engine class plus ordered
// connection parameters. Server-backed DCF files hold a Link as YAML.
type Link struct {
	Engine string  `yaml:"engine"`
	Params []Param `yaml:"params"`
}

// NewLink creates a link for the given engine class
func NewLink(engine string) *Link {
	return &Link{Engine: engine}
}

// Add sets a parameter, replacing an earlier value with the same key
func (l *Link) Add(key, value string) {
	for i := range l.Params {
		if l.Params[i].Key == key {
			l.Params[i].Value = value
			return
		}
	}
	l.Params = append(l.Params, Param{Key: key, Value: value})
}

// Get returns a parameter value
func (l Link) Get(key string) (string, bool) {
	for _, p := range l.Params {
		if p.Key == key {
			return p.Value, true
		}
	}
	return "", false
}

// ReadLink reads a YAML link descriptor
func ReadLink(path string) (*Link, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Errorf("reading link descriptor: %w", err)
	}

	var link Link
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&link); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Errorf("parsing link descriptor %s: %w", path, err)
	}
	if link.Engine == "" {
		return nil, errors.Errorf("link descriptor %s has no engine", path)
	}
	return &link, nil
}

// WriteLink writes a YAML link descriptor
func WriteLink(path string, link *Link) error {
	data, err := yaml.Marshal(link)
	if err != nil {
		return errors.Errorf("marshaling link descriptor: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Errorf("writing link descriptor: %w", err)
	}
	return nil
}

// 🔍 Detect returns the engine class of a DCF file. SQLite files are
// recognised by their header, everything else must be a link descriptor.
func Detect(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	header := make([]byte, len(sqliteMagic))
	n, err := io.ReadFull(f, header)
	if err == nil && bytes.Equal(header[:n], sqliteMagic) {
		return SQLite, nil
	}
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", errors.Errorf("reading header of %s: %w", path, err)
	}

	link, err := ReadLink(path)
	if err != nil {
		return "", err
	}
	return link.Engine, nil
}
