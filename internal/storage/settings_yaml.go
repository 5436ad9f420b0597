package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

const settingsFileName = "settings.yaml"

// YAMLStore keeps the flat configuration keys in a nested YAML document.
// The key timers/rest_break/limit becomes timers: rest_break: limit: 2700.
type YAMLStore struct {
	mu   sync.Mutex
	path string
}

// NewYAMLStore stores settings at path. An empty path resolves to the user
// configuration directory of appName.
func NewYAMLStore(appName, path string) (*YAMLStore, error) {
	if path == "" {
		resolved, err := resolveConfigPath(appName)
		if err != nil {
			return nil, err
		}
		path = resolved
	}
	return &YAMLStore{path: path}, nil
}

// Path returns the settings file location.
func (store *YAMLStore) Path() string {
	return store.path
}

// Load reads the settings file. A missing file yields an empty map.
func (store *YAMLStore) Load() (map[string]string, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	rawData, err := os.ReadFile(store.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("read settings file: %w", err)
	}

	var document map[string]any
	if err := yaml.Unmarshal(rawData, &document); err != nil {
		return nil, fmt.Errorf("parse settings yaml: %w", err)
	}

	values := map[string]string{}
	flatten("", document, values)
	return values, nil
}

// Save writes values as nested YAML, replacing the file atomically.
func (store *YAMLStore) Save(values map[string]string) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(store.path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	serialized, err := yaml.Marshal(nest(values))
	if err != nil {
		return fmt.Errorf("marshal settings yaml: %w", err)
	}

	temporary := store.path + ".tmp"
	if err := os.WriteFile(temporary, serialized, 0o644); err != nil {
		return fmt.Errorf("write settings file: %w", err)
	}
	if err := os.Rename(temporary, store.path); err != nil {
		return fmt.Errorf("replace settings file: %w", err)
	}
	return nil
}

func resolveConfigPath(appName string) (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config dir: %w", err)
	}
	return filepath.Join(configDir, appName, settingsFileName), nil
}

func flatten(prefix string, node map[string]any, values map[string]string) {
	for name, value := range node {
		key := name
		if prefix != "" {
			key = prefix + "/" + name
		}
		switch typed := value.(type) {
		case map[string]any:
			flatten(key, typed, values)
		case nil:
		default:
			values[key] = fmt.Sprint(typed)
		}
	}
}

// nest builds the YAML tree. Scalars that parse as numbers or booleans are
// written untyped so the file stays readable.
func nest(values map[string]string) *yaml.Node {
	root := &yaml.Node{Kind: yaml.MappingNode}
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		parent := root
		parts := strings.Split(key, "/")
		for _, part := range parts[:len(parts)-1] {
			parent = child(parent, part)
		}
		parent.Content = append(parent.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: parts[len(parts)-1]},
			scalar(values[key]))
	}
	return root
}

func child(parent *yaml.Node, name string) *yaml.Node {
	for i := 0; i+1 < len(parent.Content); i += 2 {
		if parent.Content[i].Value == name && parent.Content[i+1].Kind == yaml.MappingNode {
			return parent.Content[i+1]
		}
	}
	node := &yaml.Node{Kind: yaml.MappingNode}
	parent.Content = append(parent.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: name}, node)
	return node
}

func scalar(value string) *yaml.Node {
	node := &yaml.Node{Kind: yaml.ScalarNode, Value: value}
	switch {
	case value == "true" || value == "false":
		node.Tag = "!!bool"
	case isInt(value):
		node.Tag = "!!int"
	case isFloat(value):
		node.Tag = "!!float"
	default:
		node.Tag = "!!str"
	}
	return node
}

func isInt(value string) bool {
	_, err := strconv.ParseInt(value, 10, 64)
	return err == nil
}

func isFloat(value string) bool {
	_, err := strconv.ParseFloat(value, 64)
	return err == nil && !strings.ContainsAny(value, "xXpP_") && value != "NaN" && !strings.Contains(strings.ToLower(value), "inf")
}
