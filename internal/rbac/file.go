package rbac

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

type policyFile struct {
	Roles map[string][]string `yaml:"roles"`
}

// ParsePolicy decodes a YAML table of the form
//
//	roles:
//	  admin: [create, read, update, delete, manage]
//	  viewer: [read]
//
// Unknown roles, unknown actions, and unknown top-level keys are errors.
func ParsePolicy(data []byte, opts ...PolicyOption) (*Policy, error) {
	var doc policyFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode policy: %w", err)
	}
	if len(doc.Roles) == 0 {
		return nil, fmt.Errorf("policy defines no roles")
	}

	grants := make(map[Role][]Action, len(doc.Roles))
	for name, actions := range doc.Roles {
		role, err := ParseRole(name)
		if err != nil {
			return nil, err
		}
		for _, a := range actions {
			action, err := ParseAction(a)
			if err != nil {
				return nil, fmt.Errorf("role %s: %w", role, err)
			}
			grants[role] = append(grants[role], action)
		}
	}
	return NewPolicy(grants, opts...), nil
}

func LoadPolicyFile(path string, opts ...PolicyOption) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}
	return ParsePolicy(data, opts...)
}

// WatchForDrift logs a warning whenever the policy file changes on disk.
// The loaded table is never swapped; a change only takes effect after a
// restart. The returned function stops the watcher.
func WatchForDrift(path string, log logrus.FieldLogger) (func() error, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	name := filepath.Clean(path)
	go func() {
		var debounce *time.Timer
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != name {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
					!event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
					continue
				}
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(500*time.Millisecond, func() {
					log.WithField("path", path).
						Warn("policy file changed on disk; restart to apply")
				})
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.WithError(err).Warn("policy watcher error")
			}
		}
	}()

	return watcher.Close, nil
}
