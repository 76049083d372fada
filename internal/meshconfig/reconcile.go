package meshconfig

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/psantana5/meshrender/internal/envconfig"
)

// Mode is the branch a reconciliation took.
type Mode string

const (
	ModeCreated Mode = "created"
	ModeMerged  Mode = "merged"
	ModeSkipped Mode = "skipped"
)

// Result describes one reconciliation. Warning is set when an existing file
// was left untouched because it could not be read, parsed or rewritten.
type Result struct {
	Mode    Mode
	Path    string
	Warning error
}

// Reconciler keeps config.json in line with the resolved settings.
type Reconciler struct {
	Path string
}

// NewReconciler creates a reconciler for the config file at path.
func NewReconciler(path string) *Reconciler {
	return &Reconciler{Path: path}
}

// Reconcile creates config.json when it is absent and otherwise merges the
// mandated subset into it. Only a failure to write a brand new file is
// returned as an error; problems with an existing file become a warning.
func (r *Reconciler) Reconcile(s envconfig.Settings) (Result, error) {
	res := Result{Path: r.Path}

	_, err := os.Stat(r.Path)
	if errors.Is(err, fs.ErrNotExist) {
		if err := NewDocument(s).Save(r.Path); err != nil {
			return res, fmt.Errorf("failed to create config: %w", err)
		}
		res.Mode = ModeCreated
		return res, nil
	}

	doc, err := Load(r.Path)
	if err != nil {
		res.Mode, res.Warning = ModeSkipped, err
		return res, nil
	}

	doc.ApplyPlatform(s)
	if err := doc.Save(r.Path); err != nil {
		res.Mode, res.Warning = ModeSkipped, err
		return res, nil
	}
	res.Mode = ModeMerged
	return res, nil
}

// Drift loads the config at path and reports which mandated keys differ
// from s. It does not modify the file.
func (r *Reconciler) Drift(s envconfig.Settings) ([]string, error) {
	doc, err := Load(r.Path)
	if err != nil {
		return nil, err
	}
	return doc.Drift(s), nil
}
