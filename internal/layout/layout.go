package layout

import (
	"os"
	"path/filepath"
)

const (
	DataDirName    = "meshcentral-data"
	FilesDirName   = "meshcentral-files"
	BackupsDirName = "meshcentral-backups"

	ConfigFileName   = "config.json"
	HostnameFileName = ".render-hostname"
)

// Paths contains every location the shim reads or writes.
type Paths struct {
	Root         string `json:"root"`          // Install root (where node_modules lives)
	DataDir      string `json:"data_dir"`      // Passed to the server as --datapath
	FilesDir     string `json:"files_dir"`     // Uploaded files
	BackupsDir   string `json:"backups_dir"`   // Server-managed backups
	Config       string `json:"config"`        // config.json
	HostnameFile string `json:"hostname_file"` // Hostname the certificates were issued for
}

// New returns the layout rooted at root. An empty root means the working directory.
func New(root string) Paths {
	if root == "" {
		root = "."
	}
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}

	dataDir := filepath.Join(root, DataDirName)

	return Paths{
		Root:         root,
		DataDir:      dataDir,
		FilesDir:     filepath.Join(root, FilesDirName),
		BackupsDir:   filepath.Join(root, BackupsDirName),
		Config:       filepath.Join(dataDir, ConfigFileName),
		HostnameFile: filepath.Join(dataDir, HostnameFileName),
	}
}

// Ensure creates the data directories. Best effort: failures are returned
// for logging but never stop the run, since the server reports its own
// errors if a directory is really missing.
func (p Paths) Ensure() []error {
	var errs []error
	for _, dir := range []string{p.DataDir, p.FilesDir, p.BackupsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}
