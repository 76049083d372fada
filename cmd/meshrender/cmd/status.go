package cmd

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/psantana5/meshrender/internal/envconfig"
	"github.com/psantana5/meshrender/internal/hostfacts"
	"github.com/psantana5/meshrender/internal/identity"
	"github.com/psantana5/meshrender/internal/layout"
	"github.com/psantana5/meshrender/internal/meshconfig"
)

var statusOutput string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show what the next run would find on disk",
	Long: `Status resolves the platform environment and reports the hostname record,
which certificate files exist, and whether config.json's platform-mandated
settings drift from the current environment. It never changes anything.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st := collectStatus(loadOptions().paths(), envconfig.FromOS().Resolve(), hostfacts.Collect())
		if statusOutput == "json" {
			return writeJSON(cmd.OutOrStdout(), st)
		}
		return printStatus(cmd.OutOrStdout(), st)
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().StringVarP(&statusOutput, "output", "o", "table", "Output format: table, json")
}

// Status is a read-only view of one install.
type Status struct {
	Settings envconfig.Settings `json:"settings"`
	Paths    layout.Paths       `json:"paths"`

	HostnameRecord  string `json:"hostname_record"`
	HostnameVerdict string `json:"hostname_verdict"`
	HostnameReason  string `json:"hostname_reason"`

	Artifacts        []string `json:"artifacts_present"`
	ArtifactsMissing []string `json:"artifacts_missing"`

	ConfigExists bool     `json:"config_exists"`
	ConfigDrift  []string `json:"config_drift,omitempty"`
	ConfigError  string   `json:"config_error,omitempty"`

	Host hostfacts.Facts `json:"host"`
}

func collectStatus(paths layout.Paths, settings envconfig.Settings, host hostfacts.Facts) Status {
	st := Status{
		Settings: settings.Redacted(),
		Paths:    paths,
		Host:     host,
	}

	detector := identity.NewDetector(paths.DataDir, paths.HostnameFile, paths.Config)
	det := detector.Detect(settings.Hostname)
	st.HostnameRecord = det.Previous
	st.HostnameVerdict = det.Verdict.String()
	st.HostnameReason = string(det.Reason)

	st.Artifacts = detector.Present()
	present := make(map[string]bool, len(st.Artifacts))
	for _, name := range st.Artifacts {
		present[name] = true
	}
	for _, name := range detector.Artifacts {
		if !present[name] {
			st.ArtifactsMissing = append(st.ArtifactsMissing, name)
		}
	}

	drift, err := meshconfig.NewReconciler(paths.Config).Drift(settings)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		st.ConfigExists = fileExists(paths.Config)
		st.ConfigError = err.Error()
	default:
		st.ConfigExists = true
		st.ConfigDrift = drift
	}
	return st
}

func printStatus(w io.Writer, st Status) error {
	table := tablewriter.NewWriter(w)
	table.Header("Property", "Value")

	table.Append([]string{"Port", fmt.Sprintf("%d", st.Settings.Port)})
	table.Append([]string{"Hostname", st.Settings.Hostname})
	table.Append([]string{"Session Key", sessionKeySource(st.Settings)})
	table.Append([]string{"New Accounts", fmt.Sprintf("%t", st.Settings.AllowNewAccounts)})
	table.Append([]string{"WebRTC", fmt.Sprintf("%t", st.Settings.EnableWebRTC)})
	table.Append([]string{"Minify", fmt.Sprintf("%t", st.Settings.Minify)})
	table.Append([]string{"Allow Framing", fmt.Sprintf("%t", st.Settings.AllowFraming)})
	table.Append([]string{"Data Path", st.Paths.DataDir})

	record := st.HostnameRecord
	if record == "" {
		record = "-"
	}
	table.Append([]string{"Hostname Record", record})
	table.Append([]string{"Next Run", fmt.Sprintf("%s (%s)", st.HostnameVerdict, st.HostnameReason)})
	table.Append([]string{"Certificates", fmt.Sprintf("%d/%d present", len(st.Artifacts), len(st.Artifacts)+len(st.ArtifactsMissing))})

	switch {
	case st.ConfigError != "":
		table.Append([]string{"Config", "unreadable: " + st.ConfigError})
	case !st.ConfigExists:
		table.Append([]string{"Config", "absent (will be created)"})
	case len(st.ConfigDrift) == 0:
		table.Append([]string{"Config", "in sync"})
	default:
		table.Append([]string{"Config", "drift: " + strings.Join(st.ConfigDrift, ", ")})
	}

	if st.Host.OS != "" {
		table.Append([]string{"Host", fmt.Sprintf("%s %s (%s)", st.Host.Platform, st.Host.PlatformVersion, st.Host.KernelVersion)})
	}
	if st.Host.MemTotalMB > 0 {
		table.Append([]string{"Memory", fmt.Sprintf("%d MB total, %d MB available", st.Host.MemTotalMB, st.Host.MemAvailableMB)})
	}
	if st.Host.CPUs > 0 {
		table.Append([]string{"CPUs", fmt.Sprintf("%d", st.Host.CPUs)})
	}

	return table.Render()
}

func sessionKeySource(s envconfig.Settings) string {
	if s.SessionKeyGenerated {
		return "generated per run (set SESSION_KEY)"
	}
	return "from SESSION_KEY"
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
