package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/psantana5/meshrender/internal/envconfig"
	"github.com/psantana5/meshrender/internal/meshconfig"
)

var (
	configOutput      string
	configShowSecrets bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the MeshCentral configuration meshrender manages",
}

var configRenderCmd = &cobra.Command{
	Use:   "render",
	Short: "Print the config.json a first run would create",
	Long: `Render resolves the platform environment and prints the complete
config.json that a first run would write. Nothing on disk is read or changed.
The session key is redacted unless --show-secrets is given.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return renderConfig(cmd.OutOrStdout(), envconfig.FromOS().Resolve(), configOutput, configShowSecrets)
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configRenderCmd)

	configRenderCmd.Flags().StringVarP(&configOutput, "output", "o", "json", "Output format: json, yaml")
	configRenderCmd.Flags().BoolVar(&configShowSecrets, "show-secrets", false, "Print the session key instead of redacting it")
}

func renderConfig(w io.Writer, settings envconfig.Settings, format string, showSecrets bool) error {
	if !showSecrets {
		settings = settings.Redacted()
	}

	data, err := meshconfig.NewDocument(settings).Encode()
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	switch format {
	case "json":
		_, err := fmt.Fprintln(w, string(data))
		return err

	case "yaml":
		// Decoding into a node keeps the document's key order.
		var node yaml.Node
		if err := yaml.Unmarshal(data, &node); err != nil {
			return fmt.Errorf("failed to convert config to yaml: %w", err)
		}
		blockStyle(&node)
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(&node); err != nil {
			return err
		}
		return encoder.Close()

	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

// blockStyle drops the flow and quoting styles a JSON source leaves on the
// nodes so the encoder emits plain block YAML.
func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		blockStyle(c)
	}
}

// writeJSON prints v as indented JSON.
func writeJSON(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
