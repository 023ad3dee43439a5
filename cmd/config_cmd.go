package main

import (
	"net/url"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/bdnb-api/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := renderConfig(cfg)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

// renderConfig marshals c with the database password redacted.
func renderConfig(c *config.Config) ([]byte, error) {
	shown := *c
	shown.Store.DatabaseURL = redactURL(c.Store.DatabaseURL)

	out, err := yaml.Marshal(&shown)
	if err != nil {
		return nil, eris.Wrap(err, "marshal config")
	}
	return out, nil
}

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "[invalid url]"
	}
	return u.Redacted()
}

func init() {
	rootCmd.AddCommand(configCmd)
}
