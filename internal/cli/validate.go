package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mcigo/mci/pkg/schema"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a schema file",
	Long: `Parse the schema file, resolve its toolset references, and report the
result. Exits non-zero when the schema is invalid.`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	path := resolveSchemaPath()

	s, err := schema.ParseFile(path)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s is valid: %d tools (schema version %s)\n",
		path, len(s.Tools), s.SchemaVersion)
	return nil
}
