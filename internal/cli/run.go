package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mcigo/mci/pkg/client"
)

var (
	runProps string
	runEnv   []string
	runJSON  bool
)

var runCmd = &cobra.Command{
	Use:   "run <tool>",
	Short: "Execute a tool",
	Long: `Execute a tool from the schema file. Properties are passed as a JSON
object and environment values as KEY=VALUE pairs:

  mci run greet --props '{"name": "Ana"}' --env API_KEY=sk-...`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runProps, "props", "p", "", "tool properties as a JSON object")
	runCmd.Flags().StringArrayVarP(&runEnv, "env", "e", nil, "environment value as KEY=VALUE (repeatable)")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "output the full result envelope as JSON")
}

func runRun(cmd *cobra.Command, args []string) error {
	props, err := parseProps(runProps)
	if err != nil {
		return err
	}
	env, err := parseEnv(runEnv)
	if err != nil {
		return err
	}

	c, err := client.New(resolveSchemaPath())
	if err != nil {
		return err
	}
	defer c.Close()

	res, err := c.Execute(cmd.Context(), args[0], props, env)
	if err != nil {
		return err
	}

	if runJSON {
		out, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
	} else if res.IsError {
		fmt.Fprintln(cmd.ErrOrStderr(), res.Error)
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), res.Text())
	}

	if res.IsError {
		return fmt.Errorf("tool %q failed", args[0])
	}
	return nil
}

func parseProps(raw string) (map[string]any, error) {
	if raw == "" {
		return nil, nil
	}
	var props map[string]any
	if err := json.Unmarshal([]byte(raw), &props); err != nil {
		return nil, fmt.Errorf("invalid --props, expected a JSON object: %w", err)
	}
	return props, nil
}

func parseEnv(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	env := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --env %q, expected KEY=VALUE", pair)
		}
		env[key] = value
	}
	return env, nil
}
