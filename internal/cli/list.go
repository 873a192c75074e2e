package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mcigo/mci/pkg/client"
)

var (
	listTags     []string
	listToolsets []string
	listJSON     bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the tools in a schema file",
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringSliceVar(&listTags, "tags", nil, "only show tools carrying one of these tags")
	listCmd.Flags().StringSliceVar(&listToolsets, "toolsets", nil, "only show tools from these toolsets")
	listCmd.Flags().BoolVar(&listJSON, "json", false, "output as JSON")
}

func runList(cmd *cobra.Command, args []string) error {
	c, err := client.New(resolveSchemaPath())
	if err != nil {
		return err
	}
	defer c.Close()

	tools := c.Tools()
	if len(listTags) > 0 {
		tools = c.ByTags(listTags...)
	}
	if len(listToolsets) > 0 {
		tools = c.FromToolsets(listToolsets...)
	}

	if listJSON {
		out, err := json.MarshalIndent(tools, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tTYPE\tTAGS\tDESCRIPTION")
	for _, t := range tools {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			t.Name, t.Execution.Type, strings.Join(t.Tags, ","), t.Description)
	}
	return w.Flush()
}
