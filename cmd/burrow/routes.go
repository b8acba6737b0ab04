package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"burrow/internal/errors"
	"burrow/internal/routefile"
	"burrow/internal/router"
)

var routesFormat string

var routesCmd = &cobra.Command{
	Use:   "routes",
	Short: "Inspect route files",
}

var routesCheckCmd = &cobra.Command{
	Use:   "check [FILE]",
	Short: "Validate a route file",
	Long: `Parse the route file and compile every pattern. Exits non-zero on the
first problem. FILE defaults to routes.file from the config.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRoutesCheck,
}

var routesListCmd = &cobra.Command{
	Use:   "list [FILE]",
	Short: "Print the route table in match order",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRoutesList,
}

var routesMatchCmd = &cobra.Command{
	Use:   "match PATH [FILE]",
	Short: "Show which route a request path would reach",
	Example: `  burrow routes match /static/app.css
  burrow routes match /old/page routes.toml`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runRoutesMatch,
}

func init() {
	routesListCmd.Flags().StringVar(&routesFormat, "format", "human", "Output format (human, json)")

	routesCmd.AddCommand(routesCheckCmd)
	routesCmd.AddCommand(routesListCmd)
	routesCmd.AddCommand(routesMatchCmd)
	rootCmd.AddCommand(routesCmd)
}

// loadRoutes reads the route file named in args, or the configured one, and
// applies it to a fresh router.
func loadRoutes(args []string) (string, *routefile.File, *router.Router, error) {
	path := ""
	if len(args) > 0 {
		path = args[0]
	} else {
		result, err := loadConfig()
		if err != nil {
			return "", nil, nil, fmt.Errorf("load config: %w", err)
		}
		path = result.Config.Routes.File
	}

	r := router.New(nil)
	f, err := routefile.LoadInto(path, r)
	if err != nil {
		return path, nil, nil, err
	}
	r.Freeze()
	return path, f, r, nil
}

func runRoutesCheck(cmd *cobra.Command, args []string) error {
	path, f, _, err := loadRoutes(args)
	if err != nil {
		for _, fix := range errors.FixesFor(err) {
			hint := fix.Description
			switch fix.Type {
			case errors.RunCommand:
				hint += ": " + strings.ReplaceAll(fix.Command, "${routes_file}", path)
			case errors.OpenDocs:
				hint += ": " + fix.URL
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "hint: %s\n", hint)
		}
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d routes OK\n", path, len(f.Routes))
	return nil
}

// routeRow is one line of routes list output.
type routeRow struct {
	Index   int    `json:"index"`
	Pattern string `json:"pattern"`
	Type    string `json:"type"`
	Target  string `json:"target,omitempty"`
	Code    int    `json:"code,omitempty"`
}

func rows(f *routefile.File) []routeRow {
	out := make([]routeRow, len(f.Routes))
	for i, rt := range f.Routes {
		row := routeRow{Index: i, Pattern: rt.Pattern, Type: rt.Type, Code: rt.Code}
		switch rt.Type {
		case routefile.TypeStatic:
			row.Target = fmt.Sprintf("%d bytes", len(rt.Body))
		case routefile.TypeRedirect:
			row.Target = rt.Location
		case routefile.TypeExport:
			row.Target = rt.Dir
		}
		out[i] = row
	}
	return out
}

func runRoutesList(cmd *cobra.Command, args []string) error {
	_, f, _, err := loadRoutes(args)
	if err != nil {
		return err
	}
	return printRoutes(cmd.OutOrStdout(), rows(f), routesFormat)
}

func printRoutes(w io.Writer, table []routeRow, format string) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(table)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tPATTERN\tTYPE\tCODE\tTARGET")
	for _, row := range table {
		pattern := row.Pattern
		if pattern == "" {
			pattern = `""`
		}
		code := "-"
		if row.Code != 0 {
			code = fmt.Sprint(row.Code)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", row.Index, pattern, row.Type, code, row.Target)
	}
	return tw.Flush()
}

func runRoutesMatch(cmd *cobra.Command, args []string) error {
	_, _, r, err := loadRoutes(args[1:])
	if err != nil {
		return err
	}
	path := strings.TrimPrefix(args[0], "/")
	chain, err := r.Match(path)
	if err != nil {
		return err
	}
	for _, info := range chain {
		fmt.Fprintf(cmd.OutOrStdout(), "%s%q (%s)\n", strings.Repeat("  ", info.Depth), info.Pattern, info.Kind)
	}
	return nil
}
