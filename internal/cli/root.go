package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version information (set by build flags)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const longDescription = `sqltarget - SQL injection target preparation tool

Resolves the injection points of one or many HTTP targets: query, body,
cookie and header parameters, custom '*' injection marks and structured
JSON, XML and multipart bodies. Previously stored knowledge about a target
(injection points, back-end DBMS and OS) is resumed from its session file.

WARNING: Use this tool only against systems you have explicit permission to test.
Unauthorized access to computer systems is illegal.`

// Execute runs the command line.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "sqltarget",
		Short:         "SQL injection target preparation tool",
		Long:          longDescription,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newResolveCmd())

	rootCmd.PersistentFlags().String("config", "", "Config file (YAML)")

	// Target flags
	rootCmd.PersistentFlags().StringP("url", "u", "", "Target URL (e.g., http://target.com/page?id=1)")
	rootCmd.PersistentFlags().StringP("bulk-file", "m", "", "File with one target URL per line")
	rootCmd.PersistentFlags().String("direct", "", "Direct database connection string")
	rootCmd.PersistentFlags().String("method", "GET", "HTTP method (GET, POST, PUT, etc.)")
	rootCmd.PersistentFlags().StringP("data", "d", "", "POST data (e.g., id=1&name=test)")
	rootCmd.PersistentFlags().String("cookie", "", "Cookie string (e.g., PHPSESSID=abc123)")
	rootCmd.PersistentFlags().StringP("user-agent", "A", "", "HTTP User-Agent header value")
	rootCmd.PersistentFlags().String("referer", "", "HTTP Referer header value")
	rootCmd.PersistentFlags().StringArrayP("header", "H", nil, "Extra header (repeatable, e.g., -H 'X-Custom: value')")
	rootCmd.PersistentFlags().String("param-del", "", "Character used for splitting parameter values")
	rootCmd.PersistentFlags().String("cookie-del", "", "Character used for splitting cookie values")

	// Restrictions
	rootCmd.PersistentFlags().StringP("test-parameter", "p", "", "Testable parameter(s), comma-separated")
	rootCmd.PersistentFlags().String("technique", "", "Techniques to use (B=Boolean, E=Error, U=Union, S=Stacked, T=Time, Q=Inline)")
	rootCmd.PersistentFlags().String("dbms", "", "Force back-end DBMS (MySQL, PostgreSQL, ...)")
	rootCmd.PersistentFlags().String("os", "", "Force back-end DBMS operating system")

	// Session and output
	rootCmd.PersistentFlags().String("session", "", "Session file path (SQLite)")
	rootCmd.PersistentFlags().Bool("flush-session", false, "Flush the session file of the target")
	rootCmd.PersistentFlags().String("output-dir", defaultOutputDir, "Root output directory")
	rootCmd.PersistentFlags().String("tmp-path", "", "Remote temporary path")
	rootCmd.PersistentFlags().IntP("verbose", "v", 0, "Verbosity level (0-3)")
	rootCmd.PersistentFlags().StringP("output", "o", "", "Report file path")
	rootCmd.PersistentFlags().StringP("format", "f", "text", "Report format (text, json, yaml)")

	// Prompts
	rootCmd.PersistentFlags().Bool("batch", false, "Never ask for user input, use the default behavior")
	rootCmd.PersistentFlags().String("answers", "", "Predefined answers (e.g. \"quit=N,follow=N\")")

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "sqltarget %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}
