package cmd

import "github.com/spf13/cobra"

// Version is set at build time.
var Version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "gatetrap",
	Short: "Gatetrap — behavioral firewall for web traffic",
	Long: `Gatetrap is a web-request firewall kernel.
It sits in front of a web backend, accumulating per-visitor behavioral
counters (request frequency, referers, sessions, JS cookies) and decides
per request whether to allow, challenge, or permanently deny the visitor,
escalating repeat offenders down to the OS packet filter.`,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(testCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("gatetrap v%s\n", Version)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
