// Command taskctl is an operator CLI for TaskCore, mirroring the teacher's
// cmd/memoryctl shape: a persistent-flag rootCmd with one subcommand per
// resource, each subcommand registering itself from its own file's init().
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	apiFlag string
	dbFlag  string

	rootCmd = &cobra.Command{
		Use:   "taskctl",
		Short: "Operator CLI for the TaskCore service",
	}
)

func main() {
	rootCmd.PersistentFlags().StringVarP(&apiFlag, "api", "a", "http://localhost:8080", "TaskCore base URL")
	rootCmd.PersistentFlags().StringVarP(&dbFlag, "db", "d", "taskcore.db", "sqlite path for direct-store operator commands")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
