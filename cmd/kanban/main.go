package main

import (
	"fmt"
	"os"

	"github.com/SanjayB2005/TaskManagement/internal/cli"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "kanban",
	Short: "Kanban board task manager with automatic timeouts",
}

func main() {
	cli.SetupCLI(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
