package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load()

	var root = &cobra.Command{
		Use:          "policylens",
		Short:        "Acquire, version and summarise privacy policies and terms of service",
		SilenceUsage: true,
	}
	var cfgPath string
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is ./config/config.json)")

	root.AddCommand(serveCMD(&cfgPath), migrateCMD(&cfgPath), acquireCMD(&cfgPath))
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
