package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/JoeShih716/go-block-ledger/internal/config"
)

var cmdMain = &cobra.Command{
	Use:   "core",
	Short: "Block ledger settlement node",
	Run:   printUsageAndExit1,
}

var flagMain struct {
	Config string
}

func init() {
	cmdMain.PersistentFlags().StringVarP(&flagMain.Config, "config", "c", config.DefaultPath, "Path to the YAML configuration file")
}

func main() {
	_ = cmdMain.Execute()
}

func printUsageAndExit1(cmd *cobra.Command, args []string) {
	_ = cmd.Usage()
	os.Exit(1)
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

func check(err error) {
	if err != nil {
		fatalf("%v", err)
	}
}

func checkf(err error, format string, otherArgs ...interface{}) {
	if err != nil {
		fatalf(format+": %v", append(otherArgs, err)...)
	}
}
