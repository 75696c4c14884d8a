package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// newRootCommand はルートコマンドを作成する
func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "poolhttpd",
		Short: "Static page server backed by a fixed-size worker pool",
		Long: `poolhttpd accepts TCP connections and hands each one to a fixed-size
worker pool. Every connection gets a single response: the index page for
"GET / HTTP/1.1", the not-found page for anything else.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newServeCommand(), newVersionCommand())
	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "poolhttpd version %s\n", version)
		},
	}
}

// Execute はコマンドラインを解釈して実行する
func Execute() error {
	return newRootCommand().ExecuteContext(context.Background())
}
