// cmd/fdirctl is the CLI client, built with Cobra.
//
// Usage:
//
//	fdirctl create test /a/b --servers 1=localhost:11401,2=localhost:11402
//	fdirctl remove test /a/b --servers 1=localhost:11401
//	fdirctl list test /a     --servers 1=localhost:11401
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"fastdir/internal/clientrouter"
	"fastdir/internal/sdk"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	serversFlag    string
	connectTimeout time.Duration
	networkTimeout time.Duration
)

func main() {
	root := &cobra.Command{
		Use:   "fdirctl",
		Short: "CLI client for a FastDIR cluster",
	}

	root.PersistentFlags().StringVarP(&serversFlag, "servers", "s", "",
		"Comma-separated list of server_id=host:port")
	root.PersistentFlags().DurationVar(&connectTimeout, "connect-timeout", 3*time.Second, "Connect timeout")
	root.PersistentFlags().DurationVar(&networkTimeout, "network-timeout", 5*time.Second, "Network timeout")

	root.AddCommand(createCmd(), removeCmd(), listCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func parseServers() ([]clientrouter.ServerSpec, error) {
	if serversFlag == "" {
		return nil, fmt.Errorf("--servers is required, e.g. 1=localhost:11401,2=localhost:11402")
	}
	var specs []clientrouter.ServerSpec
	for _, entry := range strings.Split(serversFlag, ",") {
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid server entry %q: expected server_id=host:port", entry)
		}
		id, err := strconv.Atoi(parts[0])
		if err != nil {
			return nil, fmt.Errorf("invalid server_id %q: %w", parts[0], err)
		}
		specs = append(specs, clientrouter.ServerSpec{ServerID: id, ServiceAddr: parts[1]})
	}
	return specs, nil
}

func newClient() (*sdk.Client, error) {
	specs, err := parseServers()
	if err != nil {
		return nil, err
	}
	log, _ := zap.NewDevelopment()
	return sdk.New(specs, connectTimeout, networkTimeout, log.Sugar()), nil
}

// ─── create ─────────────────────────────────────────────────────────────────

func createCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <namespace> <path> [data]",
		Short: "Create a dentry",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			var data []byte
			if len(args) == 3 {
				data = []byte(args[2])
			}
			if err := c.Create(args[0], args[1], data); err != nil {
				return err
			}
			fmt.Println("OK")
			return nil
		},
	}
}

// ─── remove ─────────────────────────────────────────────────────────────────

func removeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <namespace> <path>",
		Short: "Remove a dentry",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			if err := c.Remove(args[0], args[1]); err != nil {
				return err
			}
			fmt.Println("OK")
			return nil
		},
	}
}

// ─── list ───────────────────────────────────────────────────────────────────

// listCmd reproduces the paged-listing behaviour of the original
// tools/fdir_list.c: issue LIST_DENTRY_FIRST_REQ, then keep issuing
// LIST_DENTRY_NEXT_REQ until is_last, then print every accumulated name
// once the whole listing has been reassembled.
func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <namespace> <path>",
		Short: "List the immediate children of a directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			result, err := c.List(args[0], args[1])
			if err != nil {
				return err
			}
			for _, name := range result.Names {
				fmt.Println(name)
			}
			fmt.Fprintf(os.Stderr, "%d entries\n", len(result.Names))
			return nil
		},
	}
}
