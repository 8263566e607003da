// Command toolmesh runs the orchestration engine as an MCP server over
// stdio, or validates a configuration file without starting anything.
package main

import (
	"fmt"
	"os"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/hupe1980/toolmesh/config"
	"github.com/hupe1980/toolmesh/engine"
	"github.com/hupe1980/toolmesh/logging"
	"github.com/hupe1980/toolmesh/memory"
	"github.com/hupe1980/toolmesh/server"
)

// Version is set at build time via ldflags.
var Version = "dev"

var (
	configPath string
	dbPath     string
	logLevel   string
	logFormat  string
)

var rootCmd = &cobra.Command{
	Use:   "toolmesh",
	Short: "Orchestration engine for memory, graph and reasoning servers",
	Long: "Toolmesh coordinates capability servers behind a single tool-call " +
		"interface: a server registry with health tracking, a dispatch " +
		"coordinator with retries and fallback, and built-in memory, " +
		"knowledge-graph and sequential-reasoning servers.",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the mesh over MCP on stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := logging.NewMeshLogger(logging.ParseLevel(logLevel), logFormat, false)

		opts := []func(o *engine.Options){engine.WithLogger(logger)}

		if dbPath != "" {
			store, err := memory.NewSQLiteStore(dbPath)
			if err != nil {
				return fmt.Errorf("open memory store: %w", err)
			}
			defer store.Close()
			opts = append(opts, engine.WithMemoryStore(store))
		}

		mesh := engine.New(opts...)

		if configPath != "" {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			// External transports are bound by the embedding application;
			// descriptors registered here dispatch once a transport exists.
			for _, desc := range cfg.Descriptors() {
				if err := mesh.RegisterServer(desc, nil); err != nil {
					return err
				}
			}
		}

		logger.Info("starting toolmesh", "version", Version, "db", dbPath, "config", configPath)
		return mcpserver.ServeStdio(server.New(mesh, Version))
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file and print the server summary",
	RunE: func(cmd *cobra.Command, args []string) error {
		if configPath == "" {
			return fmt.Errorf("--config is required")
		}
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d server(s) configured\n", configPath, len(cfg.Servers))
		for _, desc := range cfg.Descriptors() {
			fmt.Fprintf(cmd.OutOrStdout(), "  %-20s %-30s auth=%-6s capabilities=%d\n",
				desc.Name, desc.Endpoint, desc.Auth.Type, len(desc.Capabilities))
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to the YAML server configuration")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "json", "Log format: json or text")

	serveCmd.Flags().StringVar(&dbPath, "db", "", "SQLite path for durable memory (default: in-memory store)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(validateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
