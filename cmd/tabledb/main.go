package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/nStangl/tabledb/ast"
	"github.com/nStangl/tabledb/server/catalog"
	"github.com/nStangl/tabledb/server/config"
	"github.com/nStangl/tabledb/server/engine"
	"github.com/nStangl/tabledb/util"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const version = "0.1.0"

var (
	cfg  config.Config
	file string

	rootCmd = &cobra.Command{
		Use:     "tabledb",
		Short:   "tabledb",
		Long:    "Embedded relational tables on per-table LSM storage",
		Version: version,
	}

	execCmd = &cobra.Command{
		Use:   "exec [loglevel]",
		Short: "Execute JSON encoded statements, one per line",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := setup(cmd, args)
			if err != nil {
				return err
			}

			defer closeCatalog(c)

			in := io.Reader(os.Stdin)

			if file != "" {
				f, err := os.Open(file)
				if err != nil {
					return fmt.Errorf("failed to open statement file: %w", err)
				}

				defer f.Close()

				in = f
			}

			return execute(engine.New(c), ast.NewDecoder(in), os.Stdout)
		},
	}

	tablesCmd = &cobra.Command{
		Use:   "tables [loglevel]",
		Short: "List tables with their columns and storage state",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := setup(cmd, args)
			if err != nil {
				return err
			}

			defer closeCatalog(c)

			for _, name := range c.Names() {
				t, err := c.Lookup(name)
				if err != nil {
					return err
				}

				s, err := t.Store()
				if err != nil {
					return err
				}

				stats := s.Stats()

				fmt.Printf("%s %v: memtable %d keys / %d bytes, %d sstables\n",
					name, t.Columns, stats.MemtableKeys, stats.MemtableBytes, len(stats.Tables))

				for _, sst := range stats.Tables {
					fmt.Printf("  %s [%s, %s] %d entries, %d bytes\n", sst.Name(), sst.MinKey, sst.MaxKey, sst.Count, sst.Size)
				}
			}

			return nil
		},
	}

	compactCmd = &cobra.Command{
		Use:   "compact [table...]",
		Short: "Flush and compact the storage of the given tables, or of all tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := setup(cmd, nil)
			if err != nil {
				return err
			}

			defer closeCatalog(c)

			names := args
			if len(names) == 0 {
				names = c.Names()
			}

			for _, name := range names {
				t, err := c.Lookup(name)
				if err != nil {
					return err
				}

				s, err := t.Store()
				if err != nil {
					return err
				}

				if err := s.Flush(); err != nil {
					return fmt.Errorf("failed to flush %s: %w", name, err)
				}

				if err := s.Compact(); err != nil {
					return fmt.Errorf("failed to compact %s: %w", name, err)
				}

				log.Infof("compacted table %s", name)
			}

			return nil
		},
	}

	dumpCmd = &cobra.Command{
		Use:   "dump <table>",
		Short: "Print every live storage entry of a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := setup(cmd, nil)
			if err != nil {
				return err
			}

			defer closeCatalog(c)

			t, err := c.Lookup(args[0])
			if err != nil {
				return err
			}

			s, err := t.Store()
			if err != nil {
				return err
			}

			kvs, err := s.All()
			if err != nil {
				return err
			}

			for _, kv := range kvs {
				fmt.Printf("%s\t%s\n", kv.Key, kv.Value)
			}

			return nil
		},
	}
)

func init() {
	log.SetLevel(log.InfoLevel)
	log.SetOutput(os.Stdout)

	cfg.Register(rootCmd.PersistentFlags())

	execCmd.Flags().StringVarP(&file, "file", "f", "", "Read statements from this file instead of stdin")

	rootCmd.AddCommand(execCmd, tablesCmd, compactCmd, dumpCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Whoops. There was an error while executing your CLI '%s'", err)
		os.Exit(1)
	}
}

// setup applies the log level and opens the catalog
func setup(cmd *cobra.Command, args []string) (*catalog.Catalog, error) {
	cmd.SilenceUsage = true

	if unparsed := util.ExtractUnknownArgs(cmd.Flags(), args); len(unparsed) == 1 {
		cfg.Loglevel = unparsed[0]
	}

	config.SetLogLevel(cfg.Loglevel)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	c, err := catalog.Open(cfg.Directory, cfg.StoreOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}

	log.Infof("opened catalog in %s with %d tables", cfg.Directory, len(c.Names()))

	return c, nil
}

func closeCatalog(c *catalog.Catalog) {
	if err := c.Close(); err != nil {
		log.Printf("failed to close catalog: %v", err)
	}
}

// execute runs every decoded statement. A failing statement is reported
// and the next one is executed.
func execute(e *engine.Engine, dec *ast.Decoder, out io.Writer) error {
	var (
		run    = uuid.New()
		count  int
		failed int
	)

	log.Infof("run %s started", run)

	for {
		s, err := dec.Next()
		if errors.Is(err, io.EOF) {
			break
		}

		count++

		if errors.Is(err, ast.ErrMalformedStatement) {
			failed++
			fmt.Fprintf(out, "Error: %v\n", err)
			continue
		}

		if err != nil {
			return fmt.Errorf("failed to read statements: %w", err)
		}

		res, err := e.Execute(s)
		if err != nil {
			failed++
			fmt.Fprintf(out, "Error: %v\n", err)
			continue
		}

		fmt.Fprintln(out, res)
	}

	log.Infof("run %s finished: %d statements, %d failed", run, count, failed)

	return nil
}
