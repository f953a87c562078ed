package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/colonise/forge/internal/engine"
	"github.com/colonise/forge/internal/state"
	"github.com/colonise/forge/pkg/types"
)

const statusInterrupted = "interrupted"

// graphFormat is the --format value of graph, restricted to the supported
// encodings.
type graphFormat string

var _ pflag.Value = (*graphFormat)(nil)

func (f *graphFormat) String() string { return string(*f) }

func (f *graphFormat) Set(value string) error {
	switch strings.ToLower(value) {
	case "yaml", "yml":
		*f = "yaml"
	case "json":
		*f = "json"
	default:
		return fmt.Errorf("unknown format %q (expected yaml or json)", value)
	}
	return nil
}

func (f *graphFormat) Type() string { return "format" }

func (c *CLI) newGraphCmd() *cobra.Command {
	format := graphFormat("yaml")

	cmd := &cobra.Command{
		Use:   "graph [pipeline]",
		Short: "Print the task graph of a pipeline",
		Long:  `Print the task graph of a pipeline, or of "all" when none is named.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) > 0 {
				name = args[0]
			}
			return c.runGraph(name, format)
		},
	}
	cmd.Flags().VarP(&format, "format", "f", "output format (yaml, json)")
	return cmd
}

func (c *CLI) newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the latest run of every pipeline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runStatus()
		},
	}
}

func (c *CLI) newLogsCmd() *cobra.Command {
	var lines int

	cmd := &cobra.Command{
		Use:   "logs [collaborator]",
		Short: "Show collaborator logs",
		Long:  `Display the output of the compiler, linter, test runner and release tools, or of one of them.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) > 0 {
				name = args[0]
			}
			return c.runLogs(name, lines)
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "number of lines to show")
	return cmd
}

func (c *CLI) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of forge",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(c.output, "forge v%s\n", c.config.Version)
		},
	}
}

func (c *CLI) runGraph(name string, format graphFormat) error {
	cfg, err := c.loadProjectConfig()
	if err != nil {
		return err
	}
	registry, err := c.buildRegistry(cfg)
	if err != nil {
		return err
	}

	var node engine.Node
	if name == "" {
		def, ok := registry.Default()
		if !ok {
			return fmt.Errorf("no default pipeline")
		}
		node = def
	} else if node, err = registry.Lookup(name); err != nil {
		return err
	}

	graph := engine.Describe(node)
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(c.output)
		enc.SetIndent(2)
		if err := enc.Encode(graph); err != nil {
			return fmt.Errorf("failed to encode graph: %w", err)
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(c.output)
		enc.SetIndent("", "  ")
		return enc.Encode(graph)
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

func (c *CLI) runStatus() error {
	sm := state.NewStateManager(c.root, c.logger)
	records, err := sm.DiscoverStates()
	if err != nil {
		return fmt.Errorf("failed to discover states: %w", err)
	}
	if len(records) == 0 {
		c.logger.Info("No pipeline has run yet")
		return nil
	}

	table := tablewriter.NewWriter(c.output)
	table.SetHeader([]string{"Pipeline", "Status", "Last run", "Duration", "Runs", "Failures"})
	table.SetBorder(false)

	for _, record := range records {
		status := string(record.Status)
		if record.Status == types.RunStatusRunning {
			locked, err := sm.IsLocked(record.Pipeline)
			if err == nil && !locked {
				status = statusInterrupted
			}
		}

		lastRun := "-"
		if !record.StartedAt.IsZero() {
			lastRun = humanize.Time(record.StartedAt)
		}
		duration := "-"
		if record.Duration > 0 {
			duration = engine.FormatDuration(record.Duration)
		}

		table.Append([]string{
			record.Pipeline,
			colorStatus(status),
			lastRun,
			duration,
			strconv.Itoa(record.RunCount),
			strconv.Itoa(record.FailureCount),
		})
	}
	table.Render()

	for _, record := range records {
		if record.Status == types.RunStatusFailed && len(record.FailedTasks) > 0 {
			c.logger.Warn(fmt.Sprintf("'%s' failed in %s", record.Pipeline, strings.Join(record.FailedTasks, ", ")))
		}
	}
	return nil
}

func colorStatus(status string) string {
	switch status {
	case string(types.RunStatusSucceeded):
		return color.GreenString(status)
	case string(types.RunStatusFailed):
		return color.RedString(status)
	case string(types.RunStatusRunning):
		return color.YellowString(status)
	default:
		return color.WhiteString(status)
	}
}

func (c *CLI) runLogs(name string, lines int) error {
	logDir := c.logDir()
	if _, err := os.Stat(logDir); os.IsNotExist(err) {
		c.logger.Warn("No logs found. Run a pipeline to start logging.")
		return nil
	}

	var logFiles []string
	if name != "" {
		logFile := filepath.Join(logDir, name+".log")
		if _, err := os.Stat(logFile); os.IsNotExist(err) {
			return fmt.Errorf("no logs found for %s", name)
		}
		logFiles = []string{logFile}
	} else {
		entries, err := os.ReadDir(logDir)
		if err != nil {
			return fmt.Errorf("failed to read log directory: %w", err)
		}
		for _, entry := range entries {
			if !entry.IsDir() && filepath.Ext(entry.Name()) == ".log" {
				logFiles = append(logFiles, filepath.Join(logDir, entry.Name()))
			}
		}
		if len(logFiles) == 0 {
			c.logger.Warn("No log files found")
			return nil
		}
		sort.Strings(logFiles)
	}

	for _, logFile := range logFiles {
		content, err := readLastNLines(logFile, lines)
		if err != nil {
			c.logger.Error(fmt.Sprintf("Failed to display %s: %v", filepath.Base(logFile), err))
			continue
		}
		fmt.Fprintf(c.output, "\n=== %s ===\n", strings.TrimSuffix(filepath.Base(logFile), ".log"))
		fmt.Fprint(c.output, content)
	}
	return nil
}

func readLastNLines(filename string, n int) (string, error) {
	file, err := os.Open(filename)
	if err != nil {
		return "", err
	}
	defer file.Close()

	var allLines []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		allLines = append(allLines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}

	start := 0
	if n > 0 && len(allLines) > n {
		start = len(allLines) - n
	}
	if start == len(allLines) {
		return "", nil
	}
	return strings.Join(allLines[start:], "\n") + "\n", nil
}
