package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/colonise/forge/pkg/config"
	"github.com/colonise/forge/pkg/types"
)

func (c *CLI) newInitCmd() *cobra.Command {
	var preset string
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a forge configuration",
		Long: `Create forge.config.yaml in the project root from a preset. Without --preset
the project type is detected from go.mod or package.json.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runInit(types.ProjectType(preset), force)
		},
	}
	cmd.Flags().StringVarP(&preset, "preset", "p", "", "project type (node, go)")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite existing configuration")
	return cmd
}

func (c *CLI) runInit(projectType types.ProjectType, force bool) error {
	path := c.configPath
	if path == "" {
		if existing, err := config.Find(c.root); err == nil {
			path = existing
		} else {
			path = filepath.Join(c.root, config.FileName+".yaml")
		}
	}

	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("configuration already exists at %s; use --force to overwrite", path)
	}

	if projectType == "" {
		projectType = detectProjectType(c.root)
		c.logger.Info(fmt.Sprintf("Detected project type: %s", projectType))
	}

	cfg, err := config.Preset(projectType)
	if err != nil {
		return err
	}
	if err := config.NewManager().WriteConfig(path, cfg); err != nil {
		return err
	}

	c.logger.Success(fmt.Sprintf("Created configuration at %s", path))
	return nil
}

// detectProjectType picks the preset matching the manifest in dir, falling
// back to node.
func detectProjectType(dir string) types.ProjectType {
	checks := []struct {
		file        string
		projectType types.ProjectType
	}{
		{"go.mod", types.ProjectTypeGo},
		{"package.json", types.ProjectTypeNode},
		{"tsconfig.json", types.ProjectTypeNode},
		{filepath.Join("source", "tsconfig.json"), types.ProjectTypeNode},
	}
	for _, check := range checks {
		if _, err := os.Stat(filepath.Join(dir, check.file)); err == nil {
			return check.projectType
		}
	}
	return types.ProjectTypeNode
}
