package commands

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/goccy/go-yaml"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/adforge/adforge/cmd/adforge/internal/config"
	"github.com/adforge/adforge/pkg/catalog"
	"github.com/adforge/adforge/pkg/kv"
)

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "Manage the ad template catalog",
	Long: `Manage the ad template catalog stored in the server database.

The server must not be running while these commands access the same
data directory; BadgerDB takes an exclusive lock.`,
}

var templatesSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load templates from a YAML file into the catalog",
	Long: `Load templates from a YAML file into the catalog.

The file holds a list of templates:

  - title: Summer Sale
    description: Bright seasonal promotion
    image_url: https://cdn.example.com/summer.png
    instructions: warm colors, outdoor setting
  - title: Launch Teaser
    ...

Templates without an id are assigned a fresh UUID.`,
	RunE: runTemplatesSeed,
}

var templatesListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show the templates in the catalog",
	RunE:  runTemplatesList,
}

var templatesFile string

func init() {
	templatesSeedCmd.Flags().StringVarP(&templatesFile, "file", "f", "", "YAML file with templates (required)")
	_ = templatesSeedCmd.MarkFlagRequired("file")

	templatesCmd.AddCommand(templatesSeedCmd)
	templatesCmd.AddCommand(templatesListCmd)
	rootCmd.AddCommand(templatesCmd)
}

func openCatalog() (*catalog.KV, func() error, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	store, err := kv.OpenBadger(kv.BadgerOptions{Dir: cfg.DataDir, InMemory: cfg.DataDir == ""})
	if err != nil {
		return nil, nil, err
	}
	return catalog.NewKV(store), store.Close, nil
}

type templateFile struct {
	ID           string `yaml:"id"`
	Title        string `yaml:"title"`
	Description  string `yaml:"description"`
	ImageURL     string `yaml:"image_url"`
	Instructions string `yaml:"instructions"`
}

func runTemplatesSeed(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(templatesFile)
	if err != nil {
		return err
	}
	var entries []templateFile
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("parse %s: %w", templatesFile, err)
	}
	if len(entries) == 0 {
		return fmt.Errorf("%s contains no templates", templatesFile)
	}

	templates := make([]catalog.Template, 0, len(entries))
	for i, e := range entries {
		if e.Title == "" {
			return fmt.Errorf("template %d has no title", i)
		}
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		templates = append(templates, catalog.Template{
			ID:           e.ID,
			Title:        e.Title,
			Description:  e.Description,
			ImageURL:     e.ImageURL,
			Instructions: e.Instructions,
		})
	}

	cat, closeStore, err := openCatalog()
	if err != nil {
		return err
	}
	defer closeStore()

	if err := cat.Seed(cmd.Context(), templates); err != nil {
		return err
	}
	fmt.Printf("Seeded %d templates.\n", len(templates))
	return nil
}

var (
	tplTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00ff9f"))
	tplIDStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6e7681"))
)

func runTemplatesList(cmd *cobra.Command, args []string) error {
	cat, closeStore, err := openCatalog()
	if err != nil {
		return err
	}
	defer closeStore()

	templates, err := cat.List(cmd.Context(), 0)
	if err != nil {
		return err
	}
	if len(templates) == 0 {
		fmt.Println("Catalog is empty. Use 'adforge templates seed -f templates.yaml'.")
		return nil
	}

	for _, t := range templates {
		fmt.Printf("%s %s\n", tplTitleStyle.Render(t.Title), tplIDStyle.Render("("+t.ID+")"))
		if t.Description != "" {
			fmt.Printf("  %s\n", t.Description)
		}
		if IsVerbose() {
			if t.ImageURL != "" {
				fmt.Printf("  image: %s\n", t.ImageURL)
			}
			if t.Instructions != "" {
				fmt.Printf("  instructions: %s\n", t.Instructions)
			}
		}
	}
	return nil
}
