// Command tokenengine-demo renders a file's live tokenization in a
// terminal UI, driven by a tokenengine.Engine watching the file on disk.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zjrosen/tokenengine/internal/config"
	"github.com/zjrosen/tokenengine/internal/harness"
	"github.com/zjrosen/tokenengine/internal/log"
	"github.com/zjrosen/tokenengine/internal/tokenengine"
)

var (
	version = "dev"
	cfgFile string
	cfg     config.Config
	langID  string
)

var rootCmd = &cobra.Command{
	Use:     "tokenengine-demo [file]",
	Short:   "Live viewer for the incremental tokenization engine",
	Long:    `Watches a source file on disk and renders its tokens as the background scheduler produces them.`,
	Version: version,
	Args:    cobra.ExactArgs(1),
	RunE:    runDemo,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: ~/.config/tokenengine/config.yaml)")
	rootCmd.Flags().StringVarP(&langID, "lang", "l", "",
		"chroma language id to tokenize with (default: guessed from file extension)")
	rootCmd.Flags().Bool("debug", false, "enable debug logging")

	_ = viper.BindPFlag("debug", rootCmd.Flags().Lookup("debug"))
}

func initConfig() {
	defaults := config.Defaults()
	viper.SetDefault("scheduler.idle_slice_budget", defaults.Scheduler.IdleSliceBudget)
	viper.SetDefault("scheduler.background_work_quantum", defaults.Scheduler.BackgroundWorkQuantum)
	viper.SetDefault("scheduler.cheap_tokenize_threshold", defaults.Scheduler.CheapTokenizeThreshold)
	viper.SetDefault("scheduler.auto_background", defaults.Scheduler.AutoBackground)
	viper.SetDefault("log_path", defaults.LogPath)
	viper.SetDefault("debug", defaults.Debug)

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, _ := os.UserHomeDir()
		viper.AddConfigPath(filepath.Join(home, ".config", "tokenengine"))
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			defaultPath := ".tokenengine/config.yaml"
			if writeErr := config.WriteDefaultConfig(defaultPath); writeErr == nil {
				viper.SetConfigFile(defaultPath)
				_ = viper.ReadInConfig()
			}
		}
	}

	_ = viper.Unmarshal(&cfg)
}

func runDemo(cmd *cobra.Command, args []string) error {
	path := args[0]

	if cfg.Debug {
		cleanup, err := log.Init(cfg.LogPath)
		if err == nil {
			defer cleanup()
		}
	} else {
		log.SetEnabled(false)
	}

	language := langID
	if language == "" {
		language = guessLanguage(path)
	}

	instanceID := uuid.New().String()
	log.Info(log.CatLifecycle, "starting demo engine", "instance", instanceID, "path", path, "language", language)

	buf := harness.NewStubBuffer("", language)
	source, err := harness.NewFileSource(path, buf)
	if err != nil {
		return fmt.Errorf("watching %s: %w", path, err)
	}
	defer func() { _ = source.Close() }()

	host := harness.NewTimerHost(cfg.Scheduler.IdleSliceBudget)
	registry := harness.NewChromaRegistry()
	sink := harness.LogSink{}

	engine := tokenengine.New(buf, registry, host, sink)
	defer engine.Dispose()

	m := newModel(engine, buf, instanceID)
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err = p.Run()
	return err
}

func guessLanguage(path string) string {
	switch filepath.Ext(path) {
	case ".go":
		return "go"
	case ".py":
		return "python"
	case ".js":
		return "javascript"
	case ".ts":
		return "typescript"
	case ".rs":
		return "rust"
	case ".json":
		return "json"
	case ".yaml", ".yml":
		return "yaml"
	default:
		return "plaintext"
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
