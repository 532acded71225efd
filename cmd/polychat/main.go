package main

import (
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"

	"github.com/Zacy-Sokach/PolyChat/internal/api"
	"github.com/Zacy-Sokach/PolyChat/internal/config"
	"github.com/Zacy-Sokach/PolyChat/internal/export"
	"github.com/Zacy-Sokach/PolyChat/internal/render"
	"github.com/Zacy-Sokach/PolyChat/internal/tui"
	"github.com/Zacy-Sokach/PolyChat/internal/utils"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	Version = "dev"
)

type rootOptions struct {
	endpoint   string
	configPath string
	debug      bool
}

func main() {
	// 添加panic恢复
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "程序发生panic: %v\n", r)
			fmt.Fprintln(os.Stderr, "堆栈跟踪:")
			debug.PrintStack()
			os.Exit(1)
		}
	}()

	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:          "polychat",
		Short:        "PolyChat - terminal chat client",
		Version:      Version,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(opts)
		},
	}
	cmd.SetVersionTemplate("PolyChat {{.Version}}\n")

	cmd.Flags().StringVar(&opts.endpoint, "endpoint", "", "chat endpoint URL (overrides config)")
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file path (default "+utils.GetConfigPathForDisplay()+")")
	cmd.Flags().BoolVar(&opts.debug, "debug", false, "write debug records to the log file")

	cmd.AddCommand(newConfigCommand(opts))
	return cmd
}

func newConfigCommand(opts *rootOptions) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the PolyChat config file",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := opts.configPath
			if path == "" {
				p, err := config.Path()
				if err != nil {
					return err
				}
				path = p
			}

			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("配置文件已存在: %s (使用 --force 覆盖)", path)
			}

			var err error
			if opts.configPath == "" {
				err = config.SaveConfig(config.Default())
			} else {
				err = config.SaveConfigTo(path, config.Default())
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render("✓ 配置已写入 "+path))
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")

	cfgCmd.AddCommand(initCmd)
	return cfgCmd
}

func loadConfig(opts *rootOptions) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if opts.configPath != "" {
		cfg, err = config.LoadConfigFrom(opts.configPath)
	} else {
		cfg, err = config.LoadConfig()
	}
	if err != nil {
		return nil, fmt.Errorf("加载配置失败: %w", err)
	}

	if opts.endpoint != "" {
		cfg.Endpoint = opts.endpoint
	}
	if opts.debug {
		cfg.Log.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("配置无效: %w", err)
	}
	return cfg, nil
}

func run(opts *rootOptions) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	// 检查是否在交互式终端中
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Println("PolyChat 运行在非交互式模式")
		fmt.Println("请确保在交互式终端中运行以获得完整TUI体验")
		fmt.Printf("当前服务地址: %s\n", cfg.Endpoint)
		fmt.Println("程序将在非交互式环境中退出")
		return nil
	}

	logger, closer, err := utils.NewLogger(cfg.Log.File, utils.ParseLogLevel(cfg.Log.Level))
	if err != nil {
		return err
	}
	defer closer.Close()
	slog.SetDefault(logger)

	logger.Info("polychat starting", "version", Version, "endpoint", cfg.Endpoint, "cooldown", cfg.Cooldown)

	tui.Version = Version
	// NewTerminal 会查询终端背景色，必须在 tea.NewProgram 接管输入之前完成
	model := tui.NewModel(tui.Options{
		Sender:   api.NewClient(cfg.Endpoint, api.WithTimeout(cfg.RequestTimeout)),
		Renderer: render.NewTerminal(cfg.Render.Style, cfg.Render.WordWrap),
		Exporter: export.NewExporter(cfg.Export.Dir, nil),
		Cooldown: cfg.Cooldown,
		Endpoint: cfg.Endpoint,
		Logger:   logger,
	})

	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		logger.Error("program exited with error", "error", err)
		return fmt.Errorf("程序运行错误: %w", err)
	}

	logger.Info("polychat stopped")
	return nil
}
