package main

import (
	"context"
	"fmt"

	"github.com/LouYuanbo1/smartbills/internal/config"
	"github.com/LouYuanbo1/smartbills/internal/infra/crawler/chrome"
	"github.com/LouYuanbo1/smartbills/internal/infra/persistence"
	"github.com/LouYuanbo1/smartbills/internal/logging"
	"github.com/LouYuanbo1/smartbills/internal/service/smart"
	"github.com/LouYuanbo1/smartbills/internal/service/smart/param"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	cfgFile  string
	logLevel string

	appcfg *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "smartbills",
	Short: "Export Flattrade Smart bills to CSV",
	Long: `smartbills drives a logged-in Flattrade back-office session, opens every bill
in the Smart report and writes one CSV row per traded scrip.

Long runs can be split into batches; progress is checkpointed to the configured
store so a run survives page reloads and process restarts.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		appcfg, err = config.ParseConfig(appConfig, cfgFile)
		if err != nil {
			return err
		}
		level := appcfg.Log.Level
		if logLevel != "" {
			level = logLevel
		}
		logger, err = logging.SetupLogger(level, appcfg.Log.File)
		if err != nil {
			return err
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file merged over the embedded defaults")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info or prod (default: log.level from config)")

	rootCmd.AddCommand(exportCmd, exportAllCmd)
	rootCmd.AddCommand(startCmd, resumeCmd, downloadPartialCmd, clearCmd, statusCmd)
	rootCmd.AddCommand(inspectCmd)
}

// openService 连接浏览器并打开入口页面;browser 为 false 时只读写断点,不启动浏览器
func openService(ctx context.Context, browser bool) (smart.SmartService, func(), error) {
	store, err := persistence.InitStore(ctx, appcfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("打开状态存储失败: %w", err)
	}
	closeStore := func() {
		if err := store.Close(); err != nil {
			logger.Warn("关闭状态存储失败", zap.Error(err))
		}
	}

	var crawler chrome.ChromeCrawler
	cleanup := closeStore
	if browser {
		crawler, err = chrome.InitCrawler(ctx, appcfg, logger)
		if err != nil {
			closeStore()
			return nil, nil, fmt.Errorf("初始化浏览器失败: %w", err)
		}
		if err := crawler.InitAndNavigate(appcfg.Smart.EntryURL); err != nil {
			crawler.Close()
			closeStore()
			return nil, nil, fmt.Errorf("打开入口页面失败: %w", err)
		}
		cleanup = func() {
			crawler.Close()
			closeStore()
		}
	}

	svc, err := smart.InitSmartService(crawler, store, param.FromConfig(appcfg), logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return svc, cleanup, nil
}

func printResult(cmd *cobra.Command, res *smart.Result) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "outcome: %s\n", res.Outcome)
	if res.Rows > 0 {
		fmt.Fprintf(out, "rows:    %d\n", res.Rows)
	}
	if res.File != "" {
		fmt.Fprintf(out, "file:    %s\n", res.File)
	}
	if st := res.State; st != nil {
		fmt.Fprintf(out, "state:   run=%s active=%t next=%d range=[%d,%d) batch=%d reload=%t\n",
			st.RunID, st.Active, st.Next, st.Start, st.End, st.BatchSize, st.ReloadBetween)
	}
}
