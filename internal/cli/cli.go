// Package cli 提供 aliaskit 命令行。
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"aliaskit/client/internal/app"
	"aliaskit/client/internal/config"
	"aliaskit/client/internal/logger"
	httptransport "aliaskit/client/internal/transport/http"
)

// cliContext 在各个子命令之间共享的运行状态
type cliContext struct {
	loadConfig func() (*config.Config, error)
	app        *app.App
	jsonOutput bool
	verbose    bool
}

func newRootCommand(cc *cliContext) *cobra.Command {
	root := &cobra.Command{
		Use:   "aliaskit",
		Short: "邮箱别名管理客户端",
		Long: `aliaskit 管理邮箱别名服务上的别名，并在本地缓存别名列表。

使用示例：
  aliaskit login                      # 使用邮箱和密码登录
  aliaskit aliases list --all         # 加载全部别名
  aliaskit aliases list --search shop # 搜索别名
  aliaskit aliases cached             # 离线查看本地缓存
  aliaskit aliases toggle 12 15       # 切换别名启用状态
  aliaskit serve                      # 启动本地 UI 桥接服务`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return cc.init(cmd.Context())
		},
	}

	root.PersistentFlags().BoolVar(&cc.jsonOutput, "json", false, "以 JSON 格式输出结果")
	root.PersistentFlags().BoolVarP(&cc.verbose, "verbose", "v", false, "输出调试日志")

	root.AddCommand(newLoginCmd(cc))
	root.AddCommand(newLogoutCmd(cc))
	root.AddCommand(newWhoAmICmd(cc))
	root.AddCommand(newAliasesCmd(cc))
	root.AddCommand(newMailboxesCmd(cc))
	root.AddCommand(newOptionsCmd(cc))
	root.AddCommand(newServeCmd(cc))
	return root
}

// init 加载配置并组装客户端
func (cc *cliContext) init(ctx context.Context) error {
	if cc.app != nil {
		return nil
	}

	cfg, err := cc.loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	level := cfg.Log.Level
	if cc.verbose {
		level = "debug"
	}
	log, err := logger.NewLogger(logger.Config{
		Level:       level,
		Development: cfg.Log.Development,
		LogFile:     cfg.Log.File,
		MaxSize:     100,
		MaxBackups:  3,
		MaxAge:      28,
		Compress:    true,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	cc.app = a
	return nil
}

func (cc *cliContext) close() {
	if cc.app == nil {
		return
	}
	if err := cc.app.Close(); err != nil {
		cc.app.Logger.Warn("failed to release resources", zap.Error(err))
	}
	_ = cc.app.Logger.Sync()
	cc.app = nil
}

// Execute 运行命令行，返回进程退出码
func Execute(ctx context.Context) int {
	cc := &cliContext{loadConfig: config.Load}
	root := newRootCommand(cc)

	err := root.ExecuteContext(ctx)
	cc.close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "错误: %s\n", describe(err))
		return 1
	}
	return 0
}

// describe 把错误转换为面向用户的提示
func describe(err error) string {
	if _, msg := httptransport.GetErrorMessage(err); msg != httptransport.MsgInternalError {
		return msg
	}
	return err.Error()
}
