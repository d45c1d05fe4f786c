package cli

import (
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"aliaskit/client/internal/apiclient"
	"aliaskit/client/internal/app"
)

func newServeCmd(cc *cliContext) *cobra.Command {
	var prefetch bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "启动本地 UI 桥接服务",
		Long: `在 bridge.host:bridge.port 上启动本地 HTTP 与 WebSocket 服务，供浏览器 UI 使用。
启动后输出会话令牌，所有 /api 与 /ws 请求都需要携带它。`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if prefetch {
				err := cc.app.Repository.FetchPage(ctx, true)
				switch {
				case errors.Is(err, apiclient.ErrMissingAPIKey):
					fmt.Fprintln(cmd.ErrOrStderr(), "提示: 尚未登录，UI 中登录后再加载别名。")
				case err != nil:
					cc.app.Logger.Warn("initial alias fetch failed", zap.Error(err))
				}
			}

			out := cmd.OutOrStdout()
			return cc.app.Serve(ctx, func(s app.Session) {
				fmt.Fprintf(out, "桥接服务地址: http://%s\n", s.Address)
				fmt.Fprintf(out, "会话令牌（%s 过期）: %s\n", s.Token.ExpiresAt.Format("2006-01-02 15:04"), s.Token.AccessToken)
				fmt.Fprintf(out, "在浏览器中打开: http://%s/session?token=%s\n", s.Address, s.Token.AccessToken)
			})
		},
	}

	cmd.Flags().BoolVar(&prefetch, "prefetch", true, "启动前加载第一页别名")
	return cmd
}
