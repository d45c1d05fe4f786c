package cli

import (
	"bufio"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"aliaskit/client/internal/domain"
)

func newLoginCmd(cc *cliContext) *cobra.Command {
	var email, apiKey string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "登录账户",
		Long: `使用邮箱和密码登录，账户开启 MFA 时会继续要求输入验证码。
也可以用 --api-key 直接使用已有的 API Key。

登录会清空本地别名缓存，避免不同账户的数据混在一起。`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			in := bufio.NewReader(cmd.InOrStdin())

			var info domain.UserInfo
			if apiKey != "" {
				var err error
				info, err = cc.app.Auth.UseAPIKey(ctx, domain.APIKey(apiKey))
				if err != nil {
					return err
				}
			} else {
				var err error
				if email == "" {
					if email, err = prompt(in, out, "邮箱: "); err != nil {
						return err
					}
				}
				password, err := prompt(in, out, "密码: ")
				if err != nil {
					return err
				}

				result, err := cc.app.Auth.Login(ctx, email, password)
				if err != nil {
					return err
				}
				info = domain.UserInfo{Name: result.Name, Email: result.Email}

				if result.MFAEnabled {
					token, err := prompt(in, out, "MFA 验证码: ")
					if err != nil {
						return err
					}
					if err := cc.app.Auth.VerifyMFA(ctx, result.MFAKey, token); err != nil {
						return err
					}
					if info, err = cc.app.Auth.WhoAmI(ctx); err != nil {
						return err
					}
				}
			}

			if cc.app.Config.Credential.Driver == "memory" {
				fmt.Fprintln(cmd.ErrOrStderr(), "提示: 当前使用 memory 凭据存储，API Key 只在本进程内有效；设置 ALIASKIT_CREDENTIAL_DRIVER=redis 可以持久保存。")
			}
			return cc.emit(out, info, func(w *tabwriter.Writer) {
				fmt.Fprintln(w, "登录成功")
				writeUser(w, info)
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "登录邮箱")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "直接使用已有的 API Key")
	return cmd
}

func newLogoutCmd(cc *cliContext) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "退出登录",
		Long:  `清除保存的 API Key 和本地别名缓存。`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cc.app.Auth.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "已退出登录")
			return nil
		},
	}
}

func newWhoAmICmd(cc *cliContext) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "显示当前账户",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := cc.app.Auth.WhoAmI(cmd.Context())
			if err != nil {
				return err
			}
			return cc.emit(cmd.OutOrStdout(), info, func(w *tabwriter.Writer) {
				writeUser(w, info)
			})
		},
	}
}
