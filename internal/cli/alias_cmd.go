package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"aliaskit/client/internal/domain"
	"aliaskit/client/internal/pool"
	"aliaskit/client/internal/repository"
)

// batchWorkers 批量切换或删除时同时进行的请求数
const batchWorkers = 4

var (
	errCannotCreate   = errors.New("account cannot create more aliases")
	errSuffixNotFound = errors.New("suffix is not offered for this account")
	errNoSuffix       = errors.New("no suffix available")
)

func newAliasesCmd(cc *cliContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "aliases",
		Aliases: []string{"alias"},
		Short:   "别名管理",
		Long:    `列出、搜索、创建、修改和删除别名。`,
	}

	cmd.AddCommand(newAliasListCmd(cc))
	cmd.AddCommand(newAliasCachedCmd(cc))
	cmd.AddCommand(newAliasCreateCmd(cc))
	cmd.AddCommand(newAliasRandomCmd(cc))
	cmd.AddCommand(newAliasToggleCmd(cc))
	cmd.AddCommand(newAliasUpdateCmd(cc))
	cmd.AddCommand(newAliasDeleteCmd(cc))
	cmd.AddCommand(newAliasActivitiesCmd(cc))
	return cmd
}

func newAliasListCmd(cc *cliContext) *cobra.Command {
	var (
		search string
		pages  int
		all    bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "从服务端加载别名",
		Long: `从第一页开始加载别名并写入本地缓存。
默认只加载一页，--pages 指定页数，--all 加载到最后一页。`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			repo := cc.app.Repository

			var err error
			if search != "" {
				err = repo.Search(ctx, search)
			} else {
				err = repo.FetchPage(ctx, true)
			}
			for loaded := 1; err == nil; loaded++ {
				snapshot := repo.Snapshot()
				if !snapshot.MoreToLoad || (!all && loaded >= pages) {
					break
				}
				err = repo.FetchPage(ctx, false)
			}
			if err != nil {
				return err
			}

			snapshot := repo.Snapshot()
			return cc.emit(cmd.OutOrStdout(), snapshot, func(w *tabwriter.Writer) {
				writeAliases(w, snapshot.Aliases)
				w.Flush()
				fmt.Fprintf(w, "\n共 %d 个别名", len(snapshot.Aliases))
				if snapshot.MoreToLoad {
					fmt.Fprint(w, "，还有更多（使用 --all 加载全部）")
				}
				fmt.Fprintln(w)
			})
		},
	}

	cmd.Flags().StringVarP(&search, "search", "s", "", "搜索词")
	cmd.Flags().IntVar(&pages, "pages", 1, "加载的页数")
	cmd.Flags().BoolVar(&all, "all", false, "加载全部页")
	return cmd
}

func newAliasCachedCmd(cc *cliContext) *cobra.Command {
	var (
		search string
		page   int
	)

	cmd := &cobra.Command{
		Use:   "cached",
		Short: "离线查看本地缓存",
		Long:  `读取本地缓存中的一页别名，不访问服务端。`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			aliases, err := cc.app.Repository.CachedPage(page, search)
			if err != nil {
				return err
			}
			return cc.emit(cmd.OutOrStdout(), aliases, func(w *tabwriter.Writer) {
				writeAliases(w, aliases)
			})
		},
	}

	cmd.Flags().StringVarP(&search, "search", "s", "", "搜索词")
	cmd.Flags().IntVar(&page, "page", 0, "页码，从 0 开始")
	return cmd
}

func newAliasCreateCmd(cc *cliContext) *cobra.Command {
	var (
		prefix, suffix, hostname string
		name, note               string
		mailboxIDs               []int64
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "创建自定义别名",
		Long: `使用前缀和服务端提供的后缀创建别名。
未指定 --suffix 时使用第一个可用后缀，未指定 --mailbox 时使用默认邮箱。`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			repo := cc.app.Repository

			creation, err := repo.LoadCreationContext(ctx, hostname)
			if err != nil {
				return err
			}
			if !creation.Options.CanCreate {
				return errCannotCreate
			}

			chosen, err := pickSuffix(creation.Options.Suffixes, suffix)
			if err != nil {
				return err
			}
			if len(mailboxIDs) == 0 {
				mailboxIDs = defaultMailboxIDs(creation.Mailboxes)
			}

			req := domain.AliasCreationRequest{
				Prefix:     strings.TrimSpace(prefix),
				Suffix:     chosen,
				MailboxIDs: mailboxIDs,
			}
			if cmd.Flags().Changed("name") {
				req.Name = &name
			}
			if cmd.Flags().Changed("note") {
				req.Note = &note
			}

			alias, err := repo.Create(ctx, req)
			if err != nil {
				return err
			}
			return cc.emit(cmd.OutOrStdout(), alias, func(w *tabwriter.Writer) {
				writeAliases(w, []domain.Alias{alias})
			})
		},
	}

	cmd.Flags().StringVar(&prefix, "prefix", "", "别名前缀")
	cmd.Flags().StringVar(&suffix, "suffix", "", "别名后缀，如 .abc@example.com")
	cmd.Flags().StringVar(&hostname, "hostname", "", "关联的网站域名，用于生成前缀建议")
	cmd.Flags().Int64SliceVar(&mailboxIDs, "mailbox", nil, "接收邮件的邮箱 ID，可重复指定")
	cmd.Flags().StringVar(&name, "name", "", "显示名称")
	cmd.Flags().StringVar(&note, "note", "", "备注")
	_ = cmd.MarkFlagRequired("prefix")
	return cmd
}

func newAliasRandomCmd(cc *cliContext) *cobra.Command {
	var mode, note, hostname string

	cmd := &cobra.Command{
		Use:   "random",
		Short: "创建随机别名",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch domain.RandomAliasMode(mode) {
			case "", domain.RandomAliasUUID, domain.RandomAliasWord:
			default:
				return fmt.Errorf("invalid mode %q (supported: uuid, word)", mode)
			}

			var notePtr *string
			if cmd.Flags().Changed("note") {
				notePtr = &note
			}

			alias, err := cc.app.Repository.CreateRandom(cmd.Context(), domain.RandomAliasMode(mode), notePtr, hostname)
			if err != nil {
				return err
			}
			return cc.emit(cmd.OutOrStdout(), alias, func(w *tabwriter.Writer) {
				writeAliases(w, []domain.Alias{alias})
			})
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "", "生成方式: uuid 或 word，默认由服务端决定")
	cmd.Flags().StringVar(&note, "note", "", "备注")
	cmd.Flags().StringVar(&hostname, "hostname", "", "关联的网站域名")
	return cmd
}

type toggleResult struct {
	ID      int64  `json:"id"`
	Enabled bool   `json:"enabled"`
	Error   string `json:"error,omitempty"`
}

func newAliasToggleCmd(cc *cliContext) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle ID...",
		Short: "切换别名启用状态",
		Long:  `切换一个或多个别名的启用状态，显示服务端确认后的结果。`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}

			results := make([]toggleResult, len(ids))
			positions := make([]int, len(ids))
			for i := range positions {
				positions[i] = i
			}
			errs := pool.Each(cmd.Context(), batchWorkers, positions, func(ctx context.Context, i int) error {
				enabled, err := cc.app.Repository.Toggle(ctx, ids[i])
				if err != nil {
					return err
				}
				results[i].Enabled = enabled
				return nil
			}, cc.app.Logger)

			for i, id := range ids {
				results[i].ID = id
				if errs[i] != nil {
					results[i].Error = describe(errs[i])
				}
			}

			if err := cc.emit(cmd.OutOrStdout(), results, func(w *tabwriter.Writer) {
				fmt.Fprintln(w, "ID\tSTATUS")
				for _, r := range results {
					status := enabledLabel(r.Enabled)
					if r.Error != "" {
						status = "失败: " + r.Error
					}
					fmt.Fprintf(w, "%d\t%s\n", r.ID, status)
				}
			}); err != nil {
				return err
			}
			return errors.Join(errs...)
		},
	}
}

func newAliasUpdateCmd(cc *cliContext) *cobra.Command {
	var (
		name, note string
		mailboxIDs []int64
		pinned     bool
	)

	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "修改别名",
		Long:  `只修改命令行中指定的字段，其余字段保持不变。`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}

			var update domain.AliasUpdate
			if cmd.Flags().Changed("name") {
				update.Name = &name
			}
			if cmd.Flags().Changed("note") {
				update.Note = &note
			}
			if cmd.Flags().Changed("mailbox") {
				update.MailboxIDs = mailboxIDs
			}
			if cmd.Flags().Changed("pinned") {
				update.Pinned = &pinned
			}

			alias, err := cc.app.Repository.Update(cmd.Context(), ids[0], update)
			if err != nil {
				return err
			}
			return cc.emit(cmd.OutOrStdout(), alias, func(w *tabwriter.Writer) {
				writeAliases(w, []domain.Alias{alias})
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "显示名称")
	cmd.Flags().StringVar(&note, "note", "", "备注")
	cmd.Flags().Int64SliceVar(&mailboxIDs, "mailbox", nil, "接收邮件的邮箱 ID，可重复指定")
	cmd.Flags().BoolVar(&pinned, "pinned", false, "是否置顶")
	return cmd
}

func newAliasDeleteCmd(cc *cliContext) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete ID...",
		Short: "删除别名",
		Long:  `删除一个或多个别名。此操作不可恢复，需要确认。`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if !yes {
				in := bufio.NewReader(cmd.InOrStdin())
				answer, err := prompt(in, out, fmt.Sprintf("确定要删除 %d 个别名吗？(yes/no): ", len(ids)))
				if err != nil {
					return err
				}
				answer = strings.ToLower(answer)
				if answer != "yes" && answer != "y" {
					fmt.Fprintln(out, "操作已取消。")
					return nil
				}
			}

			errs := pool.Each(cmd.Context(), batchWorkers, ids, func(ctx context.Context, id int64) error {
				return cc.app.Repository.Delete(ctx, id)
			}, cc.app.Logger)

			for i, id := range ids {
				if errs[i] != nil {
					fmt.Fprintf(out, "%d 删除失败: %s\n", id, describe(errs[i]))
					continue
				}
				fmt.Fprintf(out, "%d 已删除\n", id)
			}
			return errors.Join(errs...)
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "跳过确认")
	return cmd
}

func newAliasActivitiesCmd(cc *cliContext) *cobra.Command {
	var page int

	cmd := &cobra.Command{
		Use:   "activities ID",
		Short: "查看别名的收发记录",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			activities, err := cc.app.Repository.Activities(cmd.Context(), ids[0], page)
			if err != nil {
				return err
			}
			return cc.emit(cmd.OutOrStdout(), activities, func(w *tabwriter.Writer) {
				writeActivities(w, activities)
			})
		},
	}

	cmd.Flags().IntVar(&page, "page", 0, "页码，从 0 开始")
	return cmd
}

func newMailboxesCmd(cc *cliContext) *cobra.Command {
	return &cobra.Command{
		Use:   "mailboxes",
		Short: "列出接收邮件的邮箱",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			creation, err := cc.app.Repository.LoadCreationContext(cmd.Context(), "")
			if err != nil {
				return err
			}
			return cc.emit(cmd.OutOrStdout(), creation.Mailboxes, func(w *tabwriter.Writer) {
				writeMailboxes(w, creation.Mailboxes)
			})
		},
	}
}

func newOptionsCmd(cc *cliContext) *cobra.Command {
	var hostname string

	cmd := &cobra.Command{
		Use:   "options",
		Short: "查看创建别名的可用选项",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			creation, err := cc.app.Repository.LoadCreationContext(cmd.Context(), hostname)
			if err != nil {
				return err
			}
			return cc.emit(cmd.OutOrStdout(), creation, func(w *tabwriter.Writer) {
				writeOptions(w, creation)
			})
		},
	}

	cmd.Flags().StringVar(&hostname, "hostname", "", "关联的网站域名，用于生成前缀建议")
	return cmd
}

func writeOptions(w *tabwriter.Writer, creation repository.CreationContext) {
	fmt.Fprintf(w, "可以创建\t%s\n", yesNo(creation.Options.CanCreate))
	if creation.Options.PrefixSuggestion != "" {
		fmt.Fprintf(w, "前缀建议\t%s\n", creation.Options.PrefixSuggestion)
	}
	for _, s := range creation.Options.Suffixes {
		kind := "公共"
		if s.IsCustom {
			kind = "自定义"
		}
		if s.IsPremium {
			kind += "/高级"
		}
		fmt.Fprintf(w, "后缀\t%s\t%s\n", s.Value, kind)
	}
}

// pickSuffix 按后缀值选择，value 为空时取第一个
func pickSuffix(suffixes []domain.Suffix, value string) (domain.Suffix, error) {
	if len(suffixes) == 0 {
		return domain.Suffix{}, errNoSuffix
	}
	if value == "" {
		return suffixes[0], nil
	}
	for _, s := range suffixes {
		if s.Value == value {
			return s, nil
		}
	}
	return domain.Suffix{}, fmt.Errorf("%w: %s", errSuffixNotFound, value)
}

// defaultMailboxIDs 返回默认邮箱；没有标记默认时返回空
func defaultMailboxIDs(mailboxes []domain.Mailbox) []int64 {
	for _, mb := range mailboxes {
		if mb.Default {
			return []int64{mb.ID}
		}
	}
	return nil
}
