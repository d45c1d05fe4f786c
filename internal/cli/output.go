package cli

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"aliaskit/client/internal/domain"
)

var errInputClosed = errors.New("input closed")

// emit 按 --json 选择输出格式
func (cc *cliContext) emit(out io.Writer, value interface{}, table func(w *tabwriter.Writer)) error {
	if cc.jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(value)
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	table(w)
	return w.Flush()
}

func writeAliases(w *tabwriter.Writer, aliases []domain.Alias) {
	fmt.Fprintln(w, "ID\tEMAIL\tSTATUS\tPINNED\tNOTE\tMAILBOXES")
	for _, alias := range aliases {
		mailboxes := make([]string, 0, len(alias.Mailboxes))
		for _, mb := range alias.Mailboxes {
			mailboxes = append(mailboxes, mb.Email)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			alias.ID,
			alias.Email,
			enabledLabel(alias.Enabled),
			yesNo(alias.Pinned),
			oneLine(deref(alias.Note)),
			strings.Join(mailboxes, ","),
		)
	}
}

func writeActivities(w *tabwriter.Writer, activities []domain.AliasActivity) {
	fmt.Fprintln(w, "TIME\tACTION\tFROM\tTO")
	for _, activity := range activities {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			time.Unix(activity.Timestamp, 0).Format("2006-01-02 15:04"),
			activity.Action,
			activity.From,
			activity.To,
		)
	}
}

func writeMailboxes(w *tabwriter.Writer, mailboxes []domain.Mailbox) {
	fmt.Fprintln(w, "ID\tEMAIL\tDEFAULT\tVERIFIED\tALIASES")
	for _, mb := range mailboxes {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\n", mb.ID, mb.Email, yesNo(mb.Default), yesNo(mb.Verified), mb.AliasCount)
	}
}

func writeUser(w *tabwriter.Writer, info domain.UserInfo) {
	fmt.Fprintf(w, "名称\t%s\n", info.Name)
	fmt.Fprintf(w, "邮箱\t%s\n", info.Email)
	fmt.Fprintf(w, "高级版\t%s\n", yesNo(info.IsPremium))
	if info.InTrial {
		fmt.Fprintf(w, "试用中\t%s\n", yesNo(info.InTrial))
	}
}

func enabledLabel(enabled bool) string {
	if enabled {
		return "启用"
	}
	return "停用"
}

func yesNo(v bool) string {
	if v {
		return "是"
	}
	return "否"
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func oneLine(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if r := []rune(s); len(r) > 40 {
		return string(r[:40]) + "…"
	}
	return s
}

// prompt 输出提示并读取一行输入
func prompt(in *bufio.Reader, out io.Writer, label string) (string, error) {
	fmt.Fprint(out, label)
	line, err := in.ReadString('\n')
	line = strings.TrimSpace(line)
	if err != nil && line == "" {
		if errors.Is(err, io.EOF) {
			return "", errInputClosed
		}
		return "", err
	}
	return line, nil
}

// parseIDs 解析命令行中的别名 ID
func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid alias id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
