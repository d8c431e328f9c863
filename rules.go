package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lex-fmt/testaudit/internal/audit"
)

func (a *app) rulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "Print the effective rule table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rules, err := a.config.RuleSet()
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), renderRules(rules))
			return err
		},
	}
}

func renderRules(rules *audit.RuleSet) string {
	var b strings.Builder
	for i, c := range audit.Categories {
		if i > 0 {
			b.WriteString("\n")
		}
		list := rules.Rules(c)
		fmt.Fprintf(&b, "%s (%d rules)\n", c, len(list))
		for n, r := range list {
			fmt.Fprintf(&b, "  %d. %s\n", n+1, r.Pattern)
		}
	}
	return b.String()
}
