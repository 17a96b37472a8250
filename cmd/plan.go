package cmd

import (
	"fmt"

	"github.com/ohler55/ojg/oj"
	"github.com/spf13/cobra"

	"github.com/verso-build/verso/api"
	"github.com/verso-build/verso/internal/rules"
)

// planPathRule is the JSON shape of a composed path rule.
type planPathRule struct {
	Find        string `json:"find"`
	ReplaceWith string `json:"replaceWith"`
	Unless      string `json:"unless,omitempty"`
}

// planContentRule is the JSON shape of a composed content rule. Transform
// rules have no pattern to show; they are flagged instead.
type planContentRule struct {
	Paths       []string `json:"paths"`
	Find        string   `json:"find,omitempty"`
	ReplaceWith string   `json:"replaceWith,omitempty"`
	Transform   bool     `json:"transform,omitempty"`
}

type planDoc struct {
	Module       string            `json:"module,omitempty"`
	VersionToken string            `json:"versionToken"`
	PathRules    []planPathRule    `json:"pathRules"`
	ContentRules []planContentRule `json:"contentRules"`
}

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Print the composed rule set without touching any files",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, set, err := buildSet(moduleName)
		if err != nil {
			return err
		}
		data, err := planJSON(cfg, set, moduleName)
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	},
}

func init() {
	planCmd.Flags().StringVarP(&moduleName, "module", "m", "", "Module name for per-module overrides")
	planCmd.Flags().StringVar(&tokenFlag, "version", "", "Override the configured version token")
	rootCmd.AddCommand(planCmd)
}

func planJSON(cfg *api.Config, set *rules.RuleSet, module string) ([]byte, error) {
	doc := planDoc{
		Module:       module,
		VersionToken: cfg.VersionToken,
		PathRules:    make([]planPathRule, 0, len(set.Path)),
		ContentRules: make([]planContentRule, 0, len(set.Content)),
	}
	for _, r := range set.Path {
		pr := planPathRule{Find: r.Find.String(), ReplaceWith: r.ReplaceWith}
		if r.Unless != nil {
			pr.Unless = r.Unless.String()
		}
		doc.PathRules = append(doc.PathRules, pr)
	}
	for _, c := range set.Content {
		cr := planContentRule{Paths: c.Paths, ReplaceWith: c.ReplaceWith}
		if c.Find != nil {
			cr.Find = c.Find.String()
		}
		cr.Transform = c.Transform != nil
		doc.ContentRules = append(doc.ContentRules, cr)
	}
	return oj.Marshal(doc, 2)
}
