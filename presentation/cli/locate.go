package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"oeb_automation/application/locator"
	"oeb_automation/infrastructure/browser"

	"github.com/spf13/cobra"
)

type locateFlags struct {
	html string

	css    string
	tag    string
	outer  string
	inner  string
	submit string
	text   string
	parent string
	child  string

	parentOf        bool
	sibling         string
	unique          bool
	caseInsensitive bool
	noTrim          bool
}

func (f locateFlags) matchOptions() []locator.MatchOption {
	var opts []locator.MatchOption
	if f.caseInsensitive {
		opts = append(opts, locator.CaseInsensitive())
	}
	if f.noTrim {
		opts = append(opts, locator.WithoutTrim())
	}
	if f.inner != "" {
		opts = append(opts, locator.WithTextTag(f.inner))
	}
	return opts
}

// build turns the flags into one composite locator. Exactly one base is
// allowed, --parent-of and --sibling then wrap it.
func (f locateFlags) build() (locator.Locator, error) {
	var (
		bases []locator.Locator
		opts  = f.matchOptions()
	)
	if f.css != "" {
		bases = append(bases, locator.CSS(f.css))
	}
	if f.submit != "" {
		bases = append(bases, locator.SubmitButtonWithText(f.submit, opts...))
	}
	if f.outer != "" {
		inner := f.inner
		if inner == "" {
			inner = locator.DefaultTextTag
		}
		bases = append(bases, locator.ContainingText(f.outer, inner, f.text, opts...))
	} else if f.tag != "" {
		bases = append(bases, locator.TagWithText(f.tag, f.text, opts...))
	}
	if f.parent != "" || f.child != "" {
		if f.parent == "" || f.child == "" {
			return locator.Locator{}, errors.New("--parent and --child go together")
		}
		bases = append(bases, locator.WithParent(f.parent, f.child))
	}

	switch len(bases) {
	case 0:
		return locator.Locator{}, errors.New("one of --css, --tag, --outer, --submit or --parent/--child is required")
	case 1:
	default:
		return locator.Locator{}, errors.New("only one base locator may be given")
	}

	loc := bases[0]
	if f.parentOf {
		loc = locator.ParentElement(loc)
	}
	if f.sibling != "" {
		loc = locator.Sibling(loc, f.sibling)
	}
	return loc, nil
}

func newLocateCommand(app *App) *cobra.Command {
	var f locateFlags
	cmd := &cobra.Command{
		Use:   "locate",
		Short: "Evaluate a composite locator against a saved HTML page",
		Long: `locate resolves a composite locator against an HTML snapshot and prints
the text of every element it matches, one per line, in page order.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := f.build()
			if err != nil {
				return err
			}

			file, err := os.Open(f.html)
			if err != nil {
				return err
			}
			defer file.Close()
			page, err := browser.ParseSnapshot(file)
			if err != nil {
				return err
			}

			resolver := locator.NewResolver(app.logger,
				locator.WithAttempts(app.cfg.StaleAttempts),
				locator.WithObserver(app.metrics),
			)
			ctx := cmd.Context()

			if f.unique {
				el, err := resolver.Unique(ctx, page, loc)
				if err != nil {
					return err
				}
				text, err := el.Text(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), strings.TrimSpace(text))
				return nil
			}

			els, err := resolver.All(ctx, page, loc)
			if err != nil {
				return err
			}
			app.logger.Infof("%s matched %d elements", loc, len(els))
			for _, el := range els {
				text, err := el.Text(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), strings.TrimSpace(text))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&f.html, "html", "", "saved HTML page")
	cmd.Flags().StringVar(&f.css, "css", "", "CSS selector")
	cmd.Flags().StringVar(&f.tag, "tag", "", "tag whose own text must equal --text")
	cmd.Flags().StringVar(&f.outer, "outer", "", "elements to return when a descendant --inner has --text")
	cmd.Flags().StringVar(&f.inner, "inner", "", "descendant holding the text (default span)")
	cmd.Flags().StringVar(&f.submit, "submit", "", "submit button label")
	cmd.Flags().StringVar(&f.text, "text", "", "text to match")
	cmd.Flags().StringVar(&f.parent, "parent", "", "parent selector, with --child")
	cmd.Flags().StringVar(&f.child, "child", "", "child selector, with --parent")
	cmd.Flags().BoolVar(&f.parentOf, "parent-of", false, "return the parent of the single match")
	cmd.Flags().StringVar(&f.sibling, "sibling", "", "return siblings of the single match matching this selector")
	cmd.Flags().BoolVar(&f.unique, "unique", false, "require exactly one match")
	cmd.Flags().BoolVarP(&f.caseInsensitive, "ignore-case", "i", false, "compare text ignoring case")
	cmd.Flags().BoolVar(&f.noTrim, "no-trim", false, "compare text without trimming whitespace")
	_ = cmd.MarkFlagRequired("html")
	return cmd
}
