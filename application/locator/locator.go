// Package locator builds composite element queries on top of a page's
// primitive selector query. Locators are immutable descriptions, evaluated
// lazily against the live document every time they are resolved.
package locator

import (
	"context"
	"fmt"

	"oeb_automation/domain/entities"
	"oeb_automation/domain/interfaces"

	"golang.org/x/sync/errgroup"
)

// SubmitButtonSelector selects the submit buttons of a page
const SubmitButtonSelector = `button[type="submit"]`

type evalFunc func(ctx context.Context, page interfaces.Page) ([]interfaces.Element, error)

// Locator describes how to find elements. The zero value matches nothing.
type Locator struct {
	desc string
	eval evalFunc
}

// String returns a human readable description used in logs and errors
func (l Locator) String() string {
	if l.desc == "" {
		return "<empty locator>"
	}
	return l.desc
}

func (l Locator) evaluate(ctx context.Context, page interfaces.Page) ([]interfaces.Element, error) {
	if l.eval == nil {
		return []interfaces.Element{}, nil
	}
	return l.eval(ctx, page)
}

// CSS matches every element of the page matching selector
func CSS(selector string) Locator {
	return Locator{
		desc: fmt.Sprintf("css(%s)", selector),
		eval: func(ctx context.Context, page interfaces.Page) ([]interfaces.Element, error) {
			return page.QueryAll(ctx, selector)
		},
	}
}

// ContainingText matches the outer elements that contain at least one
// descendant matching inner whose text equals text. The outer elements are
// returned, in page order.
func ContainingText(outer, inner, text string, opts ...MatchOption) Locator {
	cfg := newMatchConfig(opts)
	return Locator{
		desc: fmt.Sprintf("containingText(%s, %s, %q)", outer, inner, text),
		eval: func(ctx context.Context, page interfaces.Page) ([]interfaces.Element, error) {
			candidates, err := page.QueryAll(ctx, outer)
			if err != nil {
				return nil, err
			}
			return filter(ctx, candidates, func(ctx context.Context, el interfaces.Element) (bool, error) {
				children, err := el.QueryAll(ctx, inner)
				if err != nil {
					return false, err
				}
				for _, child := range children {
					childText, err := child.Text(ctx)
					if err != nil {
						return false, err
					}
					if cfg.match.Matches(childText, text) {
						return true, nil
					}
				}
				return false, nil
			})
		},
	}
}

// TagWithText matches elements of tag whose own text equals text
func TagWithText(tag, text string, opts ...MatchOption) Locator {
	cfg := newMatchConfig(opts)
	return Locator{
		desc: fmt.Sprintf("tagWithText(%s, %q)", tag, text),
		eval: func(ctx context.Context, page interfaces.Page) ([]interfaces.Element, error) {
			candidates, err := page.QueryAll(ctx, tag)
			if err != nil {
				return nil, err
			}
			return filter(ctx, candidates, func(ctx context.Context, el interfaces.Element) (bool, error) {
				elText, err := el.Text(ctx)
				if err != nil {
					return false, err
				}
				return cfg.match.Matches(elText, text), nil
			})
		},
	}
}

// SubmitButtonWithText matches submit buttons whose label, held by a span
// unless WithTextTag says otherwise, equals text
func SubmitButtonWithText(text string, opts ...MatchOption) Locator {
	cfg := newMatchConfig(opts)
	return ContainingText(SubmitButtonSelector, cfg.textTag, text, opts...)
}

// WithParent matches the descendants matching child of every element
// matching parent, flattened in page order
func WithParent(parent, child string) Locator {
	return Locator{
		desc: fmt.Sprintf("withParent(%s, %s)", parent, child),
		eval: func(ctx context.Context, page interfaces.Page) ([]interfaces.Element, error) {
			parents, err := page.QueryAll(ctx, parent)
			if err != nil {
				return nil, err
			}
			groups := make([][]interfaces.Element, len(parents))
			g, gctx := errgroup.WithContext(ctx)
			for i, p := range parents {
				i, p := i, p
				g.Go(func() error {
					children, err := p.QueryAll(gctx, child)
					if err != nil {
						return err
					}
					groups[i] = children
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return nil, err
			}
			all := make([]interfaces.Element, 0, len(parents))
			for _, children := range groups {
				all = append(all, children...)
			}
			return all, nil
		},
	}
}

// ParentElement matches the immediate parent of the element resolved by loc.
// loc must resolve to at most one element.
func ParentElement(loc Locator) Locator {
	return Locator{
		desc: fmt.Sprintf("parentElement(%s)", loc),
		eval: func(ctx context.Context, page interfaces.Page) ([]interfaces.Element, error) {
			el, err := single(ctx, page, loc)
			if err != nil {
				return nil, err
			}
			if el == nil {
				return []interfaces.Element{}, nil
			}
			parent, err := el.Parent(ctx)
			if err != nil {
				return nil, err
			}
			if parent == nil {
				return []interfaces.Element{}, nil
			}
			return []interfaces.Element{parent}, nil
		},
	}
}

// Sibling matches the children of the parent of the element resolved by loc
// that match selector, excluding that element. loc must resolve to at most
// one element.
func Sibling(loc Locator, selector string) Locator {
	return Locator{
		desc: fmt.Sprintf("sibling(%s, %s)", loc, selector),
		eval: func(ctx context.Context, page interfaces.Page) ([]interfaces.Element, error) {
			el, err := single(ctx, page, loc)
			if err != nil {
				return nil, err
			}
			if el == nil {
				return []interfaces.Element{}, nil
			}
			parent, err := el.Parent(ctx)
			if err != nil {
				return nil, err
			}
			if parent == nil {
				return []interfaces.Element{}, nil
			}
			candidates, err := parent.QueryAll(ctx, selector)
			if err != nil {
				return nil, err
			}
			return filter(ctx, candidates, func(ctx context.Context, c interfaces.Element) (bool, error) {
				same, err := c.SameAs(ctx, el)
				if err != nil || same {
					return false, err
				}
				// descendants further down share an ancestor, not the parent
				cParent, err := c.Parent(ctx)
				if err != nil || cParent == nil {
					return false, err
				}
				return cParent.SameAs(ctx, parent)
			})
		},
	}
}

// single evaluates loc and enforces the uniqueness precondition of the
// structural locators. A nil element means loc matched nothing.
func single(ctx context.Context, page interfaces.Page, loc Locator) (interfaces.Element, error) {
	els, err := loc.evaluate(ctx, page)
	if err != nil {
		return nil, err
	}
	switch len(els) {
	case 0:
		return nil, nil
	case 1:
		return els[0], nil
	default:
		return nil, entities.Ambiguous("%s resolved to %d elements, expected one", loc, len(els))
	}
}

// filter decides for every candidate concurrently and keeps the accepted ones
// in their original order. All decisions are awaited before returning.
func filter(ctx context.Context, candidates []interfaces.Element, keep func(context.Context, interfaces.Element) (bool, error)) ([]interfaces.Element, error) {
	decisions := make([]bool, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	for i, el := range candidates {
		i, el := i, el
		g.Go(func() error {
			ok, err := keep(gctx, el)
			if err != nil {
				return err
			}
			decisions[i] = ok
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	kept := make([]interfaces.Element, 0, len(candidates))
	for i, ok := range decisions {
		if ok {
			kept = append(kept, candidates[i])
		}
	}
	return kept, nil
}
