package extract

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Container is one rendered timeline item. Implementations resolve lookups
// against a snapshot of the item and report where it sat on screen.
type Container interface {
	// Lookup returns the first non-empty value resolved by s, or "" when
	// nothing matches.
	Lookup(s Strategy) (string, error)
	// Count returns how many elements inside the container match selector.
	Count(selector string) (int, error)
	// Top is the vertical document position of the container in pixels.
	Top() float64
}

// HTMLContainer is a Container backed by a goquery selection.
type HTMLContainer struct {
	sel *goquery.Selection
	top float64
}

// NewHTMLContainer parses an item fragment (typically its outer HTML) and
// wraps the first root element.
func NewHTMLContainer(fragment string, top float64) (*HTMLContainer, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return nil, fmt.Errorf("parse container html: %w", err)
	}
	root := doc.Find("body").Children().First()
	if root.Length() == 0 {
		return nil, fmt.Errorf("container html has no element")
	}
	return &HTMLContainer{sel: root, top: top}, nil
}

// ContainersFromDocument returns every element of html that matches selector,
// positioned by document order.
func ContainersFromDocument(html, selector string) ([]Container, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	var out []Container
	doc.Find(selector).Each(func(i int, s *goquery.Selection) {
		out = append(out, &HTMLContainer{sel: s, top: float64(i)})
	})
	return out, nil
}

// Lookup implements Container.
func (c *HTMLContainer) Lookup(s Strategy) (string, error) {
	matches := c.sel
	if s.Selector != "" {
		matches = c.sel.Find(s.Selector)
	}
	var value string
	matches.EachWithBreak(func(_ int, el *goquery.Selection) bool {
		var v string
		if s.Attribute == "" {
			v = strings.TrimSpace(el.Text())
		} else {
			v, _ = el.Attr(s.Attribute)
			v = strings.TrimSpace(v)
		}
		if v != "" {
			value = v
			return false
		}
		return true
	})
	return value, nil
}

// Count implements Container.
func (c *HTMLContainer) Count(selector string) (int, error) {
	if selector == "" {
		return 0, nil
	}
	return c.sel.Find(selector).Length(), nil
}

// Top implements Container.
func (c *HTMLContainer) Top() float64 {
	return c.top
}
