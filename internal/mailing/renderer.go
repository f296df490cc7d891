package mailing

import (
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/osteele/liquid"

	"github.com/ignite/campaign-mailer/internal/domain"
)

// UnsubscribeLinker builds the per-recipient unsubscribe URL.
type UnsubscribeLinker interface {
	UnsubscribeURL(baseURL, email string) string
}

// RendererConfig configures a Renderer.
type RendererConfig struct {
	BaseURL string
	Brand   string
	Links   UnsubscribeLinker
}

// Renderer turns a campaign and a subscriber into message bodies. It holds
// only immutable compiled templates, so it is safe for concurrent use, and
// rendering the same inputs always yields byte-identical output.
type Renderer struct {
	skeletons map[domain.TemplateID]*liquid.Template
	cfg       RendererConfig
	text      *bluemonday.Policy
}

// NewRenderer compiles every built-in skeleton.
func NewRenderer(cfg RendererConfig) (*Renderer, error) {
	if cfg.Links == nil {
		return nil, fmt.Errorf("renderer: unsubscribe linker is required")
	}
	if cfg.Brand == "" {
		cfg.Brand = "InsurancePro"
	}
	engine := liquid.NewEngine()
	r := &Renderer{
		skeletons: make(map[domain.TemplateID]*liquid.Template, len(skeletonSources)),
		cfg:       cfg,
		text:      bluemonday.StrictPolicy(),
	}
	for _, id := range domain.TemplateIDs {
		tpl, err := engine.ParseString(skeletonSources[id])
		if err != nil {
			return nil, fmt.Errorf("parse %s skeleton: %w", id, err)
		}
		r.skeletons[id] = tpl
	}
	return r, nil
}

// UnsubscribeURL returns the recipient's unsubscribe link.
func (r *Renderer) UnsubscribeURL(email string) string {
	return r.cfg.Links.UnsubscribeURL(r.cfg.BaseURL, email)
}

// Render produces the HTML body for one recipient using the given skeleton.
func (r *Renderer) Render(id domain.TemplateID, c *domain.Campaign, sub *domain.Subscriber) (string, error) {
	tpl, ok := r.skeletons[id]
	if !ok {
		return "", fmt.Errorf("unknown template %q", id)
	}
	out, err := tpl.RenderString(liquid.Bindings{
		"subject":         c.Subject,
		"content":         c.Content,
		"unsubscribe_url": r.UnsubscribeURL(sub.Email),
		"brand":           r.cfg.Brand,
		"year":            strconv.Itoa(c.CreatedAt.Year()),
	})
	if err != nil {
		return "", fmt.Errorf("render %s: %w", id, err)
	}
	return out, nil
}

var (
	blockBreak = regexp.MustCompile(`(?i)<br\s*/?>|</(p|div|h[1-6]|li|tr|blockquote)>`)
	blankRuns  = regexp.MustCompile(`\n{3,}`)
)

// RenderText produces the plain-text alternative for one recipient.
func (r *Renderer) RenderText(c *domain.Campaign, sub *domain.Subscriber) string {
	body := blockBreak.ReplaceAllString(c.Content, "$0\n")
	body = html.UnescapeString(r.text.Sanitize(body))

	lines := strings.Split(body, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	body = blankRuns.ReplaceAllString(strings.TrimSpace(strings.Join(lines, "\n")), "\n\n")

	var b strings.Builder
	b.WriteString(c.Subject)
	b.WriteString("\n\n")
	b.WriteString(body)
	b.WriteString("\n\n--\n")
	fmt.Fprintf(&b, "(c) %d %s\n", c.CreatedAt.Year(), r.cfg.Brand)
	b.WriteString("Unsubscribe: ")
	b.WriteString(r.UnsubscribeURL(sub.Email))
	b.WriteString("\n")
	return b.String()
}
