// Package webreq is the bundled web-request extension.
package webreq

import (
	"fmt"
	"html"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/microcosm-cc/bluemonday"

	"github.com/poly-cli/poly/internal/extension"
)

// worker is implemented by sessions that can run background work.
type worker interface {
	Go(fn func())
}

type Provider struct {
	client *resty.Client
	policy *bluemonday.Policy
}

// New uses client for requests; nil gets a default client.
func New(client *resty.Client) *Provider {
	if client == nil {
		client = resty.New()
	}
	return &Provider{client: client, policy: bluemonday.StrictPolicy()}
}

func (p *Provider) ID() string { return "go:webreq" }

func (p *Provider) Register(r extension.Registrar) error {
	r.DefineCommand("getrequest", p.get, nil)
	r.DefineCommand("validateurl", validate, nil)
	return nil
}

// ValidURL is a loose check: an http(s) scheme, a separator and a dot.
func ValidURL(u string) bool {
	return strings.HasPrefix(u, "http") && strings.Contains(u, "://") && strings.Contains(u, ".")
}

func validate(s extension.Session, _ []string, rest string) error {
	rest = strings.TrimSpace(rest)
	if rest == "" {
		s.Add("validateurl needs arguments!")
		return nil
	}
	if ValidURL(rest) {
		s.Add(rest + " is a valid URL")
	} else {
		s.Add(rest + " is not a valid URL")
	}
	return nil
}

func (p *Provider) get(s extension.Session, _ []string, rest string) error {
	url := strings.TrimSpace(rest)
	if url == "" {
		s.Add("getrequest needs arguments!")
		return nil
	}
	if !ValidURL(url) {
		s.Add(url + " is not a valid URL")
		return nil
	}
	fetch := func() { s.Add(p.fetch(url)) }
	if w, ok := s.(worker); ok {
		w.Go(fetch)
	} else {
		fetch()
	}
	return nil
}

func (p *Provider) fetch(url string) string {
	resp, err := p.client.R().Get(url)
	if err != nil {
		return fmt.Sprintf("Request failed with error: %v", err)
	}
	if resp.IsError() {
		return fmt.Sprintf("Request failed with error: HTTP %d", resp.StatusCode())
	}
	body := resp.String()
	if strings.Contains(strings.ToLower(resp.Header().Get("Content-Type")), "html") {
		body = p.text(body)
	}
	return body
}

// text reduces an HTML document to its visible text lines.
func (p *Provider) text(doc string) string {
	stripped := html.UnescapeString(p.policy.Sanitize(doc))
	var lines []string
	for _, l := range strings.Split(stripped, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return strings.Join(lines, "\n")
}
