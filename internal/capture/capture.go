// Package capture extracts page content with a headless browser. It is the
// standalone counterpart of the extension's in-page extraction: given a URL
// it produces the same PageContext the routing and prompts consume.
package capture

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/PageSage/pagesage/internal/logger"
	"github.com/PageSage/pagesage/pkg/types"
)

// Config holds capture configuration
type Config struct {
	Enabled        bool `yaml:"enabled"`
	Headless       bool `yaml:"headless"`
	TimeoutSeconds int  `yaml:"timeoutSeconds"`
	Stealth        bool `yaml:"stealth"`
}

// DefaultConfig returns sensible defaults for capture config
func DefaultConfig() *Config {
	return &Config{
		Enabled:        true,
		Headless:       true,
		TimeoutSeconds: 30,
		Stealth:        true,
	}
}

// GetTimeout returns the timeout as time.Duration
func (c *Config) GetTimeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Capturer drives a headless browser to extract page content
type Capturer struct {
	rod     *rod.Browser
	timeout time.Duration
	stealth bool
	log     *logger.Logger
}

// New creates a Capturer.
// Returns an error if Chrome/Chromium is not found (graceful degradation).
func New(cfg *Config, log *logger.Logger) (*Capturer, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if log == nil {
		log = logger.Nop()
	}

	path, found := launcher.LookPath()
	if !found {
		return nil, errors.New("Chrome/Chromium not found - page capture disabled")
	}

	l := launcher.New().
		Bin(path).
		Headless(cfg.Headless).
		Set("disable-gpu").
		Set("no-sandbox").
		Set("disable-dev-shm-usage")

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	return &Capturer{
		rod:     browser,
		timeout: cfg.GetTimeout(),
		stealth: cfg.Stealth,
		log:     log.WithComponent("capture"),
	}, nil
}

// Close shuts down the browser
func (c *Capturer) Close() {
	if c.rod != nil {
		_ = c.rod.Close()
	}
}

// Capture navigates to a URL and extracts its content as a PageContext.
// The result is already sanitized and length-capped.
func (c *Capturer) Capture(urlStr string) (*types.PageContext, error) {
	page, err := c.newPage(urlStr)
	if err != nil {
		return nil, err
	}
	defer page.Close()

	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("page load timeout: %w", err)
	}

	info, err := page.Info()
	if err != nil {
		return nil, fmt.Errorf("failed to read page info: %w", err)
	}

	body, err := page.Element("body")
	if err != nil {
		return nil, fmt.Errorf("failed to find page body: %w", err)
	}
	text, err := body.Text()
	if err != nil {
		text = ""
	}

	ctx := &types.PageContext{
		URL:         info.URL,
		Title:       info.Title,
		VisibleText: cleanText(text),
		Metadata:    map[string]string{},
	}
	if desc := c.metaContent(page, "description"); desc != "" {
		ctx.Metadata["description"] = desc
	}

	c.log.Debug("captured %s (%d chars)", ctx.URL, len(ctx.VisibleText))
	return ctx.Sanitize(), nil
}

// metaContent reads a <meta name=...> content attribute, empty if absent
func (c *Capturer) metaContent(page *rod.Page, name string) string {
	el, err := page.Element(fmt.Sprintf(`meta[name=%q]`, name))
	if err != nil || el == nil {
		return ""
	}
	content, err := el.Attribute("content")
	if err != nil || content == nil {
		return ""
	}
	return *content
}

func (c *Capturer) newPage(urlStr string) (*rod.Page, error) {
	if err := validateURL(urlStr); err != nil {
		return nil, err
	}

	page, err := c.rod.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	// Stealth must be injected before navigation
	if c.stealth {
		if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
			page.Close()
			return nil, fmt.Errorf("failed to inject stealth: %w", err)
		}
	}

	page = page.Timeout(c.timeout)

	if err := page.Navigate(urlStr); err != nil {
		page.Close()
		return nil, fmt.Errorf("failed to navigate: %w", err)
	}

	return page, nil
}

// validateURL checks if a URL is valid and safe to navigate to
func validateURL(urlStr string) error {
	if urlStr == "" {
		return errors.New("URL is required")
	}

	u, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	// Only allow http and https
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported URL scheme: %s (only http/https allowed)", u.Scheme)
	}

	lower := strings.ToLower(urlStr)
	if strings.Contains(lower, "javascript:") || strings.Contains(lower, "file:") || strings.Contains(lower, "data:") {
		return errors.New("dangerous URL scheme detected")
	}

	return nil
}

var (
	spaceRe   = regexp.MustCompile(` {2,}`)
	newlineRe = regexp.MustCompile(`\n{3,}`)
)

// cleanText normalizes text by collapsing whitespace
func cleanText(text string) string {
	text = strings.ReplaceAll(text, "\t", " ")
	text = spaceRe.ReplaceAllString(text, " ")
	text = newlineRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
