// Package pages holds the static navigation and the content of the
// informational pages around the analyzer.
package pages

import "strings"

// NavItem is one entry of the top navigation.
type NavItem struct {
	Label  string `json:"label"`
	Path   string `json:"path"`
	Icon   string `json:"icon"`
	Active bool   `json:"active"`
}

// Section is a titled card listing related items.
type Section struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Icon        string   `json:"icon,omitempty"`
	Items       []string `json:"items,omitempty"`
}

// Hero is the call-out block shown above a page's sections.
type Hero struct {
	Heading string `json:"heading"`
	Text    string `json:"text"`
	Action  string `json:"action,omitempty"`
}

// Page is the content of one route.
type Page struct {
	Path     string    `json:"path"`
	Title    string    `json:"title"`
	Subtitle string    `json:"subtitle,omitempty"`
	Hero     *Hero     `json:"hero,omitempty"`
	Sections []Section `json:"sections"`
	NotFound bool      `json:"notFound,omitempty"`
}

var navigation = []NavItem{
	{Label: "Home", Path: "/", Icon: "home"},
	{Label: "Docs", Path: "/docs", Icon: "file-text"},
	{Label: "Tax Genius", Path: "/tax-genius", Icon: "calculator"},
	{Label: "More", Path: "/more", Icon: "more-horizontal"},
}

var registry = map[string]Page{
	"/": {
		Path:     "/",
		Title:    "Thermal Emission Analyzer",
		Subtitle: "Advanced thermal analysis and emission detection",
		Hero: &Hero{
			Heading: "Thermal Emission Analyzer",
			Text:    "Upload thermal images to detect and analyze methane, CO₂, and other industrial emissions with AI-powered precision",
		},
		Sections: []Section{
			{Title: "Upload Thermal Image", Description: "Drag and drop your thermal image here, or click to browse", Icon: "upload", Items: []string{"Supports JPG, PNG, TIFF, and FLIR formats"}},
			{Title: "Methane Detection", Description: "Detect CH₄ leaks and emissions", Icon: "emission-low"},
			{Title: "CO₂ Analysis", Description: "Carbon dioxide emission tracking", Icon: "emission-medium"},
			{Title: "Multi-Gas Detection", Description: "NOx, SO₂ and other compounds", Icon: "emission-high"},
		},
	},
	"/docs": {
		Path:     "/docs",
		Title:    "Documentation",
		Subtitle: "Everything you need to know about thermal emission analysis",
		Sections: []Section{
			{Title: "Getting Started", Description: "Learn the basics of thermal emission analysis", Icon: "book", Items: []string{"Quick Start Guide", "System Requirements", "Installation"}},
			{Title: "API Reference", Description: "Complete API documentation for developers", Icon: "code", Items: []string{"Authentication", "Endpoints", "Response Formats"}},
			{Title: "User Manual", Description: "Comprehensive guide for thermal analysis", Icon: "file-text", Items: []string{"Image Upload", "Analysis Tools", "Report Generation"}},
			{Title: "Downloads", Description: "Resources and sample files", Icon: "download", Items: []string{"Sample Images", "Templates", "SDK"}},
		},
	},
	"/tax-genius": {
		Path:     "/tax-genius",
		Title:    "Tax Genius",
		Subtitle: "Smart tax solutions for thermal analysis equipment",
		Hero: &Hero{
			Heading: "Maximize Your Tax Benefits",
			Text:    "Turn your thermal analysis investments into tax advantages with our intelligent tax optimization platform.",
			Action:  "Get Started",
		},
		Sections: []Section{
			{Title: "Smart Calculations", Description: "AI-powered tax calculations for thermal analysis equipment", Icon: "calculator"},
			{Title: "Depreciation Tracking", Description: "Track equipment depreciation and tax benefits", Icon: "trending-up"},
			{Title: "Compliance Reports", Description: "Generate tax-compliant reports for thermal equipment", Icon: "file-check"},
			{Title: "Audit Protection", Description: "Ensure your thermal analysis deductions are audit-ready", Icon: "shield"},
		},
	},
	"/more": {
		Path:     "/more",
		Title:    "More Options",
		Subtitle: "Additional tools and settings for your thermal analysis platform",
		Sections: []Section{
			{Title: "Account Settings", Description: "Manage your profile and preferences", Icon: "settings", Items: []string{"Profile Settings", "Notifications", "Privacy"}},
			{Title: "Team Management", Description: "Collaborate with your team", Icon: "users", Items: []string{"Invite Members", "Role Management", "Team Analytics"}},
			{Title: "Support", Description: "Get help when you need it", Icon: "help-circle", Items: []string{"Help Center", "Contact Support", "Community Forum"}},
			{Title: "Contact Us", Description: "Reach out to our team", Icon: "mail", Items: []string{"Sales Inquiry", "Technical Support", "Feedback"}},
			{Title: "Integrations", Description: "Connect with your favorite tools", Icon: "zap", Items: []string{"API Access", "Webhooks", "Third-party Apps"}},
			{Title: "Premium Features", Description: "Unlock advanced capabilities", Icon: "star", Items: []string{"Advanced Analytics", "Priority Support", "Custom Reports"}},
		},
	},
}

// NotFoundPage is served for every unknown path.
var NotFoundPage = Page{
	Title:    "404",
	Subtitle: "Oops! Page not found",
	Sections: []Section{{Title: "Return to Home", Items: []string{"/"}}},
	NotFound: true,
}

// Normalize trims a trailing slash and query so "/docs/" and "/docs?x=1"
// resolve like "/docs".
func Normalize(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
		if path == "" {
			path = "/"
		}
	}
	return path
}

// Lookup returns the page for path. Unknown paths yield NotFoundPage and false.
func Lookup(path string) (Page, bool) {
	p := Normalize(path)
	page, ok := registry[p]
	if !ok {
		nf := NotFoundPage
		nf.Path = p
		return nf, false
	}
	return page, true
}

// Navigation returns the navigation with the item for current marked active.
func Navigation(current string) []NavItem {
	p := Normalize(current)
	items := make([]NavItem, len(navigation))
	copy(items, navigation)
	for i := range items {
		items[i].Active = items[i].Path == p
	}
	return items
}
