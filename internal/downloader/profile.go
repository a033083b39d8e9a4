package downloader

import (
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultFormat prefers an mp4 container and falls back to the best overall.
const DefaultFormat = "best[ext=mp4]/best"

// Request is one downloader invocation.
type Request struct {
	URL        string
	Format     string // empty = profile format
	OutputPath string
}

// Profile is the network identity yt-dlp presents to content hosts.
type Profile struct {
	Name        string   `yaml:"name"`
	Format      string   `yaml:"format,omitempty"`
	Impersonate string   `yaml:"impersonate,omitempty"`
	UserAgent   string   `yaml:"userAgent,omitempty"`
	Headers     []string `yaml:"headers,omitempty"`
	Referer     bool     `yaml:"referer,omitempty"` // send the URL without its query as referer
	Origin      bool     `yaml:"origin,omitempty"`  // send Origin: scheme://host of the referer
	ExtraArgs   []string `yaml:"extraArgs,omitempty"`
}

const chromeUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"

// BasicProfile only asks yt-dlp to impersonate Chrome's TLS fingerprint.
var BasicProfile = Profile{
	Name:        "basic",
	Format:      DefaultFormat,
	Impersonate: "chrome",
}

// StrictProfile additionally sends a full desktop Chrome header set.
var StrictProfile = Profile{
	Name:        "strict",
	Format:      DefaultFormat,
	Impersonate: "chrome",
	UserAgent:   chromeUserAgent,
	Headers: []string{
		"Accept: text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
		"Accept-Language: en-US,en;q=0.9",
		"Accept-Encoding: gzip, deflate, br",
		"DNT: 1",
		"Sec-Fetch-Dest: document",
		"Sec-Fetch-Mode: navigate",
		"Sec-Fetch-Site: same-origin",
		"Sec-Fetch-User: ?1",
		"Upgrade-Insecure-Requests: 1",
		`sec-ch-ua: "Chromium";v="122", "Google Chrome";v="122", "Not(A:Brand";v="24"`,
		"sec-ch-ua-mobile: ?0",
		`sec-ch-ua-platform: "Windows"`,
	},
	Referer: true,
	Origin:  true,
}

// Args builds the yt-dlp argument vector for req.
func (p Profile) Args(req Request) []string {
	format := req.Format
	if format == "" {
		format = p.Format
	}
	if format == "" {
		format = DefaultFormat
	}

	args := []string{"-f", format, "-o", req.OutputPath, "--no-playlist"}
	if p.UserAgent != "" {
		args = append(args, "--user-agent", p.UserAgent)
	}
	for _, h := range p.Headers {
		args = append(args, "--add-header", h)
	}
	if p.Referer || p.Origin {
		referer := Referer(req.URL)
		if p.Referer {
			args = append(args, "--referer", referer)
		}
		if origin := Origin(referer); p.Origin && origin != "" {
			args = append(args, "--add-header", "Origin: "+origin)
		}
	}
	if p.Impersonate != "" {
		args = append(args, "--impersonate", p.Impersonate)
	}
	args = append(args, p.ExtraArgs...)
	return append(args, "--", req.URL)
}

// Referer returns rawURL without its query string.
func Referer(rawURL string) string {
	if i := strings.IndexByte(rawURL, '?'); i >= 0 {
		return rawURL[:i]
	}
	return rawURL
}

// Origin returns scheme://host of rawURL, or "" when it has neither.
func Origin(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

type profileFile struct {
	Profiles []Profile `yaml:"profiles"`
}

// Profiles is a name-indexed set of network identities.
type Profiles map[string]Profile

// BuiltinProfiles returns the profiles that need no configuration.
func BuiltinProfiles() Profiles {
	return Profiles{
		BasicProfile.Name:  BasicProfile,
		StrictProfile.Name: StrictProfile,
	}
}

// LoadProfiles merges the profiles in a YAML file over the built-in ones.
// An empty path yields the built-ins only.
func LoadProfiles(path string) (Profiles, error) {
	profiles := BuiltinProfiles()
	if path == "" {
		return profiles, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profiles file: %w", err)
	}
	var pf profileFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("parse profiles file %s: %w", path, err)
	}
	for i, p := range pf.Profiles {
		if p.Name == "" {
			return nil, fmt.Errorf("profiles file %s: entry %d has no name", path, i)
		}
		if p.Format == "" {
			p.Format = DefaultFormat
		}
		profiles[p.Name] = p
	}
	return profiles, nil
}

// Get returns the named profile.
func (ps Profiles) Get(name string) (Profile, error) {
	p, ok := ps[name]
	if !ok {
		return Profile{}, fmt.Errorf("unknown downloader profile %q (available: %s)", name, strings.Join(ps.Names(), ", "))
	}
	return p, nil
}

// Names lists profile names in sorted order.
func (ps Profiles) Names() []string {
	names := make([]string, 0, len(ps))
	for name := range ps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
