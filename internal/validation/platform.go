package validation

import (
	"net/url"
	"strings"
)

const PlatformOther = "other"

var platformHosts = map[string]string{
	"youtube.com":   "youtube",
	"youtu.be":      "youtube",
	"tiktok.com":    "tiktok",
	"instagram.com": "instagram",
	"twitter.com":   "twitter",
	"x.com":         "twitter",
	"vimeo.com":     "vimeo",
}

// DetectPlatform tags a source URL with the platform it belongs to.
// Subdomains match their parent (m.youtube.com is youtube).
func DetectPlatform(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return PlatformOther
	}

	host := strings.ToLower(strings.TrimSuffix(u.Hostname(), "."))
	for host != "" {
		if p, ok := platformHosts[host]; ok {
			return p
		}
		i := strings.IndexByte(host, '.')
		if i < 0 {
			break
		}
		host = host[i+1:]
	}
	return PlatformOther
}

// DetectPlatforms tags every url in order.
func DetectPlatforms(urls []string) []string {
	out := make([]string, len(urls))
	for i, u := range urls {
		out[i] = DetectPlatform(u)
	}
	return out
}
