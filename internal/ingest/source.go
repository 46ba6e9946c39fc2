package ingest

import "strings"

var coverEmojis = []string{
	"📦", "🔗", "📚", "💡", "🎯", "🚀", "⭐️", "🔥", "💎", "🎨",
	"🛠", "📝", "🌟", "💻", "📱", "🎬", "🎵", "📰", "🧠", "✨",
}

var coverColors = []string{
	"bg-blue-100", "bg-orange-100", "bg-stone-200", "bg-green-100",
	"bg-purple-100", "bg-pink-100", "bg-yellow-100",
}

// sourceApps is checked in order; the first host fragment that matches wins. A
// fragment containing a dot is a domain and matches only that domain or a subdomain.
var sourceApps = []struct {
	name      string
	fragments []string
}{
	{"Xiaohongshu", []string{"xiaohongshu", "xhslink"}},
	{"Twitter", []string{"twitter", "x.com"}},
	{"YouTube", []string{"youtube", "youtu.be"}},
	{"Instagram", []string{"instagram"}},
	{"Weibo", []string{"weibo"}},
	{"Bilibili", []string{"bilibili", "b23.tv"}},
	{"Zhihu", []string{"zhihu"}},
	{"GitHub", []string{"github"}},
	{"Medium", []string{"medium"}},
	{"Reddit", []string{"reddit"}},
	{"Telegram", []string{"telegram", "t.me"}},
	{"TikTok", []string{"tiktok"}},
	{"Douyin", []string{"douyin"}},
	{"Facebook", []string{"facebook", "fb.com"}},
	{"LinkedIn", []string{"linkedin"}},
	{"Notion", []string{"notion"}},
	{"Figma", []string{"figma"}},
}

// SourceApp labels the app a link was most likely shared from.
func SourceApp(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if host == "" {
		return "Web"
	}
	for _, app := range sourceApps {
		for _, fragment := range app.fragments {
			if matchesHost(host, fragment) {
				return app.name
			}
		}
	}
	return "Safari"
}

func matchesHost(host, fragment string) bool {
	if !strings.Contains(fragment, ".") {
		return strings.Contains(host, fragment)
	}
	return host == fragment || strings.HasSuffix(host, "."+fragment)
}
