package fallback

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Category identifies which summary template a fallback result was drawn from.
type Category string

const (
	CategoryDesign   Category = "design"
	CategoryAI       Category = "ai"
	CategoryTutorial Category = "tutorial"
	CategoryGitHub   Category = "github"
	CategoryVideo    Category = "video"
	CategorySocial   Category = "social"
	CategoryProduct  Category = "product"
	CategoryGeneric  Category = "generic"
)

// matcher describes a keyword/host predicate. Words must appear as whole tokens;
// phrases may appear anywhere in the title.
type matcher struct {
	words   []string
	phrases []string
	hosts   []string
}

func (m matcher) match(title, host string) bool {
	for _, h := range m.hosts {
		if strings.Contains(host, h) {
			return true
		}
	}
	for _, p := range m.phrases {
		if strings.Contains(title, p) {
			return true
		}
	}
	for _, w := range m.words {
		if containsWord(title, w) {
			return true
		}
	}
	return false
}

type summaryRule struct {
	category Category
	summary  string
	matcher
}

// summaryRules are evaluated in order; the first match selects the summary.
var summaryRules = []summaryRule{
	{
		category: CategoryDesign,
		summary:  "A design reference with visual ideas worth revisiting.",
		matcher:  matcher{phrases: []string{"design", "设计"}, hosts: []string{"figma", "dribbble"}},
	},
	{
		category: CategoryAI,
		summary:  "Notes on AI tools and models to explore later.",
		matcher:  matcher{words: []string{"ai"}, phrases: []string{"gpt", "openai", "机器学习"}},
	},
	{
		category: CategoryTutorial,
		summary:  "A step-by-step guide saved for hands-on practice.",
		matcher:  matcher{phrases: []string{"教程", "tutorial", "how to"}},
	},
	{
		category: CategoryGitHub,
		summary:  "An open-source repository to star and dig into.",
		matcher:  matcher{hosts: []string{"github"}},
	},
	{
		category: CategoryVideo,
		summary:  "A video saved to watch when there is time.",
		matcher:  matcher{hosts: []string{"youtube", "youtu.be", "bilibili"}},
	},
	{
		category: CategorySocial,
		summary:  "A social post with ideas worth coming back to.",
		matcher:  matcher{hosts: []string{"xiaohongshu", "xhslink"}},
	},
	{
		category: CategoryProduct,
		summary:  "A product or SaaS tool worth evaluating.",
		matcher:  matcher{phrases: []string{"product", "产品", "saas"}},
	},
}

var genericSummaries = []string{
	"A link saved for later reading.",
	"Worth a closer look when there is a free moment.",
	"Saved from the web for future reference.",
	"A quick read bookmarked for later.",
}

type tagRule struct {
	tag string
	matcher
}

// tagRules contribute additively, in this order.
var tagRules = []tagRule{
	{tag: "Design", matcher: matcher{words: []string{"ui", "ux"}, phrases: []string{"设计", "design"}, hosts: []string{"figma", "dribbble"}}},
	{tag: "AI", matcher: matcher{words: []string{"ai", "llm"}, phrases: []string{"gpt", "openai", "机器学习"}}},
	{tag: "Tutorial", matcher: matcher{phrases: []string{"教程", "tutorial", "how to", "guide"}}},
	{tag: "Product", matcher: matcher{phrases: []string{"产品", "product", "saas", "startup"}}},
	{tag: "Dev", matcher: matcher{words: []string{"dev"}, phrases: []string{"开发", "编程", "code", "developer"}}},
	{tag: "AI Art", matcher: matcher{phrases: []string{"midjourney", "stable diffusion", "prompt"}}},
	{tag: "OpenSource", matcher: matcher{hosts: []string{"github"}}},
	{tag: "Video", matcher: matcher{hosts: []string{"youtube", "youtu.be", "bilibili"}}},
}

// containsWord reports whether word appears in s bounded by non-alphanumeric ASCII.
func containsWord(s, word string) bool {
	for offset := 0; offset < len(s); {
		idx := strings.Index(s[offset:], word)
		if idx < 0 {
			return false
		}
		start := offset + idx
		end := start + len(word)
		if boundaryBefore(s, start) && boundaryAfter(s, end) {
			return true
		}
		offset = start + 1
	}
	return false
}

func boundaryBefore(s string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return !isASCIIAlnum(r)
}

func boundaryAfter(s string, i int) bool {
	if i >= len(s) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(s[i:])
	return !isASCIIAlnum(r)
}

// isASCIIAlnum treats CJK text as a boundary so "AI绘画" still matches "ai".
func isASCIIAlnum(r rune) bool {
	return r < utf8.RuneSelf && (unicode.IsLetter(r) || unicode.IsDigit(r))
}
