package fallback

import (
	"slices"
	"testing"
)

func TestGenerateCategoryFirstMatchWins(t *testing.T) {
	tests := []struct {
		name  string
		title string
		host  string
		want  Category
	}{
		{"design title on dribbble", "2024 UX Design Trends", "dribbble.com", CategoryDesign},
		{"design beats ai", "AI design systems", "example.com", CategoryDesign},
		{"ai beats github host", "GPT agents in practice", "github.com", CategoryAI},
		{"chinese ai", "机器学习入门", "example.com", CategoryAI},
		{"tutorial", "How to bake bread", "example.com", CategoryTutorial},
		{"github host", "stashlink/backend", "github.com", CategoryGitHub},
		{"video host", "Weekly recap", "www.youtube.com", CategoryVideo},
		{"short video host", "Clip", "youtu.be", CategoryVideo},
		{"social host", "周末探店", "www.xiaohongshu.com", CategorySocial},
		{"product", "Launching our SaaS", "example.com", CategoryProduct},
		{"ai requires a whole word", "Maintaining gardens", "example.com", CategoryGeneric},
		{"openai brand", "OpenAI DevDay recap", "example.com", CategoryAI},
		{"generic", "Weekend reading", "example.com", CategoryGeneric},
	}

	gen := Generator{Pick: func(int) int { return 0 }}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := gen.Generate(tc.title, tc.host)
			if got.Category != tc.want {
				t.Fatalf("unexpected category: got %s want %s", got.Category, tc.want)
			}
			if got.Summary == "" {
				t.Fatal("expected a summary")
			}
		})
	}
}

func TestGenerateDesignScenario(t *testing.T) {
	got := Generator{}.Generate("2024 UX Design Trends", "dribbble.com")
	if got.Category != CategoryDesign {
		t.Fatalf("expected design category got %s", got.Category)
	}
	if got.Summary != summaryRules[0].summary {
		t.Fatalf("expected design template got %q", got.Summary)
	}
	if !slices.Contains(got.Tags, "Design") {
		t.Fatalf("expected Design tag in %v", got.Tags)
	}
}

func TestGenerateIsDeterministicForMatchedCategories(t *testing.T) {
	first := Generator{}.Generate("Rust tutorial", "example.com")
	for i := 0; i < 20; i++ {
		again := Generator{}.Generate("Rust tutorial", "example.com")
		if again.Summary != first.Summary || !slices.Equal(again.Tags, first.Tags) {
			t.Fatalf("expected stable output, got %+v then %+v", first, again)
		}
	}
}

func TestGenerateGenericUsesPool(t *testing.T) {
	for i := range genericSummaries {
		got := Generator{Pick: func(int) int { return i }}.Generate("Weekend reading", "example.com")
		if got.Summary != genericSummaries[i] {
			t.Fatalf("unexpected summary for pick %d: %q", i, got.Summary)
		}
	}

	got := Generator{Pick: func(int) int { return 99 }}.Generate("Weekend reading", "example.com")
	if got.Summary != genericSummaries[0] {
		t.Fatalf("out of range pick should clamp, got %q", got.Summary)
	}
}

func TestTags(t *testing.T) {
	tests := []struct {
		name  string
		title string
		host  string
		want  []string
	}{
		{"default", "Weekend reading", "example.com", []string{"Article"}},
		{"design", "2024 UX Design Trends", "dribbble.com", []string{"Design"}},
		{"truncated to three in discovery order", "UI guide for LLM product code", "example.com", []string{"Design", "AI", "Tutorial"}},
		{"deduplicated", "Design design DESIGN", "figma.com", []string{"Design"}},
		{"host driven", "Some repo", "github.com", []string{"OpenSource"}},
		{"ai art", "Midjourney prompt ideas", "example.com", []string{"AI Art"}},
		{"openai brand", "OpenAI announcements", "example.com", []string{"AI"}},
		{"video", "Talk", "www.bilibili.com", []string{"Video"}},
		{"chinese", "产品设计教程", "example.com", []string{"Design", "Tutorial", "Product"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Tags(tc.title, tc.host)
			if !slices.Equal(got, tc.want) {
				t.Fatalf("unexpected tags: got %v want %v", got, tc.want)
			}
		})
	}
}

func TestTagsBounds(t *testing.T) {
	inputs := [][2]string{
		{"", ""},
		{"AI UX tutorial product dev midjourney", "github.com"},
		{"随便看看", "weibo.com"},
	}
	for _, in := range inputs {
		got := Tags(in[0], in[1])
		if len(got) < 1 || len(got) > 3 {
			t.Fatalf("tags out of bounds for %v: %v", in, got)
		}
	}
}
