package scraper

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"

	"daily-news-parser/internal/config"
)

func mustDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}
	return doc
}

func TestExtractFragment(t *testing.T) {
	extractor, err := NewExtractor(config.SelectorSet{
		Container:   "#feed",
		Title:       ".t",
		Description: ".d",
		Image:       "img.thumb",
		Date:        ".when",
		Link:        "a.more",
	})
	if err != nil {
		t.Fatalf("NewExtractor: %v", err)
	}

	doc := mustDoc(t, `<div id="feed">
	  <div><span class="t">  First  </span><p class="d"> Lead </p><img class="thumb" src="" data-src="/lazy.jpg"><span class="when" datetime="">3 hours ago</span><a class="more" href=" /first "></a></div>
	  <div><span class="t">Second</span><time class="when" datetime="2024-03-20">yesterday</time></div>
	  <div><div class="nested"><span class="t">Third</span></div></div>
	</div>`)

	container, err := extractor.FindContainer(doc)
	if err != nil {
		t.Fatalf("FindContainer: %v", err)
	}

	fragments := extractor.Fragments(container)
	if len(fragments) != 3 {
		t.Fatalf("got %d fragments, want 3 direct children", len(fragments))
	}

	tests := []struct {
		name string
		want RawFields
	}{
		{"all fields", RawFields{Title: "First", Description: "Lead", Link: "/first", Image: "/lazy.jpg", Date: "3 hours ago"}},
		{"datetime attribute", RawFields{Title: "Second", Date: "2024-03-20"}},
		{"nested title", RawFields{Title: "Third"}},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractor.ExtractFragment(fragments[i]); got != tt.want {
				t.Errorf("ExtractFragment = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestFindContainerMissing(t *testing.T) {
	extractor, err := NewExtractor(config.SelectorSet{Container: "main .posts", Title: "h2", Link: "a"})
	if err != nil {
		t.Fatalf("NewExtractor: %v", err)
	}

	_, err = extractor.FindContainer(mustDoc(t, `<main><div class="other"></div></main>`))
	if !errors.Is(err, ErrContainerNotFound) {
		t.Errorf("error = %v, want ErrContainerNotFound", err)
	}
}

func TestFindContainerFirstMatch(t *testing.T) {
	extractor, err := NewExtractor(config.SelectorSet{Container: "ul.posts", Title: "b", Link: "a"})
	if err != nil {
		t.Fatalf("NewExtractor: %v", err)
	}

	container, err := extractor.FindContainer(mustDoc(t, `<ul class="posts"><li><b>one</b></li></ul><ul class="posts"><li>two</li><li>three</li></ul>`))
	if err != nil {
		t.Fatalf("FindContainer: %v", err)
	}
	if n := len(extractor.Fragments(container)); n != 1 {
		t.Errorf("first container must be used, got %d fragments", n)
	}
}

func TestCompileSelector(t *testing.T) {
	tests := []struct {
		raw     string
		wantNil bool
		wantErr bool
	}{
		{"", true, false},
		{"   ", true, false},
		{"div.card > h2", false, false},
		{"xpath://div[@class='card']", false, false},
		{"div[", false, true},
		{"xpath://div[", false, true},
	}

	for _, tt := range tests {
		sel, err := CompileSelector(tt.raw)
		if (err != nil) != tt.wantErr {
			t.Errorf("CompileSelector(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			continue
		}
		if err == nil && (sel == nil) != tt.wantNil {
			t.Errorf("CompileSelector(%q) nil = %v, want %v", tt.raw, sel == nil, tt.wantNil)
		}
	}
}

func TestNilSelectorFindsNothing(t *testing.T) {
	var sel *Selector
	doc := mustDoc(t, `<p>text</p>`)
	if got := sel.First(doc.Selection); got.Length() != 0 {
		t.Errorf("nil selector matched %d nodes", got.Length())
	}
}

func TestArticleJSONDate(t *testing.T) {
	a := Article{
		ID:         "https://example.com/a",
		Title:      "A",
		Date:       time.Date(2024, 3, 20, 23, 59, 59, 0, time.UTC),
		ArticleURL: "https://example.com/a",
		SourceName: "Example",
	}

	data, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(data), `"date":"2024-03-20T23:59:59.000Z"`) {
		t.Errorf("date not in canonical form: %s", data)
	}

	var back Article
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !back.Date.Equal(a.Date) || back.ArticleURL != a.ArticleURL {
		t.Errorf("decoded %+v", back)
	}
}
