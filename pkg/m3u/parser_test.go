package m3u

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func collect(t *testing.T, content string) (Header, []*Entry, []error) {
	t.Helper()

	var (
		header  Header
		entries []*Entry
		errs    []error
	)
	p := &Parser{
		OnHeader: func(h Header) { header = h },
		OnEntry: func(entry *Entry) error {
			entries = append(entries, entry)
			return nil
		},
		OnError: func(_ int, err error) { errs = append(errs, err) },
	}
	if err := p.Parse(strings.NewReader(content)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return header, entries, errs
}

func TestParser_BasicParsing(t *testing.T) {
	content := `#EXTM3U url-tvg="http://example.com/guide.xml.gz"
#EXTINF:-1 tvg-id="channel1" tvg-name="Channel One" tvg-logo="http://example.com/logo.png" group-title="News",Channel 1 HD
http://example.com/stream1.m3u8
#EXTINF:-1 tvg-id="channel2" group-title="Sports",Channel 2
http://example.com/stream2.m3u8
`

	header, entries, _ := collect(t, content)

	if header.GuideURL != "http://example.com/guide.xml.gz" {
		t.Errorf("expected guide URL, got %q", header.GuideURL)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	e1 := entries[0]
	if e1.TvgID != "channel1" {
		t.Errorf("expected tvg-id 'channel1', got '%s'", e1.TvgID)
	}
	if e1.TvgName != "Channel One" {
		t.Errorf("expected tvg-name 'Channel One', got '%s'", e1.TvgName)
	}
	if e1.TvgLogo != "http://example.com/logo.png" {
		t.Errorf("expected tvg-logo, got '%s'", e1.TvgLogo)
	}
	if e1.GroupTitle != "News" {
		t.Errorf("expected group-title 'News', got '%s'", e1.GroupTitle)
	}
	if e1.Title != "Channel 1 HD" {
		t.Errorf("expected title 'Channel 1 HD', got '%s'", e1.Title)
	}
	if e1.Duration != "-1" {
		t.Errorf("expected duration -1, got %q", e1.Duration)
	}
	if e1.URL != "http://example.com/stream1.m3u8" {
		t.Errorf("unexpected URL '%s'", e1.URL)
	}

	if entries[1].TvgName != "" {
		t.Errorf("expected empty tvg-name, got '%s'", entries[1].TvgName)
	}
}

func TestParser_FirstHeaderWins(t *testing.T) {
	content := `#EXTM3U url-tvg="http://first/guide.gz"
#EXTM3U url-tvg="http://second/guide.gz"
`
	header, _, _ := collect(t, content)
	if header.GuideURL != "http://first/guide.gz" {
		t.Errorf("expected first header to win, got %q", header.GuideURL)
	}
}

func TestParser_XTvgURLAlias(t *testing.T) {
	header, _, _ := collect(t, `#EXTM3U x-tvg-url="http://alias/guide.gz"`+"\n")
	if header.GuideURL != "http://alias/guide.gz" {
		t.Errorf("expected alias guide URL, got %q", header.GuideURL)
	}
}

func TestParser_TitleWithCommas(t *testing.T) {
	content := `#EXTM3U
#EXTINF:-1 tvg-name="News, Weather" group-title="Info",News, Weather & Sport
http://example.com/news
`
	_, entries, _ := collect(t, content)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Title != "News, Weather & Sport" {
		t.Errorf("unexpected title %q", entries[0].Title)
	}
	if entries[0].TvgName != "News, Weather" {
		t.Errorf("unexpected tvg-name %q", entries[0].TvgName)
	}
}

func TestParser_DanglingMetadataDropped(t *testing.T) {
	content := `#EXTM3U
#EXTINF:-1,Orphan
#EXTINF:-1,Kept
http://example.com/kept
#EXTINF:-1,Trailing
`
	_, entries, errs := collect(t, content)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Title != "Kept" {
		t.Errorf("expected 'Kept', got %q", entries[0].Title)
	}
	if len(errs) != 2 {
		t.Fatalf("expected 2 dangling errors, got %d", len(errs))
	}
	for _, err := range errs {
		if !errors.Is(err, ErrDanglingEntry) {
			t.Errorf("expected ErrDanglingEntry, got %v", err)
		}
	}
}

func TestParser_URLWithoutMetadataIgnored(t *testing.T) {
	content := `#EXTM3U
http://example.com/bare
#EXTINF:-1,Real
http://example.com/real
`
	_, entries, _ := collect(t, content)
	if len(entries) != 1 || entries[0].URL != "http://example.com/real" {
		t.Fatalf("expected only the described entry, got %+v", entries)
	}
}

func TestParser_CommentsBetweenMetadataAndURL(t *testing.T) {
	content := `#EXTINF:-1,With Options
#EXTVLCOPT:http-user-agent=Foo

http://example.com/opt
`
	_, entries, _ := collect(t, content)
	if len(entries) != 1 || entries[0].URL != "http://example.com/opt" {
		t.Fatalf("unexpected entries %+v", entries)
	}
}

func TestParser_MissingDurationAndUnquotedAttrs(t *testing.T) {
	content := "#EXTINF: tvg-id=abc group-title=Kids,Cartoons\nhttp://example.com/c\n"
	_, entries, _ := collect(t, content)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e.Duration != "" || e.TvgID != "abc" || e.GroupTitle != "Kids" || e.Title != "Cartoons" {
		t.Errorf("unexpected entry %+v", e)
	}
}

func TestParser_ExtraAttributes(t *testing.T) {
	content := `#EXTINF:-1 tvg-chno="7" catchup="default",Seven
http://example.com/7
`
	_, entries, _ := collect(t, content)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Extra["tvg-chno"] != "7" || entries[0].Extra["catchup"] != "default" {
		t.Errorf("unexpected extra %v", entries[0].Extra)
	}
}

func TestParser_CallbackErrorStops(t *testing.T) {
	content := `#EXTINF:-1,One
http://example.com/1
#EXTINF:-1,Two
http://example.com/2
`
	stop := errors.New("stop")
	calls := 0
	p := &Parser{OnEntry: func(*Entry) error {
		calls++
		return stop
	}}
	err := p.Parse(strings.NewReader(content))
	if !errors.Is(err, stop) {
		t.Fatalf("expected callback error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestParser_RequiresOnEntry(t *testing.T) {
	p := &Parser{}
	if err := p.Parse(strings.NewReader("#EXTM3U\n")); err == nil {
		t.Fatal("expected error without OnEntry")
	}
}

func TestWriter_RoundTrip(t *testing.T) {
	in := []*Entry{
		{Title: "One, Two", TvgID: "one", TvgName: "One", TvgLogo: "http://l/1.png", GroupTitle: "News", URL: "http://s/1"},
		{Title: "Bare", URL: "rtsp://s/2"},
	}

	var buf bytes.Buffer
	w := NewWriter(&buf, "http://g/guide.xml.gz")
	for _, e := range in {
		if err := w.WriteEntry(e); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	header, out, _ := collect(t, buf.String())
	if header.GuideURL != "http://g/guide.xml.gz" {
		t.Errorf("unexpected guide URL %q", header.GuideURL)
	}
	if len(out) != len(in) {
		t.Fatalf("expected %d entries, got %d", len(in), len(out))
	}
	for i := range in {
		if out[i].Title != in[i].Title || out[i].URL != in[i].URL ||
			out[i].TvgID != in[i].TvgID || out[i].TvgName != in[i].TvgName ||
			out[i].TvgLogo != in[i].TvgLogo || out[i].GroupTitle != in[i].GroupTitle {
			t.Errorf("entry %d mismatch: %+v vs %+v", i, out[i], in[i])
		}
	}
}

func TestWriter_SanitizesQuotes(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, "")
	if err := w.WriteEntry(&Entry{Title: "Q", TvgName: `say "hi"`, URL: "http://q"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, out, _ := collect(t, buf.String())
	if len(out) != 1 || out[0].TvgName != "say 'hi'" {
		t.Fatalf("unexpected entries %+v", out)
	}
}

func TestParser_ByteOrderMark(t *testing.T) {
	content := "\uFEFF#EXTM3U url-tvg=\"http://example.com/guide.xml.gz\"\n" +
		"#EXTINF:-1 group-title=\"News\",Channel 1\n" +
		"http://example.com/stream1.m3u8\n"

	header, entries, errs := collect(t, content)

	if header.GuideURL != "http://example.com/guide.xml.gz" {
		t.Errorf("expected guide URL after BOM, got %q", header.GuideURL)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Title != "Channel 1" {
		t.Errorf("unexpected title %q", entries[0].Title)
	}
	if len(errs) != 0 {
		t.Errorf("unexpected errors: %v", errs)
	}
}
