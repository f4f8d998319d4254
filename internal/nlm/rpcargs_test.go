package nlm

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestAddSourceArgs(t *testing.T) {
	args := addSourceArgs(testNotebookID, testVideoURL)
	out, err := json.Marshal(args)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `[[[null,null,null,null,null,null,null,["` + testVideoURL + `"],null,null,1]],"` +
		testNotebookID + `",[2],[1,null,null,null,null,null,null,null,null,null,[1]]]`
	if string(out) != want {
		t.Errorf("addSourceArgs =\n%s\nwant\n%s", out, want)
	}
}

func TestCreateNotebookArgs(t *testing.T) {
	out, err := json.Marshal(createNotebookArgs())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `["",null,null,[2],[1,null,null,null,null,null,null,null,null,null,[1]]]`
	if string(out) != want {
		t.Errorf("createNotebookArgs = %s, want %s", out, want)
	}
}

func TestTriggerInfographicArgs(t *testing.T) {
	out, err := json.Marshal(triggerInfographicArgs(testNotebookID, testSourceID))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(out)
	if !strings.HasPrefix(s, `[[2],"`+testNotebookID+`",[null,null,7,[[["`+testSourceID+`"]]]`) {
		t.Errorf("unexpected shape: %s", s)
	}
	if !strings.HasSuffix(s, `[[null,null,null,1,2]]]]`) {
		t.Errorf("unexpected trailer: %s", s)
	}
}

func TestListArtifactsArgs(t *testing.T) {
	out, err := json.Marshal(listArtifactsArgs(testNotebookID))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(out), "ARTIFACT_STATUS_SUGGESTED") {
		t.Errorf("suggested-artifact filter missing: %s", out)
	}
}

func TestStreamQueryRequest(t *testing.T) {
	fReq, err := streamQueryRequest(testSourceID, "what is this about?", testNotebookID)
	if err != nil {
		t.Fatalf("streamQueryRequest: %v", err)
	}

	// Outer: [null, "<inner JSON>"].
	var outer []any
	if err := json.Unmarshal([]byte(fReq), &outer); err != nil {
		t.Fatalf("outer not valid JSON: %v", err)
	}
	if len(outer) != 2 || outer[0] != nil {
		t.Fatalf("outer shape = %v", outer)
	}
	innerJSON, ok := outer[1].(string)
	if !ok {
		t.Fatalf("inner slot is %T, want string", outer[1])
	}

	var inner []any
	if err := json.Unmarshal([]byte(innerJSON), &inner); err != nil {
		t.Fatalf("inner not valid JSON: %v", err)
	}
	if len(inner) != 9 {
		t.Fatalf("inner length = %d, want 9", len(inner))
	}
	if inner[1] != "what is this about?" {
		t.Errorf("prompt slot = %v", inner[1])
	}
	if inner[7] != testNotebookID {
		t.Errorf("notebook slot = %v", inner[7])
	}
	sourceJSON, _ := json.Marshal(inner[0])
	if string(sourceJSON) != `[[["`+testSourceID+`"]]]` {
		t.Errorf("source slot = %s", sourceJSON)
	}
}

func TestMineSources(t *testing.T) {
	otherID := "99996e1a-9e1a-4cfd-966c-aba21ab36d7c"
	payload := []any{
		"My Notebook",
		[]any{
			[]any{testSourceID, []any{"How Go Works"}, "https://www.youtube.com/watch?v=x", "SOURCE_STATUS_ENABLED"},
			[]any{otherID, []any{"Some Article"}, "https://example.com/post"},
		},
		testNotebookID,
	}

	sources := mineSources(payload)
	if len(sources) < 2 {
		t.Fatalf("mined %d sources, want at least 2: %+v", len(sources), sources)
	}

	byID := make(map[string]Source)
	for _, s := range sources {
		byID[s.SourceID] = s
	}
	yt, ok := byID[testSourceID]
	if !ok {
		t.Fatalf("youtube source not mined: %+v", sources)
	}
	if yt.Title != "How Go Works" {
		t.Errorf("title = %q", yt.Title)
	}
	if yt.Kind != "youtube" {
		t.Errorf("kind = %q, want youtube", yt.Kind)
	}
	web, ok := byID[otherID]
	if !ok {
		t.Fatalf("web source not mined: %+v", sources)
	}
	if web.Kind != "web" {
		t.Errorf("kind = %q, want web", web.Kind)
	}
}

func TestLooksLikeTitle(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"How Go Works", true},
		{"", false},
		{testSourceID, false},
		{"SOURCE_STATUS_ENABLED", false},
		{strings.Repeat("x", 301), false},
	}
	for _, tt := range tests {
		if got := looksLikeTitle(tt.in); got != tt.want {
			t.Errorf("looksLikeTitle(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestClassifySource(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://www.youtube.com/watch?v=x", "youtube"},
		{"https://youtu.be/x", "youtube"},
		{"https://example.com/post", "web"},
		{"", "unknown"},
	}
	for _, tt := range tests {
		if got := classifySource(tt.in); got != tt.want {
			t.Errorf("classifySource(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
