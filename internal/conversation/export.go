package conversation

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"

	"lawchat/internal/model"
)

// ExportFileName is the download name for a conversation's history.
func ExportFileName(sid string) string {
	return fmt.Sprintf("chat-%s.json", sid)
}

// WriteTranscript writes {"sid", "history"} as indented JSON.
func WriteTranscript(w io.Writer, t model.Transcript) error {
	if t.History == nil {
		t.History = []model.Message{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(t); err != nil {
		return fmt.Errorf("write transcript failed: %w", err)
	}
	return nil
}

func ReadTranscript(r io.Reader) (*model.Transcript, error) {
	var t model.Transcript
	if err := json.NewDecoder(r).Decode(&t); err != nil {
		return nil, fmt.Errorf("read transcript failed: %w", err)
	}
	return &t, nil
}

// SourceLabel shortens a source URL to its path; anything that does not
// parse as an absolute URL is shown as-is.
func SourceLabel(source string) string {
	u, err := url.Parse(strings.TrimSpace(source))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return source
	}
	if u.Path == "" || u.Path == "/" {
		return u.Host
	}
	return u.Path
}
