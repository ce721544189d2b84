package adapters

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
)

func TestNew(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		backend string
		// json is set if every line written is a JSON object.
		json    bool
		wantErr bool
	}{
		{name: "default is json", json: true},
		{name: "json", backend: "json", json: true},
		{name: "text", backend: "text"},
		{name: "zap", backend: "zap", json: true},
		{name: "zerolog", backend: "ZeroLog", json: true},
		{name: "unknown backend", backend: "syslog", wantErr: true},
	}

	for _, test := range tests {
		buff := &bytes.Buffer{}
		l, err := New(test.backend, buff)
		switch {
		case test.wantErr && err == nil:
			t.Errorf("TestNew(%s): got err == nil, want err != nil", test.name)
			continue
		case !test.wantErr && err != nil:
			t.Errorf("TestNew(%s): got err == %s, want err == nil", test.name, err)
			continue
		case err != nil:
			continue
		}

		l.LogAttrs(context.Background(), slog.LevelError, "boom", slog.String("ErrSrc", "main.go"))

		out := strings.TrimSpace(buff.String())
		if !strings.Contains(out, "boom") || !strings.Contains(out, "main.go") {
			t.Errorf("TestNew(%s): output is missing the message or attribute: %s", test.name, out)
		}
		if test.json {
			m := map[string]any{}
			if err := json.Unmarshal([]byte(out), &m, jsontext.AllowDuplicateNames(true)); err != nil {
				t.Errorf("TestNew(%s): output is not a JSON object: %s: %s", test.name, err, out)
			}
		}
	}
}
