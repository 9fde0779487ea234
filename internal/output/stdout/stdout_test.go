package outputstdout

import (
	"bytes"
	"os"
	"testing"
	"time"

	"github.com/MuchTitan/evtsyslog/internal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureStdout(f func()) string {
	r, w, _ := os.Pipe()
	originalStdout := os.Stdout
	os.Stdout = w

	f()

	w.Close()
	os.Stdout = originalStdout

	var buf bytes.Buffer
	_, _ = buf.ReadFrom(r)
	return buf.String()
}

func sampleRecord() *internal.Record {
	return &internal.Record{
		Timestamp: time.Date(2024, 3, 1, 12, 0, 0, 500_000_000, time.UTC),
		Provider:  "Kernel-General",
		Computer:  "HOST1",
		ProcessID: 1234,
		EventID:   16,
		Message:   "Process 1234 terminated",
		Channel:   "System",
	}
}

func TestStdoutInit(t *testing.T) {
	tests := []struct {
		name    string
		config  map[string]any
		format  string
		wantErr bool
	}{
		{"defaults", map[string]any{}, "syslog", false},
		{"json", map[string]any{"Format": "json", "JsonIndent": true}, "json", false},
		{"template wins", map[string]any{"Format": "json", "Template": "{{.Computer}}"}, "template", false},
		{"invalid format", map[string]any{"Format": "xml"}, "", true},
		{"invalid indent", map[string]any{"Format": "json", "JsonIndent": "yes"}, "", true},
		{"invalid template", map[string]any{"Template": "{{.Computer"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Stdout{}
			err := s.Init(tt.config)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.format, s.format)
			assert.Equal(t, "stdout", s.Name())
		})
	}
}

func TestStdoutWriteSyslog(t *testing.T) {
	s := &Stdout{}

	// Init binds os.Stdout, so it has to run while stdout is captured.
	output := captureStdout(func() {
		_ = s.Init(map[string]any{})
		_ = s.Write(sampleRecord())
	})

	assert.Equal(t, "<3>1 2024-03-01T12:00:00.500Z HOST1 Kernel-General 16 1234 - Process 1234 terminated\n", output)
}

func TestStdoutWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	s := &Stdout{out: &buf}
	require.NoError(t, s.Init(map[string]any{"Format": "json"}))

	require.NoError(t, s.Write(sampleRecord()))

	assert.Contains(t, buf.String(), `"message":"Process 1234 terminated"`)
	assert.Contains(t, buf.String(), `"channel":"System"`)
	assert.Contains(t, buf.String(), `"event_id":16`)
}

func TestStdoutWriteTemplate(t *testing.T) {
	var buf bytes.Buffer
	s := &Stdout{out: &buf}
	require.NoError(t, s.Init(map[string]any{"Template": "{{.Channel}}/{{.Provider}}: {{.Message}}"}))

	require.NoError(t, s.Write(sampleRecord()))
	assert.Equal(t, "System/Kernel-General: Process 1234 terminated\n", buf.String())
}

func TestStdoutMatchChannel(t *testing.T) {
	s := &Stdout{}
	require.NoError(t, s.Init(map[string]any{"Match": "Microsoft-Windows-*"}))

	assert.True(t, s.MatchChannel("Microsoft-Windows-Sysmon/Operational"))
	assert.False(t, s.MatchChannel("Security"))
	assert.NoError(t, s.Exit())
}
