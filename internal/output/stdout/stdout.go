package outputstdout

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"sync"
	"text/template"
	"time"

	"github.com/MuchTitan/evtsyslog/internal"
	"github.com/MuchTitan/evtsyslog/internal/syslog"
	"github.com/MuchTitan/evtsyslog/internal/util"
)

var ValidFormats = []string{"syslog", "json", "template"}

// Stdout prints records, mostly useful when running in the foreground.
type Stdout struct {
	name       string
	format     string             // Output format (syslog, json, template)
	template   *template.Template // Custom output template
	jsonIndent bool               // Whether to indent JSON output
	mutex      sync.Mutex         // Ensures atomic writes to stdout
	match      string
	out        io.Writer
}

func (s *Stdout) Name() string {
	return s.name
}

func (s *Stdout) Init(config map[string]any) error {
	s.name = util.MustString(config["Name"])
	if s.name == "" {
		s.name = "stdout"
	}

	s.match = util.MustString(config["Match"])
	if s.match == "" {
		s.match = "*"
	}

	s.format = util.MustString(config["Format"])
	if s.format == "" {
		s.format = "syslog"
	}

	if !slices.Contains(ValidFormats, s.format) {
		return fmt.Errorf("not a valid format for stdout provided: %s", s.format)
	}

	// Configure JSON indentation
	if indent, exists := config["JsonIndent"]; exists && s.format == "json" {
		var ok bool
		if s.jsonIndent, ok = indent.(bool); !ok {
			return errors.New("cant convert json indent parameter to bool")
		}
	}

	// Parse custom template if provided
	if templateTmp, exists := config["Template"]; exists && templateTmp != "" {
		templateStr := util.MustString(templateTmp)
		tmpl, err := template.New("output").Parse(templateStr)
		if err != nil {
			return fmt.Errorf("failed to parse template: %v", err)
		}
		s.template = tmpl
		s.format = "template"
	}

	if s.out == nil {
		s.out = os.Stdout
	}

	return nil
}

func (s *Stdout) MatchChannel(channel string) bool {
	return util.TagMatch(channel, s.match)
}

func (s *Stdout) Write(record *internal.Record) error {
	var output string
	var err error

	switch s.format {
	case "syslog":
		output = string(syslog.Format(record))
	case "json":
		output, err = s.formatJSON(record)
	case "template":
		output, err = s.formatTemplate(record)
	default:
		return fmt.Errorf("unknown format: %s", s.format)
	}

	if err != nil {
		return fmt.Errorf("failed to format record: %v", err)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	_, err = fmt.Fprintln(s.out, output)
	return err
}

func (s *Stdout) formatJSON(record *internal.Record) (string, error) {
	formatted := map[string]any{
		"timestamp":  record.Timestamp.UTC().Format(time.RFC3339Nano),
		"channel":    record.Channel,
		"provider":   record.Provider,
		"computer":   record.Computer,
		"event_id":   record.EventID,
		"process_id": record.ProcessID,
		"message":    record.Message,
	}

	var bytes []byte
	var err error

	if s.jsonIndent {
		bytes, err = json.MarshalIndent(formatted, "", "  ")
	} else {
		bytes, err = json.Marshal(formatted)
	}

	if err != nil {
		return "", err
	}

	return string(bytes), nil
}

func (s *Stdout) formatTemplate(record *internal.Record) (string, error) {
	if s.template == nil {
		return "", fmt.Errorf("template not configured")
	}

	builder := &strings.Builder{}
	if err := s.template.Execute(builder, record); err != nil {
		return "", err
	}

	return builder.String(), nil
}

func (s *Stdout) Exit() error {
	// No cleanup needed
	return nil
}
