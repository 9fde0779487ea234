package config

import (
	"fmt"
	"strings"

	"github.com/MuchTitan/evtsyslog/internal/output"
	outputgelf "github.com/MuchTitan/evtsyslog/internal/output/gelf"
	outputstdout "github.com/MuchTitan/evtsyslog/internal/output/stdout"
	outputsyslog "github.com/MuchTitan/evtsyslog/internal/output/syslog"
	"github.com/MuchTitan/evtsyslog/internal/util"
)

// InitializeOutputs builds the syslog transport for dest followed by every
// output listed in the config file. Outputs created before a failure are
// exited again.
func (c *Config) InitializeOutputs(dest Destination) ([]output.Plugin, error) {
	transport := outputsyslog.New(dest.UDPAddr())
	if err := transport.Init(map[string]any{}); err != nil {
		return nil, fmt.Errorf("failed to initialize syslog transport: %w", err)
	}
	outputs := []output.Plugin{transport}

	for i, outputConfig := range c.Outputs {
		plugin, err := newOutput(outputConfig)
		if err == nil {
			err = plugin.Init(outputConfig)
		}
		if err != nil {
			for _, o := range outputs {
				o.Exit()
			}
			return nil, fmt.Errorf("failed to initialize output %d: %w", i, err)
		}
		outputs = append(outputs, plugin)
	}

	return outputs, nil
}

func newOutput(config map[string]any) (output.Plugin, error) {
	outputType := util.MustString(config["Type"])

	switch strings.ToLower(outputType) {
	case "gelf":
		return &outputgelf.GELF{}, nil
	case "stdout":
		return &outputstdout.Stdout{}, nil
	default:
		return nil, fmt.Errorf("unknown output type: %q", outputType)
	}
}
