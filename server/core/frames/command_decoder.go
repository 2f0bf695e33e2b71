package frames

import (
	"context"
	"strconv"
	"strings"

	"github.com/yeti47/framesight/server/core/ccc/logging"
)

// DefaultCommandArgs is the argument template of the generic decode contract:
//
//	decode --input <in> --rate 1fps --output <dir>/frame-%04d.png
var DefaultCommandArgs = []string{"decode", "--input", "{input}", "--rate", "{rate}fps", "--output", "{output}"}

// CommandDecoder implements Decoder by running an arbitrary command line tool.
// Arguments may reference {input}, {output} and {rate}.
type CommandDecoder struct {
	logger  logging.Logger
	command string
	args    []string
}

// NewCommandDecoder creates a decoder running command with the given argument template.
// An empty template selects DefaultCommandArgs.
func NewCommandDecoder(logger logging.Logger, command string, args []string) *CommandDecoder {
	if logger == nil {
		logger = logging.NopLogger
	}
	if len(args) == 0 {
		args = DefaultCommandArgs
	}

	return &CommandDecoder{
		logger:  logger,
		command: command,
		args:    append([]string(nil), args...),
	}
}

func (d *CommandDecoder) Decode(ctx context.Context, req DecodeRequest) error {
	args := d.expandArgs(req)
	d.logger.Debug("Running decoder", "command", d.command, "args", strings.Join(args, " "))

	return runDecoderProcess(ctx, req.InputPath, d.command, args)
}

func (d *CommandDecoder) expandArgs(req DecodeRequest) []string {
	replacer := strings.NewReplacer(
		"{input}", req.InputPath,
		"{output}", req.OutputPattern(),
		"{rate}", strconv.Itoa(req.FrameRate),
	)

	args := make([]string, len(d.args))
	for i, arg := range d.args {
		args[i] = replacer.Replace(arg)
	}
	return args
}
