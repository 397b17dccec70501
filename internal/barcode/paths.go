// Package barcode drives the external label scripts, collates tube labels
// into print batches and sends batches to the print spooler.
package barcode

import (
	"path/filepath"
	"time"
)

// FileType is a generated artifact kind; its value is the folder and extension.
type FileType string

const (
	PDF FileType = "pdf"
	PNG FileType = "png"
)

// Script names inside Paths.Scripts.
const (
	TubeScript  = "tube_barcodes.py"
	SheetScript = "sheet_barcodes.py"
	DocScript   = "samp_sheet.py"
)

// DefaultCommandTimeout bounds every subprocess when Paths.CommandTimeout is unset.
const DefaultCommandTimeout = 2 * time.Minute

// Paths locates the scripts, scratch space, result tree and tools.
type Paths struct {
	Scripts     string `yaml:"scripts"`
	Tmp         string `yaml:"tmp"`
	Results     string `yaml:"results"`
	PathEnv     string `yaml:"path_env"`
	Interpreter string `yaml:"interpreter"`
	Shell       string `yaml:"shell"`
	PrintCmd    string `yaml:"print_cmd"`
	ZipCmd      string `yaml:"zip_cmd"`
	// CommandTimeout bounds each script, zip and print invocation.
	CommandTimeout time.Duration `yaml:"command_timeout"`
}

// WithDefaults fills unset tools and the timeout.
func (p Paths) WithDefaults() Paths {
	if p.Interpreter == "" {
		p.Interpreter = "python2"
	}
	if p.Shell == "" {
		p.Shell = "bash"
	}
	if p.PrintCmd == "" {
		p.PrintCmd = "lpr"
	}
	if p.ZipCmd == "" {
		p.ZipCmd = "zip"
	}
	if p.CommandTimeout <= 0 {
		p.CommandTimeout = DefaultCommandTimeout
	}
	return p
}

// ProjectDir is <results>/<5 char prefix of code>.
func (p Paths) ProjectDir(code string) string {
	prefix := code
	if len(prefix) > 5 {
		prefix = prefix[:5]
	}
	return filepath.Join(p.Results, prefix)
}

// Artifact is the path of a generated label file for code.
func (p Paths) Artifact(code string, t FileType) string {
	return filepath.Join(p.ProjectDir(code), string(t), code+"."+string(t))
}

// Script returns the path of a named script.
func (p Paths) Script(name string) string {
	return filepath.Join(p.Scripts, name)
}
