//go:build !tracing

package trace

// Enabled reports whether file export was compiled in.
const Enabled = false

// NewFileExporter returns a no-op exporter when tracing is disabled.
// The signature matches the tracing-enabled version.
func NewFileExporter(filePath string, opts ...FileExporterOption) (Exporter, error) {
	return &NoopExporter{}, nil
}
