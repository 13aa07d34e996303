package shadercombo

// ProgressReporter receives run-progress events, letting a CLI front end
// (or a test) render per-command and per-shader feedback without this
// package depending on terminal I/O.
type ProgressReporter interface {
	CommandCompleted(shader string, commandNumber uint64)
	ShaderWritten(shader string, aliasCount int, staticCount int)
}

type noopReporter struct{}

func (noopReporter) CommandCompleted(string, uint64) {}
func (noopReporter) ShaderWritten(string, int, int)  {}
