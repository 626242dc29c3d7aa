//go:build !unix && !windows

package bind

// classifyBind has no errno table to consult on these targets.
func classifyBind(error) Kind {
	return BindFailed
}
