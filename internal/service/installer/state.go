package installer

// InstallState collects the answers of the wizard. EnvVars is written to
// the .env file, the other fields only steer the steps.
type InstallState struct {
	RuntimePath string
	Provider    string
	Channel     string
	Thinkers    []string

	EnvVars map[string]string
}

func NewInstallState(runtimePath string) *InstallState {
	return &InstallState{
		RuntimePath: runtimePath,
		EnvVars:     make(map[string]string),
	}
}
