package cli

import "flag"

const defaultHelpDesc = "Show help"

type HelpFlags struct {
	Help bool
}

// AddHelpFlags registers --help. The flag package already treats an
// undefined -h as a help request.
func AddHelpFlags(fs *flag.FlagSet, helpDesc string) *HelpFlags {
	if fs == nil {
		return &HelpFlags{}
	}
	if helpDesc == "" {
		helpDesc = defaultHelpDesc
	}
	flags := &HelpFlags{}
	fs.BoolVar(&flags.Help, "help", false, helpDesc)
	return flags
}
