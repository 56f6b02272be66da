package config

// validate checks every merged environment, in name order.
func (d *Document) validate(merged map[string]mergedEnvironment) error {
	for _, name := range sortedKeys(merged) {
		if msg := validateEnvironment(merged[name]); msg != "" {
			return d.newError(KindEnvironmentValidation, msg, LabeledSpan{
				Span:  d.envTable(name),
				Label: msg,
			})
		}
	}
	return nil
}

func validateEnvironment(env mergedEnvironment) string {
	switch {
	case env.EntryCmd == "":
		return "An environment requires a 'entry_cmd' field"
	case env.Image == "" && env.Dockerfile == "":
		return "An environment requires an 'image' or 'dockerfile' field"
	case env.Image != "" && env.Dockerfile != "":
		return "An environment can only have an 'image' or 'dockerfile' field"
	case env.BuildContext != "" && env.Dockerfile == "":
		return "An environment can only have a 'build_context' field alongside 'dockerfile'"
	}
	return ""
}
