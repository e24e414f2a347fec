package main

// argOr returns the i-th positional argument, or def when the caller left
// it off. Pipeline commands take their input/output paths positionally and
// fall back to the conventional data/ layout.
func argOr(args []string, i int, def string) string {
	if i < len(args) && args[i] != "" {
		return args[i]
	}
	return def
}
