package fleetconfig

import "regexp"

// envPattern matches ${VAR_NAME} tokens, identical in shape to the
// fleet and agent YAML files before parsing.
var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)
