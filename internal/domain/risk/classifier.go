package risk

import (
	"regexp"
	"strings"
)

// ActionCall is the classifiable shape of a proposed action: the tool name
// plus the fields the classifier understands. Tools that carry neither a
// command nor a path classify as UNKNOWN.
type ActionCall struct {
	Tool    string `json:"tool"`
	Command string `json:"command,omitempty"`
	Path    string `json:"path,omitempty"`
}

// Shell and file-editor tool names recognized by the classifier. Anything
// else falls through to the unknown-tool default (MEDIUM).
var (
	shellTools = map[string]bool{
		"execute_bash": true,
		"terminal":     true,
		"bash":         true,
	}
	editorTools = map[string]bool{
		"str_replace_editor": true,
		"file_editor":        true,
	}
)

// Command pattern tiers, checked HIGH -> MEDIUM -> LOW, first match wins.
// The tier order is a contract: a command matching both a HIGH and a LOW
// pattern is HIGH. Patterns are matched case-insensitively.
var (
	highRiskPatterns = compileAll(
		`\brm\s+-rf\s+/`,           // recursive delete from root
		`\bsudo\s+rm\s+-rf`,        // elevated recursive delete
		`\bchmod\s+777`,            // world-writable permissions
		`\bchown\s+.*\s+/`,         // ownership change on root paths
		`\bmkfs\.`,                 // filesystem formatting
		`\bdd\s+if=.*of=/dev/`,     // raw device writes
		`\b(wget|curl).*\|\s*sh`,   // pipe download to shell
		`\b(wget|curl).*\|\s*bash`, // pipe download to bash
		`\biptables\s+-f`,          // flush firewall rules
		`\bufw\s+--force\s+reset`,  // firewall reset
		`\bsystemctl\s+stop\s+ssh`, // kill remote access
		`\bkillall\s+-9`,           // force kill all
		`\bpkill\s+-9`,             // force kill by name
		`\b/etc/passwd`,            // credential file
		`\b/etc/shadow`,            // credential file
		`\bpasswd\s+root`,          // root password change
		`\bsu\s+-`,                 // switch to root
		`\bsudo\s+su`,              // sudo to root shell
	)

	mediumRiskPatterns = compileAll(
		`\brm\s+-rf\s+\w+`,                       // recursive delete, scoped
		`\bsudo\s+`,                              // any elevation
		`\bchmod\s+[0-7]{3}`,                     // permission changes
		`\bchown\s+`,                             // ownership changes
		`\bmv\s+.*\s+/usr/`,                      // move into system dirs
		`\bcp\s+.*\s+/usr/`,                      // copy into system dirs
		`\bsystemctl\s+(start|stop|restart)`,     // service management
		`\bservice\s+\w+\s+(start|stop|restart)`, // service management
		`\bapt\s+install`,                        // package install
		`\byum\s+install`,                        // package install
		`\bpip\s+install`,                        // package install
		`\bnpm\s+install\s+-g`,                   // global npm install
		`\bgit\s+clone\s+.*\s+/`,                 // clone into root dirs
		`\bwget\s+.*\s+-o\s+/`,                   // download to root dirs
		`\bcurl\s+.*\s+-o\s+/`,                   // download to root dirs
	)

	lowRiskPatterns = compileAll(
		`\bls\s+`, `\bcat\s+`, `\bhead\s+`, `\btail\s+`, `\bgrep\s+`,
		`\bfind\s+`, `\becho\s+`, `\bpwd\b`, `\bwhoami\b`, `\bdate\b`,
		`\bhistory\b`, `\bps\s+`, `\btop\b`, `\bhtop\b`, `\bdf\s+`,
		`\bdu\s+`, `\bfree\b`, `\buptime\b`,
	)
)

// Path prefix tiers for file-editor actions.
var (
	highRiskPaths = []string{
		"/etc/passwd", "/etc/shadow", "/etc/sudoers",
		"/boot/", "/sys/", "/proc/", "/dev/",
		"~/.ssh/", "~/.bashrc", "~/.profile",
		"/usr/bin/", "/usr/sbin/", "/bin/", "/sbin/",
	}
	mediumRiskPaths = []string{
		"/etc/", "/var/", "/opt/", "/usr/", "~/.config/", "~/.local/",
	}
)

// destructiveOps are file operations that promote an otherwise LOW path to
// MEDIUM.
var destructiveOps = map[string]bool{
	"delete": true,
	"remove": true,
	"chmod":  true,
	"chown":  true,
}

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, regexp.MustCompile(`(?i)`+p))
	}
	return out
}

// Classify returns the risk level of a proposed action. It is total: any
// input yields a level, never an error. An empty payload (no command and no
// path) is UNKNOWN; everything else that cannot be ranked defaults to MEDIUM.
func Classify(call ActionCall) Level {
	if strings.TrimSpace(call.Command) == "" && strings.TrimSpace(call.Path) == "" {
		return LevelUnknown
	}

	switch {
	case shellTools[call.Tool]:
		return ClassifyCommand(call.Command)
	case editorTools[call.Tool]:
		return ClassifyFileOp(call.Command, call.Path)
	default:
		// Unknown tools never rubber-stamp to LOW.
		return LevelMedium
	}
}

// ClassifyCommand ranks a shell command against the pattern tiers.
func ClassifyCommand(command string) Level {
	cmd := strings.TrimSpace(command)
	if cmd == "" {
		return LevelUnknown
	}

	for _, re := range highRiskPatterns {
		if re.MatchString(cmd) {
			return LevelHigh
		}
	}
	for _, re := range mediumRiskPatterns {
		if re.MatchString(cmd) {
			return LevelMedium
		}
	}
	for _, re := range lowRiskPatterns {
		if re.MatchString(cmd) {
			return LevelLow
		}
	}

	// Unmatched commands fail toward caution, not toward silence.
	return LevelMedium
}

// ClassifyFileOp ranks a file-editor operation by path prefix, then by
// operation kind. A pure view is always LOW regardless of path.
func ClassifyFileOp(operation, path string) Level {
	op := strings.ToLower(strings.TrimSpace(operation))
	if op == "view" {
		return LevelLow
	}
	if strings.TrimSpace(path) == "" {
		return LevelUnknown
	}

	p := strings.ToLower(path)
	for _, prefix := range highRiskPaths {
		if strings.HasPrefix(p, prefix) {
			return LevelHigh
		}
	}
	for _, prefix := range mediumRiskPaths {
		if strings.HasPrefix(p, prefix) {
			return LevelMedium
		}
	}
	if destructiveOps[op] {
		return LevelMedium
	}
	return LevelLow
}
