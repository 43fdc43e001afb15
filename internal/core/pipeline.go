package core

import (
	"fmt"
	"sort"
	"strings"
)

// Command names. Each maps to one template in Commands
const (
	CmdPublish  = "publish"
	CmdInstall  = "install"
	CmdTarget   = "target"
	CmdE2EClone = "e2e_clone"
	CmdE2ESpecs = "e2e_specs"
	CmdCleanup  = "cleanup"
)

// Commands is the set of command templates a build runs
type Commands map[string]Template

// DefaultCommands drive the ./fire provisioning tool
func DefaultCommands() Commands {
	return newCommands(map[string]string{
		CmdPublish: `./fire lxc-copy -s -b {sdbase} {clean_web} {name}
./fire i --lxc-name={name} --env="{env}" -e {endpoint} --prepopulate;
name={name} host={host} . superdesk-dev/nginx.tpl > /etc/nginx/instances/{name};
nginx -s reload || true`,

		CmdInstall: `./fire lxc-copy -s -b {sdbase} {clean} {name_uniq}
./fire i --lxc-name={name_uniq} --env="{env}" -e {endpoint};
lxc-stop -n {name_uniq};`,

		CmdTarget: `lxc={name_uniq}-{t};
./fire lxc-copy {clean} -s -b {name_uniq} $lxc
./fire r --lxc-name=$lxc --env="{env}" -e {endpoint} -a "{p}=1 do_checks"`,

		CmdE2EClone: `./fire lxc-copy -sb {name_uniq} {name_e2e}`,

		CmdE2ESpecs: `./fire r -e {endpoint} --lxc-name={name_e2e} -a 'pattern="{marker}" do_specs'`,

		CmdCleanup: `./fire lxc-clean "^{name_uniq}-";
[ -z "{clean}" ] || ./fire lxc-rm {name_uniq}`,
	})
}

// LoadCommands returns the default commands with overrides applied.
// Overriding an unknown command name is an error
func LoadCommands(overrides map[string]string) (Commands, error) {
	cmds := DefaultCommands()
	var unknown []string
	for name, text := range overrides {
		if _, ok := cmds[name]; !ok {
			unknown = append(unknown, name)
			continue
		}
		cmds[name] = Template{Name: name, Text: text}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("unknown commands: %s", strings.Join(unknown, ", "))
	}
	return cmds, nil
}

// Render renders the named command
func (c Commands) Render(name string, vars map[string]string) (string, error) {
	t, ok := c[name]
	if !ok {
		return "", fmt.Errorf("no command named %q", name)
	}
	return t.Render(vars)
}

func newCommands(texts map[string]string) Commands {
	cmds := make(Commands, len(texts))
	for name, text := range texts {
		cmds[name] = Template{Name: name, Text: text}
	}
	return cmds
}
