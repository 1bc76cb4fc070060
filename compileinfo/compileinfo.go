// Package compileinfo reports how an hrsip binary was built, so that result
// tables can be traced back to the code and numerical libraries that
// produced them.
package compileinfo

import (
	"fmt"
	"log"
	"runtime/debug"
	"sort"
	"strings"
)

// tracked are the dependencies whose versions can change reported statistics.
var tracked = []string{
	"gonum.org/v1/gonum",
	"github.com/glycerine/golang-fisher-exact",
	"github.com/montanaflynn/stats",
}

type CompileInfo struct {
	Binary     string
	Module     string
	Version    string
	GoVersion  string
	Commit     string
	CommitTime string
	Modified   bool

	// Deps maps each tracked dependency to its version.
	Deps map[string]string
}

func (c CompileInfo) String() string {
	mod := ""
	if c.Modified {
		mod = " (modified)"
	}

	deps := make([]string, 0, len(c.Deps))
	for path, version := range c.Deps {
		deps = append(deps, path+"@"+version)
	}
	sort.Strings(deps)

	out := fmt.Sprintf("%s (%s %s) built with %s at commit %v%s from %v", c.Binary, c.Module, c.Version, c.GoVersion, c.Commit, mod, c.CommitTime)
	if len(deps) > 0 {
		out += "; " + strings.Join(deps, ", ")
	}
	return out
}

func Get() CompileInfo {
	out := CompileInfo{Deps: map[string]string{}}

	z, ok := debug.ReadBuildInfo()
	if !ok {
		return out
	}

	out.GoVersion = z.GoVersion
	out.Binary = z.Path
	out.Module = z.Main.Path
	out.Version = z.Main.Version
	for _, s := range z.Settings {
		switch s.Key {
		case "vcs.revision":
			out.Commit = s.Value
		case "vcs.time":
			out.CommitTime = s.Value
		case "vcs.modified":
			out.Modified = s.Value == "true"
		}
	}

	for _, dep := range z.Deps {
		for _, path := range tracked {
			if dep.Path == path {
				out.Deps[path] = dep.Version
			}
		}
	}

	return out
}

// Log writes the build description through the standard logger.
func Log() {
	log.Println(Get())
}
