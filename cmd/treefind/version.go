package main

import "runtime/debug"

var version = readBuildInfo().String()

// buildInfo is the VCS state stamped into the binary by the Go toolchain.
type buildInfo struct {
	revision string
	modified bool
}

func readBuildInfo() buildInfo {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return buildInfo{}
	}
	var b buildInfo
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			b.revision = s.Value
		case "vcs.modified":
			b.modified = s.Value == "true"
		}
	}
	if b.revision == "" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		b.revision = info.Main.Version
	}
	return b
}

func (b buildInfo) String() string {
	if b.revision == "" {
		return "dev"
	}
	rev := b.revision
	if len(rev) > 7 && rev[0] != 'v' {
		rev = rev[:7]
	}
	if b.modified {
		return rev + "-dirty"
	}
	return rev
}
