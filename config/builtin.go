package config

import (
	"slices"
	"strings"
)

// builtins carry identity only. Containers, index files and record layouts
// differ between releases of the same game and come from profile files.
var builtins = []Profile{
	{ID: "DW7XL", DisplayName: "Dynasty Warriors 7 XL (PC)", SingleExt: ".DW7XLM", PackageExt: ".DW7XLP", LedgerName: "DW7XL.MODS"},
	{ID: "DW8XL", DisplayName: "Dynasty Warriors 8 XL (PC)", SingleExt: ".DW8XLM", PackageExt: ".DW8XLP", LedgerName: "DW8XL.MODS"},
	{ID: "DW8E", DisplayName: "Dynasty Warriors 8 Empires (PC)", SingleExt: ".DW8EM", PackageExt: ".DW8EP", LedgerName: "DW8E.MODS"},
	{ID: "WO3", DisplayName: "Warriors Orochi 3 (PC)", SingleExt: ".WO3M", PackageExt: ".WO3P", LedgerName: "WO3.MODS"},
	{ID: "BN", DisplayName: "Bladestorm Nightmare (PC)", SingleExt: ".BNM", PackageExt: ".BNP", LedgerName: "BSN.MODS"},
	{ID: "WAS", DisplayName: "Warriors All Stars (PC)", SingleExt: ".WASM", PackageExt: ".WASP", LedgerName: "WAS.MODS"},
}

// Builtin returns the built-in profile with id.
func Builtin(id string) (Profile, bool) {
	i := slices.IndexFunc(builtins, func(p Profile) bool {
		return strings.EqualFold(p.ID, id)
	})
	if i < 0 {
		return Profile{}, false
	}
	return builtins[i], true
}

// BuiltinIDs lists the ids of the built-in profiles.
func BuiltinIDs() []string {
	ids := make([]string, len(builtins))
	for i, p := range builtins {
		ids[i] = p.ID
	}
	return ids
}
