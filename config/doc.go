// Package config loads game profiles and tool settings.
//
// A game profile names the archive pairs of one game (its index files and
// containers), the byte order of taildata and index records, the record
// layout, and the file extensions of single-file and package mods. Profiles
// are YAML documents; the key/value ".ref" files used by existing
// unpackers can be loaded as well.
//
// Tool settings (install folder, ledger folder, chosen game, registry
// options) live in an INI file, by default modkit.ini in the user config
// directory.
package config
