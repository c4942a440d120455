// Package webconf reads tile dataset configuration files and turns a
// directory tree of them into endpoint descriptors.
//
// A webconf file holds one directive per line: a key optionally followed by
// whitespace and a value. Lines starting with '#' are comments. Read failures
// never abort discovery; they are logged and the affected file yields an
// empty or partial configuration.
package webconf
