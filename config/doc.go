// Package config loads the daemon configuration from a YAML file.
//
// Every field has a working default, so an empty file (or no file at all)
// yields a fully in-memory setup suitable for local experiments. A missing
// file is only an error when its path was given explicitly.
package config
