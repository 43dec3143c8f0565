// Package config loads the settings shared by the unillm CLI and gateway:
// an optional .env file, an optional YAML file with ${VAR} expansion, and
// environment overrides, in that order. A Config builds ready-to-use
// clients for the providers it names.
package config
